package relay

import "encoding/json"

// request is the outbound wire envelope for one correlated call.
type request struct {
	ID     string                 `json:"id"`
	Action string                 `json:"action"`
	Params map[string]interface{} `json:"params"`
}

// reply is the inbound wire envelope. Regular replies carry a correlation id;
// the handshake acknowledgement carries event "ready" instead. Inbound
// messages with neither a recognized id nor a known event are ignored.
type reply struct {
	ID      string          `json:"id"`
	Event   string          `json:"event,omitempty"`
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

const eventReady = "ready"
