// Package gateway exposes the closed vocabulary of remote actions, gating
// each invocation through the approval tier check and auditing every one.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/aide/internal/approval"
	"github.com/vinayprograms/aide/internal/audit"
)

// Caller is the correlation channel contract the gateway dispatches through.
type Caller interface {
	Call(ctx context.Context, action string, params map[string]interface{}, timeout time.Duration) (json.RawMessage, error)
}

// Request is one action invocation on behalf of a user.
type Request struct {
	User     string
	Action   string
	Params   map[string]interface{}
	Approved bool // confirmation flag obtained by the conversational layer
}

// Gateway routes named actions over the correlation channel. Large binary
// results (captures) pass through as opaque encoded blobs, uninspected.
type Gateway struct {
	relay    Caller
	gate     *approval.Gate
	audit    *audit.Log
	logger   *logging.Logger
	timeouts map[string]time.Duration // per-action overrides from config
}

// New creates a gateway.
func New(relay Caller, gate *approval.Gate, auditLog *audit.Log) *Gateway {
	return &Gateway{
		relay:  relay,
		gate:   gate,
		audit:  auditLog,
		logger: logging.New().WithComponent("gateway"),
	}
}

// SetTimeout overrides the timeout for one action.
func (g *Gateway) SetTimeout(action string, d time.Duration) {
	if g.timeouts == nil {
		g.timeouts = make(map[string]time.Duration)
	}
	g.timeouts[action] = d
}

// Invoke authorizes, dispatches, and audits one action. Every invocation
// writes exactly one audit record, whatever the outcome.
func (g *Gateway) Invoke(ctx context.Context, req Request) (json.RawMessage, error) {
	spec, ok := Lookup(req.Action)
	if !ok {
		g.audit.Write(req.Action, req.User, req.Params, audit.OutcomeBlocked, "unknown action")
		return nil, fmt.Errorf("unknown action %q", req.Action)
	}

	ctx, span := g.startActionSpan(ctx, spec, req.User)

	destination := ""
	if spec.DestinationKey != "" {
		if v, ok := req.Params[spec.DestinationKey]; ok {
			destination = fmt.Sprintf("%v", v)
		}
	}
	if err := g.gate.Authorize(approval.Request{
		UserID:      req.User,
		ActionKind:  spec.Name,
		Tier:        spec.Tier,
		Destination: destination,
		Approved:    req.Approved,
	}); err != nil {
		g.audit.Write(spec.Name, req.User, req.Params, audit.OutcomeBlocked, err.Error())
		g.endActionSpan(span, audit.OutcomeBlocked, err)
		return nil, err
	}

	timeout := spec.Timeout
	if d, ok := g.timeouts[spec.Name]; ok {
		timeout = d
	}

	result, err := g.relay.Call(ctx, spec.Name, req.Params, timeout)
	if err != nil {
		g.audit.Write(spec.Name, req.User, req.Params, audit.OutcomeError, err.Error())
		g.endActionSpan(span, audit.OutcomeError, err)
		return nil, err
	}

	outcome := audit.OutcomeApproved
	if spec.Tier == approval.TierAuto {
		outcome = audit.OutcomeAuto
	}
	g.audit.Write(spec.Name, req.User, req.Params, outcome, "")
	g.endActionSpan(span, outcome, nil)
	return result, nil
}
