package relay

import (
	"errors"
	"fmt"
	"time"
)

// ErrAuthRejected indicates the remote executor closed the connection
// during the open handshake, i.e. the shared secret was not accepted.
var ErrAuthRejected = errors.New("authentication rejected by remote executor")

// ErrConnectionLost indicates the connection closed while calls were in
// flight. The channel never re-establishes on its own; callers decide
// whether to re-issue.
var ErrConnectionLost = errors.New("connection to remote executor lost")

// TransportError wraps connection-level failures (dial, write, unexpected
// close, rejected auth). Distinguishable from timeouts and from errors the
// remote side reported after executing the action.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("relay transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError means no reply arrived within the call's bound. The pending
// call is discarded; a late reply for its id is silently dropped.
type TimeoutError struct {
	Action  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no reply for %q within %s", e.Action, e.Timeout)
}

// RemoteError means the remote executor ran the action and reported a
// failure. Never retried automatically.
type RemoteError struct {
	Action  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote executor failed %q: %s", e.Action, e.Message)
}

// IsTimeout reports whether err is a call timeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsTransport reports whether err is a connection-level failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsRemote reports whether err is an application failure reported by the
// remote side.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
