// Package approval gates requested actions behind a risk-tiered confirmation
// protocol with per-user pending state and expiry.
package approval

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vinayprograms/agentkit/logging"
)

// Tier is the static risk classification of an action kind.
type Tier int

const (
	// TierAuto covers read-only observation; dispatched without a gate check.
	TierAuto Tier = iota
	// TierConfirm covers state-changing but reversible actions; one explicit
	// confirmation is required, unless the destination was approved before.
	TierConfirm
	// TierDouble covers irreversible or high-blast-radius actions. The gate
	// trusts the caller's single Approved flag; obtaining the second
	// confirmation is the conversational layer's contract.
	TierDouble
)

func (t Tier) String() string {
	switch t {
	case TierAuto:
		return "automatic"
	case TierConfirm:
		return "confirm"
	case TierDouble:
		return "double-confirm"
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// DefaultExpiry is how long a pending confirmation stays answerable.
const DefaultExpiry = 5 * time.Minute

// ErrPendingApproval is returned when a user already has an active pending
// confirmation; a second request is rejected, never queued or merged.
var ErrPendingApproval = errors.New("a confirmation is already pending for this user")

// ErrNotApproved is returned when a gated action arrives without the
// required confirmation. The action is never dispatched.
var ErrNotApproved = errors.New("action requires approval")

// ErrNoPending is returned when a reply arrives with nothing to resolve.
var ErrNoPending = errors.New("no pending confirmation for this user")

// Pending is one outstanding confirmation, at most one per user.
type Pending struct {
	UserID      string
	ActionKind  string
	Description string
	Payload     map[string]interface{}
	CreatedAt   time.Time
}

// Outcome of resolving a pending confirmation against a user reply.
type Outcome string

const (
	OutcomeApproved  Outcome = "approved"
	OutcomeRejected  Outcome = "rejected"
	OutcomeUnmatched Outcome = "unmatched" // reply matched neither vocabulary
)

// Gate owns the pending-approval and approved-destination state for one
// orchestration context.
type Gate struct {
	logger *logging.Logger
	expiry time.Duration
	now    func() time.Time

	mu           sync.Mutex
	pending      map[string]*Pending
	destinations map[string]*Destination
}

// Option configures a Gate.
type Option func(*Gate)

// WithExpiry overrides the pending-confirmation expiry window.
func WithExpiry(d time.Duration) Option {
	return func(g *Gate) { g.expiry = d }
}

// WithClock overrides the gate's clock; tests use this to advance time.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// NewGate creates an approval gate.
func NewGate(opts ...Option) *Gate {
	g := &Gate{
		logger:       logging.New().WithComponent("approval"),
		expiry:       DefaultExpiry,
		now:          time.Now,
		pending:      make(map[string]*Pending),
		destinations: make(map[string]*Destination),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Request describes one action seeking authorization.
type Request struct {
	UserID      string
	ActionKind  string
	Tier        Tier
	Destination string // raw destination for destination-type actions, "" otherwise
	Approved    bool   // explicit confirmation obtained by the caller
}

// Authorize decides whether a request may be dispatched. Tier 0 always
// passes. Tier 1 passes with the Approved flag or a previously approved
// destination (incrementing its access counter). Tier 2 requires the
// Approved flag; per the current contract a single boolean is trusted.
func (g *Gate) Authorize(req Request) error {
	switch req.Tier {
	case TierAuto:
		return nil
	case TierConfirm:
		if req.Destination != "" {
			host, err := NormalizeDestination(req.Destination)
			if err != nil {
				// Unknown destination fails closed: treated as not yet approved.
				if req.Approved {
					return nil
				}
				return fmt.Errorf("%w: unrecognized destination %q", ErrNotApproved, req.Destination)
			}
			if g.useDestination(host) {
				return nil
			}
			if req.Approved {
				g.approveDestination(host)
				return nil
			}
			return fmt.Errorf("%w: destination %q not previously approved", ErrNotApproved, host)
		}
		if !req.Approved {
			return fmt.Errorf("%w: %s needs one confirmation", ErrNotApproved, req.ActionKind)
		}
		return nil
	case TierDouble:
		if !req.Approved {
			return fmt.Errorf("%w: %s needs double confirmation", ErrNotApproved, req.ActionKind)
		}
		// The gate cannot see how many confirmations the conversational
		// layer collected; it trusts the flag and leaves a trace.
		g.logger.Warn("double-confirm action authorized on caller's flag", map[string]interface{}{
			"action": req.ActionKind,
			"user":   req.UserID,
		})
		return nil
	}
	return fmt.Errorf("unknown risk tier %d for %s", int(req.Tier), req.ActionKind)
}

// CreatePending registers a confirmation awaiting the user's reply. A user
// with an active (unexpired) pending confirmation gets ErrPendingApproval.
func (g *Gate) CreatePending(userID, actionKind, description string, payload map[string]interface{}) (*Pending, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.pending[userID]; ok {
		if g.now().Sub(p.CreatedAt) < g.expiry {
			return nil, fmt.Errorf("%w: %s", ErrPendingApproval, p.Description)
		}
		delete(g.pending, userID) // lazy eviction of the expired entry
	}
	p := &Pending{
		UserID:      userID,
		ActionKind:  actionKind,
		Description: description,
		Payload:     payload,
		CreatedAt:   g.now(),
	}
	g.pending[userID] = p
	return p, nil
}

// HasPending reports whether the user has an active pending confirmation,
// lazily evicting an expired one.
func (g *Gate) HasPending(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pending[userID]
	if !ok {
		return false
	}
	if g.now().Sub(p.CreatedAt) >= g.expiry {
		delete(g.pending, userID)
		return false
	}
	return true
}

// Resolve matches the user's free-text reply against the confirmation
// vocabulary. Approved and rejected both destroy the pending entry; an
// unmatched reply leaves it in place. An expired entry behaves as absent.
func (g *Gate) Resolve(userID, replyText string) (Outcome, *Pending, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pending[userID]
	if !ok {
		return "", nil, ErrNoPending
	}
	if g.now().Sub(p.CreatedAt) >= g.expiry {
		delete(g.pending, userID)
		return "", nil, ErrNoPending
	}

	switch MatchToken(replyText) {
	case TokenAffirmative:
		delete(g.pending, userID)
		g.logger.Info("pending action approved", map[string]interface{}{
			"user":   userID,
			"action": p.ActionKind,
		})
		return OutcomeApproved, p, nil
	case TokenNegative:
		delete(g.pending, userID)
		g.logger.Info("pending action rejected", map[string]interface{}{
			"user":   userID,
			"action": p.ActionKind,
		})
		return OutcomeRejected, p, nil
	}
	return OutcomeUnmatched, p, nil
}
