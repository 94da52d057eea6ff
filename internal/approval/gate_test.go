package approval

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// testClock is a manually advanced clock for expiry tests.
type testClock struct {
	t time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestAuthorize_TierAutoAlwaysPasses(t *testing.T) {
	g := NewGate()
	err := g.Authorize(Request{UserID: "u1", ActionKind: "browser.read", Tier: TierAuto})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthorize_TierConfirmNeedsConfirmation(t *testing.T) {
	g := NewGate()

	err := g.Authorize(Request{UserID: "u1", ActionKind: "browser.click", Tier: TierConfirm})
	if !errors.Is(err, ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved, got %v", err)
	}

	err = g.Authorize(Request{UserID: "u1", ActionKind: "browser.click", Tier: TierConfirm, Approved: true})
	if err != nil {
		t.Errorf("approved request rejected: %v", err)
	}
}

func TestAuthorize_TierDoubleRequiresApprovedFlag(t *testing.T) {
	g := NewGate()

	err := g.Authorize(Request{UserID: "u1", ActionKind: "desktop.install", Tier: TierDouble})
	if !errors.Is(err, ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved, got %v", err)
	}

	err = g.Authorize(Request{UserID: "u1", ActionKind: "desktop.install", Tier: TierDouble, Approved: true})
	if err != nil {
		t.Errorf("approved request rejected: %v", err)
	}
}

func TestAuthorize_ApprovedDestinationSkipsConfirmation(t *testing.T) {
	g := NewGate()

	// First visit needs the confirmation, which also remembers the host.
	req := Request{UserID: "u1", ActionKind: "browser.navigate", Tier: TierConfirm, Destination: "https://example.com/checkout"}
	if err := g.Authorize(req); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved on first visit, got %v", err)
	}
	req.Approved = true
	if err := g.Authorize(req); err != nil {
		t.Fatalf("confirmed first visit rejected: %v", err)
	}

	// Later visits to the same host pass without confirmation, and the
	// access counter climbs.
	later := Request{UserID: "u1", ActionKind: "browser.navigate", Tier: TierConfirm, Destination: "https://example.com/basket"}
	if err := g.Authorize(later); err != nil {
		t.Fatalf("revisit to approved host rejected: %v", err)
	}
	if err := g.Authorize(later); err != nil {
		t.Fatalf("revisit to approved host rejected: %v", err)
	}
	if got := g.DestinationAccessCount("example.com"); got != 2 {
		t.Errorf("expected access count 2, got %d", got)
	}
}

func TestAuthorize_UnparseableDestinationFailsClosed(t *testing.T) {
	g := NewGate()
	err := g.Authorize(Request{UserID: "u1", ActionKind: "browser.navigate", Tier: TierConfirm, Destination: "   "})
	if !errors.Is(err, ErrNotApproved) {
		t.Errorf("expected ErrNotApproved for unparseable destination, got %v", err)
	}
}

func TestCreatePending_SecondRequestRejected(t *testing.T) {
	g := NewGate()

	if _, err := g.CreatePending("u1", "message.send", "send draft to Alice", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := g.CreatePending("u1", "message.send", "send draft to Bob", nil)
	if !errors.Is(err, ErrPendingApproval) {
		t.Fatalf("expected ErrPendingApproval, got %v", err)
	}
	if !strings.Contains(err.Error(), "Alice") {
		t.Errorf("expected the active pending description in the error, got %v", err)
	}

	// Another user is unaffected.
	if _, err := g.CreatePending("u2", "message.send", "send draft", nil); err != nil {
		t.Errorf("unexpected error for a different user: %v", err)
	}
}

func TestCreatePending_ExpiredEntryEvicted(t *testing.T) {
	clock := newTestClock()
	g := NewGate(WithExpiry(5*time.Minute), WithClock(clock.now))

	if _, err := g.CreatePending("u1", "message.send", "first", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clock.advance(6 * time.Minute)

	// The stale entry no longer blocks a new one.
	if _, err := g.CreatePending("u1", "message.send", "second", nil); err != nil {
		t.Errorf("expired pending still blocking: %v", err)
	}
}

func TestHasPending_LazyEviction(t *testing.T) {
	clock := newTestClock()
	g := NewGate(WithExpiry(5*time.Minute), WithClock(clock.now))

	g.CreatePending("u1", "message.send", "draft", nil)
	if !g.HasPending("u1") {
		t.Fatal("expected pending confirmation")
	}
	clock.advance(5 * time.Minute)
	if g.HasPending("u1") {
		t.Error("expected pending confirmation to expire")
	}
}

func TestResolve_ApproveAndReject(t *testing.T) {
	g := NewGate()

	g.CreatePending("u1", "message.send", "draft", map[string]interface{}{"to": "alice"})
	outcome, p, err := g.Resolve("u1", "  Yes ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeApproved {
		t.Errorf("expected approved, got %s", outcome)
	}
	if p.Payload["to"] != "alice" {
		t.Errorf("expected payload back with the resolution")
	}
	if g.HasPending("u1") {
		t.Error("approval must destroy the pending entry")
	}

	g.CreatePending("u1", "message.send", "draft", nil)
	outcome, _, err = g.Resolve("u1", "hayır")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeRejected {
		t.Errorf("expected rejected, got %s", outcome)
	}
	if g.HasPending("u1") {
		t.Error("rejection must destroy the pending entry")
	}
}

func TestResolve_UnmatchedReplyKeepsPending(t *testing.T) {
	g := NewGate()

	g.CreatePending("u1", "message.send", "draft", nil)
	outcome, _, err := g.Resolve("u1", "what was that about?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeUnmatched {
		t.Errorf("expected unmatched, got %s", outcome)
	}
	if !g.HasPending("u1") {
		t.Error("unmatched reply must keep the pending entry")
	}
}

func TestResolve_NoPending(t *testing.T) {
	g := NewGate()
	if _, _, err := g.Resolve("u1", "yes"); !errors.Is(err, ErrNoPending) {
		t.Errorf("expected ErrNoPending, got %v", err)
	}
}

func TestResolve_ExpiredBehavesAsAbsent(t *testing.T) {
	clock := newTestClock()
	g := NewGate(WithExpiry(time.Minute), WithClock(clock.now))

	g.CreatePending("u1", "message.send", "draft", nil)
	clock.advance(2 * time.Minute)
	if _, _, err := g.Resolve("u1", "yes"); !errors.Is(err, ErrNoPending) {
		t.Errorf("expected ErrNoPending for expired entry, got %v", err)
	}
}

func TestMatchToken(t *testing.T) {
	cases := []struct {
		reply string
		want  TokenKind
	}{
		{"yes", TokenAffirmative},
		{"  OK  ", TokenAffirmative},
		{"do it", TokenAffirmative},
		{"evet", TokenAffirmative},
		{"gönder", TokenAffirmative},
		{"no", TokenNegative},
		{"Cancel", TokenNegative},
		{"hayır", TokenNegative},
		{"HAYIR", TokenNegative}, // Turkish dotless ı caps
		{"hayir", TokenNegative}, // ASCII-folded spelling
		{"İPTAL", TokenNegative},
		{"vazgeç", TokenNegative},
		{"VAZGEÇ", TokenNegative},
		{"vazgec", TokenNegative},
		{"GÖNDER", TokenAffirmative},
		{"DO IT", TokenAffirmative}, // English caps must not fold as Turkish
		{"", TokenNone},
		{"maybe later", TokenNone},
		{"yes please", TokenNone}, // exact match only
	}
	for _, tc := range cases {
		if got := MatchToken(tc.reply); got != tc.want {
			t.Errorf("MatchToken(%q) = %v, want %v", tc.reply, got, tc.want)
		}
	}
}

func TestNormalizeDestination(t *testing.T) {
	cases := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"https://Example.com/path?q=1", "example.com", false},
		{"wss://relay.example.org:8443/ws", "relay.example.org", false},
		{"example.com", "example.com", false},
		{"example.com:443/login", "example.com", false},
		{"", "", true},
		{"   ", "", true},
	}
	for _, tc := range cases {
		got, err := NormalizeDestination(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Errorf("NormalizeDestination(%q): expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeDestination(%q): %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizeDestination(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}
