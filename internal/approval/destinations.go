package approval

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Destination is a remembered target for which Tier-1 confirmation is no
// longer required.
type Destination struct {
	Host        string    `json:"host"`
	ApprovedAt  time.Time `json:"approved_at"`
	AccessCount int       `json:"access_count"`
}

// NormalizeDestination reduces a raw destination (URL or bare host) to a
// lowercased hostname. Anything that does not yield a host fails closed.
func NormalizeDestination(raw string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return "", fmt.Errorf("empty destination")
	}
	if strings.Contains(trimmed, "://") {
		parsed, err := url.Parse(trimmed)
		if err != nil {
			return "", fmt.Errorf("unparseable destination %q: %w", raw, err)
		}
		host := parsed.Hostname()
		if host == "" {
			return "", fmt.Errorf("destination %q has no host", raw)
		}
		return host, nil
	}
	// Bare host, possibly with a port or path tacked on.
	host := trimmed
	if i := strings.IndexAny(host, "/"); i >= 0 {
		host = host[:i]
	}
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	if host == "" || strings.ContainsAny(host, " \t") {
		return "", fmt.Errorf("destination %q has no host", raw)
	}
	return host, nil
}

// approveDestination remembers a normalized host as approved.
func (g *Gate) approveDestination(host string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.destinations[host]; ok {
		return
	}
	g.destinations[host] = &Destination{Host: host, ApprovedAt: g.now()}
	g.logger.Info("destination approved", map[string]interface{}{"host": host})
}

// ApproveDestination remembers a raw destination as approved.
func (g *Gate) ApproveDestination(raw string) error {
	host, err := NormalizeDestination(raw)
	if err != nil {
		return err
	}
	g.approveDestination(host)
	return nil
}

// useDestination reports whether the host was previously approved and, if
// so, increments its access counter.
func (g *Gate) useDestination(host string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.destinations[host]
	if !ok {
		return false
	}
	d.AccessCount++
	return true
}

// DestinationAccessCount returns how many times an approved destination was
// reused, or -1 when the destination is unknown.
func (g *Gate) DestinationAccessCount(raw string) int {
	host, err := NormalizeDestination(raw)
	if err != nil {
		return -1
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.destinations[host]
	if !ok {
		return -1
	}
	return d.AccessCount
}
