// Package audit records one line per gateway invocation, with sensitive
// parameters redacted and long values truncated.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vinayprograms/agentkit/logging"
)

// Outcome tags for audit records.
const (
	OutcomeAuto     = "AUTO"     // tier 0, dispatched without a gate check
	OutcomeApproved = "APPROVED" // gated action authorized and dispatched
	OutcomeBlocked  = "BLOCKED"  // gate refused; action never dispatched
	OutcomeError    = "ERROR"    // dispatched but failed (transport, timeout, remote)
)

// Record is one audit entry.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	User      string    `json:"user,omitempty"`
	Params    string    `json:"params"` // truncated, redacted summary
	Outcome   string    `json:"outcome"`
	Detail    string    `json:"detail,omitempty"` // error reason, if any
}

// Line renders the record as a single human-readable audit line.
func (r Record) Line() string {
	line := fmt.Sprintf("%s %s action=%s params=%s",
		r.Timestamp.Format(time.RFC3339), r.Outcome, r.Action, r.Params)
	if r.Detail != "" {
		line += " detail=" + r.Detail
	}
	return line
}

// redactedKeys are parameter names whose values never reach the audit log.
var redactedKeys = []string{"password", "token", "secret", "credential", "api_key", "authorization"}

const (
	maxParamValueLen = 80
	defaultRingSize  = 256
)

// Log retains recent records in a bounded ring and optionally appends each
// record as a JSONL line to a file under the storage path.
type Log struct {
	logger *logging.Logger

	mu   sync.Mutex
	ring []Record
	max  int
	file *os.File
}

// NewLog creates an audit log. Path may be empty for an in-memory-only log.
func NewLog(path string) (*Log, error) {
	l := &Log{
		logger: logging.New().WithComponent("audit"),
		max:    defaultRingSize,
	}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating audit directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening audit log: %w", err)
		}
		l.file = f
	}
	return l, nil
}

// Close releases the file sink, if any.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Write appends a record built from an invocation. Params are summarized
// with redaction before anything is stored.
func (l *Log) Write(action, user string, params map[string]interface{}, outcome, detail string) Record {
	rec := Record{
		Timestamp: time.Now(),
		Action:    action,
		User:      user,
		Params:    Summarize(params),
		Outcome:   outcome,
		Detail:    detail,
	}

	l.mu.Lock()
	l.ring = append(l.ring, rec)
	if len(l.ring) > l.max {
		l.ring = l.ring[len(l.ring)-l.max:]
	}
	file := l.file
	l.mu.Unlock()

	if file != nil {
		data, err := json.Marshal(rec)
		if err == nil {
			_, err = file.Write(append(data, '\n'))
		}
		if err != nil {
			l.logger.Warn("failed to append audit record", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return rec
}

// Recent returns up to n of the most recent records, oldest first.
func (l *Log) Recent(n int) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.ring) {
		n = len(l.ring)
	}
	out := make([]Record, n)
	copy(out, l.ring[len(l.ring)-n:])
	return out
}

// ReadFile loads up to n of the most recent records from a JSONL audit
// file, oldest first. A missing file yields no records and no error.
// Unparseable lines are skipped.
func ReadFile(path string, n int) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}
	if n > 0 && len(records) > n {
		records = records[len(records)-n:]
	}
	return records, nil
}

// Summarize renders params as a compact key=value summary with known
// sensitive keys redacted and long values truncated.
func Summarize(params map[string]interface{}) string {
	if len(params) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+summarizeValue(k, params[k]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func summarizeValue(key string, v interface{}) string {
	lower := strings.ToLower(key)
	for _, sensitive := range redactedKeys {
		if strings.Contains(lower, sensitive) {
			return "[redacted]"
		}
	}
	s := fmt.Sprintf("%v", v)
	if len(s) > maxParamValueLen {
		s = s[:maxParamValueLen] + "..."
	}
	return s
}
