// Package notify delivers watchdog reports to an external notification
// collaborator.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/vinayprograms/agentkit/logging"
)

// Notifier receives one human-readable report per watchdog pass that made
// changes.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// message is the wire shape published to NATS.
type message struct {
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sent_at"`
}

// NATSNotifier publishes reports to a NATS subject for the chat layer (or
// anything else) to pick up.
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
	logger  *logging.Logger
}

// NewNATS connects to a NATS server and returns a notifier publishing to
// subject.
func NewNATS(url, subject string) (*NATSNotifier, error) {
	conn, err := nats.Connect(url, nats.Name("aide-notify"))
	if err != nil {
		return nil, err
	}
	return &NATSNotifier{
		conn:    conn,
		subject: subject,
		logger:  logging.New().WithComponent("notify"),
	}, nil
}

// Notify publishes the report.
func (n *NATSNotifier) Notify(ctx context.Context, subject, body string) error {
	data, err := json.Marshal(message{Subject: subject, Body: body, SentAt: time.Now()})
	if err != nil {
		return err
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		n.logger.Warn("failed to publish report", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}
	return nil
}

// Close drains the NATS connection.
func (n *NATSNotifier) Close() {
	n.conn.Drain()
}

// LogNotifier writes reports to the structured log. Used when no NATS
// server is configured.
type LogNotifier struct {
	logger *logging.Logger
}

// NewLog creates a log-backed notifier.
func NewLog() *LogNotifier {
	return &LogNotifier{logger: logging.New().WithComponent("notify")}
}

// Notify logs the report.
func (n *LogNotifier) Notify(ctx context.Context, subject, body string) error {
	n.logger.Info(subject, map[string]interface{}{"report": body})
	return nil
}

// Nop discards reports. Tests that only care about state transitions use it.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(ctx context.Context, subject, body string) error { return nil }
