package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/jacobbrewer1/cloudflare-failover/logging"
)

// DefaultSubjectPrefix is prepended to the lower cased event type to form
// the NATS subject, e.g. "failover.events.dns_failover".
const DefaultSubjectPrefix = "failover.events"

// Publisher sends a message on a subject. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATS publishes events as JSON messages.
type NATS struct {
	l       *slog.Logger
	pub     Publisher
	subject string
}

// NewNATS returns a sink publishing below subjectPrefix.
func NewNATS(l *slog.Logger, pub Publisher, subjectPrefix string) *NATS {
	if subjectPrefix == "" {
		subjectPrefix = DefaultSubjectPrefix
	}
	return &NATS{
		l:       l,
		pub:     pub,
		subject: subjectPrefix,
	}
}

// Subject returns the subject an event of type t is published on.
func (n *NATS) Subject(t EventType) string {
	return n.subject + "." + strings.ToLower(string(t))
}

// Observe is a no-op; only record changes are published.
func (n *NATS) Observe(context.Context, Observation) {}

func (n *NATS) Publish(_ context.Context, e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		n.l.Error("failed to marshal event", slog.Any(logging.KeyError, err))
		return
	}

	if err := n.pub.Publish(n.Subject(e.Type), data); err != nil {
		n.l.Error("failed to publish event",
			slog.String(logging.KeyEvent, string(e.Type)),
			slog.Any(logging.KeyError, err),
		)
	}
}
