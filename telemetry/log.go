package telemetry

import (
	"context"
	"log/slog"

	"github.com/jacobbrewer1/cloudflare-failover/logging"
)

// Log writes events to a logger. Failures are logged at error level.
type Log struct {
	l *slog.Logger
}

// NewLog returns a sink logging to l.
func NewLog(l *slog.Logger) *Log {
	return &Log{l: l}
}

// Observe is a no-op; the monitor logs every cycle itself.
func (s *Log) Observe(context.Context, Observation) {}

func (s *Log) Publish(ctx context.Context, e Event) {
	level := slog.LevelInfo
	if e.Type.Failed() {
		level = slog.LevelError
	}

	attrs := []slog.Attr{
		slog.String(logging.KeyEvent, string(e.Type)),
		slog.String(logging.KeyDomain, e.Domain),
	}
	if e.FromIP != "" {
		attrs = append(attrs, slog.String("from_ip", e.FromIP))
	}
	if e.ToIP != "" {
		attrs = append(attrs, slog.String("to_ip", e.ToIP))
	}
	if e.Reason != "" {
		attrs = append(attrs, slog.String(logging.KeyReason, e.Reason))
	}
	if e.Error != "" {
		attrs = append(attrs, slog.String(logging.KeyError, e.Error))
	}

	s.l.LogAttrs(ctx, level, "failover event", attrs...)
}
