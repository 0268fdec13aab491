package logging

import (
	"context"
	"log/slog"
	"slices"
)

var _ slog.Handler = new(dedupeHandler)

// dedupeHandler wraps a slog.Handler so that attributes added through With
// keep a single value per key. A later value replaces the earlier one in place,
// so the emitted order is the order in which keys were first seen.
type dedupeHandler struct {
	base  slog.Handler
	attrs []slog.Attr
}

// NewDedupeHandler wraps base in a handler that collapses repeated attribute keys.
func NewDedupeHandler(base slog.Handler) slog.Handler {
	return &dedupeHandler{
		base:  base,
		attrs: make([]slog.Attr, 0),
	}
}

func (d *dedupeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return d.base.Enabled(ctx, level)
}

func (d *dedupeHandler) Handle(ctx context.Context, record slog.Record) error { // nolint:gocritic // Part of an interface
	record = record.Clone()
	record.AddAttrs(d.attrs...)
	return d.base.Handle(ctx, record)
}

// WithAttrs returns a handler carrying the merged attribute set.
func (d *dedupeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := slices.Clone(d.attrs)

	for _, attr := range attrs {
		idx := slices.IndexFunc(merged, func(existing slog.Attr) bool {
			return existing.Key == attr.Key
		})
		if idx >= 0 {
			merged[idx] = attr
			continue
		}
		merged = append(merged, attr)
	}

	return &dedupeHandler{
		base:  d.base,
		attrs: merged,
	}
}

func (d *dedupeHandler) WithGroup(name string) slog.Handler {
	return &dedupeHandler{
		base:  d.base.WithGroup(name),
		attrs: d.attrs,
	}
}
