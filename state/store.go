package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jacobbrewer1/cloudflare-failover/logging"
)

// Store loads and saves State through a Medium.
type Store struct {
	l      *slog.Logger
	medium Medium
}

// NewStore returns a Store persisting to medium.
func NewStore(l *slog.Logger, medium Medium) *Store {
	return &Store{
		l:      l.With(slog.String(logging.KeyBackend, medium.String())),
		medium: medium,
	}
}

// Load returns the persisted state. It never fails: when nothing is stored,
// or the stored data cannot be read or decoded, a fresh state is returned and
// the cause is logged.
func (s *Store) Load(ctx context.Context) *State {
	data, err := s.medium.Read(ctx)
	switch {
	case errors.Is(err, ErrNoState):
		s.l.Info("no persisted state found, starting fresh")
		return New()
	case err != nil:
		s.l.Error("failed to read persisted state, starting fresh", slog.Any(logging.KeyError, err))
		return New()
	}

	st, err := Decode(data)
	if err != nil {
		s.l.Error("failed to decode persisted state, starting fresh", slog.Any(logging.KeyError, err))
		return New()
	}

	s.l.Info("loaded persisted state",
		slog.String(logging.KeyCurrentIP, st.CurrentIP),
		slog.Bool("is_failed_over", st.IsFailedOver),
		slog.Int("health_history", st.History.Len()),
	)
	return st
}

// Save persists st.
func (s *Store) Save(ctx context.Context, st *State) error {
	data, err := Encode(st)
	if err != nil {
		return err
	}

	if err := s.medium.Write(ctx, data); err != nil {
		return fmt.Errorf("failed to write state to %s: %w", s.medium, err)
	}
	return nil
}
