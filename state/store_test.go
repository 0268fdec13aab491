package state

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type failingMedium struct {
	readErr  error
	writeErr error
}

func (m *failingMedium) Read(context.Context) ([]byte, error) { return nil, m.readErr }

func (m *failingMedium) Write(context.Context, []byte) error { return m.writeErr }

func (m *failingMedium) String() string { return "failing" }

func TestStore_FileRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "failover_state.json")
	store := NewStore(slog.New(slog.DiscardHandler), NewFileMedium(path))

	st := store.Load(t.Context())
	require.Equal(t, New(), st)

	st.CurrentIP = "192.0.2.10"
	st.ConsecutiveFailures = 1
	st.History.Append(checkAt(3))
	require.NoError(t, store.Save(t.Context(), st))

	got := store.Load(t.Context())
	require.Equal(t, "192.0.2.10", got.CurrentIP)
	require.Equal(t, uint(1), got.ConsecutiveFailures)
	require.Equal(t, 1, got.History.Len())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestStore_LoadFallsBackToDefault(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		medium func(t *testing.T) Medium
	}{
		{
			name: "read error",
			medium: func(*testing.T) Medium {
				return &failingMedium{readErr: errors.New("disk on fire")}
			},
		},
		{
			name: "corrupt file",
			medium: func(t *testing.T) Medium {
				path := filepath.Join(t.TempDir(), "state.json")
				require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
				return NewFileMedium(path)
			},
		},
		{
			name: "schema mismatch",
			medium: func(t *testing.T) Medium {
				path := filepath.Join(t.TempDir(), "state.json")
				require.NoError(t, os.WriteFile(path, []byte(`{"version": 99, "is_failed_over": true}`), 0o600))
				return NewFileMedium(path)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := NewStore(slog.New(slog.DiscardHandler), tt.medium(t))
			require.Equal(t, New(), store.Load(t.Context()))
		})
	}
}

func TestStore_SaveError(t *testing.T) {
	t.Parallel()

	store := NewStore(slog.New(slog.DiscardHandler), &failingMedium{writeErr: errors.New("read-only filesystem")})
	err := store.Save(t.Context(), New())
	require.ErrorContains(t, err, "read-only filesystem")
}
