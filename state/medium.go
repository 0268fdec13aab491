package state

import (
	"context"
	"errors"
)

// ErrNoState is returned by a Medium that holds no persisted state yet.
var ErrNoState = errors.New("no persisted state")

// Medium is a readable and writable slot for one encoded state.
type Medium interface {
	// Read returns the stored bytes, or ErrNoState when nothing was written.
	Read(ctx context.Context) ([]byte, error)

	// Write replaces the stored bytes. Readers never observe a partial write.
	Write(ctx context.Context, data []byte) error

	// String names the medium in logs.
	String() string
}
