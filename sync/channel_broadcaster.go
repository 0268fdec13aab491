package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.uber.org/multierr"

	"github.com/jacobbrewer1/cloudflare-failover/logging"
)

// ChannelBroadcaster copies every published message of type T to all
// registered channels. Publishing never blocks: a message is dropped when the
// broadcaster's own buffer is full, and a subscriber whose channel is full
// misses that message.
type ChannelBroadcaster[T any] struct {
	mut sync.RWMutex

	l *slog.Logger

	broadcastingChan chan T

	channels map[string]chan<- T

	closeOnce sync.Once
	done      chan struct{}
	running   sync.WaitGroup
}

// NewChannelBroadcaster creates a broadcaster buffering up to size messages.
func NewChannelBroadcaster[T any](l *slog.Logger, size int) *ChannelBroadcaster[T] {
	if size < 1 {
		size = 1
	}
	return &ChannelBroadcaster[T]{
		l:                l,
		broadcastingChan: make(chan T, size),
		channels:         make(map[string]chan<- T),
		done:             make(chan struct{}),
	}
}

// Start fans messages out until ctx is done or Close is called. Messages
// still buffered when Close is called are fanned out before it returns.
func (b *ChannelBroadcaster[T]) Start(ctx context.Context) {
	b.running.Add(1)
	go func() {
		defer b.running.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.done:
				b.flush()
				return
			case msg := <-b.broadcastingChan:
				b.broadcast(msg)
			}
		}
	}()
}

func (b *ChannelBroadcaster[T]) flush() {
	for {
		select {
		case msg := <-b.broadcastingChan:
			b.broadcast(msg)
		default:
			return
		}
	}
}

func (b *ChannelBroadcaster[T]) broadcast(msg T) {
	b.mut.RLock()
	defer b.mut.RUnlock()

	var broadcastErrs error
	for name, ch := range b.channels {
		select {
		case ch <- msg:
		default:
			broadcastErrs = multierr.Append(broadcastErrs, fmt.Errorf("channel %s is full, skipping message", name))
		}
	}

	if broadcastErrs != nil {
		b.l.Error("errors occurred while broadcasting message", slog.Any(logging.KeyError, broadcastErrs))
	}
}

// Publish queues msg for delivery and reports whether it was accepted.
func (b *ChannelBroadcaster[T]) Publish(msg T) bool {
	select {
	case <-b.done:
		return false
	default:
	}

	select {
	case b.broadcastingChan <- msg:
		return true
	default:
		b.l.Warn("broadcast buffer full, dropping message")
		return false
	}
}

// AddChannel registers ch under name. A second registration under the same
// name is ignored.
func (b *ChannelBroadcaster[T]) AddChannel(name string, ch chan<- T) {
	b.mut.Lock()
	defer b.mut.Unlock()

	if _, exists := b.channels[name]; exists {
		b.l.Warn("channel already exists, skipping addition", slog.String(logging.KeyName, name))
		return
	}

	b.channels[name] = ch
}

// RemoveChannel unregisters the channel called name without closing it.
func (b *ChannelBroadcaster[T]) RemoveChannel(name string) {
	b.mut.Lock()
	defer b.mut.Unlock()

	delete(b.channels, name)
}

// Close stops the broadcaster once the buffered messages have been fanned
// out. Registered channels are not closed because the broadcaster does not
// own them.
func (b *ChannelBroadcaster[T]) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
		b.running.Wait()

		b.mut.Lock()
		b.channels = make(map[string]chan<- T)
		b.mut.Unlock()
	})
}
