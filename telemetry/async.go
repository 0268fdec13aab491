package telemetry

import (
	"context"
	"log/slog"
	"sync"

	xsync "github.com/jacobbrewer1/cloudflare-failover/sync"
)

// asyncBuffer is the number of events each subscriber may lag behind.
const asyncBuffer = 32

// Async hands events to slow sinks on their own goroutines so the monitor
// cycle never waits for them. Observations are not forwarded.
type Async struct {
	broadcaster *xsync.ChannelBroadcaster[Event]
	sinks       map[string]Sink

	queues    []chan Event
	delivery  sync.WaitGroup
	closeOnce sync.Once
}

// NewAsync returns a sink delivering events to each of sinks in the background.
// Start must be called before events are delivered.
func NewAsync(l *slog.Logger, sinks map[string]Sink) *Async {
	return &Async{
		broadcaster: xsync.NewChannelBroadcaster[Event](l, asyncBuffer),
		sinks:       sinks,
	}
}

// Start runs the delivery goroutines. They outlive ctx and only stop once
// Close has handed over every queued event, so a shutdown that cancels ctx
// first does not lose the last events.
func (a *Async) Start(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	for name, sink := range a.sinks {
		ch := make(chan Event, asyncBuffer)
		a.queues = append(a.queues, ch)
		a.broadcaster.AddChannel(name, ch)

		a.delivery.Add(1)
		go func() {
			defer a.delivery.Done()
			for e := range ch {
				sink.Publish(ctx, e)
			}
		}()
	}

	a.broadcaster.Start(ctx)
}

// Close stops accepting events and waits until the queued ones are delivered
// or ctx is done, in which case ctx's error is returned.
func (a *Async) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		a.broadcaster.Close()
		for _, ch := range a.queues {
			close(ch)
		}
	})

	delivered := make(chan struct{})
	go func() {
		a.delivery.Wait()
		close(delivered)
	}()

	select {
	case <-delivered:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Async) Observe(context.Context, Observation) {}

func (a *Async) Publish(_ context.Context, e Event) {
	a.broadcaster.Publish(e)
}
