package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jacobbrewer1/cloudflare-failover/dns"
	"github.com/jacobbrewer1/cloudflare-failover/engine"
	"github.com/jacobbrewer1/cloudflare-failover/state"
	"github.com/jacobbrewer1/cloudflare-failover/telemetry"
)

const (
	testDomain    = "app.example.com"
	testPrimaryIP = "192.0.2.10"
	testBackupIP  = "198.51.100.20"
	testRecordID  = "rec-1"
)

var fixedNow = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

type fakeProvider struct {
	mu        sync.Mutex
	content   string
	getErr    error
	updateErr error
	gets      int
	updates   []string
}

func (p *fakeProvider) GetRecord(_ context.Context, name, recordType string) (*dns.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.gets++
	if p.getErr != nil {
		return nil, p.getErr
	}
	return &dns.Record{
		ID:      testRecordID,
		Name:    name,
		Type:    recordType,
		Content: p.content,
		TTL:     dns.DefaultTTL,
	}, nil
}

func (p *fakeProvider) UpdateRecord(_ context.Context, recordID, content string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if recordID != testRecordID {
		return dns.ErrRecordNotFound
	}
	if p.updateErr != nil {
		return p.updateErr
	}
	p.updates = append(p.updates, content)
	p.content = content
	return nil
}

func (p *fakeProvider) set(fn func(p *fakeProvider)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p)
}

func (p *fakeProvider) current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.content
}

func (p *fakeProvider) updateCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.updates)
}

// fakeProber answers from a per-target latency table. A missing entry is a
// connection failure.
type fakeProber struct {
	mu      sync.Mutex
	latency map[string]float64
	probes  map[string]int
}

func newFakeProber() *fakeProber {
	return &fakeProber{
		latency: make(map[string]float64),
		probes:  make(map[string]int),
	}
}

func (p *fakeProber) Probe(_ context.Context, target string) state.HealthCheck {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.probes[target]++
	latency, ok := p.latency[target]
	if !ok {
		msg := "HTTP connection failed: connection refused"
		return state.HealthCheck{Timestamp: fixedNow, Error: &msg}
	}
	return state.HealthCheck{Timestamp: fixedNow, Success: true, LatencyMS: &latency}
}

func (p *fakeProber) up(target string, latency float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latency[target] = latency
}

func (p *fakeProber) down(target string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.latency, target)
}

func (p *fakeProber) count(target string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.probes[target]
}

type memMedium struct {
	mu       sync.Mutex
	data     []byte
	writes   int
	writeErr error
}

func (m *memMedium) Read(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data == nil {
		return nil, state.ErrNoState
	}
	return m.data, nil
}

func (m *memMedium) Write(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes++
	m.data = data
	return nil
}

func (m *memMedium) String() string { return "memory" }

func (m *memMedium) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

type recordingSink struct {
	mu           sync.Mutex
	events       []telemetry.Event
	observations []telemetry.Observation
}

func (s *recordingSink) Observe(_ context.Context, o telemetry.Observation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observations = append(s.observations, o)
}

func (s *recordingSink) Publish(_ context.Context, e telemetry.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) types() []telemetry.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()

	types := make([]telemetry.EventType, 0, len(s.events))
	for _, e := range s.events {
		types = append(types, e.Type)
	}
	return types
}

type harness struct {
	r        *Reconciler
	provider *fakeProvider
	prober   *fakeProber
	medium   *memMedium
	sink     *recordingSink
}

func newHarness(t *testing.T, th engine.Thresholds) *harness {
	t.Helper()

	h := &harness{
		provider: &fakeProvider{content: testPrimaryIP},
		prober:   newFakeProber(),
		medium:   new(memMedium),
		sink:     new(recordingSink),
	}

	l := slog.New(slog.DiscardHandler)
	h.r = NewReconciler(l,
		Targets{
			Domain:     testDomain,
			RecordType: "A",
			PrimaryIP:  testPrimaryIP,
			BackupIP:   testBackupIP,
		},
		h.provider,
		h.prober,
		engine.New(th),
		state.NewStore(l, h.medium),
		WithSink(h.sink),
		WithClock(func() time.Time { return fixedNow }),
	)
	return h
}

func (h *harness) cycles(t *testing.T, n int) {
	t.Helper()
	for range n {
		_, err := h.r.Cycle(t.Context())
		require.NoError(t, err)
	}
}

var errBoom = errors.New("boom")
