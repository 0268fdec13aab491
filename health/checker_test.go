package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jacobbrewer1/cloudflare-failover/dns"
)

func serve(t *testing.T, c *Checker) (int, *Result) {
	t.Helper()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	result := new(Result)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(result))
	return rec.Code, result
}

func TestChecker_Handler(t *testing.T) {
	t.Parallel()

	up := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("boom") }

	tests := []struct {
		name       string
		checks     []*Check
		wantCode   int
		wantStatus Status
	}{
		{
			name:       "no checks",
			wantCode:   http.StatusOK,
			wantStatus: StatusUp,
		},
		{
			name:       "all up",
			checks:     []*Check{NewCheck("a", up), NewCheck("b", up)},
			wantCode:   http.StatusOK,
			wantStatus: StatusUp,
		},
		{
			name:       "one down",
			checks:     []*Check{NewCheck("a", up), NewCheck("b", down)},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: StatusDown,
		},
		{
			name:       "degraded is served as ok",
			checks:     []*Check{NewCheck("a", up), FailoverCheck(func() bool { return true })},
			wantCode:   http.StatusOK,
			wantStatus: StatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, err := NewChecker(WithCheckerChecks(tt.checks...))
			require.NoError(t, err)

			code, result := serve(t, c)
			require.Equal(t, tt.wantCode, code)
			require.Equal(t, tt.wantStatus, result.Status)
			require.Len(t, result.Details, len(tt.checks))
			for _, check := range tt.checks {
				require.Contains(t, result.Details, check.String())
			}
		})
	}
}

func TestChecker_ErrorDetails(t *testing.T) {
	t.Parallel()

	c, err := NewChecker(
		WithCheckerChecks(LoopCheck(func(context.Context) error { return errors.New("monitor loop is not running") })),
		WithCheckerHTTPCodeDown(http.StatusInternalServerError),
	)
	require.NoError(t, err)

	code, result := serve(t, c)
	require.Equal(t, http.StatusInternalServerError, code)
	require.Equal(t, "monitor loop is not running", result.Details["monitor_loop"].Error)
	require.NotNil(t, result.Details["monitor_loop"].Timestamp)
}

func TestChecker_AddCheck(t *testing.T) {
	t.Parallel()

	c, err := NewChecker()
	require.NoError(t, err)

	noop := func(context.Context) error { return nil }
	require.Error(t, c.AddCheck(nil))
	require.Error(t, c.AddCheck(NewCheck("", noop)))
	require.NoError(t, c.AddCheck(NewCheck("a", noop)))
	require.ErrorContains(t, c.AddCheck(NewCheck("a", noop)), "already exists")

	_, err = NewChecker(WithCheckerChecks(NewCheck("a", noop), NewCheck("a", noop)))
	require.Error(t, err)
}

type stubProvider struct {
	err error
}

func (p *stubProvider) GetRecord(_ context.Context, name, recordType string) (*dns.Record, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &dns.Record{ID: "1", Name: name, Type: recordType, Content: "192.0.2.1"}, nil
}

func (p *stubProvider) UpdateRecord(context.Context, string, string) error { return nil }

func TestProviderCheck(t *testing.T) {
	t.Parallel()

	p := &stubProvider{err: dns.ErrRecordNotFound}
	c := ProviderCheck(p, "app.example.com", "A", 2)

	status, err := c.Check(t.Context())
	require.ErrorIs(t, err, dns.ErrRecordNotFound)
	require.Equal(t, StatusUp, status)

	status, _ = c.Check(t.Context())
	require.Equal(t, StatusDown, status)

	p.err = nil
	status, err = c.Check(t.Context())
	require.NoError(t, err)
	require.Equal(t, StatusUp, status)
}

func TestStatus_JSON(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{StatusUp, StatusDown, StatusDegraded, StatusUnknown} {
		data, err := json.Marshal(s)
		require.NoError(t, err)

		var got Status
		require.NoError(t, json.Unmarshal(data, &got))
		require.Equal(t, s, got)
	}

	_, err := json.Marshal(Status(42))
	require.Error(t, err)

	var got Status
	require.Error(t, json.Unmarshal([]byte(`"sideways"`), &got))
}
