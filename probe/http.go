package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jacobbrewer1/cloudflare-failover/state"
)

const (
	// DefaultTimeout bounds each HTTP attempt.
	DefaultTimeout = 5 * time.Second

	// DefaultErrorStatus is the lowest status code treated as unhealthy.
	DefaultErrorStatus = http.StatusInternalServerError

	// maxDrainBytes is how much of a response body is read before closing it,
	// so that keep-alive connections can be reused.
	maxDrainBytes = 4 << 10
)

// HTTPOption configures an HTTPProber.
type HTTPOption = func(*HTTPProber)

// HTTPProber issues a GET against the target, trying each scheme in turn.
// The next scheme is only tried when the connection could not be made; a
// timeout or an HTTP response ends the probe.
type HTTPProber struct {
	client      *http.Client
	timeout     time.Duration
	errorStatus int
	schemes     []string
	path        string
	now         func() time.Time
}

// WithTimeout sets the per attempt timeout.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(p *HTTPProber) {
		p.timeout = timeout
	}
}

// WithErrorStatus sets the lowest status code treated as unhealthy.
func WithErrorStatus(code int) HTTPOption {
	return func(p *HTTPProber) {
		p.errorStatus = code
	}
}

// WithSchemes sets the URL schemes tried, in order.
func WithSchemes(schemes ...string) HTTPOption {
	return func(p *HTTPProber) {
		p.schemes = schemes
	}
}

// WithPath sets the request path.
func WithPath(path string) HTTPOption {
	return func(p *HTTPProber) {
		p.path = path
	}
}

// WithHTTPClient replaces the HTTP client. The client should not follow redirects.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(p *HTTPProber) {
		p.client = client
	}
}

// WithClock sets the function used to timestamp checks.
func WithClock(now func() time.Time) HTTPOption {
	return func(p *HTTPProber) {
		p.now = now
	}
}

// NewHTTPProber returns a prober that tries http then https with a five
// second timeout, treats any status below 500 as healthy and does not follow
// redirects. Certificates are not verified because targets are bare addresses.
func NewHTTPProber(opts ...HTTPOption) *HTTPProber {
	p := &HTTPProber{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               nil,
				TLSClientConfig:     &tls.Config{InsecureSkipVerify: true}, // nolint:gosec // Targets are IP addresses.
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout:     DefaultTimeout,
		errorStatus: DefaultErrorStatus,
		schemes:     []string{"http", "https"},
		path:        "/",
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *HTTPProber) Probe(ctx context.Context, target string) state.HealthCheck {
	check := state.HealthCheck{
		Timestamp: p.now(),
	}
	began := time.Now()

	urls, err := p.urls(target)
	if err != nil {
		check.Error = errorString(err.Error())
		return check
	}

	var lastErr error
	for _, u := range urls {
		code, latency, err := p.attempt(ctx, u)
		switch {
		case err == nil:
			check.LatencyMS = &latency
			if code >= p.errorStatus {
				check.Error = errorString(fmt.Sprintf("HTTP %d", code))
				return check
			}
			check.Success = true
			return check
		case isTimeout(err):
			check.LatencyMS = millisSince(began)
			check.Error = errorString("HTTP timeout")
			return check
		}
		lastErr = err
	}

	check.LatencyMS = millisSince(began)
	check.Error = errorString(fmt.Sprintf("HTTP connection failed: %v", lastErr))
	return check
}

func (p *HTTPProber) attempt(ctx context.Context, u string) (int, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("User-Agent", "cloudflare-failover-probe")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	latency := *millisSince(start)

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	_ = resp.Body.Close()

	return resp.StatusCode, latency, nil
}

// urls expands a bare host, host:port or IP into one URL per scheme. A target
// that already carries a scheme is used as given.
func (p *HTTPProber) urls(target string) ([]string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, errors.New("probe target is empty")
	}

	if strings.Contains(target, "://") {
		if _, err := url.Parse(target); err != nil {
			return nil, fmt.Errorf("invalid probe target: %w", err)
		}
		return []string{target}, nil
	}

	host := target
	if ip := net.ParseIP(target); ip != nil && ip.To4() == nil {
		host = "[" + target + "]"
	}

	out := make([]string, 0, len(p.schemes))
	for _, scheme := range p.schemes {
		u := url.URL{Scheme: scheme, Host: host, Path: p.path}
		out = append(out, u.String())
	}
	return out, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func millisSince(t time.Time) *float64 {
	ms := float64(time.Since(t).Microseconds()) / 1000
	return &ms
}

func errorString(s string) *string {
	return &s
}
