// Package api serves the monitor status and the manual override endpoints.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jacobbrewer1/cloudflare-failover/logging"
	"github.com/jacobbrewer1/cloudflare-failover/monitor"
)

type (
	// Monitor is the part of the reconciler the API drives.
	Monitor interface {
		Status() monitor.Status
		ForceFailover(ctx context.Context) (monitor.Outcome, error)
		ForceRestore(ctx context.Context) (monitor.Outcome, error)
	}

	// LoopInfoer reports the progress of the monitor loop.
	LoopInfoer interface {
		Info() monitor.LoopInfo
	}

	// Option configures the API.
	Option = func(*service)
)

// WithLoop adds the loop progress to the status response.
func WithLoop(loop LoopInfoer) Option {
	return func(s *service) {
		s.loop = loop
	}
}

// WithConfig serves the given redacted configuration on GET /config.
func WithConfig(redacted func() map[string]any) Option {
	return func(s *service) {
		s.config = redacted
	}
}

// WithLeaderCheck refuses overrides while isLeader reports false.
func WithLeaderCheck(isLeader func() bool) Option {
	return func(s *service) {
		s.isLeader = isLeader
	}
}

// WithOverrideToken enables POST /failover and POST /restore for callers
// presenting token as a bearer token. Without it the override routes are
// not served.
func WithOverrideToken(token string) Option {
	return func(s *service) {
		s.overrideToken = token
	}
}

// WithMiddleware applies middlewares to every route.
func WithMiddleware(mw ...mux.MiddlewareFunc) Option {
	return func(s *service) {
		s.middleware = append(s.middleware, mw...)
	}
}

type service struct {
	l             *slog.Logger
	monitor       Monitor
	loop          LoopInfoer
	config        func() map[string]any
	isLeader      func() bool
	overrideToken string
	middleware    []mux.MiddlewareFunc
}

// NewRouter returns the API router.
func NewRouter(l *slog.Logger, m Monitor, opts ...Option) *mux.Router {
	s := &service{
		l:       l,
		monitor: m,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.NotFoundHandler = NotFoundHandler()
	r.MethodNotAllowedHandler = MethodNotAllowedHandler()
	r.Use(s.middleware...)
	r.Use(RequestLogger(l))

	r.HandleFunc("/status", s.status).Methods(http.MethodGet)
	if s.config != nil {
		r.HandleFunc("/config", s.configHandler).Methods(http.MethodGet)
	}

	if s.overrideToken == "" {
		l.Info("manual overrides disabled, no override token configured")
		return r
	}

	authorized := RequireBearerToken(s.overrideToken)
	leaderOnly := RequireLeader(s.isLeader)
	r.Handle("/failover", WrapHandler(s.override(m.ForceFailover), authorized, leaderOnly)).Methods(http.MethodPost)
	r.Handle("/restore", WrapHandler(s.override(m.ForceRestore), authorized, leaderOnly)).Methods(http.MethodPost)

	return r
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	monitor.Status

	Mode    string            `json:"mode"`
	Monitor *monitor.LoopInfo `json:"monitor_info,omitempty"`
}

func (s *service) status(w http.ResponseWriter, _ *http.Request) {
	st := s.monitor.Status()
	resp := StatusResponse{
		Status: st,
		Mode:   st.Mode(),
	}
	if s.loop != nil {
		info := s.loop.Info()
		resp.Monitor = &info
	}
	encode(w, http.StatusOK, resp)
}

func (s *service) configHandler(w http.ResponseWriter, _ *http.Request) {
	encode(w, http.StatusOK, s.config())
}

// OverrideResponse is the body of POST /failover and POST /restore.
type OverrideResponse struct {
	Outcome string         `json:"outcome"`
	Status  monitor.Status `json:"status"`
}

func (s *service) override(fn func(context.Context) (monitor.Outcome, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := logging.LoggerFromRequest(s.l, r)

		// The write must finish even if the caller goes away.
		outcome, err := fn(context.WithoutCancel(r.Context()))
		if err != nil {
			l.Error("manual override failed", slog.Any(logging.KeyError, err))

			code := http.StatusInternalServerError
			if errors.Is(err, monitor.ErrProviderRead) || errors.Is(err, monitor.ErrProviderWrite) {
				code = http.StatusBadGateway
			}
			encodeError(w, code, err.Error())
			return
		}

		l.Info("manual override handled", slog.String(logging.KeyAction, outcome.String()))
		encode(w, http.StatusOK, OverrideResponse{
			Outcome: outcome.String(),
			Status:  s.monitor.Status(),
		})
	}
}
