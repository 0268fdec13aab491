package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/jacobbrewer1/cloudflare-failover/logging"
)

// WrapHandler wraps handler with middlewares, the first being the outermost.
// Nil middlewares are skipped.
func WrapHandler(handler http.Handler, middlewares ...mux.MiddlewareFunc) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] == nil {
			continue
		}
		handler = middlewares[i](handler)
	}
	return handler
}

// RequireLeader rejects requests with 409 while isLeader reports false.
// A nil isLeader returns a nil middleware.
func RequireLeader(isLeader func() bool) mux.MiddlewareFunc {
	if isLeader == nil {
		return nil
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isLeader() {
				encodeError(w, http.StatusConflict, "this instance is not the leader")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireBearerToken rejects requests with 401 unless they carry
// "Authorization: Bearer <token>".
func RequireBearerToken(token string) mux.MiddlewareFunc {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="failover"`)
				encodeError(w, http.StatusUnauthorized, "a valid bearer token is required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// RequestLogger logs every request at debug level once it is served.
func RequestLogger(l *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(rec, r)

			logging.LoggerFromRequest(l, r).Debug("request served",
				slog.Int(logging.KeyStatus, rec.code),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
