package logging

import (
	"log/slog"
	"net/http"
)

// HeaderRequestID is the header read to correlate API calls with log lines.
const HeaderRequestID = "X-Request-ID"

// LoggerFromRequest returns a logger tagged with the request's method, path and,
// when present, the caller supplied request ID.
func LoggerFromRequest(l *slog.Logger, r *http.Request) *slog.Logger {
	if r == nil {
		return l
	}

	l = l.With(
		slog.String(KeyMethod, r.Method),
		slog.String(KeyPath, r.URL.Path),
	)

	if id := r.Header.Get(HeaderRequestID); id != "" {
		l = l.With(slog.String(KeyRequestID, id))
	}
	return l
}
