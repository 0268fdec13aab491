package logging

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// NewLogger creates a JSON logger writing to stdout.
func NewLogger(opts ...Option) *slog.Logger {
	return NewLoggerWithWriter(os.Stdout, opts...)
}

// NewLoggerWithWriter creates a JSON logger writing to the given writer.
//
// The level is taken from LOG_LEVEL and repeated attribute keys are collapsed
// so that a component logger derived from another component logger only
// carries the most specific component name.
//
// Parameters:
//   - writer: The destination for encoded log lines.
//   - opts: Options applied to the logger after construction.
//
// Returns:
//   - *slog.Logger: The configured logger.
func NewLoggerWithWriter(writer io.Writer, opts ...Option) *slog.Logger {
	logCfg := newLoggingConfig()

	l := slog.New(NewDedupeHandler(slog.NewJSONHandler(writer, &slog.HandlerOptions{
		AddSource:   true,
		Level:       logCfg.Level,
		ReplaceAttr: replaceAttrs,
	})))

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// LoggerWithComponent returns a new logger with the given component name.
func LoggerWithComponent(l *slog.Logger, component string) *slog.Logger {
	return l.With(
		slog.String(KeyComponent, component),
	)
}

// replaceAttrs trims the source attribute down to "<dir>/<file>:<line>".
func replaceAttrs(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.SourceKey {
		return a
	}

	src, ok := a.Value.Any().(*slog.Source)
	if !ok || src == nil {
		return a
	}

	parts := strings.Split(src.File, "/")
	if len(parts) > 2 {
		parts = parts[len(parts)-2:]
	}

	a.Value = slog.StringValue(strings.Join(parts, "/") + ":" + strconv.Itoa(src.Line))
	return a
}
