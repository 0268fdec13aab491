package logging

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	buf := new(bytes.Buffer)
	l := NewLoggerWithWriter(buf, WithAppName("failover"), WithComponent("monitor"))
	l.Info("cycle complete", slog.String(KeyDomain, "www.example.com"))

	got := buf.String()

	require.Contains(t, got, `"app":"failover"`)
	require.Contains(t, got, `"component":"monitor"`)
	require.Contains(t, got, `"domain":"www.example.com"`)
	require.Contains(t, got, `"level":"INFO"`)
}

func TestDuplicateComponent(t *testing.T) {
	buf := new(bytes.Buffer)
	l := NewLoggerWithWriter(buf, WithComponent("monitor"))
	l = LoggerWithComponent(l, "reconciler")
	l.Info("test")

	got := buf.String()

	require.Contains(t, got, `"component":"reconciler"`)
	require.NotContains(t, got, `"component":"monitor"`)
}

func TestDedupeHandler_KeepsFirstSeenOrder(t *testing.T) {
	t.Parallel()

	buf := new(bytes.Buffer)
	h := NewDedupeHandler(slog.NewJSONHandler(buf, nil))
	h = h.WithAttrs([]slog.Attr{slog.String("a", "1"), slog.String("b", "2")})
	h = h.WithAttrs([]slog.Attr{slog.String("a", "3"), slog.String("c", "4")})

	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "msg", 0))
	require.NoError(t, err)

	got := buf.String()
	require.Contains(t, got, `"a":"3","b":"2","c":"4"`)
	require.NotContains(t, got, `"a":"1"`)
}

func TestReplaceAttrs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		attr     slog.Attr
		expected string
	}{
		{
			name:     "full path",
			attr:     slog.Any(slog.SourceKey, &slog.Source{File: "/src/failover/monitor/loop.go", Line: 42}),
			expected: "monitor/loop.go:42",
		},
		{
			name:     "bare file",
			attr:     slog.Any(slog.SourceKey, &slog.Source{File: "loop.go", Line: 7}),
			expected: "loop.go:7",
		},
		{
			name:     "non-source key",
			attr:     slog.String("other", "/path/to/file.go"),
			expected: "/path/to/file.go",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result := replaceAttrs(nil, tt.attr)
			require.Equal(t, tt.expected, result.Value.String())
		})
	}
}

func TestLoggerFromRequest(t *testing.T) {
	t.Parallel()

	buf := new(bytes.Buffer)
	base := slog.New(slog.NewJSONHandler(buf, nil))

	r := httptest.NewRequest("POST", "/failover", nil)
	r.Header.Set(HeaderRequestID, "abc-123")

	LoggerFromRequest(base, r).Info("override")

	got := buf.String()
	require.True(t, strings.Contains(got, `"method":"POST"`))
	require.Contains(t, got, `"path":"/failover"`)
	require.Contains(t, got, `"request_id":"abc-123"`)
}
