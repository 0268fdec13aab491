//go:build mage

package main

import (
	"log/slog"
	"os"
	"strconv"
	"sync"
)

// isCI reports whether mage runs on a CI runner. GitHub Actions sets both
// CI and GITHUB_ACTIONS.
var isCI = sync.OnceValue(func() bool {
	for _, key := range []string{"CI", "GITHUB_ACTIONS"} {
		if ok, _ := strconv.ParseBool(os.Getenv(key)); ok {
			return true
		}
	}
	return false
})

// isVerbose is true locally and on CI runs with RUNNER_DEBUG set.
var isVerbose = sync.OnceValue(func() bool {
	debug, _ := strconv.ParseBool(os.Getenv("RUNNER_DEBUG"))
	return debug || !isCI()
})

// logger writes target progress to stdout. Debug lines only appear when
// isVerbose is true.
var logger = sync.OnceValue(func() *slog.Logger {
	level := slog.LevelInfo
	if isVerbose() {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	})).With(slog.String("module", "cloudflare-failover"))
})
