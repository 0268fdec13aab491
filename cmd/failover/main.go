package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jacobbrewer1/cloudflare-failover/logging"
)

const appName = "cloudflare-failover"

func main() {
	// Logs go to stderr so that command output on stdout stays machine readable.
	l := logging.NewLoggerWithWriter(os.Stderr,
		logging.WithAppName(appName),
		logging.WithDefaultLogger(),
	)

	if err := newRootCommand(l).ExecuteContext(context.Background()); err != nil {
		l.Error("command failed", slog.Any(logging.KeyError, err))
		os.Exit(1)
	}
}
