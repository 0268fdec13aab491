//go:build mage

package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

type Build mg.Namespace

// All compiles every package in the module.
func (b Build) All() error {
	mg.Deps(Init)
	logger().Info("building all packages")

	start := time.Now()

	if err := sh.RunV("go", "build", "./..."); err != nil {
		return fmt.Errorf("error building all code: %w", err)
	}

	logger().Info("build completed", slog.Duration("took", time.Since(start)))
	return nil
}

// One builds the binary of a single command into bin/.
func (b Build) One(service string) error {
	mg.Deps(Init)
	l := logger().With(slog.String("service", service))
	l.Info("building binary")

	start := time.Now()

	args := []string{
		"build",
		"-trimpath",
		"-o", filepath.Join(binDirectory(), service),
		"./cmd/" + service,
	}

	env := map[string]string{
		"CGO_ENABLED": "0",
	}

	if err := sh.RunWithV(env, "go", args...); err != nil {
		return fmt.Errorf("error building %s: %w", service, err)
	}

	l.Info("build completed", slog.Duration("took", time.Since(start)))
	return nil
}
