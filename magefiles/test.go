//go:build mage

package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// coverageProfile is where Coverage.Run writes its profile.
const coverageProfile = "coverage.out"

type Test mg.Namespace

// Unit runs unit tests for the repository.
func (Test) Unit() error {
	mg.Deps(Init)
	logger().Info("running unit tests")

	args := []string{
		"test",
		"-race",
		"-count=1",
	}

	if isVerbose() {
		args = append(args, "-v")
	}

	args = append(args, "./...")

	return sh.RunV("go", args...)
}

type Coverage mg.Namespace

// Run runs unit tests for the repository with code coverage enabled.
func (Coverage) Run() error {
	mg.Deps(Init)
	logger().Info("running unit tests with coverage", slog.String("profile", coverageProfile))

	err := sh.RunV("go", "test",
		"-covermode=atomic",
		"-coverprofile="+filepath.Join(repoRoot(), coverageProfile),
		"./...",
	)
	if err != nil {
		return fmt.Errorf("error running unit tests: %w", err)
	}

	return nil
}

// View opens the coverage report in a browser.
func (Coverage) View() error {
	mg.Deps(Coverage.Run)

	return sh.Run("go", "tool", "cover", "-html="+filepath.Join(repoRoot(), coverageProfile))
}

// Lint runs golangci-lint over the module.
func Lint() error {
	mg.Deps(Init)
	logger().Info("running linters")

	return sh.RunV("golangci-lint", "run", "./...")
}
