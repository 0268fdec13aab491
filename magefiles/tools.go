//go:build mage

package main

import (
	"fmt"
	"os/exec"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// tools maps every binary a target shells out to onto the package that
// installs it.
var tools = map[string]string{
	"golangci-lint": "github.com/golangci/golangci-lint/cmd/golangci-lint@v1.61.0",
}

type Tools mg.Namespace

// Init makes sure the tools are on the PATH. CI runners install missing
// tools, local machines only get a warning.
func Init() error {
	for bin, pkg := range tools {
		if _, err := exec.LookPath(bin); err == nil {
			continue
		}

		if !isCI() {
			logger().Warn("tool not found on PATH, targets using it will fail",
				"tool", bin,
				"install", "mage install "+pkg,
			)
			continue
		}

		if err := (Tools{}).Install(pkg); err != nil {
			return err
		}
	}
	return nil
}

// Install installs a tool with go install.
func (Tools) Install(pkg string) error {
	logger().Debug("installing tool", "package", pkg)

	if err := sh.Run("go", "install", pkg); err != nil {
		return fmt.Errorf("error installing %s: %w", pkg, err)
	}
	return nil
}

// Tidy tidies go.mod and verifies the downloaded modules.
func (Tools) Tidy() error {
	if err := sh.Run("go", "mod", "tidy"); err != nil {
		return fmt.Errorf("error tidying module: %w", err)
	}
	return sh.Run("go", "mod", "verify")
}
