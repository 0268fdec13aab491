//go:build mage

package main

import (
	"path/filepath"
	"sync"

	"github.com/magefile/mage/sh"
)

// repoRoot returns the absolute path to the module root.
var repoRoot = sync.OnceValue(func() string {
	dir, err := sh.Output("go", "list", "-m", "-f", "{{.Dir}}")
	if err != nil {
		panic(err)
	}

	return dir
})

// binDirectory returns the absolute path binaries are written to.
var binDirectory = sync.OnceValue(func() string {
	return filepath.Join(repoRoot(), "bin")
})
