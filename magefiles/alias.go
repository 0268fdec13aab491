//go:build mage

package main

var Aliases = map[string]interface{}{
	"tidy":    Tools.Tidy,
	"build":   Build.All,
	"test":    Test.Unit,
	"lint":    Lint,
	"install": Tools.Install,
}
