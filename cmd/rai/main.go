// Command rai serves and queries responsible-AI metrics for a model.
package main

import (
	"runtime/debug"

	"github.com/haskel/raimetrics/internal/cli"
)

// version is set with -ldflags "-X main.version=...".
var version = ""

func main() {
	cli.SetVersion(resolveVersion())
	cli.Execute()
}

// resolveVersion falls back to the module version for go install builds.
func resolveVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
