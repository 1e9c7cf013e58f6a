// Package main is the entry point for the unused-port CLI.
//
// It serves a directory with Python's http.server on an unused loopback
// port. All functionality lives in internal/cli.
//
// Build-time variables (version, commit, date) are injected via ldflags,
// e.g. -ldflags "-X main.version=1.0.0".
package main

import (
	"github.com/simonw/unused-port/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	rootCmd := cli.NewRootCommand()
	cli.Execute(rootCmd)
}
