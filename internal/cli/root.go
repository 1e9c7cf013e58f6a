// Package cli implements the cobra command for unused-port.
//
// The binary has a single command: serve a directory with a static file
// server on an unused loopback port until interrupted. This file defines
// the command, its global flags and the error-to-exit-code translation;
// serve.go holds the serve logic itself.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/simonw/unused-port/internal/model"
)

// Global flag variables, bound to cobra persistent flags on the root
// command. NewRootCommand resets them to their defaults.
var (
	// jsonOutput switches the status line and error output to JSON.
	jsonOutput bool

	// verbose enables [verbose] messages and debug logging on stderr.
	verbose bool

	// configPath is the optional config file (YAML or JSONC).
	configPath string
)

// Version, Commit and Date are injected from the main package, which gets
// them from ldflags at build time.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "unused-port [directory]",
		Short: "Serve a directory on an unused port using Python's http.server",
		Long: `unused-port picks a free TCP port on 127.0.0.1, starts Python's http.server
on it rooted at the given directory (default: current directory) and prints

  Serving <directory> on http://127.0.0.1:<port>

The server runs until it exits or the command is interrupted (Ctrl+C).

Environment:
  UNUSED_PORT_PYTHON   Python interpreter to use (default: python3, then python)
  UNUSED_PORT_CONFIG   config file (.yaml, .yml, .json or .jsonc)

Examples:
  unused-port
  unused-port ./site
  unused-port --json ./site`,

		// At most one positional argument: the directory to serve.
		Args: cobra.MaximumNArgs(1),

		// Errors are printed by Execute in text or JSON form.
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, args)
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (.yaml, .yml, .json, .jsonc)")

	return rootCmd
}

// Execute runs the root command until it finishes or SIGINT/SIGTERM arrives,
// then exits the process with the code carried by the error, if any.
func Execute(rootCmd *cobra.Command) {
	// The signal context is the command's cancellation: the serve loop
	// stops the child when it is done.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		os.Exit(int(reportError(err)))
	}
}

// reportError prints err and returns the exit code it maps to.
func reportError(err error) model.ExitCode {
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		printError(cliErr.Code, cliErr.Message, cliErr.Err)
		return cliErr.Code
	}

	// Cobra argument and flag errors end up here.
	printError(model.ExitGeneralError, err.Error(), nil)
	return model.ExitGeneralError
}

// printError outputs an error message on stderr, as text or as JSON
// depending on the --json flag.
func printError(code model.ExitCode, message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"message": message,
			"code":    code.String(),
		}
		if underlying != nil {
			errObj["detail"] = underlying.Error()
		}
		data, _ := json.MarshalIndent(map[string]interface{}{"error": errObj}, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
		return
	}

	if underlying != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	}
}

// VerboseLog prints a message to stderr only when verbose mode is enabled.
func VerboseLog(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}

// IsJSONOutput returns whether the --json flag is set.
func IsJSONOutput() bool {
	return jsonOutput
}
