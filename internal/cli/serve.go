// serve.go implements the serve flow of the root command:
//
//	load config -> check directory -> allocate port -> start server
//	-> print status -> wait for exit or interrupt -> stop server
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/simonw/unused-port/internal/config"
	"github.com/simonw/unused-port/internal/model"
	"github.com/simonw/unused-port/pkg/port"
	"github.com/simonw/unused-port/pkg/staticserver"
)

// readyTimeout bounds how long the command waits for the server to accept
// connections before giving up.
const readyTimeout = 5 * time.Second

// runServe is the main logic of the root command. It blocks until the
// server exits or the command context is cancelled, and always stops the
// child before returning.
func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	// Step 1: Resolve configuration (defaults, config file, environment).
	cfg, err := config.Load(configPath)
	if err != nil {
		return model.WrapCLIError(model.ExitConfigError, "failed to load configuration", err)
	}

	dir := cfg.Directory
	if len(args) == 1 {
		dir = args[0]
	}

	// Step 2: Check the directory up front. http.server would fail on its
	// own, but only after the port was allocated and the child spawned.
	if err := checkDirectory(dir); err != nil {
		return err
	}

	// Step 3: Allocate a port.
	p, err := port.FindUnusedPort()
	if err != nil {
		return model.WrapCLIError(model.ExitPortAllocationFailed, "failed to allocate an unused port", err)
	}
	VerboseLog("Allocated port %d", p)

	// Step 4: Start the server and wait until it accepts connections.
	srv := staticserver.New(p,
		staticserver.WithInterpreter(cfg.Interpreter),
		staticserver.WithLogger(newLogger(errOut)),
	)
	if _, err := srv.Start(dir); err != nil {
		return startError(err)
	}
	// Stop is idempotent; the deferred call covers every early return.
	defer func() { _ = srv.Stop() }()
	VerboseLog("Started http.server (pid %d)", srv.PID())

	readyCtx, cancel := context.WithTimeout(ctx, readyTimeout)
	err = srv.WaitReady(readyCtx)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			// Interrupted before the server came up.
			return nil
		}
		return startError(err)
	}

	// Step 5: Tell the user where to look.
	printStatus(out, dir, srv)
	if isTerminal(errOut) {
		fmt.Fprintln(errOut, "Press Ctrl+C to stop the server")
	}

	// Step 6: Block until the child exits or the operator interrupts.
	select {
	case <-srv.Exited():
		VerboseLog("Server process exited on its own")
		if output := srv.Output(); output != "" {
			VerboseLog("Server output:\n%s", output)
		}
	case <-ctx.Done():
		fmt.Fprintln(errOut, "\nShutting down server...")
	}

	// Step 7: Stop explicitly so a failure is reported.
	if err := srv.Stop(); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to stop server", err)
	}
	VerboseLog("Server stopped")
	return nil
}

// checkDirectory verifies dir exists and is a directory.
func checkDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return model.WrapCLIError(model.ExitInvalidDirectory,
			fmt.Sprintf("cannot serve %q", dir), err)
	}
	if !info.IsDir() {
		return model.NewCLIError(model.ExitInvalidDirectory,
			fmt.Sprintf("cannot serve %q: not a directory", dir))
	}
	return nil
}

// startError maps a Start or WaitReady failure to a CLIError.
func startError(err error) error {
	if errors.Is(err, staticserver.ErrInterpreterNotFound) {
		return model.WrapCLIError(model.ExitInterpreterNotFound,
			"no Python interpreter found (set UNUSED_PORT_PYTHON)", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.WrapCLIError(model.ExitServerStartFailed,
			fmt.Sprintf("server did not accept connections within %s", readyTimeout), err)
	}
	return model.WrapCLIError(model.ExitServerStartFailed, "failed to start server", err)
}

// printStatus writes the status line (or its JSON form) to out.
func printStatus(out io.Writer, dir string, srv *staticserver.StaticServer) {
	if IsJSONOutput() {
		printStatusJSON(out, dir, srv)
	} else {
		printStatusText(out, dir, srv)
	}
}

// printStatusText writes the single human-readable status line.
func printStatusText(out io.Writer, dir string, srv *staticserver.StaticServer) {
	fmt.Fprintf(out, "Serving %s on %s\n", dir, srv.URL())
}

// printStatusJSON writes the status as one JSON object.
func printStatusJSON(out io.Writer, dir string, srv *staticserver.StaticServer) {
	type statusJSON struct {
		Directory string `json:"directory"`
		Port      int    `json:"port"`
		URL       string `json:"url"`
		PID       int    `json:"pid"`
	}

	data, _ := json.Marshal(statusJSON{
		Directory: dir,
		Port:      srv.Port(),
		URL:       srv.URL(),
		PID:       srv.PID(),
	})
	fmt.Fprintln(out, string(data))
}

// newLogger builds the lifecycle logger handed to the server: debug level
// with --verbose, warnings only otherwise.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// isTerminal reports whether w is a terminal. Hints meant for a human are
// only written when it is.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
