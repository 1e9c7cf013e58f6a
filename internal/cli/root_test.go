package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonw/unused-port/internal/config"
	"github.com/simonw/unused-port/internal/model"
	"github.com/simonw/unused-port/pkg/port"
	"github.com/simonw/unused-port/pkg/staticserver"
)

// syncBuffer is a bytes.Buffer safe for one writer goroutine (the command)
// and one reader goroutine (the test).
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// statusRe matches the status line printed once the server is up.
var statusRe = regexp.MustCompile(`(?m)^Serving (.+) on http://127\.0\.0\.1:(\d+)$`)

// isolateEnv keeps the developer's environment out of CLI tests.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvConfigPath, "")
	t.Setenv(staticserver.InterpreterEnv, "")
}

// newTestCommand builds a root command with captured output streams.
func newTestCommand(args ...string) (*cobra.Command, *syncBuffer, *syncBuffer) {
	cmd := NewRootCommand()
	out, errOut := &syncBuffer{}, &syncBuffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	return cmd, out, errOut
}

// requireCLIError asserts err is a CLIError with the given code.
func requireCLIError(t *testing.T, err error, code model.ExitCode) *model.CLIError {
	t.Helper()

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr), "want *model.CLIError, got %T: %v", err, err)
	assert.Equal(t, code, cliErr.Code, "unexpected exit code for %v", err)
	return cliErr
}

// fakeInterpreter writes a shell script standing in for python.
func fakeInterpreter(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake interpreters are shell scripts")
	}

	path := filepath.Join(t.TempDir(), "fake-python")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestNewRootCommand_Flags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"json", "verbose", "config"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "flag --%s should exist", name)
	}
	assert.Equal(t, "v", cmd.PersistentFlags().Lookup("verbose").Shorthand)
	assert.Contains(t, cmd.Version, "commit:")
	assert.True(t, cmd.SilenceErrors)
	assert.True(t, cmd.SilenceUsage)
}

func TestRoot_TooManyArgs(t *testing.T) {
	isolateEnv(t)
	cmd, _, _ := newTestCommand("a", "b")

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts at most 1 arg")
}

func TestRoot_MissingDirectory(t *testing.T) {
	isolateEnv(t)
	cmd, out, _ := newTestCommand(filepath.Join(t.TempDir(), "missing"))

	err := cmd.Execute()
	requireCLIError(t, err, model.ExitInvalidDirectory)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, out.String(), "no status line on failure")
}

func TestRoot_FileIsNotDirectory(t *testing.T) {
	isolateEnv(t)
	file := filepath.Join(t.TempDir(), "index.html")
	require.NoError(t, os.WriteFile(file, []byte("<h1>hi</h1>"), 0o644))
	cmd, _, _ := newTestCommand(file)

	cliErr := requireCLIError(t, cmd.Execute(), model.ExitInvalidDirectory)
	assert.Contains(t, cliErr.Message, "not a directory")
}

func TestRoot_BadConfig(t *testing.T) {
	isolateEnv(t)
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("x = 1"), 0o644))
	cmd, _, _ := newTestCommand("--config", cfgPath, t.TempDir())

	requireCLIError(t, cmd.Execute(), model.ExitConfigError)
}

func TestRoot_InterpreterNotFound(t *testing.T) {
	isolateEnv(t)
	t.Setenv(staticserver.InterpreterEnv, "no-such-python-interpreter-here")
	cmd, _, _ := newTestCommand(t.TempDir())

	err := cmd.Execute()
	requireCLIError(t, err, model.ExitInterpreterNotFound)
	assert.ErrorIs(t, err, staticserver.ErrInterpreterNotFound)
}

// TestRoot_StartupFailure verifies a dying child is reported with its
// output and the startup exit code.
func TestRoot_StartupFailure(t *testing.T) {
	isolateEnv(t)
	t.Setenv(staticserver.InterpreterEnv, fakeInterpreter(t, "echo 'No module named http.server' >&2\nexit 1"))
	cmd, out, _ := newTestCommand(t.TempDir())

	err := cmd.Execute()
	requireCLIError(t, err, model.ExitServerStartFailed)
	assert.Contains(t, err.Error(), "No module named http.server")
	assert.Empty(t, out.String())
}

// TestRoot_InterruptBeforeReady verifies cancelling while the server is
// still coming up stops it and returns cleanly.
func TestRoot_InterruptBeforeReady(t *testing.T) {
	isolateEnv(t)
	t.Setenv(staticserver.InterpreterEnv, fakeInterpreter(t, "exec sleep 30"))
	cmd, out, _ := newTestCommand(t.TempDir())

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	began := time.Now()
	require.NoError(t, cmd.ExecuteContext(ctx))
	assert.Less(t, time.Since(began), readyTimeout, "should not wait for the full ready timeout")
	assert.Empty(t, out.String(), "no status line before the server is ready")
}

func TestStartError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code model.ExitCode
	}{
		{"interpreter", fmt.Errorf("wrap: %w", staticserver.ErrInterpreterNotFound), model.ExitInterpreterNotFound},
		{"deadline", fmt.Errorf("waiting: %w", context.DeadlineExceeded), model.ExitServerStartFailed},
		{"startup", &staticserver.StartupError{Output: "boom"}, model.ExitServerStartFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := startError(tt.err)
			requireCLIError(t, err, tt.code)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestReportError(t *testing.T) {
	assert.Equal(t, model.ExitConfigError, reportError(model.NewCLIError(model.ExitConfigError, "bad config")))
	assert.Equal(t, model.ExitGeneralError, reportError(errors.New("unknown flag: --nope")))
}

func TestPrintStatus(t *testing.T) {
	srv := staticserver.New(8123)

	t.Run("text", func(t *testing.T) {
		jsonOutput = false
		var buf bytes.Buffer
		printStatus(&buf, "./site", srv)
		assert.Equal(t, "Serving ./site on http://127.0.0.1:8123\n", buf.String())
	})

	t.Run("json", func(t *testing.T) {
		jsonOutput = true
		t.Cleanup(func() { jsonOutput = false })
		var buf bytes.Buffer
		printStatus(&buf, "./site", srv)

		var got map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "./site", got["directory"])
		assert.Equal(t, float64(8123), got["port"])
		assert.Equal(t, "http://127.0.0.1:8123", got["url"])
	})
}

func TestIsTerminal_Buffer(t *testing.T) {
	assert.False(t, isTerminal(&bytes.Buffer{}))
}

// TestRoot_ServesDirectory is the end-to-end check: run the command, read
// the status line, fetch a file, interrupt, and expect a clean shutdown.
func TestRoot_ServesDirectory(t *testing.T) {
	isolateEnv(t)
	if _, err := staticserver.FindInterpreter(); err != nil {
		t.Skipf("python not available: %v", err)
	}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.txt"), []byte("Hello from test server!"), 0o644))

	cmd, out, errOut := newTestCommand(dir)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	var match []string
	require.Eventually(t, func() bool {
		match = statusRe.FindStringSubmatch(out.String())
		return match != nil
	}, 10*time.Second, 50*time.Millisecond, "status line never printed; stderr: %s", errOut.String())

	assert.Equal(t, dir, match[1])
	p, err := strconv.Atoi(match[2])
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out.String(), "\n"), "stdout should carry exactly one line")

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/test.txt", p))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Hello from test server!", string(body))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(7 * time.Second):
		t.Fatal("command did not shut down after interrupt")
	}

	assert.Contains(t, errOut.String(), "Shutting down server...")
	assert.Eventually(t, func() bool {
		return !port.NewScanner().IsPortReachable(p)
	}, 2*time.Second, 50*time.Millisecond, "port should be closed after shutdown")
}

// TestRoot_JSONStatus checks the --json status object against the real
// server.
func TestRoot_JSONStatus(t *testing.T) {
	isolateEnv(t)
	if _, err := staticserver.FindInterpreter(); err != nil {
		t.Skipf("python not available: %v", err)
	}
	t.Cleanup(func() { jsonOutput = false })

	dir := t.TempDir()
	cmd, out, _ := newTestCommand("--json", dir)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	var status struct {
		Directory string `json:"directory"`
		Port      int    `json:"port"`
		URL       string `json:"url"`
		PID       int    `json:"pid"`
	}
	require.Eventually(t, func() bool {
		line := strings.TrimSpace(out.String())
		return line != "" && json.Unmarshal([]byte(line), &status) == nil
	}, 10*time.Second, 50*time.Millisecond)

	assert.Equal(t, dir, status.Directory)
	assert.Equal(t, fmt.Sprintf("http://127.0.0.1:%d", status.Port), status.URL)
	assert.NotZero(t, status.PID)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(7 * time.Second):
		t.Fatal("command did not shut down after interrupt")
	}
}
