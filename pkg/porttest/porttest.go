// Package porttest provides test fixtures built on the port and
// staticserver packages. Every fixture takes a testing.TB, fails the test on
// setup errors and registers its teardown with t.Cleanup, so servers are
// stopped after the test whatever its outcome.
package porttest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/simonw/unused-port/pkg/port"
	"github.com/simonw/unused-port/pkg/staticserver"
)

// readyTimeout bounds how long ServeDir waits for the server to accept
// connections. Interpreter start-up dominates this on slow CI machines.
const readyTimeout = 10 * time.Second

// UnusedPort returns a TCP port that was free on 127.0.0.1 when the
// function returned.
func UnusedPort(t testing.TB) int {
	t.Helper()

	p, err := port.FindUnusedPort()
	require.NoError(t, err, "failed to allocate an unused port")
	return p
}

// StaticServer returns a stopped server handle on an unused port. The test
// starts it with Start or Run; Stop is called automatically after the test.
func StaticServer(t testing.TB, opts ...staticserver.Option) *staticserver.StaticServer {
	t.Helper()

	s := staticserver.New(UnusedPort(t), opts...)
	t.Cleanup(func() {
		if err := s.Stop(); err != nil {
			t.Errorf("failed to stop static server on port %d: %v", s.Port(), err)
		}
	})
	return s
}

// ServeDir starts a static server rooted at dir and waits until it accepts
// connections. The test is skipped when no Python interpreter is available.
func ServeDir(t testing.TB, dir string, opts ...staticserver.Option) *staticserver.StaticServer {
	t.Helper()

	s := StaticServer(t, opts...)
	if _, err := s.Start(dir); err != nil {
		if errors.Is(err, staticserver.ErrInterpreterNotFound) {
			t.Skipf("static server unavailable: %v", err)
		}
		require.NoError(t, err, "failed to start static server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
	defer cancel()
	require.NoError(t, s.WaitReady(ctx), "static server never became ready")
	return s
}
