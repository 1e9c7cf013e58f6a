package port

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listenLoopback starts a TCP listener on an OS-assigned loopback port and
// closes it when the test finishes.
func listenLoopback(t *testing.T) (net.Listener, int) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "failed to start test listener")
	t.Cleanup(func() { _ = listener.Close() })

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	require.True(t, ok)
	return listener, tcpAddr.Port
}

// TestIsPortAvailable_FreePort verifies a freshly allocated port is reported
// as available.
func TestIsPortAvailable_FreePort(t *testing.T) {
	p, err := FindUnusedPort()
	require.NoError(t, err)

	assert.True(t, NewScanner().IsPortAvailable(p), "port %d should be available", p)
}

// TestIsPortAvailable_UsedPort verifies a port held by a listener is
// reported as unavailable.
func TestIsPortAvailable_UsedPort(t *testing.T) {
	_, p := listenLoopback(t)

	assert.False(t, NewScanner().IsPortAvailable(p), "port %d should be in use", p)
}

// TestIsPortAvailable_InvalidPort verifies out-of-range ports are never
// reported as available.
func TestIsPortAvailable_InvalidPort(t *testing.T) {
	s := NewScanner()
	assert.False(t, s.IsPortAvailable(0))
	assert.False(t, s.IsPortAvailable(70000))
}

// TestIsPortReachable verifies the dial probe sees a listener and stops
// seeing it once the listener is closed.
func TestIsPortReachable(t *testing.T) {
	listener, p := listenLoopback(t)
	s := NewScanner()

	assert.True(t, s.IsPortReachable(p), "listener on %d should accept connections", p)

	require.NoError(t, listener.Close())
	assert.False(t, s.IsPortReachable(p), "closed listener on %d should refuse connections", p)
	assert.False(t, s.IsPortReachable(-5))
}
