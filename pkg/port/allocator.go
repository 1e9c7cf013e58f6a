package port

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

const (
	// LoopbackHost is the only address this package binds to. Ports found
	// here are meant for servers that must not be reachable from other hosts.
	LoopbackHost = "127.0.0.1"

	// minPort and maxPort bound the valid TCP port numbers. Port 0 is
	// excluded because it means "let the OS choose", not a real port.
	minPort = 1
	maxPort = 65535
)

// ErrBindFailed is returned (wrapped) when the OS refuses the ephemeral bind,
// for example because the ephemeral range is exhausted.
var ErrBindFailed = errors.New("failed to bind loopback socket")

// Allocator hands out ports that are free on the loopback interface at the
// moment of the call.
//
// The struct is stateless apart from the host it binds to. It exists so the
// allocator can be passed around as a dependency (tests, fixtures) and so
// the bind address stays in one place.
type Allocator struct {
	// host is the address the probe listener binds to.
	host string
}

// NewAllocator creates an Allocator bound to LoopbackHost.
func NewAllocator() *Allocator {
	return &Allocator{host: LoopbackHost}
}

// defaultAllocator backs the package-level FindUnusedPort helper.
var defaultAllocator = NewAllocator()

// FindUnusedPort returns a TCP port that is free on 127.0.0.1.
// It is a shortcut for NewAllocator().Allocate().
func FindUnusedPort() (int, error) {
	return defaultAllocator.Allocate()
}

// Allocate binds a TCP listener to port 0 on the loopback address, reads
// back the port the OS assigned, and closes the listener before returning.
//
// The port is guaranteed to have been free at the instant the listener was
// closed, and nothing more. A failed bind is returned immediately wrapped in
// ErrBindFailed; there is no retry.
func (a *Allocator) Allocate() (int, error) {
	addr := net.JoinHostPort(a.host, "0")

	// Port 0 asks the kernel for any currently unused ephemeral port.
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("%w on %s: %w", ErrBindFailed, addr, err)
	}
	// Close explicitly rather than via defer: the port must be released
	// before it is handed to the caller, and a close error is worth reporting.
	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if closeErr := listener.Close(); closeErr != nil {
		return 0, fmt.Errorf("failed to release probe listener on %s: %w", addr, closeErr)
	}
	if !ok {
		return 0, fmt.Errorf("unexpected listener address type %T", listener.Addr())
	}

	return tcpAddr.Port, nil
}

// Validate checks that port is a usable TCP port number (1-65535).
func Validate(port int) error {
	if port < minPort || port > maxPort {
		return fmt.Errorf("port %d out of range (%d-%d)", port, minPort, maxPort)
	}
	return nil
}

// Address formats the loopback host:port pair for port.
func Address(port int) string {
	return net.JoinHostPort(LoopbackHost, strconv.Itoa(port))
}
