package port

import (
	"net"
	"strconv"
	"time"
)

// dialTimeout bounds a single reachability probe. Loopback connects either
// succeed or get refused almost instantly.
const dialTimeout = 500 * time.Millisecond

// Scanner checks whether specific ports are free on the loopback interface.
//
// It asks the OS directly by trying to listen on the port, which is more
// reliable than parsing /proc/net/* or shelling out to lsof or ss.
type Scanner struct {
	host string
}

// NewScanner creates a Scanner that probes LoopbackHost.
func NewScanner() *Scanner {
	return &Scanner{host: LoopbackHost}
}

// IsPortAvailable reports whether a TCP listener can be bound to port right
// now. The probe listener is closed before returning. Ports outside
// 1-65535 are reported as unavailable.
func (s *Scanner) IsPortAvailable(port int) bool {
	if Validate(port) != nil {
		return false
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(s.host, strconv.Itoa(port)))
	if err != nil {
		// Typically "address already in use".
		return false
	}
	_ = listener.Close()
	return true
}

// IsPortReachable reports whether something accepts TCP connections on the
// loopback port. It is the client-side counterpart of IsPortAvailable and
// is what "the server is up" means for a static file server.
func (s *Scanner) IsPortReachable(port int) bool {
	if Validate(port) != nil {
		return false
	}

	conn, err := net.DialTimeout("tcp", net.JoinHostPort(s.host, strconv.Itoa(port)), dialTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
