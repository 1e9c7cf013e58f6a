// Package staticserver manages a short-lived static file HTTP server for
// tests and local tooling.
//
// The HTTP side is not implemented here. A StaticServer spawns Python's
// standard http.server module as a child process:
//
//	<python> -m http.server <port> --directory <dir> --bind 127.0.0.1
//
// and owns that process until Stop is called. Range requests, MIME types
// and directory listings are whatever http.server does.
//
// A handle is either Stopped or Running:
//
//	Stopped --Start--> Running --Stop--> Stopped
//
// Start on a running handle fails with ErrAlreadyRunning. Stop is
// idempotent. Run wraps both so the child is stopped on every exit path.
//
// A handle is not safe for concurrent use. Callers that share one across
// goroutines must serialise Start and Stop themselves.
package staticserver
