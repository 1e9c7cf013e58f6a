// Package port finds unused TCP ports on the loopback interface.
//
// The allocation strategy is the one every test helper eventually lands on:
//
//	listen on 127.0.0.1:0, read back the port the OS picked, close the listener
//
// The returned port is only a snapshot. Nothing stops another process from
// binding it between the moment the listener is closed and the moment the
// caller uses it. Callers that cannot tolerate that window should keep the
// listener open and hand it over instead of a port number.
package port
