package staticserver

import (
	"bytes"
	"sync"
)

// outputBuffer collects child stdout and stderr. os/exec copies each pipe on
// its own goroutine, so writes and reads must be serialised.
type outputBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *outputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *outputBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
