package transport

import (
	"bytes"
	"io"
	"sync"
)

// buffer is one direction of a Pipe. Writes never block, reads block
// until data arrives or the writer closes.
type buffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	data   bytes.Buffer
	closed bool
}

func newBuffer() *buffer {
	b := &buffer{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *buffer) read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.data.Len() == 0 && !b.closed {
		b.cond.Wait()
	}
	if b.data.Len() == 0 {
		return 0, io.EOF
	}
	return b.data.Read(p)
}

func (b *buffer) write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, io.ErrClosedPipe
	}
	n, _ := b.data.Write(p)
	b.cond.Broadcast()
	return n, nil
}

func (b *buffer) close() {
	b.mu.Lock()
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()
}

// Conn is one end of an in-memory duplex stream created by Pipe.
// Unlike net.Pipe, writes are buffered, so a single goroutine can
// write a correction batch and then read it from the other end.
type Conn struct {
	r *buffer
	w *buffer
}

// Pipe returns the two connected ends of an in-memory stream.
func Pipe() (*Conn, *Conn) {
	ab, ba := newBuffer(), newBuffer()
	return &Conn{r: ba, w: ab}, &Conn{r: ab, w: ba}
}

// Read reads buffered bytes sent by the peer, blocking until some are
// available. It returns io.EOF once the peer closed and the buffer is
// drained.
func (c *Conn) Read(p []byte) (int, error) {
	return c.r.read(p)
}

// Write buffers p for the peer.
func (c *Conn) Write(p []byte) (int, error) {
	return c.w.write(p)
}

// Close ends both directions. Pending bytes can still be read by the
// peer.
func (c *Conn) Close() error {
	c.w.close()
	c.r.close()
	return nil
}
