package transport

import (
	"net"
	"time"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// CompStream wraps a net.Conn so that everything written to it is
// transparently snappy-compressed and everything read from it is
// transparently decompressed. Adapted from the teacher's std/comp.go,
// which wraps a KCP session the same way and flushes on every Write,
// since each KCP write is already one logical datagram. The data channel
// instead sends each chunk as two consecutive writeFrame calls (header,
// then row) that must land as a single snappy block: flushing per-Write
// would split a single two-frame chunk across two independently
// compressed blocks for no benefit, doubling the per-chunk snappy
// framing overhead. Write here only buffers; Flush is the caller's
// explicit signal that a logical message is complete, which PushSocket.Send
// calls once per chunk.
type CompStream struct {
	conn net.Conn
	w    *snappy.Writer
	r    *snappy.Reader
}

// NewCompStream builds a CompStream over conn.
func NewCompStream(conn net.Conn) *CompStream {
	return &CompStream{
		conn: conn,
		w:    snappy.NewBufferedWriter(conn),
		r:    snappy.NewReader(conn),
	}
}

func (c *CompStream) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

// Write buffers p; it is not visible to the peer until Flush is called.
func (c *CompStream) Write(p []byte) (int, error) {
	if _, err := c.w.Write(p); err != nil {
		return 0, errors.WithStack(err)
	}
	return len(p), nil
}

// Flush sends every buffered write as one snappy block.
func (c *CompStream) Flush() error {
	return errors.WithStack(c.w.Flush())
}

func (c *CompStream) Close() error {
	return c.conn.Close()
}

func (c *CompStream) LocalAddr() net.Addr  { return c.conn.LocalAddr() }
func (c *CompStream) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *CompStream) SetDeadline(t time.Time) error      { return c.conn.SetDeadline(t) }
func (c *CompStream) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *CompStream) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }
