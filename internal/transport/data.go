package transport

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/astafan8/Qcodes/internal/proto"
	"github.com/astafan8/Qcodes/internal/rowcodec"
)

// DataMessage is one decoded chunk off the data channel: a header plus the
// raw gob bytes of its Row, left undecoded until the consumer needs it.
type DataMessage struct {
	Header   proto.ChunkHeader
	RowBytes []byte
}

// Row decodes m's row payload.
func (m DataMessage) Row() (proto.Row, error) {
	return rowcodec.Decode(m.RowBytes)
}

// PushSocket is the producer side of the data channel: it owns the bound
// TCP listener and lazily accepts the sink's single incoming connection,
// re-accepting whenever a respawned sink reconnects.
type PushSocket struct {
	ln   *net.TCPListener
	conn *CompStream
}

// NewPushSocket wraps an already-bound listener (from portalloc.Acquire).
func NewPushSocket(ln *net.TCPListener) *PushSocket {
	return &PushSocket{ln: ln}
}

// ensureConn accepts a fresh connection if none is cached. It is called
// only once the caller's liveness probe has confirmed a sink is alive, at
// which point the sink's own INIT-time dial should already be queued on
// the listener's backlog.
func (p *PushSocket) ensureConn(acceptTimeout time.Duration) error {
	if p.conn != nil {
		return nil
	}
	if err := p.ln.SetDeadline(time.Now().Add(acceptTimeout)); err != nil {
		return errors.WithStack(err)
	}
	conn, err := p.ln.Accept()
	if err != nil {
		return errors.Wrap(err, "push socket: accept sink connection")
	}
	_ = p.ln.SetDeadline(time.Time{})
	p.conn = NewCompStream(conn)
	return nil
}

// Send writes the two-frame (header, row) message described in spec.md §4.2.
// On any write failure the cached connection is dropped so the next Send
// re-accepts a fresh one from a respawned sink.
func (p *PushSocket) Send(header proto.ChunkHeader, row proto.Row, acceptTimeout time.Duration) error {
	if err := p.ensureConn(acceptTimeout); err != nil {
		return err
	}

	headerBytes, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "push socket: marshal header")
	}
	rowBytes, err := rowcodec.Encode(row)
	if err != nil {
		return err
	}

	if err := writeFrame(p.conn, headerBytes); err != nil {
		p.conn = nil
		return err
	}
	if err := writeFrame(p.conn, rowBytes); err != nil {
		p.conn = nil
		return err
	}
	if err := p.conn.Flush(); err != nil {
		p.conn = nil
		return err
	}
	return nil
}

// Reset discards the cached connection, if any, so the next Send re-accepts
// a fresh one instead of writing into a dead sink's old connection. Callers
// must invoke this whenever they learn through another channel (the request
// channel's liveness probe) that the peer holding the cached connection is
// gone — Send only detects that on its own next write, which is one send
// too late.
func (p *PushSocket) Reset() {
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}

// Close releases the listener and any cached connection.
func (p *PushSocket) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return p.ln.Close()
}

// PullSocket is the sink side of the data channel: it dials into the
// producer's bound push port and reads two-frame messages in a loop.
type PullSocket struct {
	conn *CompStream
}

// DialPullSocket connects to the producer's push listener.
func DialPullSocket(pushPort int) (*PullSocket, error) {
	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", pushPort))
	if err != nil {
		return nil, errors.Wrap(err, "pull socket: dial push port")
	}
	return &PullSocket{conn: NewCompStream(conn)}, nil
}

// Receive blocks until one complete (header, row) message has been read.
func (p *PullSocket) Receive() (DataMessage, error) {
	headerBytes, err := readFrame(p.conn)
	if err != nil {
		return DataMessage{}, err
	}
	var header proto.ChunkHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return DataMessage{}, errors.Wrap(err, "pull socket: unmarshal header")
	}
	rowBytes, err := readFrame(p.conn)
	if err != nil {
		return DataMessage{}, err
	}
	return DataMessage{Header: header, RowBytes: rowBytes}, nil
}

// Close releases the underlying connection.
func (p *PullSocket) Close() error {
	return p.conn.Close()
}
