package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"encoding/json"

	"github.com/pkg/errors"
	"github.com/xtaci/smux"

	"github.com/astafan8/Qcodes/internal/proto"
)

// ErrRequestTimeout is returned when a probe does not complete within its
// deadline — the caller's cue to treat the sink as dead.
var ErrRequestTimeout = errors.New("transport: request channel timed out")

func smuxConfig() *smux.Config {
	cfg := smux.DefaultConfig()
	cfg.KeepAliveDisabled = true
	return cfg
}

// RequestChannel is the producer side of the request/reply channel: a
// single smux session multiplexed over one TCP connection to the sink's
// bound request port. Each liveness probe opens its own stream and closes
// it when done. Any failed probe, including one whose reply never arrives,
// tears down the whole session and connection with rebuildLocked — the
// smux equivalent of spec.md §4.5's "discard and rebuild the REQ socket"
// rule — and the next Probe dials a fresh one.
type RequestChannel struct {
	addr string

	mu      sync.Mutex
	conn    net.Conn
	session *smux.Session
}

// NewRequestChannel targets the sink's request port; the session is
// established lazily on the first Probe.
func NewRequestChannel(reqPort int) *RequestChannel {
	return &RequestChannel{addr: fmt.Sprintf("127.0.0.1:%d", reqPort)}
}

func (r *RequestChannel) ensureSessionLocked(dialTimeout time.Duration) error {
	if r.session != nil && !r.session.IsClosed() {
		return nil
	}
	conn, err := net.DialTimeout("tcp", r.addr, dialTimeout)
	if err != nil {
		return errors.Wrap(err, "request channel: dial")
	}
	session, err := smux.Client(conn, smuxConfig())
	if err != nil {
		conn.Close()
		return errors.Wrap(err, "request channel: open session")
	}
	r.conn = conn
	r.session = session
	return nil
}

// rebuildLocked discards the current session and connection outright; the
// next Probe call dials a fresh one. Caller must hold r.mu.
func (r *RequestChannel) rebuildLocked() {
	if r.session != nil {
		r.session.Close()
	}
	if r.conn != nil {
		r.conn.Close()
	}
	r.session = nil
	r.conn = nil
}

// Probe sends one liveness request and waits up to timeout for the
// one-byte reply. A failure of any kind rebuilds the session so the next
// call starts clean.
func (r *RequestChannel) Probe(timeout time.Duration, req proto.LivenessRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureSessionLocked(timeout); err != nil {
		r.rebuildLocked()
		return err
	}

	stream, err := r.session.OpenStream()
	if err != nil {
		r.rebuildLocked()
		return errors.Wrap(err, "request channel: open stream")
	}
	defer stream.Close()

	deadline := time.Now().Add(timeout)
	stream.SetDeadline(deadline)

	payload, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "request channel: marshal request")
	}
	if err := writeFrame(stream, payload); err != nil {
		r.rebuildLocked()
		return errors.Wrap(err, "request channel: send")
	}
	if _, err := readFrame(stream); err != nil {
		r.rebuildLocked()
		if !time.Now().Before(deadline) {
			return errors.Wrap(ErrRequestTimeout, err.Error())
		}
		return errors.Wrap(err, "request channel: recv reply")
	}
	return nil
}

// Close tears down the session, if any.
func (r *RequestChannel) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rebuildLocked()
}

// ReqEvent is one liveness request received by a ReplyServer. Reply must
// be called exactly once to send the one-byte acknowledgment and close the
// stream.
type ReqEvent struct {
	Request proto.LivenessRequest
	Reply   func()
}

// ReplyServer is the sink side of the request/reply channel: it binds the
// request port and fans every incoming liveness probe, across every
// client session, into a single channel so WriterLoop can serialize
// idle-timeout bookkeeping on one goroutine.
type ReplyServer struct {
	ln net.Listener
}

// NewReplyServer binds reqPort.
func NewReplyServer(reqPort int) (*ReplyServer, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", reqPort))
	if err != nil {
		return nil, errors.Wrap(err, "reply server: bind")
	}
	return &ReplyServer{ln: ln}, nil
}

// Serve accepts connections and streams until the listener is closed,
// delivering every decoded request onto events. It returns once the
// listener is closed (the normal shutdown path during DEAD).
func (s *ReplyServer) Serve(events chan<- ReqEvent) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	var sessions []*smux.Session
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			for _, session := range sessions {
				session.Close()
			}
			return nil
		}
		session, err := smux.Server(conn, smuxConfig())
		if err != nil {
			conn.Close()
			continue
		}
		sessions = append(sessions, session)
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveSession(session, events)
		}()
	}
}

func serveSession(session *smux.Session, events chan<- ReqEvent) {
	defer session.Close()
	for {
		stream, err := session.AcceptStream()
		if err != nil {
			return
		}
		go serveStream(stream, events)
	}
}

func serveStream(stream *smux.Stream, events chan<- ReqEvent) {
	payload, err := readFrame(stream)
	if err != nil {
		stream.Close()
		return
	}
	var req proto.LivenessRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		stream.Close()
		return
	}
	events <- ReqEvent{
		Request: req,
		Reply: func() {
			writeFrame(stream, []byte{0})
			stream.Close()
		},
	}
}

// Close stops accepting new connections/streams.
func (s *ReplyServer) Close() error {
	return s.ln.Close()
}
