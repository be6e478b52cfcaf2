package writer

import (
	"log"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/astafan8/Qcodes/internal/liveness"
	"github.com/astafan8/Qcodes/internal/proto"
	"github.com/astafan8/Qcodes/internal/sinkqueue"
	"github.com/astafan8/Qcodes/internal/transport"
)

// ErrWrapUpTimeout is returned (and is fatal) when the WriterThread fails
// to drain within WriterThreadWrapUpTimeout after DRAINING begins.
var ErrWrapUpTimeout = errors.New("writer loop: writer thread did not wrap up in time")

// Loop is the sink process's main event loop (spec.md §4.6): it fans the
// data channel and request channel into a single select, the idiomatic Go
// stand-in for zeromq's Poller, and owns the INIT → READY → DRAINING →
// DEAD state machine.
type Loop struct {
	pull    *transport.PullSocket
	reply   *transport.ReplyServer
	queue   *sinkqueue.Queue
	thread  *Thread
	tracker *liveness.Tracker

	dataEvents chan transport.DataMessage
	dataErrs   chan error
	reqEvents  chan transport.ReqEvent
}

// NewLoop wires a Loop around an already-connected pull socket, an
// already-bound reply server, and a Thread that shares the same queue.
func NewLoop(pull *transport.PullSocket, reply *transport.ReplyServer, queue *sinkqueue.Queue, thread *Thread) *Loop {
	return &Loop{
		pull:       pull,
		reply:      reply,
		queue:      queue,
		thread:     thread,
		tracker:    liveness.NewTracker(proto.DefaultSuicideTimeout),
		dataEvents: make(chan transport.DataMessage),
		dataErrs:   make(chan error, 1),
		reqEvents:  make(chan transport.ReqEvent),
	}
}

// Run executes the full INIT → READY → DRAINING → DEAD state machine and
// returns once the sink should exit. A non-nil error means the process
// must exit with a non-zero code (spec.md §6).
func (l *Loop) Run() error {
	go l.readData()
	go func() {
		if err := l.reply.Serve(l.reqEvents); err != nil {
			log.Printf("writer loop: reply server stopped: %v", err)
		}
	}()
	go l.thread.Run()

	l.tracker.Touch()

	l.ready()

	return l.drain()
}

// ready is the READY state: poll-equivalent select loop until the idle
// timeout fires.
func (l *Loop) ready() {
	ticker := time.NewTicker(proto.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-l.reqEvents:
			l.tracker.SetIdleTimeout(time.Duration(ev.Request.TimeoutSeconds*float64(time.Second)) + time.Second)
			l.tracker.Touch()
			ev.Reply()

		case msg := <-l.dataEvents:
			l.tracker.Touch()
			l.queue.Push(msg)

		case err := <-l.dataErrs:
			log.Printf("writer loop: data channel error: %v", err)
			return

		case <-ticker.C:
			if l.tracker.IsExpired() {
				return
			}
		}
	}
}

// drain is the DRAINING state: enqueue the sentinel and wait (bounded) for
// the Thread to finish.
func (l *Loop) drain() error {
	l.queue.PushSentinel()

	select {
	case <-l.thread.Done():
		return nil
	case <-time.After(proto.WriterThreadWrapUpTimeout):
		return errors.WithStack(ErrWrapUpTimeout)
	}
}

// Touch resets the idle clock. It is exposed so cmd/writer can wire the
// WriterThread's touch callback to the same tracker the READY loop uses,
// without the thread needing its own reference to the tracker.
func (l *Loop) Touch() {
	l.tracker.Touch()
}

// Close releases the loop's sockets. Call after Run returns.
func (l *Loop) Close() {
	l.reply.Close()
	l.pull.Close()
}

func (l *Loop) readData() {
	for {
		msg, err := l.pull.Receive()
		if err != nil {
			select {
			case l.dataErrs <- err:
			default:
			}
			return
		}
		l.dataEvents <- msg
	}
}

// ExitOnFatal is a small helper for cmd/writer: it logs err (if any) and
// calls os.Exit with the appropriate code, matching spec.md §6's exit code
// contract (0 on clean self-termination, non-zero on any fatal error).
func ExitOnFatal(err error) {
	if err == nil {
		os.Exit(0)
	}
	log.Printf("writer: fatal: %v", err)
	os.Exit(1)
}
