package transport

import (
	"net"
	"testing"
	"time"

	"github.com/astafan8/Qcodes/internal/proto"
)

func TestPushPullSocketRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to bind: %v", err)
	}
	push := NewPushSocket(ln.(*net.TCPListener))
	t.Cleanup(func() { push.Close() })

	pushPort := ln.Addr().(*net.TCPAddr).Port
	pull, err := DialPullSocket(pushPort)
	if err != nil {
		t.Fatalf("DialPullSocket returned error: %v", err)
	}
	t.Cleanup(func() { pull.Close() })

	header := proto.ChunkHeader{GUID: "run-1", ChunkID: 1}
	row := proto.Row{{Name: "x", Value: 1.5}, {Name: "y", Value: 2.5}}

	sendErr := make(chan error, 1)
	go func() {
		sendErr <- push.Send(header, row, 2*time.Second)
	}()

	msg, err := pull.Receive()
	if err != nil {
		t.Fatalf("Receive returned error: %v", err)
	}
	if err := <-sendErr; err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	if msg.Header != header {
		t.Fatalf("unexpected header: %+v", msg.Header)
	}

	gotRow, err := msg.Row()
	if err != nil {
		t.Fatalf("Row() returned error: %v", err)
	}
	if len(gotRow) != 2 || gotRow[0].Name != "x" || gotRow[1].Name != "y" {
		t.Fatalf("unexpected row: %+v", gotRow)
	}
}

func TestPushSocketResetAcceptsRespawnedSink(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to bind: %v", err)
	}
	push := NewPushSocket(ln.(*net.TCPListener))
	t.Cleanup(func() { push.Close() })
	pushPort := ln.Addr().(*net.TCPAddr).Port

	deadSink, err := DialPullSocket(pushPort)
	if err != nil {
		t.Fatalf("dead sink dial returned error: %v", err)
	}

	row := proto.Row{{Name: "x", Value: 1.0}}
	if err := push.Send(proto.ChunkHeader{GUID: "run-1", ChunkID: 1}, row, 2*time.Second); err != nil {
		t.Fatalf("first Send returned error: %v", err)
	}
	if _, err := deadSink.Receive(); err != nil {
		t.Fatalf("dead sink failed to receive the first chunk: %v", err)
	}
	deadSink.Close()

	// The sink is gone now, but push still caches the stale connection —
	// exactly the state a liveness probe failure would have detected.
	// Respawn: a new sink dials in and queues on the listener's backlog
	// before ensureSinkAlive resets the cached connection, mirroring
	// measurer.ensureSinkAlive's actual ordering (spawn, then reset).
	newSink, err := DialPullSocket(pushPort)
	if err != nil {
		t.Fatalf("new sink dial returned error: %v", err)
	}
	t.Cleanup(func() { newSink.Close() })

	push.Reset()

	recvErr := make(chan error, 1)
	go func() {
		_, err := newSink.Receive()
		recvErr <- err
	}()

	if err := push.Send(proto.ChunkHeader{GUID: "run-1", ChunkID: 2}, row, 2*time.Second); err != nil {
		t.Fatalf("Send after Reset returned error: %v", err)
	}

	select {
	case err := <-recvErr:
		if err != nil {
			t.Fatalf("new sink failed to receive the post-reset chunk: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("new sink never received the post-reset chunk")
	}
}

func TestPushSocketAcceptTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to bind: %v", err)
	}
	push := NewPushSocket(ln.(*net.TCPListener))
	t.Cleanup(func() { push.Close() })

	row := proto.Row{{Name: "x", Value: 1.0}}
	err = push.Send(proto.ChunkHeader{GUID: "run-1", ChunkID: 1}, row, 50*time.Millisecond)
	if err == nil {
		t.Fatalf("Send expected to time out with nobody dialing in")
	}
}
