package transport

import (
	"net"
	"testing"
	"time"

	"github.com/astafan8/Qcodes/internal/proto"
)

func TestRequestChannelProbeSucceeds(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to bind: %v", err)
	}
	reply := &ReplyServer{ln: ln}
	events := make(chan ReqEvent)
	go reply.Serve(events)
	t.Cleanup(func() { reply.Close() })

	go func() {
		for ev := range events {
			ev.Reply()
		}
	}()

	reqPort := ln.Addr().(*net.TCPAddr).Port
	reqChannel := NewRequestChannel(reqPort)
	t.Cleanup(reqChannel.Close)

	if err := reqChannel.Probe(time.Second, proto.LivenessRequest{TimeoutSeconds: 15}); err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
}

func TestRequestChannelProbeTimesOutWithNoServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to bind: %v", err)
	}
	reqPort := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	reqChannel := NewRequestChannel(reqPort)
	t.Cleanup(reqChannel.Close)

	if err := reqChannel.Probe(200*time.Millisecond, proto.LivenessRequest{TimeoutSeconds: 15}); err == nil {
		t.Fatalf("Probe expected an error with nothing listening on the request port")
	}
}

func TestRequestChannelRebuildsAfterFailedProbe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to bind: %v", err)
	}
	reqPort := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	reqChannel := NewRequestChannel(reqPort)
	t.Cleanup(reqChannel.Close)

	if err := reqChannel.Probe(200*time.Millisecond, proto.LivenessRequest{TimeoutSeconds: 15}); err == nil {
		t.Fatalf("Probe expected an error")
	}

	reqChannel.mu.Lock()
	session, conn := reqChannel.session, reqChannel.conn
	reqChannel.mu.Unlock()
	if session != nil || conn != nil {
		t.Fatalf("failed probe must leave session and conn nil, got session=%v conn=%v", session, conn)
	}
}
