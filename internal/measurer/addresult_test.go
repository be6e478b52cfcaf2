package measurer

import (
	"testing"
	"time"

	"github.com/astafan8/Qcodes/internal/format"
	"github.com/astafan8/Qcodes/internal/proto"
	"github.com/astafan8/Qcodes/internal/transport"
)

// fakeSink answers every liveness probe and accepts the producer's data
// connection, standing in for a real cmd/writer process so AddResult's
// already-alive path can be exercised without spawning a binary.
func startFakeSink(t *testing.T, reqPort int) {
	t.Helper()
	reply, err := transport.NewReplyServer(reqPort)
	if err != nil {
		t.Fatalf("fake sink: bind reply socket: %v", err)
	}
	t.Cleanup(func() { reply.Close() })

	events := make(chan transport.ReqEvent)
	go reply.Serve(events)
	go func() {
		for ev := range events {
			ev.Reply()
		}
	}()
}

func TestAddResultSendsWithoutSpawningWhenSinkIsAlive(t *testing.T) {
	restoreSleep := format.RowSleep
	format.RowSleep = 0
	t.Cleanup(func() { format.RowSleep = restoreSleep })

	client, err := NewClient(Config{StartPort: 49300, SinkExePath: "/no/such/binary"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	startFakeSink(t, client.ReqPort())

	pull, err := transport.DialPullSocket(client.PushPort())
	if err != nil {
		t.Fatalf("fake sink: dial push port: %v", err)
	}
	t.Cleanup(func() { pull.Close() })

	client.StartRun()
	row := proto.Row{{Name: "x", Value: 1.0}}

	recvErr := make(chan error, 1)
	go func() {
		_, err := pull.Receive()
		recvErr <- err
	}()

	if err := client.AddResult(row); err != nil {
		t.Fatalf("AddResult returned error: %v", err)
	}
	if client.chunkID != 1 {
		t.Fatalf("expected chunkID 1 after first AddResult, got %d", client.chunkID)
	}

	select {
	case err := <-recvErr:
		if err != nil {
			t.Fatalf("fake sink failed to receive the chunk: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("fake sink never received a chunk")
	}
}

func TestAddResultRejectsEmptyRow(t *testing.T) {
	client, err := NewClient(Config{StartPort: 49400, SinkExePath: "qcodes-writer"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	if err := client.AddResult(proto.Row{}); err != proto.ErrEmptyRow {
		t.Fatalf("AddResult(empty row) = %v, want ErrEmptyRow", err)
	}
}

func TestAddResultFailsWhenExecutableIsMissing(t *testing.T) {
	client, err := NewClient(Config{StartPort: 49500, SinkExePath: "/no/such/qcodes-writer-binary"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	client.cfg.SuicideTimeout = 10 * time.Millisecond
	client.lastSendTime = time.Now().Add(-time.Hour)

	err = client.AddResult(proto.Row{{Name: "x", Value: 1.0}})
	if err == nil {
		t.Fatalf("AddResult expected an error when the sink binary does not exist")
	}
}

// TestAddResultRecoversAfterDeadSinkRespawn drives AddResult through the
// full dead-sink recovery path (spec.md §4.3's probe→spawn→reprobe→send):
// the first sink dies, a respawn hands the producer a second sink already
// queued on the push listener's backlog, and the very AddResult call that
// discovers the dead sink must still deliver the row to the new one rather
// than writing into the stale connection.
func TestAddResultRecoversAfterDeadSinkRespawn(t *testing.T) {
	restoreSleep := format.RowSleep
	format.RowSleep = 0
	t.Cleanup(func() { format.RowSleep = restoreSleep })

	// "true" stands in for the sink binary: Spawn only needs it to start
	// successfully, since liveness is governed entirely by the fake sinks
	// below, not by anything the spawned process actually does.
	client, err := NewClient(Config{StartPort: 49700, SinkExePath: "true"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	client.StartRun()

	reply1, err := transport.NewReplyServer(client.ReqPort())
	if err != nil {
		t.Fatalf("first fake sink: bind reply socket: %v", err)
	}
	events1 := make(chan transport.ReqEvent)
	go reply1.Serve(events1)
	go func() {
		for ev := range events1 {
			ev.Reply()
		}
	}()

	deadSink, err := transport.DialPullSocket(client.PushPort())
	if err != nil {
		t.Fatalf("first fake sink: dial push port: %v", err)
	}
	go func() {
		for {
			if _, err := deadSink.Receive(); err != nil {
				return
			}
		}
	}()

	if err := client.AddResult(proto.Row{{Name: "x", Value: 1.0}}); err != nil {
		t.Fatalf("first AddResult returned error: %v", err)
	}

	// Kill the first sink: its reply server stops answering probes and its
	// data-channel connection goes away, but PushSocket still caches it.
	reply1.Close()
	deadSink.Close()
	client.cfg.SuicideTimeout = 0
	client.lastSendTime = time.Now().Add(-time.Hour)

	// The respawned sink: its reply server binds the same (now-free) req
	// port, and it dials the push port before AddResult ever runs, exactly
	// like cmd/writer's real INIT-time dial queuing on the listener backlog
	// ahead of the producer's next Accept.
	reply2, err := transport.NewReplyServer(client.ReqPort())
	if err != nil {
		t.Fatalf("second fake sink: bind reply socket: %v", err)
	}
	t.Cleanup(func() { reply2.Close() })
	events2 := make(chan transport.ReqEvent)
	go reply2.Serve(events2)
	go func() {
		for ev := range events2 {
			ev.Reply()
		}
	}()

	newSink, err := transport.DialPullSocket(client.PushPort())
	if err != nil {
		t.Fatalf("second fake sink: dial push port: %v", err)
	}
	t.Cleanup(func() { newSink.Close() })

	recvErr := make(chan error, 1)
	go func() {
		_, err := newSink.Receive()
		recvErr <- err
	}()

	if err := client.AddResult(proto.Row{{Name: "x", Value: 2.0}}); err != nil {
		t.Fatalf("AddResult after respawn returned error: %v", err)
	}

	select {
	case err := <-recvErr:
		if err != nil {
			t.Fatalf("respawned sink failed to receive the chunk: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("respawned sink never received the chunk after recovery")
	}
}

func TestAddResultDoesNotReprobeWithinSuicideTimeout(t *testing.T) {
	restoreSleep := format.RowSleep
	format.RowSleep = 0
	t.Cleanup(func() { format.RowSleep = restoreSleep })

	client, err := NewClient(Config{StartPort: 49600, SinkExePath: "/no/such/binary"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	startFakeSink(t, client.ReqPort())
	pull, err := transport.DialPullSocket(client.PushPort())
	if err != nil {
		t.Fatalf("fake sink: dial push port: %v", err)
	}
	t.Cleanup(func() { pull.Close() })
	go func() {
		for {
			if _, err := pull.Receive(); err != nil {
				return
			}
		}
	}()

	client.StartRun()
	client.cfg.SuicideTimeout = time.Hour

	if err := client.AddResult(proto.Row{{Name: "x", Value: 1.0}}); err != nil {
		t.Fatalf("first AddResult returned error: %v", err)
	}
	// Sever the request channel's listener entirely; if AddResult tried to
	// probe again within the (hour-long) suicide timeout it would have
	// nothing to probe and would fail.
	client.req.Close()

	if err := client.AddResult(proto.Row{{Name: "x", Value: 1.0}}); err != nil {
		t.Fatalf("second AddResult returned error even though no re-probe should have been needed: %v", err)
	}
}
