package writer

import (
	"log"
	"path/filepath"

	"github.com/astafan8/Qcodes/internal/format"
	"github.com/astafan8/Qcodes/internal/proto"
	"github.com/astafan8/Qcodes/internal/sinkqueue"
	"github.com/astafan8/Qcodes/internal/transport"
)

// Thread is the sink's disk-writing goroutine (spec.md §4.7): it consumes
// the SinkQueue, detects run boundaries by guid, and owns exactly one
// FileFormatWriter at a time.
type Thread struct {
	queue     *sinkqueue.Queue
	dataDir   string
	formatNew func() (format.Writer, error)
	touch     func()

	currentGUID string
	fw          format.Writer

	done chan struct{}
}

// NewThread builds a Thread. formatName must be registered in
// internal/format. touch is called after every processed message so the
// network loop's idle clock reflects write progress, not just socket
// activity.
func NewThread(queue *sinkqueue.Queue, dataDir, formatName string, touch func()) (*Thread, error) {
	if _, err := format.New(formatName); err != nil {
		return nil, err
	}
	return &Thread{
		queue:     queue,
		dataDir:   dataDir,
		formatNew: func() (format.Writer, error) { return format.New(formatName) },
		touch:     touch,
		done:      make(chan struct{}),
	}, nil
}

// Run drains the queue until the termination sentinel is dequeued, then
// releases the open file and closes Done(). It must be run in its own
// goroutine; in production it is effectively daemonic (WriterLoop does not
// block process exit on it beyond the wrap-up timeout), but tests may
// simply wait on Done().
func (t *Thread) Run() {
	defer close(t.done)
	defer t.closeFile()

	for {
		msg := t.queue.Pop()
		if msg.Header.IsSentinel() {
			return
		}
		t.process(msg)
	}
}

// Done reports when Run has returned.
func (t *Thread) Done() <-chan struct{} {
	return t.done
}

func (t *Thread) process(msg transport.DataMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("writer thread: recovered from panic processing chunk %d of run %s: %v",
				msg.Header.ChunkID, msg.Header.GUID, r)
		}
	}()

	row, err := msg.Row()
	if err != nil {
		log.Printf("writer thread: dropping unreadable row (guid=%s chunkid=%d): %v",
			msg.Header.GUID, msg.Header.ChunkID, err)
		t.touch()
		return
	}

	if msg.Header.GUID != t.currentGUID {
		if err := t.rotate(msg.Header.GUID, row); err != nil {
			log.Printf("writer thread: rotate to guid %s failed: %v", msg.Header.GUID, err)
			t.touch()
			return
		}
	}

	if msg.Header.ChunkID == 1 {
		if err := t.fw.WriteHeader(); err != nil {
			log.Printf("writer thread: write header failed (guid=%s): %v", msg.Header.GUID, err)
		}
	}

	if err := t.fw.WriteRow(row); err != nil {
		log.Printf("writer thread: write row failed (guid=%s chunkid=%d): %v",
			msg.Header.GUID, msg.Header.ChunkID, err)
	}

	t.touch()
}

func (t *Thread) rotate(guid string, firstRow proto.Row) error {
	t.closeFile()

	fw, err := t.formatNew()
	if err != nil {
		return err
	}
	filename := filepath.Join(t.dataDir, guid)
	if err := fw.StartNewFile(filename); err != nil {
		return err
	}
	fw.SetColumnNames(firstRow.Names())

	t.fw = fw
	t.currentGUID = guid
	return nil
}

func (t *Thread) closeFile() {
	if t.fw == nil {
		return
	}
	if err := t.fw.Close(); err != nil {
		log.Printf("writer thread: close file failed (guid=%s): %v", t.currentGUID, err)
	}
	t.fw = nil
	t.currentGUID = ""
}
