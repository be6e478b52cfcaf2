package transport

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// maxFrameSize guards against a malformed length prefix turning a single
// bad frame into an unbounded allocation.
const maxFrameSize = 64 << 20

// writeFrame writes payload as one length-prefixed frame, mirroring the
// buffer-reuse style of the teacher's std/copy.go (a fixed-size header
// buffer, no intermediate allocation for the prefix itself).
func writeFrame(w io.Writer, payload []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return errors.WithStack(err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// readFrame reads one length-prefixed frame written by writeFrame.
func readFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, errors.WithStack(err)
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxFrameSize {
		return nil, errors.Errorf("transport: frame of %d bytes exceeds limit", n)
	}
	if n == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.WithStack(err)
	}
	return buf, nil
}
