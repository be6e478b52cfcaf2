package format

import (
	"encoding/gob"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/astafan8/Qcodes/internal/proto"
	"github.com/astafan8/Qcodes/internal/rowcodec"
)

// PickleExtension is the opaque-object-stream format's file extension,
// named for the Python prototype's pickle.Pickler it stands in for.
const PickleExtension = ".pkl"

// PickleWriter is the opaque-object-stream FileFormatWriter: a raw,
// unreordered Row gob-encoded and appended per WriteRow call, with no
// header.
type PickleWriter struct {
	file    *os.File
	encoder *gob.Encoder
}

// NewPickleWriter returns an unopened PickleWriter.
func NewPickleWriter() Writer {
	return &PickleWriter{}
}

func (w *PickleWriter) StartNewFile(name string) error {
	if err := w.Close(); err != nil {
		return err
	}
	if !strings.HasSuffix(name, PickleExtension) {
		name += PickleExtension
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return errors.Wrap(err, "pickle writer: open file")
	}
	w.file = f
	w.encoder = rowcodec.NewFileEncoder(f)
	return nil
}

// SetColumnNames is a no-op: the object stream carries each row's own
// name/value pairs, unreordered.
func (w *PickleWriter) SetColumnNames(columns []string) {}

// WriteHeader is a no-op: there is no header in this format.
func (w *PickleWriter) WriteHeader() error { return nil }

func (w *PickleWriter) WriteRow(row proto.Row) error {
	if w.encoder == nil {
		return errors.New("pickle writer: write row with no open file")
	}
	if err := w.encoder.Encode(row); err != nil {
		return errors.Wrap(err, "pickle writer: encode row")
	}
	if err := w.file.Sync(); err != nil {
		return errors.Wrap(err, "pickle writer: flush")
	}

	if RowSleep > 0 {
		time.Sleep(RowSleep)
	}
	return nil
}

func (w *PickleWriter) Close() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	w.encoder = nil
	return errors.Wrap(err, "pickle writer: close")
}
