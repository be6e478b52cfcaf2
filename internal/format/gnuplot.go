package format

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/astafan8/Qcodes/internal/proto"
)

// GnuplotExtension is the tabular-text format's file extension.
const GnuplotExtension = ".dat"

// RowSleep is the artificial per-row delay described in spec.md §4.8 and
// §9; it is a package variable rather than a constant so cmd/writer's
// -disk-sleep flag can zero it for production use.
var RowSleep = proto.WriteRowArtificialSleep

// GnuplotWriter is the tabular-text FileFormatWriter: one header line of
// space-separated column names, then one space-separated line per row.
type GnuplotWriter struct {
	file    *os.File
	columns []string
}

// NewGnuplotWriter returns an unopened GnuplotWriter.
func NewGnuplotWriter() Writer {
	return &GnuplotWriter{}
}

func (w *GnuplotWriter) StartNewFile(name string) error {
	if err := w.Close(); err != nil {
		return err
	}
	if !strings.HasSuffix(name, GnuplotExtension) {
		name += GnuplotExtension
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return errors.Wrap(err, "gnuplot writer: open file")
	}
	w.file = f
	w.columns = nil
	return nil
}

func (w *GnuplotWriter) SetColumnNames(columns []string) {
	w.columns = append([]string(nil), columns...)
}

func (w *GnuplotWriter) WriteHeader() error {
	if w.file == nil {
		return errors.New("gnuplot writer: write header with no open file")
	}
	line := strings.Join(w.columns, " ") + "\n"
	return w.writeAndFlush(line)
}

func (w *GnuplotWriter) WriteRow(row proto.Row) error {
	if w.file == nil {
		return errors.New("gnuplot writer: write row with no open file")
	}
	ordered, err := row.Reorder(w.columns)
	if err != nil {
		return errors.Wrap(err, "gnuplot writer")
	}

	values := make([]string, len(ordered))
	for i, p := range ordered {
		values[i] = fmt.Sprint(p.Value)
	}
	line := strings.Join(values, " ") + "\n"
	if err := w.writeAndFlush(line); err != nil {
		return err
	}

	if RowSleep > 0 {
		time.Sleep(RowSleep)
	}
	return nil
}

func (w *GnuplotWriter) writeAndFlush(line string) error {
	if _, err := w.file.WriteString(line); err != nil {
		return errors.Wrap(err, "gnuplot writer: write")
	}
	return errors.Wrap(w.file.Sync(), "gnuplot writer: flush")
}

func (w *GnuplotWriter) Close() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	w.columns = nil
	return errors.Wrap(err, "gnuplot writer: close")
}
