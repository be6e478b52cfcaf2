// Package format implements the FileFormatWriter state machine from
// spec.md §4.8: a small capability interface turning a stream of typed
// row events into a well-formed output file, with one concrete writer per
// entry in the Formats registry.
package format

import "github.com/astafan8/Qcodes/internal/proto"

// Writer is the capability set every file format implements. The sequence
// StartNewFile → (SetColumnNames → WriteHeader → WriteRow*)* may repeat;
// each StartNewFile call guarantees the previous file's resources are
// released before the next one opens.
type Writer interface {
	// StartNewFile closes any currently open file and opens name (with the
	// format's extension appended if missing) for append.
	StartNewFile(name string) error

	// SetColumnNames records the ordered column names for this run. A
	// no-op for formats with no header concept.
	SetColumnNames(columns []string)

	// WriteHeader writes the format's header, if any, for the file
	// currently open.
	WriteHeader() error

	// WriteRow appends one row to the file currently open.
	WriteRow(row proto.Row) error

	// Close releases the currently open file, if any.
	Close() error
}

// Factory builds a fresh, unopened Writer instance.
type Factory func() Writer
