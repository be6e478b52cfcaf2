package proto

import (
	"encoding/gob"

	"github.com/pkg/errors"
)

// ErrEmptyRow is returned by operations that require at least one
// name/value pair.
var ErrEmptyRow = errors.New("row has no columns")

func init() {
	// gob refuses to encode a concrete type stored in an interface{} field
	// unless it has been registered first. Measurement values are almost
	// always one of these; a custom instrument type still needs the
	// caller's own gob.Register call, per Pair's doc comment.
	gob.Register(float64(0))
	gob.Register(float32(0))
	gob.Register(int(0))
	gob.Register(int64(0))
	gob.Register(string(""))
	gob.Register(bool(false))
	gob.Register([]float64(nil))
	gob.Register([]int(nil))
	gob.Register([]string(nil))
}

// Pair is one column-name/value entry of a Row. Value holds a number,
// string, or any other format-specific payload; gob.Register is the
// caller's responsibility for custom concrete types sent across the wire.
type Pair struct {
	Name  string
	Value interface{}
}

// Row is an ordered collection of (column-name, value) pairs making up one
// measurement sample.
type Row []Pair

// Names returns the column names in the row's own order.
func (r Row) Names() []string {
	names := make([]string, len(r))
	for i, p := range r {
		names[i] = p.Name
	}
	return names
}

// Reorder returns a copy of r with pairs placed in the order given by
// columns. Every name in columns must be present in r; otherwise Reorder
// returns an error so a malformed row is rejected rather than silently
// padded. If r repeats a name, the last pair with that name wins; pairs
// whose names are not in columns are dropped.
func (r Row) Reorder(columns []string) (Row, error) {
	byName := make(map[string]interface{}, len(r))
	for _, p := range r {
		byName[p.Name] = p.Value
	}

	out := make(Row, len(columns))
	for i, name := range columns {
		v, ok := byName[name]
		if !ok {
			return nil, errors.Errorf("row is missing column %q", name)
		}
		out[i] = Pair{Name: name, Value: v}
	}
	return out, nil
}
