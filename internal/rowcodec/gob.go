// Package rowcodec is the opaque object-stream codec for proto.Row values:
// the data channel's second frame and the PICKLE format writer both use it.
// gob is the stdlib's analogue of the original Python prototype's pickle —
// see SPEC_FULL.md §3 for why no third-party codec in the retrieved pack
// fits an open-ended, schema-less key/value tuple.
package rowcodec

import (
	"bytes"
	"encoding/gob"

	"github.com/pkg/errors"

	"github.com/astafan8/Qcodes/internal/proto"
)

// Encode serializes one Row as a self-contained gob stream.
func Encode(row proto.Row) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(row); err != nil {
		return nil, errors.Wrap(err, "rowcodec: encode row")
	}
	return buf.Bytes(), nil
}

// Decode deserializes one Row previously produced by Encode.
func Decode(payload []byte) (proto.Row, error) {
	var row proto.Row
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&row); err != nil {
		return nil, errors.Wrap(err, "rowcodec: decode row")
	}
	return row, nil
}

// NewFileEncoder returns a gob.Encoder writing successive Row values onto
// w, one per call to Encoder.Encode — used by the PICKLE file format writer
// to append the concatenated object stream spec.md §4.8 describes.
func NewFileEncoder(w interface {
	Write(p []byte) (int, error)
}) *gob.Encoder {
	return gob.NewEncoder(w)
}
