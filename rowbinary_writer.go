package chwire

import "bytes"

// RowBinaryVariant selects which of the three header conventions a
// RowBinaryWriter/RowBinaryReader speaks.
type RowBinaryVariant int

const (
	RowBinaryPlain RowBinaryVariant = iota
	RowBinaryWithNames
	RowBinaryWithNamesAndTypes
)

// RowBinaryWriter streams rows into an internal buffer one at a time.
// There is no destructor-driven flush: callers pull bytes out
// explicitly. TakeInner/Reset let a caller recycle the underlying
// buffer across batches instead of allocating a fresh one per batch.
type RowBinaryWriter struct {
	variant      RowBinaryVariant
	schema       Schema
	buf          *bytes.Buffer
	s            *sink
	headerWritten bool
}

// NewRowBinaryWriter constructs a writer for the given schema and header
// variant. Schema is required even for RowBinaryPlain (which omits the
// header on the wire) since column order and types still govern encoding.
func NewRowBinaryWriter(variant RowBinaryVariant, schema Schema) *RowBinaryWriter {
	buf := new(bytes.Buffer)
	return &RowBinaryWriter{
		variant: variant,
		schema:  schema,
		buf:     buf,
		s:       newSink(buf),
	}
}

// WriteHeader emits the header appropriate to the writer's variant. It
// is a no-op for RowBinaryPlain, and a second call is a no-op. Calling
// it after rows have already been appended is the caller's mistake to
// avoid: the writer does not check that the header precedes all rows.
func (w *RowBinaryWriter) WriteHeader() error {
	if w.headerWritten {
		return nil
	}
	switch w.variant {
	case RowBinaryWithNames:
		writeHeaderNames(w.s, w.schema)
	case RowBinaryWithNamesAndTypes:
		writeHeaderNamesAndTypes(w.s, w.schema)
	}
	w.headerWritten = true
	return w.s.err
}

// AppendRow validates row against the writer's schema and encodes it,
// transposing any Nested column.
func (w *RowBinaryWriter) AppendRow(row []*Value) error {
	if len(row) != len(w.schema) {
		return newRowCountMismatch("row", len(w.schema), len(row))
	}
	for i, col := range w.schema {
		if err := row[i].Validate(col.Type); err != nil {
			return err
		}
	}
	encodeRow(w.s, w.schema, row)
	return w.s.err
}

// AppendRawRow appends pre-encoded row bytes verbatim, trusting the
// caller to have encoded them consistently with the writer's schema.
// Useful for forwarding rows read from one stream into another without
// a decode/re-encode round trip.
func (w *RowBinaryWriter) AppendRawRow(data []byte) error {
	w.s.write(data)
	return w.s.err
}

// Finalize returns the accumulated bytes written so far. It does not
// reset the writer; call TakeInner/Reset for that.
func (w *RowBinaryWriter) Finalize() ([]byte, error) {
	if w.s.err != nil {
		return nil, w.s.err
	}
	return w.buf.Bytes(), nil
}

// TakeInner returns the accumulated bytes and detaches them from the
// writer's internal buffer, leaving the writer ready for Reset.
func (w *RowBinaryWriter) TakeInner() ([]byte, error) {
	if w.s.err != nil {
		return nil, w.s.err
	}
	out := make([]byte, w.buf.Len())
	copy(out, w.buf.Bytes())
	return out, nil
}

// Reset clears the writer's buffered output (retaining its underlying
// capacity) so the writer can be reused for the next batch without a
// fresh allocation. The header-written flag is preserved: a
// RowBinaryWithNames/WithNamesAndTypes writer emits its header only once
// across the writer's lifetime, not once per batch, unless the caller
// explicitly wants a fresh header by constructing a new writer.
func (w *RowBinaryWriter) Reset() {
	w.buf.Reset()
	w.s.err = nil
}
