package chwire

import "io"

type readerState uint8

const (
	stateInitial readerState = iota
	stateHeaderConsumed
	stateStreaming
	stateClosed
)

// defaultSeekStride is how many rows apart the reader samples a
// (row ordinal, byte offset) pair for SeekRow. A denser stride makes
// seeks cheaper but costs more memory for the index; callers needing a
// different trade-off use NewRowBinaryReaderWithStride.
const defaultSeekStride = 1024

type rowIndexEntry struct {
	ordinal int64
	offset  int64
}

// RowBinaryReader streams rows out of a RowBinary source one at a time.
// SeekRow works by finding the nearest sampled offset at or before the
// target row, seeking there, then replaying forward to the exact row.
type RowBinaryReader struct {
	variant RowBinaryVariant
	schema  Schema // expected/declared schema; required for Plain and WithNames

	src    io.Reader
	seeker io.Seeker // non-nil if src implements io.Seeker
	c      *cursor

	state   readerState
	ordinal int64 // ordinal of the row current() would return next

	stride   int64
	index    []rowIndexEntry
	baseOff  int64 // absolute offset where row streaming begins (after header)

	current []*Value
}

// NewRowBinaryReader constructs a reader for src. schema is the caller's
// expected schema; for RowBinaryWithNamesAndTypes it is cross-checked
// against the wire header via Schema.Equivalent, and for Plain/WithNames
// it is authoritative since the wire carries no (or only partial) type
// information.
func NewRowBinaryReader(variant RowBinaryVariant, schema Schema, src io.Reader) *RowBinaryReader {
	return NewRowBinaryReaderWithStride(variant, schema, src, defaultSeekStride)
}

func NewRowBinaryReaderWithStride(variant RowBinaryVariant, schema Schema, src io.Reader, stride int64) *RowBinaryReader {
	seeker, _ := src.(io.Seeker)
	if stride <= 0 {
		stride = defaultSeekStride
	}
	return &RowBinaryReader{
		variant: variant,
		schema:  schema,
		src:     src,
		seeker:  seeker,
		c:       newCursor(src),
		stride:  stride,
	}
}

// consumeHeader reads and (where applicable) validates the wire header.
// Safe to call at most once; subsequent calls are no-ops.
func (r *RowBinaryReader) consumeHeader() error {
	if r.state != stateInitial {
		return nil
	}
	switch r.variant {
	case RowBinaryWithNames:
		names := readHeaderNames(r.c)
		if r.c.err != nil {
			return r.c.err
		}
		if len(names) != len(r.schema) {
			return newSchemaMismatch("header has %d columns, schema has %d", len(names), len(r.schema))
		}
		for i, n := range names {
			if n != r.schema[i].Name {
				return newSchemaMismatch("column %d: header name %q vs schema name %q", i, n, r.schema[i].Name)
			}
		}
	case RowBinaryWithNamesAndTypes:
		wire := readHeaderNamesAndTypes(r.c)
		if r.c.err != nil {
			return r.c.err
		}
		if r.schema != nil {
			if err := wire.Equivalent(r.schema); err != nil {
				return err
			}
		} else {
			r.schema = wire
		}
	}
	r.baseOff = r.c.pos()
	r.state = stateStreaming
	return nil
}

// Advance decodes and buffers the next row, making it available via
// Current. It returns io.EOF once the source is exhausted.
func (r *RowBinaryReader) Advance() error {
	if r.state == stateClosed {
		return newIoError(io.ErrClosedPipe)
	}
	if err := r.consumeHeader(); err != nil {
		return err
	}
	if !r.c.more() {
		return io.EOF
	}
	if r.ordinal%r.stride == 0 {
		r.index = append(r.index, rowIndexEntry{ordinal: r.ordinal, offset: r.c.pos()})
	}
	row := decodeRow(r.c, r.schema)
	if r.c.err != nil {
		return r.c.err
	}
	r.current = row
	r.ordinal++
	return nil
}

// Current returns the row most recently produced by Advance.
func (r *RowBinaryReader) Current() []*Value { return r.current }

// SeekRow repositions the reader so the next Advance produces row k
// (0-indexed, counting from the first row after the header). It returns
// NotSeekable if the underlying source does not implement io.Seeker.
func (r *RowBinaryReader) SeekRow(k int64) error {
	if r.state == stateClosed {
		return newIoError(io.ErrClosedPipe)
	}
	if r.seeker == nil {
		return &NotSeekable{}
	}
	if err := r.consumeHeader(); err != nil {
		return err
	}
	if k < 0 {
		return newDecodingError("seek_row: negative row ordinal %d", k)
	}

	var best rowIndexEntry
	found := false
	for _, e := range r.index {
		if e.ordinal <= k && (!found || e.ordinal > best.ordinal) {
			best, found = e, true
		}
	}
	startOrdinal, startOffset := int64(0), r.baseOff
	if found {
		startOrdinal, startOffset = best.ordinal, best.offset
	}

	if _, err := r.seeker.Seek(startOffset, io.SeekStart); err != nil {
		return newIoError(err)
	}
	r.c = newCursor(r.src)
	r.c.sourceRead = startOffset
	r.ordinal = startOrdinal

	for r.ordinal < k {
		if !r.c.more() {
			return io.EOF
		}
		decodeRow(r.c, r.schema)
		if r.c.err != nil {
			return r.c.err
		}
		r.ordinal++
	}
	return nil
}

// Close marks the reader closed; further Advance/SeekRow calls fail.
func (r *RowBinaryReader) Close() error {
	r.state = stateClosed
	return nil
}
