package chwire

import (
	"bytes"
	"io"

	"github.com/go-faster/city"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the frame codec applied to a Native block. A
// stream may mix modes block-to-block.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionLZ4
	CompressionZSTD
)

const (
	codecTagNone = 0x02
	codecTagLZ4  = 0x82
	codecTagZSTD = 0x90

	frameHeaderSize = 25 // 16 (checksum) + 1 (codec) + 4 (compressed size) + 4 (uncompressed size)
)

// wireColumn is one column as it appears on the wire: Nested is expanded
// into its n parallel Array(Ti) members with dot-joined names
// ("nested.fi") before this point.
type wireColumn struct {
	name   string
	typ    *TypeDesc
	values []*Value
}

func expandNestedSchema(schema Schema, columns [][]*Value) []wireColumn {
	var wire []wireColumn
	for i, col := range schema {
		if col.Type.Kind != KindNested {
			wire = append(wire, wireColumn{name: col.Name, typ: col.Type, values: columns[i]})
			continue
		}
		for _, field := range col.Type.Fields {
			arrType := &TypeDesc{Kind: KindArray, Elem: field.Type}
			vals := make([]*Value, len(columns[i]))
			for r, v := range columns[i] {
				fieldIdx := nestedFieldIndex(col.Type, field.Name)
				elems := make([]*Value, len(v.Elems))
				for j, tuple := range v.Elems {
					elems[j] = tuple.Elems[fieldIdx]
				}
				vals[r] = &Value{Kind: KindArray, Elems: elems}
			}
			wire = append(wire, wireColumn{name: col.Name + "." + field.Name, typ: arrType, values: vals})
		}
	}
	return wire
}

func nestedFieldIndex(t *TypeDesc, name string) int {
	for i, f := range t.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// encodeBlockPayload writes a block's uncompressed logical content:
// LEB128 num_columns, LEB128 num_rows, then per column name+type+data.
func encodeBlockPayload(s *sink, schema Schema, numRows int, columns [][]*Value) {
	wire := expandNestedSchema(schema, columns)
	s.uvarint(uint64(len(wire)))
	s.uvarint(uint64(numRows))
	for _, wc := range wire {
		writeString(s, wc.name)
		writeString(s, wc.typ.CanonicalString())
		encodeColumn(s, wc.typ, wc.values)
		if s.err != nil {
			return
		}
	}
}

// decodeBlockPayloadRaw reads a block's logical content back into its
// flattened wire shape (Nested columns stay split as "<col>.<field>").
func decodeBlockPayloadRaw(c *cursor) (Schema, int, [][]*Value) {
	numCols := c.uvarint()
	if c.err != nil {
		return nil, 0, nil
	}
	numRows := c.uvarint()
	if c.err != nil {
		return nil, 0, nil
	}
	schema := make(Schema, numCols)
	columns := make([][]*Value, numCols)
	for i := range schema {
		name := readString(c)
		if c.err != nil {
			return nil, 0, nil
		}
		typeStr := readString(c)
		if c.err != nil {
			return nil, 0, nil
		}
		t, err := ParseType(typeStr)
		if err != nil {
			c.err = err
			return nil, 0, nil
		}
		schema[i] = Column{Name: name, Type: t}
		columns[i] = decodeColumn(c, t, int(numRows))
		if c.err != nil {
			return nil, 0, nil
		}
	}
	return schema, int(numRows), columns
}

// EncodeBlock writes one Native block to w, as a single compression
// frame wrapping the whole block payload.
func EncodeBlock(w io.Writer, schema Schema, numRows int, columns [][]*Value, compression Compression) error {
	var buf bytes.Buffer
	s := newSink(&buf)
	encodeBlockPayload(s, schema, numRows, columns)
	if s.err != nil {
		return s.err
	}
	return writeFrame(w, buf.Bytes(), compression)
}

// DecodeBlock reads one Native block from r. If expectedSchema is
// non-nil, any Nested columns it names are reconstructed from their
// dot-joined Array(Ti) wire members back into Array(Tuple(...)) values;
// otherwise the raw flattened wire shape is returned.
func DecodeBlock(r io.Reader, expectedSchema Schema) (Schema, int, [][]*Value, error) {
	payload, err := readFrame(r)
	if err != nil {
		return nil, 0, nil, err
	}
	c := newCursor(bytes.NewReader(payload))
	schema, numRows, columns := decodeBlockPayloadRaw(c)
	if c.err != nil {
		return nil, 0, nil, c.err
	}
	if expectedSchema == nil {
		return schema, numRows, columns, nil
	}
	return reconstructNested(expectedSchema, schema, numRows, columns)
}

// reconstructNested regroups dot-joined "<col>.<field>" wire columns back
// into a single Nested column per a Nested entry in expectedSchema.
func reconstructNested(expectedSchema, wireSchema Schema, numRows int, wireColumns [][]*Value) (Schema, int, [][]*Value, error) {
	byName := map[string]int{}
	for i, c := range wireSchema {
		byName[c.Name] = i
	}

	out := make([][]*Value, len(expectedSchema))
	for i, col := range expectedSchema {
		if col.Type.Kind != KindNested {
			idx, ok := byName[col.Name]
			if !ok {
				return nil, 0, nil, newMissingColumn(col.Name)
			}
			out[i] = wireColumns[idx]
			continue
		}
		fieldCols := make([][]*Value, len(col.Type.Fields))
		for fi, field := range col.Type.Fields {
			wireName := col.Name + "." + field.Name
			idx, ok := byName[wireName]
			if !ok {
				return nil, 0, nil, newMissingColumn(wireName)
			}
			fieldCols[fi] = wireColumns[idx]
		}
		rows := make([]*Value, numRows)
		for r := 0; r < numRows; r++ {
			n := len(fieldCols[0][r].Elems)
			for fi, field := range col.Type.Fields {
				if got := len(fieldCols[fi][r].Elems); got != n {
					return nil, 0, nil, newDecodingError(
						"Nested column %q field %q has %d elements in row %d, want %d",
						col.Name, field.Name, got, r, n)
				}
			}
			tuples := make([]*Value, n)
			for j := 0; j < n; j++ {
				elems := make([]*Value, len(col.Type.Fields))
				for fi := range col.Type.Fields {
					elems[fi] = fieldCols[fi][r].Elems[j]
				}
				tuples[j] = &Value{Kind: KindTuple, Elems: elems}
			}
			rows[r] = &Value{Kind: KindArray, Elems: tuples}
		}
		out[i] = rows
	}
	return expectedSchema, numRows, out, nil
}

// writeFrame applies compression, computes the CityHash128 checksum over
// the 9-byte sub-header plus compressed payload, and writes the 25-byte
// frame header followed by the compressed bytes.
func writeFrame(w io.Writer, payload []byte, compression Compression) error {
	var codec byte
	var compressed []byte
	switch compression {
	case CompressionNone:
		codec = codecTagNone
		compressed = payload
	case CompressionLZ4:
		codec = codecTagLZ4
		bound := lz4.CompressBlockBound(len(payload))
		dst := make([]byte, bound)
		var c lz4.Compressor
		n, err := c.CompressBlock(payload, dst)
		if err != nil {
			return newEncodingError("lz4 compress: %v", err)
		}
		compressed = dst[:n]
	case CompressionZSTD:
		codec = codecTagZSTD
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return newEncodingError("zstd encoder: %v", err)
		}
		compressed = enc.EncodeAll(payload, nil)
		enc.Close()
	default:
		return newEncodingError("unknown compression mode %d", compression)
	}

	sub := make([]byte, 9)
	sub[0] = codec
	putU32LE(sub[1:5], uint32(9+len(compressed)))
	putU32LE(sub[5:9], uint32(len(payload)))

	sum := city.CH128(append(append([]byte(nil), sub...), compressed...))

	header := make([]byte, frameHeaderSize)
	putU64LE(header[0:8], sum.Low)
	putU64LE(header[8:16], sum.High)
	copy(header[16:25], sub)

	if _, err := w.Write(header); err != nil {
		return newIoError(err)
	}
	if _, err := w.Write(compressed); err != nil {
		return newIoError(err)
	}
	return nil
}

// readFrame reads one compression frame and returns the decompressed
// logical payload, verifying the CityHash128 checksum first.
func readFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, frameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return nil, newDecodingError("truncated frame header")
		}
		return nil, newIoError(err)
	}
	wantLow := getU64LE(header[0:8])
	wantHigh := getU64LE(header[8:16])
	sub := header[16:25]
	codec := sub[0]
	compressedSize := getU32LE(sub[1:5])
	uncompressedSize := getU32LE(sub[5:9])

	if compressedSize < 9 {
		return nil, newDecodingError("frame compressed size %d smaller than sub-header", compressedSize)
	}
	compressed := make([]byte, compressedSize-9)
	if _, err := io.ReadFull(r, compressed); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, newDecodingError("truncated frame payload")
		}
		return nil, newIoError(err)
	}

	got := city.CH128(append(append([]byte(nil), sub...), compressed...))
	if got.Low != wantLow || got.High != wantHigh {
		return nil, newDecodingError("frame checksum mismatch")
	}

	switch codec {
	case codecTagNone:
		if uint32(len(compressed)) != uncompressedSize {
			return nil, newDecodingError("uncompressed frame size %d does not match declared %d", len(compressed), uncompressedSize)
		}
		return compressed, nil
	case codecTagLZ4:
		dst := make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(compressed, dst)
		if err != nil {
			return nil, newDecodingError("lz4 decompress: %v", err)
		}
		if uint32(n) != uncompressedSize {
			return nil, newDecodingError("lz4 decompressed size %d does not match declared %d", n, uncompressedSize)
		}
		return dst, nil
	case codecTagZSTD:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, newDecodingError("zstd decoder: %v", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(compressed, make([]byte, 0, uncompressedSize))
		if err != nil {
			return nil, newDecodingError("zstd decompress: %v", err)
		}
		return out, nil
	default:
		return nil, newDecodingError("unknown codec tag 0x%02x", codec)
	}
}

func putU32LE(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}

func getU32LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putU64LE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}

func getU64LE(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * uint(i))
	}
	return v
}
