package chwire

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func mustType(t *testing.T, s string) *TypeDesc {
	t.Helper()
	td, err := ParseType(s)
	if err != nil {
		t.Fatalf("ParseType(%q): %v", s, err)
	}
	return td
}

// TestRowBinary_TwoRowsTwoColumns checks an exact byte encoding for two
// rows of (UInt32, String).
func TestRowBinary_TwoRowsTwoColumns(t *testing.T) {
	schema := Schema{
		{Name: "id", Type: mustType(t, "UInt32")},
		{Name: "name", Type: mustType(t, "String")},
	}
	w := NewRowBinaryWriter(RowBinaryPlain, schema)
	rows := [][]*Value{
		{{Kind: KindUInt32, UInt: 1}, {Kind: KindString, Str: "alpha"}},
		{{Kind: KindUInt32, UInt: 2}, {Kind: KindString, Str: "beta"}},
	}
	for _, row := range rows {
		if err := w.AppendRow(row); err != nil {
			t.Fatal(err)
		}
	}
	got, err := w.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0x01, 0x00, 0x00, 0x00, 0x05, 0x61, 0x6C, 0x70, 0x68, 0x61,
		0x02, 0x00, 0x00, 0x00, 0x04, 0x62, 0x65, 0x74, 0x61,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got  % X\nwant % X", got, want)
	}

	r := NewRowBinaryReader(RowBinaryPlain, schema, bytes.NewReader(got))
	for i, row := range rows {
		if err := r.Advance(); err != nil {
			t.Fatalf("row %d: %v", i, err)
		}
		decoded := r.Current()
		if decoded[0].UInt != row[0].UInt || decoded[1].Str != row[1].Str {
			t.Fatalf("row %d: got %+v, want %+v", i, decoded, row)
		}
	}
	if err := r.Advance(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

// TestRowBinary_Nullable checks an exact byte encoding for
// Nullable(Int8).
func TestRowBinary_Nullable(t *testing.T) {
	schema := Schema{{Name: "x", Type: mustType(t, "Nullable(Int8)")}}
	w := NewRowBinaryWriter(RowBinaryPlain, schema)
	rows := [][]*Value{
		{NewNull()},
		{{Kind: KindInt8, Int: -1}},
	}
	for _, row := range rows {
		if err := w.AppendRow(row); err != nil {
			t.Fatal(err)
		}
	}
	got, err := w.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x01, 0x00, 0xFF}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % X, want % X", got, want)
	}

	r := NewRowBinaryReader(RowBinaryPlain, schema, bytes.NewReader(got))
	if err := r.Advance(); err != nil {
		t.Fatal(err)
	}
	if !r.Current()[0].Null {
		t.Fatalf("row 0: expected null")
	}
	if err := r.Advance(); err != nil {
		t.Fatal(err)
	}
	if got := r.Current()[0].Int; got != -1 {
		t.Fatalf("row 1: got %d, want -1", got)
	}
}

// TestRowBinary_ArrayUInt8 checks an exact byte encoding for
// Array(UInt8).
func TestRowBinary_ArrayUInt8(t *testing.T) {
	schema := Schema{{Name: "xs", Type: mustType(t, "Array(UInt8)")}}
	w := NewRowBinaryWriter(RowBinaryPlain, schema)
	row := []*Value{{Kind: KindArray, Elems: []*Value{
		{Kind: KindUInt8, UInt: 1}, {Kind: KindUInt8, UInt: 2}, {Kind: KindUInt8, UInt: 3},
	}}}
	if err := w.AppendRow(row); err != nil {
		t.Fatal(err)
	}
	got, err := w.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x03, 0x01, 0x02, 0x03}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % X, want % X", got, want)
	}
}

// TestRowBinary_Enum8 checks an exact byte encoding for Enum8.
func TestRowBinary_Enum8(t *testing.T) {
	schema := Schema{{Name: "s", Type: mustType(t, "Enum8('a' = 1, 'b' = 2)")}}
	w := NewRowBinaryWriter(RowBinaryPlain, schema)
	row := []*Value{{Kind: KindEnum8, EnumName: "b"}}
	if err := w.AppendRow(row); err != nil {
		t.Fatal(err)
	}
	got, err := w.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{0x02}) {
		t.Fatalf("got % X, want 02", got)
	}

	r := NewRowBinaryReader(RowBinaryPlain, schema, bytes.NewReader(got))
	if err := r.Advance(); err != nil {
		t.Fatal(err)
	}
	if r.Current()[0].EnumName != "b" {
		t.Fatalf("got %q, want \"b\"", r.Current()[0].EnumName)
	}
}

// TestRowBinary_NestedTransposed checks the transposed encoding of a
// Nested column.
func TestRowBinary_NestedTransposed(t *testing.T) {
	schema := Schema{{Name: "n", Type: mustType(t, "Nested(a UInt8, b String)")}}
	w := NewRowBinaryWriter(RowBinaryPlain, schema)
	row := []*Value{{Kind: KindArray, Elems: []*Value{
		{Kind: KindTuple, Elems: []*Value{{Kind: KindUInt8, UInt: 7}, {Kind: KindString, Str: "alpha"}}},
		{Kind: KindTuple, Elems: []*Value{{Kind: KindUInt8, UInt: 9}, {Kind: KindString, Str: "beta"}}},
	}}}
	if err := w.AppendRow(row); err != nil {
		t.Fatal(err)
	}
	got, err := w.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0x02, 0x07, 0x09,
		0x02, 0x05, 0x61, 0x6C, 0x70, 0x68, 0x61, 0x04, 0x62, 0x65, 0x74, 0x61,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got  % X\nwant % X", got, want)
	}

	r := NewRowBinaryReader(RowBinaryPlain, schema, bytes.NewReader(got))
	if err := r.Advance(); err != nil {
		t.Fatal(err)
	}
	decoded := r.Current()[0]
	if len(decoded.Elems) != 2 || decoded.Elems[0].Elems[1].Str != "alpha" || decoded.Elems[1].Elems[0].UInt != 9 {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestRowBinary_HeaderCanonicalization(t *testing.T) {
	schema := Schema{{Name: "amount", Type: mustType(t, "Decimal32(2)")}}
	w := NewRowBinaryWriter(RowBinaryWithNamesAndTypes, schema)
	if err := w.WriteHeader(); err != nil {
		t.Fatal(err)
	}
	if err := w.AppendRow([]*Value{{Kind: KindDecimal, Decimal: DecimalValue{Mag32: 1234}}}); err != nil {
		t.Fatal(err)
	}
	got, err := w.Finalize()
	if err != nil {
		t.Fatal(err)
	}

	r := NewRowBinaryReader(RowBinaryWithNamesAndTypes, nil, bytes.NewReader(got))
	if err := r.Advance(); err != nil {
		t.Fatal(err)
	}
	if want := "Decimal(9, 2)"; r.schema[0].Type.CanonicalString() != want {
		t.Fatalf("header type = %q, want %q", r.schema[0].Type.CanonicalString(), want)
	}
}

// TestRowBinary_SeekRow seeks forward and back to row 0 over a
// bytes.Reader, which already implements io.Seeker.
func TestRowBinary_SeekRow(t *testing.T) {
	schema := Schema{{Name: "id", Type: mustType(t, "UInt32")}}
	w := NewRowBinaryWriter(RowBinaryPlain, schema)
	const n = 5000
	for i := 0; i < n; i++ {
		if err := w.AppendRow([]*Value{{Kind: KindUInt32, UInt: uint64(i)}}); err != nil {
			t.Fatal(err)
		}
	}
	data, err := w.Finalize()
	if err != nil {
		t.Fatal(err)
	}

	r := NewRowBinaryReaderWithStride(RowBinaryPlain, schema, bytes.NewReader(data), 100)
	// Advance partway first so the seek index has samples to work with.
	for i := 0; i < 250; i++ {
		if err := r.Advance(); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.SeekRow(4321); err != nil {
		t.Fatal(err)
	}
	if err := r.Advance(); err != nil {
		t.Fatal(err)
	}
	if got := r.Current()[0].UInt; got != 4321 {
		t.Fatalf("after SeekRow(4321), got row %d", got)
	}

	if err := r.SeekRow(0); err != nil {
		t.Fatal(err)
	}
	if err := r.Advance(); err != nil {
		t.Fatal(err)
	}
	if got := r.Current()[0].UInt; got != 0 {
		t.Fatalf("after SeekRow(0), got row %d", got)
	}
}

func TestRowBinary_SeekRow_NotSeekable(t *testing.T) {
	schema := Schema{{Name: "id", Type: mustType(t, "UInt32")}}
	r := NewRowBinaryReader(RowBinaryPlain, schema, bytes.NewBuffer(nil))
	err := r.SeekRow(1)
	var notSeekable *NotSeekable
	if !errors.As(err, &notSeekable) {
		t.Fatalf("got %v (%T), want *NotSeekable", err, err)
	}
}

func TestRowBinary_TruncatedInputFailsCleanly(t *testing.T) {
	schema := Schema{
		{Name: "id", Type: mustType(t, "UInt32")},
		{Name: "name", Type: mustType(t, "String")},
	}
	w := NewRowBinaryWriter(RowBinaryPlain, schema)
	if err := w.AppendRow([]*Value{{Kind: KindUInt32, UInt: 1}, {Kind: KindString, Str: "alpha"}}); err != nil {
		t.Fatal(err)
	}
	data, err := w.Finalize()
	if err != nil {
		t.Fatal(err)
	}

	for cut := 1; cut < len(data); cut++ {
		r := NewRowBinaryReader(RowBinaryPlain, schema, bytes.NewReader(data[:cut]))
		err := r.Advance()
		if err == nil {
			continue // a prefix that happens to decode a complete row is fine
		}
		var decErr *DecodingError
		if !errors.As(err, &decErr) && err != io.EOF {
			t.Fatalf("cut=%d: got %v (%T), want *DecodingError or io.EOF", cut, err, err)
		}
	}
}
