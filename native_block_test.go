package chwire

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func strValues(ss ...string) []*Value {
	vs := make([]*Value, len(ss))
	for i, s := range ss {
		vs[i] = &Value{Kind: KindString, Str: s}
	}
	return vs
}

// TestEncodeDecodeBlock_RoundTrip covers the Native round-trip property
// across all three compression modes.
func TestEncodeDecodeBlock_RoundTrip(t *testing.T) {
	schema := Schema{
		{Name: "id", Type: mustType(t, "UInt32")},
		{Name: "name", Type: mustType(t, "String")},
		{Name: "tags", Type: mustType(t, "Array(String)")},
	}
	columns := [][]*Value{
		{{Kind: KindUInt32, UInt: 1}, {Kind: KindUInt32, UInt: 2}, {Kind: KindUInt32, UInt: 3}},
		strValues("alpha", "beta", "gamma"),
		{
			{Kind: KindArray, Elems: strValues("x", "y")},
			{Kind: KindArray, Elems: nil},
			{Kind: KindArray, Elems: strValues("z")},
		},
	}

	for _, comp := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		comp := comp
		t.Run(compressionName(comp), func(t *testing.T) {
			var buf bytes.Buffer
			if err := EncodeBlock(&buf, schema, 3, columns, comp); err != nil {
				t.Fatal(err)
			}
			gotSchema, numRows, gotCols, err := DecodeBlock(&buf, schema)
			require.NoError(t, err)
			require.Equal(t, 3, numRows)
			require.NoError(t, gotSchema.Equivalent(schema))
			for c := range columns {
				for r := range columns[c] {
					require.Equal(t, columns[c][r].Kind, gotCols[c][r].Kind, "col %d row %d", c, r)
				}
			}
			require.Equal(t, "alpha", gotCols[1][0].Str)
			require.Equal(t, "gamma", gotCols[1][2].Str)
			require.Len(t, gotCols[2][0].Elems, 2)
			require.Equal(t, "x", gotCols[2][0].Elems[0].Str)
		})
	}
}

func compressionName(c Compression) string {
	switch c {
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return "none"
	}
}

// TestLowCardinalityWidthUpgrade covers the LowCardinality index-width
// upgrade property.
func TestLowCardinalityWidthUpgrade(t *testing.T) {
	t.Run("u8 default slot and small dictionary matches exact wire bytes", func(t *testing.T) {
		typ := mustType(t, "LowCardinality(String)")
		values := strValues("us", "uk", "us", "us")

		var buf bytes.Buffer
		s := newSink(&buf)
		encodeLowCardinalityColumn(s, typ, values)
		if s.err != nil {
			t.Fatal(s.err)
		}

		// version=1, flags=u8 width | HasAdditionalKeys | NeedUpdateDictionary
		// (0x600), dict size=3 (default slot "" + "us" + "uk"), dict column
		// ("", "us", "uk" as LEB128-length-prefixed strings), row count=4,
		// u8 indices [1,2,1,1].
		want := []byte{
			0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
			0x00, 0x06, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
			0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
			0x00,
			0x02, 0x75, 0x73,
			0x02, 0x75, 0x6B,
			0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
			0x01, 0x02, 0x01, 0x01,
		}
		if !bytes.Equal(buf.Bytes(), want) {
			t.Fatalf("got  % X\nwant % X", buf.Bytes(), want)
		}

		c := newCursor(bytes.NewReader(buf.Bytes()))
		decoded := decodeLowCardinalityColumn(c, typ, len(values))
		if c.err != nil {
			t.Fatal(c.err)
		}
		for i, want := range []string{"us", "uk", "us", "us"} {
			if decoded[i].Str != want {
				t.Fatalf("row %d: got %q, want %q", i, decoded[i].Str, want)
			}
		}
	})

	t.Run("builder upgrades index width as dictionary grows", func(t *testing.T) {
		b := newLowCardinalityBuilder(mustType(t, "LowCardinality(String)"))
		for i := 0; i < 300; i++ {
			b.push(&Value{Kind: KindString, Str: distinctString(i)})
		}
		if b.width != lcIndexU16 {
			t.Fatalf("after 300 distinct values (+1 default slot), width = %d, want u16", b.width)
		}

		var buf bytes.Buffer
		s := newSink(&buf)
		b.encode(s)
		if s.err != nil {
			t.Fatal(s.err)
		}

		c := newCursor(bytes.NewReader(buf.Bytes()))
		decoded := decodeLowCardinalityColumn(c, mustType(t, "LowCardinality(String)"), 300)
		if c.err != nil {
			t.Fatal(c.err)
		}
		for i := 0; i < 300; i++ {
			if decoded[i].Str != distinctString(i) {
				t.Fatalf("row %d: got %q, want %q", i, decoded[i].Str, distinctString(i))
			}
		}
	})
}

func distinctString(i int) string {
	return string(rune('A'+i%26)) + string(rune('a'+(i/26)%26))
}

// TestDecodeBlock_TruncatedPayloadFails checks that truncating a valid
// payload never panics, always returning a DecodingError.
func TestDecodeBlock_TruncatedPayloadFails(t *testing.T) {
	schema := Schema{{Name: "id", Type: mustType(t, "UInt32")}}
	var buf bytes.Buffer
	if err := EncodeBlock(&buf, schema, 2, [][]*Value{
		{{Kind: KindUInt32, UInt: 1}, {Kind: KindUInt32, UInt: 2}},
	}, CompressionNone); err != nil {
		t.Fatal(err)
	}
	full := buf.Bytes()
	for cut := 1; cut < len(full); cut++ {
		_, _, _, err := DecodeBlock(bytes.NewReader(full[:cut]), schema)
		if err == nil {
			t.Fatalf("cut=%d: expected error, got nil", cut)
		}
		var decErr *DecodingError
		if !errors.As(err, &decErr) {
			t.Fatalf("cut=%d: got %v (%T), want *DecodingError", cut, err, err)
		}
	}
}

// TestDecodeBlock_ChecksumMismatch flips a payload byte and checks the
// checksum mismatch is reported as a DecodingError.
func TestDecodeBlock_ChecksumMismatch(t *testing.T) {
	schema := Schema{{Name: "id", Type: mustType(t, "UInt32")}}
	var buf bytes.Buffer
	if err := EncodeBlock(&buf, schema, 1, [][]*Value{
		{{Kind: KindUInt32, UInt: 42}},
	}, CompressionNone); err != nil {
		t.Fatal(err)
	}
	corrupted := append([]byte(nil), buf.Bytes()...)
	corrupted[frameHeaderSize] ^= 0xFF // flip a byte in the payload, not the header

	_, _, _, err := DecodeBlock(bytes.NewReader(corrupted), schema)
	if err == nil {
		t.Fatal("expected checksum mismatch error, got nil")
	}
	var decErr *DecodingError
	if !errors.As(err, &decErr) {
		t.Fatalf("got %v (%T), want *DecodingError", err, err)
	}
}

func TestBlockBuilder_RowCountMismatch(t *testing.T) {
	bb := NewBlockBuilder()
	idCol, err := bb.Column("id", mustType(t, "UInt32"))
	if err != nil {
		t.Fatal(err)
	}
	nameCol, err := bb.Column("name", mustType(t, "String"))
	if err != nil {
		t.Fatal(err)
	}
	if err := idCol.Extend([]*Value{{Kind: KindUInt32, UInt: 1}, {Kind: KindUInt32, UInt: 2}}); err != nil {
		t.Fatal(err)
	}
	if err := nameCol.Push(&Value{Kind: KindString, Str: "only-one"}); err != nil {
		t.Fatal(err)
	}
	_, err = bb.Build()
	var mismatch *RowCountMismatch
	if !errors.As(err, &mismatch) {
		t.Fatalf("got %v (%T), want *RowCountMismatch", err, err)
	}
}

func TestBlockBuilder_RejectsDuplicateNamesByDefault(t *testing.T) {
	bb := NewBlockBuilder()
	if _, err := bb.Column("id", mustType(t, "UInt32")); err != nil {
		t.Fatal(err)
	}
	if _, err := bb.Column("id", mustType(t, "UInt32")); err == nil {
		t.Fatal("expected duplicate-name rejection")
	}
}

func TestBlockBuilder_AllowDuplicateNames(t *testing.T) {
	bb := NewBlockBuilder()
	bb.AllowDuplicateNames()
	c1, err := bb.Column("id", mustType(t, "UInt32"))
	if err != nil {
		t.Fatal(err)
	}
	c2, err := bb.Column("id", mustType(t, "UInt32"))
	if err != nil {
		t.Fatal(err)
	}
	if c1 != c2 {
		t.Fatal("expected the same builder for a re-declared identical column")
	}
}
