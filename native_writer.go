package chwire

import (
	"io"
	"math"
	"math/big"
	"net"

	"github.com/google/uuid"
	"lukechampine.com/uint128"
)

// NativeWriter streams rows into column buffers and flushes Native
// blocks automatically once rowBudget rows have accumulated. No
// destructor-driven flush: the caller owns Finish().
type NativeWriter struct {
	w           io.Writer
	schema      Schema
	rowBudget   int
	compression Compression

	// preserveDictionaries controls whether LowCardinality columns keep
	// their dictionary across block flushes. Default false: each block
	// gets an independent dictionary, matching server semantics for
	// HTTP FORMAT Native multi-block streams.
	preserveDictionaries bool

	cols       [][]*Value
	lcBuilders []*lowCardinalityBuilder // non-nil at index i iff schema[i] is LowCardinality and preserveDictionaries

	rows  int
	dirty bool
}

func NewNativeWriter(w io.Writer, schema Schema, rowBudget int, compression Compression) *NativeWriter {
	nw := &NativeWriter{
		w:           w,
		schema:      schema,
		rowBudget:   rowBudget,
		compression: compression,
		cols:        make([][]*Value, len(schema)),
		lcBuilders:  make([]*lowCardinalityBuilder, len(schema)),
	}
	return nw
}

// PreserveDictionariesAcrossBlocks opts a writer into carrying
// LowCardinality dictionary state across block flushes instead of the
// default independent-per-block dictionaries.
func (w *NativeWriter) PreserveDictionariesAcrossBlocks() {
	w.preserveDictionaries = true
	for i, col := range w.schema {
		if col.Type.Kind == KindLowCardinality {
			w.lcBuilders[i] = newLowCardinalityBuilder(col.Type)
		}
	}
}

// AppendRow applies one row keyed by column name. Validation is atomic:
// if any column is missing, unknown, or fails structural validation, no
// column buffer is advanced.
func (w *NativeWriter) AppendRow(values map[string]*Value) error {
	if len(values) > len(w.schema) {
		for name := range values {
			if w.schema.columnIndex(name) < 0 {
				return newUnknownColumn(name)
			}
		}
	}
	ordered := make([]*Value, len(w.schema))
	for i, col := range w.schema {
		v, ok := values[col.Name]
		if !ok {
			return newMissingColumn(col.Name)
		}
		if err := v.Validate(col.Type); err != nil {
			return err
		}
		ordered[i] = v
	}

	for i, col := range w.schema {
		if col.Type.Kind == KindLowCardinality && w.preserveDictionaries {
			w.lcBuilders[i].push(ordered[i])
			continue
		}
		w.cols[i] = append(w.cols[i], ordered[i])
	}
	w.rows++
	w.dirty = true

	if w.rows >= w.rowBudget {
		return w.flush()
	}
	return nil
}

// AppendJSON coerces a decoded JSON object into column values using the
// same coercion rules as jsonToValue and appends it as a row.
func (w *NativeWriter) AppendJSON(obj map[string]interface{}) error {
	values := make(map[string]*Value, len(w.schema))
	for _, col := range w.schema {
		raw, ok := obj[col.Name]
		if !ok {
			return newMissingColumn(col.Name)
		}
		v, err := jsonToValue(col.Type, raw, col.Name)
		if err != nil {
			return err
		}
		values[col.Name] = v
	}
	for k := range obj {
		if w.schema.columnIndex(k) < 0 {
			return newUnknownColumn(k)
		}
	}
	return w.AppendRow(values)
}

type writerEntry struct {
	name    string
	typ     *TypeDesc
	values  []*Value
	lc      bool
	builder *lowCardinalityBuilder
}

func (w *NativeWriter) buildEntries() []writerEntry {
	var entries []writerEntry
	for i, col := range w.schema {
		switch {
		case col.Type.Kind == KindNested:
			for _, field := range col.Type.Fields {
				fieldIdx := nestedFieldIndex(col.Type, field.Name)
				vals := make([]*Value, len(w.cols[i]))
				for r, v := range w.cols[i] {
					elems := make([]*Value, len(v.Elems))
					for j, tuple := range v.Elems {
						elems[j] = tuple.Elems[fieldIdx]
					}
					vals[r] = &Value{Kind: KindArray, Elems: elems}
				}
				entries = append(entries, writerEntry{
					name:   col.Name + "." + field.Name,
					typ:    &TypeDesc{Kind: KindArray, Elem: field.Type},
					values: vals,
				})
			}
		case col.Type.Kind == KindLowCardinality && w.preserveDictionaries:
			entries = append(entries, writerEntry{name: col.Name, typ: col.Type, lc: true, builder: w.lcBuilders[i]})
		default:
			entries = append(entries, writerEntry{name: col.Name, typ: col.Type, values: w.cols[i]})
		}
	}
	return entries
}

// flush encodes and writes the current buffers as one Native block, then
// resets per-block state (column buffers, and LowCardinality builders
// unless PreserveDictionariesAcrossBlocks was called).
func (w *NativeWriter) flush() error {
	entries := w.buildEntries()

	var buf []byte
	s := newSink(&sliceWriter{buf: &buf})
	s.uvarint(uint64(len(entries)))
	s.uvarint(uint64(w.rows))
	for _, e := range entries {
		writeString(s, e.name)
		writeString(s, e.typ.CanonicalString())
		if e.lc {
			e.builder.encode(s)
		} else {
			encodeColumn(s, e.typ, e.values)
		}
		if s.err != nil {
			return s.err
		}
	}

	if err := writeFrame(w.w, buf, w.compression); err != nil {
		return err
	}

	for i := range w.cols {
		w.cols[i] = nil
	}
	if !w.preserveDictionaries {
		for _, b := range w.lcBuilders {
			if b != nil {
				b.reset()
			}
		}
	} else {
		for _, b := range w.lcBuilders {
			if b != nil {
				b.indices = nil // dictionary is kept, this block's rows are not
			}
		}
	}
	w.rows = 0
	w.dirty = false
	return nil
}

// Finish flushes any partial block (fewer than rowBudget rows is
// allowed) and returns. Calling Finish on an empty, clean writer is a
// no-op: an unfinished writer simply never emits a trailing block.
func (w *NativeWriter) Finish() error {
	if !w.dirty {
		return nil
	}
	return w.flush()
}

// sliceWriter is an io.Writer appending into a caller-owned byte slice,
// used to stage one block's payload before framing/compression.
type sliceWriter struct{ buf *[]byte }

func (s *sliceWriter) Write(p []byte) (int, error) {
	*s.buf = append(*s.buf, p...)
	return len(p), nil
}

// jsonToValue coerces a generically-decoded JSON value (as produced by
// encoding/json into interface{}) into a Value matching t. See
// DESIGN.md for why encoding/json is used here rather than a
// third-party JSON library.
func jsonToValue(t *TypeDesc, raw interface{}, column string) (*Value, error) {
	if t.Kind == KindNullable {
		if raw == nil {
			return NewNull(), nil
		}
		return jsonToValue(t.Elem, raw, column)
	}
	if t.Kind == KindLowCardinality {
		if raw == nil {
			if t.Elem.Kind == KindNullable {
				return NewNull(), nil
			}
			return nil, newInvalidValue(column, "null not allowed for non-nullable LowCardinality")
		}
		return jsonToValue(t.Elem, raw, column)
	}
	if raw == nil {
		return nil, newInvalidValue(column, "null not allowed for non-Nullable type %s", t.Kind)
	}

	switch t.Kind {
	case KindInt8, KindInt16, KindInt32, KindInt64:
		switch n := raw.(type) {
		case float64:
			return &Value{Kind: t.Kind, Int: int64(n)}, nil
		case int64:
			return &Value{Kind: t.Kind, Int: n}, nil
		}
		return nil, newInvalidValue(column, "expected number, got %T", raw)
	case KindUInt8, KindUInt16, KindUInt32, KindUInt64:
		switch n := raw.(type) {
		case float64:
			if n >= 0 {
				return &Value{Kind: t.Kind, UInt: uint64(n)}, nil
			}
		case uint64:
			return &Value{Kind: t.Kind, UInt: n}, nil
		}
		return nil, newInvalidValue(column, "expected non-negative number, got %v", raw)
	case KindFloat32:
		n, ok := raw.(float64)
		if !ok {
			return nil, newInvalidValue(column, "expected number, got %T", raw)
		}
		return &Value{Kind: t.Kind, Float32: float32(n)}, nil
	case KindFloat64:
		n, ok := raw.(float64)
		if !ok {
			return nil, newInvalidValue(column, "expected number, got %T", raw)
		}
		return &Value{Kind: t.Kind, Float64: n}, nil
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return nil, newInvalidValue(column, "expected string, got %T", raw)
		}
		return &Value{Kind: t.Kind, Str: s}, nil
	case KindFixedString:
		s, ok := raw.(string)
		if !ok {
			return nil, newInvalidValue(column, "expected string, got %T", raw)
		}
		if len(s) > t.FixedLen {
			return nil, newInvalidValue(column, "FixedString(%d): value too long", t.FixedLen)
		}
		return &Value{Kind: t.Kind, Bytes: []byte(s)}, nil
	case KindEnum8, KindEnum16:
		s, ok := raw.(string)
		if !ok {
			return nil, newInvalidValue(column, "expected string enum variant name, got %T", raw)
		}
		if !enumHasVariant(t, s) {
			return nil, newInvalidValue(column, "unknown enum variant %q", s)
		}
		return &Value{Kind: t.Kind, EnumName: s}, nil
	case KindUUID:
		s, ok := raw.(string)
		if !ok {
			return nil, newInvalidValue(column, "expected UUID string, got %T", raw)
		}
		u, err := parseUUIDString(s)
		if err != nil {
			return nil, newInvalidValue(column, "invalid UUID %q: %v", s, err)
		}
		return &Value{Kind: t.Kind, UUID: u}, nil
	case KindIPv4:
		s, ok := raw.(string)
		if !ok {
			return nil, newInvalidValue(column, "expected IPv4 string, got %T", raw)
		}
		ip := net.ParseIP(s)
		if ip == nil || ip.To4() == nil {
			return nil, newInvalidValue(column, "invalid IPv4 %q", s)
		}
		return &Value{Kind: t.Kind, IP: ip}, nil
	case KindIPv6:
		s, ok := raw.(string)
		if !ok {
			return nil, newInvalidValue(column, "expected IPv6 string, got %T", raw)
		}
		ip := net.ParseIP(s)
		if ip == nil {
			return nil, newInvalidValue(column, "invalid IPv6 %q", s)
		}
		return &Value{Kind: t.Kind, IP: ip}, nil
	case KindDecimal:
		s, ok := raw.(string)
		if !ok {
			return nil, newInvalidValue(column, "expected decimal string, got %T", raw)
		}
		d, err := decimalFromString(s, t)
		if err != nil {
			return nil, newInvalidValue(column, "invalid decimal %q: %v", s, err)
		}
		return &Value{Kind: t.Kind, Decimal: d}, nil
	case KindArray:
		arr, ok := raw.([]interface{})
		if !ok {
			return nil, newInvalidValue(column, "expected array, got %T", raw)
		}
		elems := make([]*Value, len(arr))
		for i, e := range arr {
			v, err := jsonToValue(t.Elem, e, column)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return &Value{Kind: t.Kind, Elems: elems}, nil
	case KindTuple:
		arr, ok := raw.([]interface{})
		if !ok || len(arr) != len(t.Elems) {
			return nil, newInvalidValue(column, "expected %d-element array for Tuple", len(t.Elems))
		}
		elems := make([]*Value, len(arr))
		for i, e := range arr {
			v, err := jsonToValue(t.Elems[i], e, column)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return &Value{Kind: t.Kind, Elems: elems}, nil
	case KindMap:
		obj, ok := raw.(map[string]interface{})
		if !ok {
			return nil, newInvalidValue(column, "expected object for Map, got %T", raw)
		}
		entries := make([]MapEntry, 0, len(obj))
		for k, rv := range obj {
			kv, err := jsonToValue(t.Key, k, column)
			if err != nil {
				return nil, err
			}
			vv, err := jsonToValue(t.Value, rv, column)
			if err != nil {
				return nil, err
			}
			entries = append(entries, MapEntry{Key: kv, Value: vv})
		}
		return &Value{Kind: t.Kind, Map: entries}, nil
	default:
		return nil, newInvalidValue(column, "unsupported JSON coercion target %s", t.Kind)
	}
}

func parseUUIDString(s string) (UUIDBytes, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return UUIDBytes{}, newInvalidValue("uuid", "invalid UUID %q: %v", s, err)
	}
	return UUIDBytes(u), nil
}

// decimalFromString parses a base-10 decimal literal into the magnitude
// representation expected by t's canonical width, scaling by t.Scale.
func decimalFromString(s string, t *TypeDesc) (DecimalValue, error) {
	neg := false
	if len(s) > 0 && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	intPart, fracPart := s, ""
	for i, r := range s {
		if r == '.' {
			intPart, fracPart = s[:i], s[i+1:]
			break
		}
	}
	for len(fracPart) < t.Scale {
		fracPart += "0"
	}
	if len(fracPart) > t.Scale {
		fracPart = fracPart[:t.Scale]
	}
	digits := intPart + fracPart
	return decimalMagnitudeFromDigits(digits, neg, t)
}

func decimalMagnitudeFromDigits(digits string, neg bool, t *TypeDesc) (DecimalValue, error) {
	width := t.DeclaredWidth
	if width == 0 {
		width = decimalCanonicalWidth(t.Precision)
	}
	mag := new(big.Int)
	if _, ok := mag.SetString(digits, 10); !ok {
		return DecimalValue{}, newInvalidValue("decimal", "not a valid integer magnitude: %q", digits)
	}
	d := DecimalValue{Negative: neg}
	switch width {
	case 32:
		if mag.Cmp(big.NewInt(math.MaxUint32)) > 0 {
			return DecimalValue{}, newInvalidValue("decimal", "magnitude overflows Decimal32")
		}
		d.Mag32 = uint32(mag.Uint64())
	case 64:
		d.Mag64 = mag.Uint64()
	case 128:
		d.Mag128 = uint128.FromBig(mag)
	default:
		d.Mag256 = mag
	}
	return d, nil
}
