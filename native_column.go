package chwire

// encodeColumn writes one column's values in Native column encoding: a
// contiguous buffer of exactly len(values) entries, laid out per Kind.
// Nested is handled by the caller (native_block.go), which expands it
// into n parallel Array(Ti) columns before calling here.
func encodeColumn(s *sink, t *TypeDesc, values []*Value) {
	if t.Kind == KindNullable {
		for _, v := range values {
			if v.Null {
				s.u8(1)
			} else {
				s.u8(0)
			}
		}
		inner := make([]*Value, len(values))
		for i, v := range values {
			if v.Null {
				inner[i] = zeroValue(t.Elem)
			} else {
				inner[i] = v
			}
		}
		encodeColumn(s, t.Elem, inner)
		return
	}
	if t.Kind == KindLowCardinality {
		encodeLowCardinalityColumn(s, t, values)
		return
	}

	switch t.Kind {
	case KindArray, KindMap:
		elemType, elems := flattenArrayLike(t, values)
		var cum uint64
		for _, v := range values {
			n := arrayLikeLen(t, v)
			cum += uint64(n)
			s.u64(cum)
		}
		encodeColumn(s, elemType, elems)
	case KindTuple:
		for i, et := range t.Elems {
			col := make([]*Value, len(values))
			for r, v := range values {
				col[r] = v.Elems[i]
			}
			encodeColumn(s, et, col)
		}
	case KindEnum8, KindEnum16:
		col := make([]*Value, len(values))
		for i, v := range values {
			val, ok := enumValueOf(t, v.EnumName)
			if !ok {
				s.err = newEncodingError("unknown enum variant %q", v.EnumName)
				return
			}
			if t.Kind == KindEnum8 {
				col[i] = &Value{Kind: KindInt8, Int: int64(int8(val))}
			} else {
				col[i] = &Value{Kind: KindInt16, Int: int64(val)}
			}
		}
		underlying := &TypeDesc{Kind: KindInt8}
		if t.Kind == KindEnum16 {
			underlying = &TypeDesc{Kind: KindInt16}
		}
		encodeColumn(s, underlying, col)
	default:
		for _, v := range values {
			encodeRowValue(s, t, v)
			if s.err != nil {
				return
			}
		}
	}
}

// decodeColumn reads numRows values of type t from the column encoding.
func decodeColumn(c *cursor, t *TypeDesc, numRows int) []*Value {
	if t.Kind == KindNullable {
		mask := make([]bool, numRows)
		for i := range mask {
			mask[i] = c.u8() == 1
		}
		if c.err != nil {
			return nil
		}
		inner := decodeColumn(c, t.Elem, numRows)
		if c.err != nil {
			return nil
		}
		out := make([]*Value, numRows)
		for i := range out {
			if mask[i] {
				out[i] = NewNull()
			} else {
				out[i] = inner[i]
			}
		}
		return out
	}
	if t.Kind == KindLowCardinality {
		return decodeLowCardinalityColumn(c, t, numRows)
	}

	switch t.Kind {
	case KindArray, KindMap:
		offsets := make([]uint64, numRows)
		var prev uint64
		for i := range offsets {
			offsets[i] = c.u64()
		}
		if c.err != nil {
			return nil
		}
		total := uint64(0)
		if numRows > 0 {
			total = offsets[numRows-1]
		}
		elemType := arrayLikeElemType(t)
		flat := decodeColumn(c, elemType, int(total))
		if c.err != nil {
			return nil
		}
		out := make([]*Value, numRows)
		for i := range out {
			out[i] = buildArrayLikeValue(t, flat[prev:offsets[i]])
			prev = offsets[i]
		}
		return out
	case KindTuple:
		cols := make([][]*Value, len(t.Elems))
		for i, et := range t.Elems {
			cols[i] = decodeColumn(c, et, numRows)
			if c.err != nil {
				return nil
			}
		}
		out := make([]*Value, numRows)
		for r := range out {
			elems := make([]*Value, len(t.Elems))
			for i := range t.Elems {
				elems[i] = cols[i][r]
			}
			out[r] = &Value{Kind: KindTuple, Elems: elems}
		}
		return out
	case KindEnum8, KindEnum16:
		underlying := &TypeDesc{Kind: KindInt8}
		if t.Kind == KindEnum16 {
			underlying = &TypeDesc{Kind: KindInt16}
		}
		col := decodeColumn(c, underlying, numRows)
		if c.err != nil {
			return nil
		}
		out := make([]*Value, numRows)
		for i, v := range col {
			name, ok := enumNameOf(t, int16(v.Int))
			if !ok {
				c.err = newDecodingError("unknown %s value %d", t.Kind, v.Int)
				return nil
			}
			out[i] = &Value{Kind: t.Kind, EnumName: name}
		}
		return out
	default:
		out := make([]*Value, numRows)
		for i := range out {
			out[i] = decodeRowValue(c, t)
			if c.err != nil {
				return nil
			}
		}
		return out
	}
}

// flattenArrayLike returns the element type and the flattened, row-major
// concatenation of all rows' elements for Array(T) or Map(K, V) (Map is
// treated as Array(Tuple(K, V)) on the wire).
func flattenArrayLike(t *TypeDesc, values []*Value) (*TypeDesc, []*Value) {
	elemType := arrayLikeElemType(t)
	var flat []*Value
	for _, v := range values {
		if t.Kind == KindMap {
			for _, entry := range v.Map {
				flat = append(flat, &Value{Kind: KindTuple, Elems: []*Value{entry.Key, entry.Value}})
			}
		} else {
			flat = append(flat, v.Elems...)
		}
	}
	return elemType, flat
}

func arrayLikeElemType(t *TypeDesc) *TypeDesc {
	if t.Kind == KindMap {
		return &TypeDesc{Kind: KindTuple, Elems: []*TypeDesc{t.Key, t.Value}}
	}
	return t.Elem
}

func arrayLikeLen(t *TypeDesc, v *Value) int {
	if t.Kind == KindMap {
		return len(v.Map)
	}
	return len(v.Elems)
}

func buildArrayLikeValue(t *TypeDesc, elems []*Value) *Value {
	if t.Kind == KindMap {
		entries := make([]MapEntry, len(elems))
		for i, e := range elems {
			entries[i] = MapEntry{Key: e.Elems[0], Value: e.Elems[1]}
		}
		return &Value{Kind: KindMap, Map: entries}
	}
	out := make([]*Value, len(elems))
	copy(out, elems)
	return &Value{Kind: KindArray, Elems: out}
}

// zeroValue returns the default-constructed Value for t, used to fill
// indeterminate slots behind a Nullable null mask (the underlying
// column still needs a value for a null row, even though no reader
// looks at it) and the LowCardinality default dictionary slot 0.
func zeroValue(t *TypeDesc) *Value {
	switch t.Kind {
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return &Value{Kind: t.Kind}
	case KindUInt8, KindUInt16, KindUInt32, KindUInt64:
		return &Value{Kind: t.Kind}
	case KindInt128:
		return &Value{Kind: t.Kind}
	case KindUInt128:
		return &Value{Kind: t.Kind}
	case KindInt256, KindUInt256:
		return &Value{Kind: t.Kind, Int256: zeroBig(), UInt256: zeroBig()}
	case KindFloat32, KindFloat64:
		return &Value{Kind: t.Kind}
	case KindString:
		return &Value{Kind: t.Kind}
	case KindFixedString:
		return &Value{Kind: t.Kind, Bytes: make([]byte, t.FixedLen)}
	case KindDate, KindDate32, KindDateTime, KindDateTime64:
		return &Value{Kind: t.Kind}
	case KindDecimal:
		return &Value{Kind: t.Kind}
	case KindUUID:
		return &Value{Kind: t.Kind}
	case KindIPv4:
		return &Value{Kind: t.Kind, IP: make([]byte, 4)}
	case KindIPv6:
		return &Value{Kind: t.Kind, IP: make([]byte, 16)}
	default:
		return &Value{Kind: t.Kind}
	}
}
