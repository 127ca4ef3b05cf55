package chwire

import "lukechampine.com/uint128"

// encodeRowValue writes one column's value in RowBinary row encoding.
// LowCardinality(T) collapses to the plain inner T at the row level:
// ClickHouse does not carry a dictionary in row-oriented formats.
// Nested is handled one level up by encodeRow, which transposes before
// calling this per field array.
func encodeRowValue(s *sink, t *TypeDesc, v *Value) {
	if t.Kind == KindNullable {
		if v.Null {
			s.u8(1)
			return
		}
		s.u8(0)
		encodeRowValue(s, t.Elem, v)
		return
	}
	if t.Kind == KindLowCardinality {
		encodeRowValue(s, t.Elem, v)
		return
	}

	switch t.Kind {
	case KindInt8, KindInt16, KindInt32:
		bits := uint(8) << (t.Kind - KindInt8)
		if lim := int64(1) << (bits - 1); v.Int < -lim || v.Int >= lim {
			s.err = newEncodingError("value %d out of range for %s", v.Int, t.Kind)
			return
		}
	case KindUInt8, KindUInt16, KindUInt32:
		bits := uint(8) << (t.Kind - KindUInt8)
		if v.UInt >= uint64(1)<<bits {
			s.err = newEncodingError("value %d out of range for %s", v.UInt, t.Kind)
			return
		}
	}

	switch t.Kind {
	case KindInt8:
		s.u8(uint8(int8(v.Int)))
	case KindInt16:
		s.u16(uint16(int16(v.Int)))
	case KindInt32:
		s.u32(uint32(int32(v.Int)))
	case KindInt64:
		s.u64(uint64(v.Int))
	case KindUInt8:
		s.u8(uint8(v.UInt))
	case KindUInt16:
		s.u16(uint16(v.UInt))
	case KindUInt32:
		s.u32(uint32(v.UInt))
	case KindUInt64:
		s.u64(v.UInt)
	case KindInt128:
		raw := v.Int128
		if v.Int128Neg {
			raw = uint128.New(^raw.Lo, ^raw.Hi).Add64(1)
		}
		writeInt128(s, raw)
	case KindUInt128:
		writeUInt128(s, v.UInt128)
	case KindInt256:
		writeInt256(s, v.Int256)
	case KindUInt256:
		writeUInt256(s, v.UInt256)
	case KindFloat32:
		writeFloat32(s, v.Float32)
	case KindFloat64:
		writeFloat64(s, v.Float64)
	case KindString:
		writeString(s, v.Str)
	case KindFixedString:
		writeFixedString(s, v.Bytes, t.FixedLen)
	case KindDate:
		writeDate(s, v.DateDays)
	case KindDate32:
		writeDate32(s, v.Date32Days)
	case KindDateTime:
		writeDateTime(s, v.DateTimeSec)
	case KindDateTime64:
		writeDateTime64(s, v.DateTime64Val)
	case KindDecimal:
		writeDecimal(s, t, v.Decimal)
	case KindUUID:
		writeUUID(s, v.UUID)
	case KindIPv4:
		writeIPv4(s, v.IP)
	case KindIPv6:
		writeIPv6(s, v.IP)
	case KindEnum8, KindEnum16:
		val, ok := enumValueOf(t, v.EnumName)
		if !ok {
			s.err = newEncodingError("unknown enum variant %q", v.EnumName)
			return
		}
		if t.Kind == KindEnum8 {
			s.u8(uint8(val))
		} else {
			s.u16(uint16(val))
		}
	case KindArray:
		s.uvarint(uint64(len(v.Elems)))
		for _, e := range v.Elems {
			encodeRowValue(s, t.Elem, e)
		}
	case KindTuple:
		for i, e := range v.Elems {
			encodeRowValue(s, t.Elems[i], e)
		}
	case KindMap:
		s.uvarint(uint64(len(v.Map)))
		for _, entry := range v.Map {
			encodeRowValue(s, t.Key, entry.Key)
			encodeRowValue(s, t.Value, entry.Value)
		}
	case KindDynamic:
		encodeDynamicValue(s, v)
	default:
		s.err = newEncodingError("unsupported RowBinary type %s", t.Kind)
	}
}

func decodeRowValue(c *cursor, t *TypeDesc) *Value {
	if t.Kind == KindNullable {
		flag := c.u8()
		if c.err != nil {
			return nil
		}
		if flag == 1 {
			return NewNull()
		}
		return decodeRowValue(c, t.Elem)
	}
	if t.Kind == KindLowCardinality {
		return decodeRowValue(c, t.Elem)
	}

	switch t.Kind {
	case KindInt8:
		return &Value{Kind: t.Kind, Int: int64(int8(c.u8()))}
	case KindInt16:
		return &Value{Kind: t.Kind, Int: int64(int16(c.u16()))}
	case KindInt32:
		return &Value{Kind: t.Kind, Int: int64(int32(c.u32()))}
	case KindInt64:
		return &Value{Kind: t.Kind, Int: int64(c.u64())}
	case KindUInt8:
		return &Value{Kind: t.Kind, UInt: uint64(c.u8())}
	case KindUInt16:
		return &Value{Kind: t.Kind, UInt: uint64(c.u16())}
	case KindUInt32:
		return &Value{Kind: t.Kind, UInt: uint64(c.u32())}
	case KindUInt64:
		return &Value{Kind: t.Kind, UInt: c.u64()}
	case KindInt128:
		raw := readInt128(c)
		neg := raw.Hi>>63 != 0
		if neg {
			raw = uint128.New(^raw.Lo, ^raw.Hi).Add64(1)
		}
		return &Value{Kind: t.Kind, Int128: raw, Int128Neg: neg}
	case KindUInt128:
		return &Value{Kind: t.Kind, UInt128: readUInt128(c)}
	case KindInt256:
		return &Value{Kind: t.Kind, Int256: readInt256(c)}
	case KindUInt256:
		return &Value{Kind: t.Kind, UInt256: readUInt256(c)}
	case KindFloat32:
		return &Value{Kind: t.Kind, Float32: readFloat32(c)}
	case KindFloat64:
		return &Value{Kind: t.Kind, Float64: readFloat64(c)}
	case KindString:
		return &Value{Kind: t.Kind, Str: readString(c)}
	case KindFixedString:
		return &Value{Kind: t.Kind, Bytes: readFixedString(c, t.FixedLen)}
	case KindDate:
		return &Value{Kind: t.Kind, DateDays: readDate(c)}
	case KindDate32:
		return &Value{Kind: t.Kind, Date32Days: readDate32(c)}
	case KindDateTime:
		return &Value{Kind: t.Kind, DateTimeSec: readDateTime(c)}
	case KindDateTime64:
		return &Value{Kind: t.Kind, DateTime64Val: readDateTime64(c)}
	case KindDecimal:
		return &Value{Kind: t.Kind, Decimal: readDecimal(c, t)}
	case KindUUID:
		return &Value{Kind: t.Kind, UUID: readUUID(c)}
	case KindIPv4:
		return &Value{Kind: t.Kind, IP: readIPv4(c)}
	case KindIPv6:
		return &Value{Kind: t.Kind, IP: readIPv6(c)}
	case KindEnum8:
		v := int16(int8(c.u8()))
		name, ok := enumNameOf(t, v)
		if !ok {
			c.err = newDecodingError("unknown Enum8 value %d", v)
			return nil
		}
		return &Value{Kind: t.Kind, EnumName: name}
	case KindEnum16:
		v := int16(c.u16())
		name, ok := enumNameOf(t, v)
		if !ok {
			c.err = newDecodingError("unknown Enum16 value %d", v)
			return nil
		}
		return &Value{Kind: t.Kind, EnumName: name}
	case KindArray:
		n := c.uvarint()
		if c.err != nil {
			return nil
		}
		elems := make([]*Value, n)
		for i := range elems {
			elems[i] = decodeRowValue(c, t.Elem)
			if c.err != nil {
				return nil
			}
		}
		return &Value{Kind: t.Kind, Elems: elems}
	case KindTuple:
		elems := make([]*Value, len(t.Elems))
		for i, et := range t.Elems {
			elems[i] = decodeRowValue(c, et)
			if c.err != nil {
				return nil
			}
		}
		return &Value{Kind: t.Kind, Elems: elems}
	case KindMap:
		n := c.uvarint()
		if c.err != nil {
			return nil
		}
		entries := make([]MapEntry, n)
		for i := range entries {
			entries[i].Key = decodeRowValue(c, t.Key)
			entries[i].Value = decodeRowValue(c, t.Value)
			if c.err != nil {
				return nil
			}
		}
		return &Value{Kind: t.Kind, Map: entries}
	case KindDynamic:
		return decodeDynamicValue(c)
	default:
		c.err = newDecodingError("unsupported RowBinary type %s", t.Kind)
		return nil
	}
}

// encodeRow writes one full row in schema column order, transposing any
// Nested column into n parallel Array(Ti) fields. The transposition
// buffers only the current row's Nested value, never cross-row state.
func encodeRow(s *sink, schema Schema, row []*Value) {
	for i, col := range schema {
		v := row[i]
		if col.Type.Kind == KindNested {
			encodeNestedTransposed(s, col.Type, v)
			continue
		}
		encodeRowValue(s, col.Type, v)
	}
}

func encodeNestedTransposed(s *sink, t *TypeDesc, v *Value) {
	n := len(v.Elems) // rows in the nested repetition
	for fieldIdx, field := range t.Fields {
		s.uvarint(uint64(n))
		for _, tupleVal := range v.Elems {
			encodeRowValue(s, field.Type, tupleVal.Elems[fieldIdx])
		}
	}
}

// decodeRow reads one full row, detransposing Nested columns back into
// their Array(Tuple(...)) row-level shape.
func decodeRow(c *cursor, schema Schema) []*Value {
	row := make([]*Value, len(schema))
	for i, col := range schema {
		if col.Type.Kind == KindNested {
			row[i] = decodeNestedDetransposed(c, col.Type)
			continue
		}
		row[i] = decodeRowValue(c, col.Type)
		if c.err != nil {
			return nil
		}
	}
	return row
}

func decodeNestedDetransposed(c *cursor, t *TypeDesc) *Value {
	fieldArrays := make([][]*Value, len(t.Fields))
	var n uint64
	for fieldIdx, field := range t.Fields {
		cnt := c.uvarint()
		if c.err != nil {
			return nil
		}
		if fieldIdx == 0 {
			n = cnt
		} else if cnt != n {
			c.err = newDecodingError("Nested field %q has %d rows, want %d", field.Name, cnt, n)
			return nil
		}
		elems := make([]*Value, cnt)
		for i := range elems {
			elems[i] = decodeRowValue(c, field.Type)
			if c.err != nil {
				return nil
			}
		}
		fieldArrays[fieldIdx] = elems
	}
	rows := make([]*Value, n)
	for i := range rows {
		tupleElems := make([]*Value, len(t.Fields))
		for f := range t.Fields {
			tupleElems[f] = fieldArrays[f][i]
		}
		rows[i] = &Value{Kind: KindTuple, Elems: tupleElems}
	}
	return &Value{Kind: KindArray, Elems: rows}
}

// --- header framing ---

func writeHeaderNames(s *sink, schema Schema) {
	s.uvarint(uint64(len(schema)))
	for _, col := range schema {
		writeString(s, col.Name)
	}
}

func writeHeaderNamesAndTypes(s *sink, schema Schema) {
	writeHeaderNames(s, schema)
	for _, col := range schema {
		writeString(s, col.Type.CanonicalString())
	}
}

func readHeaderNames(c *cursor) []string {
	n := c.uvarint()
	if c.err != nil {
		return nil
	}
	names := make([]string, n)
	for i := range names {
		names[i] = readString(c)
		if c.err != nil {
			return nil
		}
	}
	return names
}

func readHeaderNamesAndTypes(c *cursor) Schema {
	names := readHeaderNames(c)
	if c.err != nil {
		return nil
	}
	schema := make(Schema, len(names))
	for i, name := range names {
		typeStr := readString(c)
		if c.err != nil {
			return nil
		}
		t, err := ParseType(typeStr)
		if err != nil {
			c.err = err
			return nil
		}
		schema[i] = Column{Name: name, Type: t}
	}
	return schema
}
