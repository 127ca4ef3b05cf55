package chwire

import "strconv"

// LowCardinality column framing: a 64-bit version marker (1), a 64-bit
// flags word combining the index width with three bit flags, the
// dictionary (inner-type column encoding, explicit length), then the
// index array at the current width. This mirrors ClickHouse's own
// KeysSerializationVersion/IndexType scheme.
const (
	lcKeysVersion = uint64(1)

	lcIndexU8  = uint64(0)
	lcIndexU16 = uint64(1)
	lcIndexU32 = uint64(2)
	lcIndexU64 = uint64(3)

	lcHasAdditionalKeysBit    = uint64(1) << 9
	lcNeedGlobalDictionaryBit = uint64(1) << 8
	lcNeedUpdateDictionaryBit = uint64(1) << 10
)

// lcIndexWidthFor returns the narrowest index type able to address
// dictSize distinct entries (slot 0 included), per the builder
// auto-upgrade rule u8→u16→u32→u64.
func lcIndexWidthFor(dictSize int) uint64 {
	switch {
	case dictSize <= 1<<8:
		return lcIndexU8
	case dictSize <= 1<<16:
		return lcIndexU16
	case dictSize <= 1<<32:
		return lcIndexU32
	default:
		return lcIndexU64
	}
}

func lowCardinalityBaseType(t *TypeDesc) (*TypeDesc, bool) {
	inner := t.Elem
	if inner.Kind == KindNullable {
		return inner.Elem, true
	}
	return inner, false
}

// lcDictKey produces a stable string key for deduplicating dictionary
// entries. LowCardinality's allowed inner types (§3.1 invariant) are all
// scalar enough that a short per-kind prefix plus the value's literal
// form is unambiguous.
func lcDictKey(t *TypeDesc, v *Value) string {
	switch t.Kind {
	case KindString:
		return "s:" + v.Str
	case KindFixedString:
		return "f:" + string(v.Bytes)
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return "i:" + strconv.FormatInt(v.Int, 10)
	case KindUInt8, KindUInt16, KindUInt32, KindUInt64:
		return "u:" + strconv.FormatUint(v.UInt, 10)
	case KindFloat32:
		return "f32:" + strconv.FormatFloat(float64(v.Float32), 'g', -1, 32)
	case KindFloat64:
		return "f64:" + strconv.FormatFloat(v.Float64, 'g', -1, 64)
	case KindDate:
		return "d:" + strconv.FormatUint(uint64(v.DateDays), 10)
	case KindDate32:
		return "d32:" + strconv.FormatInt(int64(v.Date32Days), 10)
	case KindDateTime:
		return "dt:" + strconv.FormatUint(uint64(v.DateTimeSec), 10)
	case KindUUID:
		return "uuid:" + string(v.UUID[:])
	case KindIPv4, KindIPv6:
		return "ip:" + v.IP.String()
	default:
		return "?:" + t.CanonicalString()
	}
}

// encodeLowCardinalityColumn builds a fresh dictionary from the full
// column contents and writes it in one shot. The streaming writer in
// native_writer.go uses this by default; after
// PreserveDictionariesAcrossBlocks it instead maintains incremental
// dictionary state via lowCardinalityBuilder, so width upgrades happen
// progressively rather than being computed once like here.
func encodeLowCardinalityColumn(s *sink, t *TypeDesc, values []*Value) {
	base, nullable := lowCardinalityBaseType(t)

	dict := []*Value{zeroValue(base)} // slot 0: default/null
	keyToIndex := map[string]uint64{}
	indices := make([]uint64, len(values))

	for i, v := range values {
		if nullable && v.Null {
			indices[i] = 0
			continue
		}
		key := lcDictKey(base, v)
		idx, ok := keyToIndex[key]
		if !ok {
			dict = append(dict, v)
			idx = uint64(len(dict) - 1)
			keyToIndex[key] = idx
		}
		indices[i] = idx
	}

	width := lcIndexWidthFor(len(dict))
	flags := width | lcHasAdditionalKeysBit | lcNeedUpdateDictionaryBit

	s.u64(lcKeysVersion)
	s.u64(flags)
	s.u64(uint64(len(dict)))
	encodeColumn(s, base, dict)
	s.u64(uint64(len(values)))
	writeLCIndices(s, width, indices)
}

func decodeLowCardinalityColumn(c *cursor, t *TypeDesc, numRows int) []*Value {
	base, nullable := lowCardinalityBaseType(t)

	version := c.u64()
	if c.err != nil {
		return nil
	}
	if version != lcKeysVersion {
		c.err = newDecodingError("unsupported LowCardinality keys version %d", version)
		return nil
	}
	flags := c.u64()
	if c.err != nil {
		return nil
	}
	width := flags & 0xff

	dictSize := c.u64()
	if c.err != nil {
		return nil
	}
	dict := decodeColumn(c, base, int(dictSize))
	if c.err != nil {
		return nil
	}
	rows := c.u64()
	if c.err != nil {
		return nil
	}
	if int(rows) != numRows {
		c.err = newDecodingError("LowCardinality row count %d does not match block row count %d", rows, numRows)
		return nil
	}
	indices := readLCIndices(c, width, numRows)
	if c.err != nil {
		return nil
	}

	out := make([]*Value, numRows)
	for i, idx := range indices {
		if idx == 0 && nullable {
			out[i] = NewNull()
			continue
		}
		if int(idx) >= len(dict) {
			c.err = newDecodingError("LowCardinality index %d out of range (dict size %d)", idx, len(dict))
			return nil
		}
		out[i] = dict[idx]
	}
	return out
}

func writeLCIndices(s *sink, width uint64, indices []uint64) {
	for _, idx := range indices {
		switch width {
		case lcIndexU8:
			s.u8(uint8(idx))
		case lcIndexU16:
			s.u16(uint16(idx))
		case lcIndexU32:
			s.u32(uint32(idx))
		default:
			s.u64(idx)
		}
	}
}

func readLCIndices(c *cursor, width uint64, n int) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		switch width {
		case lcIndexU8:
			out[i] = uint64(c.u8())
		case lcIndexU16:
			out[i] = uint64(c.u16())
		case lcIndexU32:
			out[i] = uint64(c.u32())
		default:
			out[i] = c.u64()
		}
		if c.err != nil {
			return nil
		}
	}
	return out
}
