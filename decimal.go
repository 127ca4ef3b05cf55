package chwire

import (
	"math/big"

	"lukechampine.com/uint128"
)

// DecimalValue is the raw little-endian magnitude of a Decimal(P,S)
// value plus a sign; precision/scale come from the column's TypeDesc,
// not from DecimalValue itself. Magnitude is stored in whichever field
// matches the canonical width; the others are zero.
type DecimalValue struct {
	Negative bool
	Mag32    uint32
	Mag64    uint64
	Mag128   uint128.Uint128
	Mag256   *big.Int // non-nil only at width 256
}

func readDecimal(c *cursor, t *TypeDesc) DecimalValue {
	width := decimalCanonicalWidth(t.Precision)
	if t.DeclaredWidth != 0 {
		width = t.DeclaredWidth
	}
	switch width {
	case 32:
		v := int32(c.u32())
		neg := v < 0
		if neg {
			v = -v
		}
		return DecimalValue{Negative: neg, Mag32: uint32(v)}
	case 64:
		v := int64(c.u64())
		neg := v < 0
		if neg {
			v = -v
		}
		return DecimalValue{Negative: neg, Mag64: uint64(v)}
	case 128:
		raw := readUInt128(c)
		return decimal128FromTwosComplement(raw)
	default:
		raw := readInt256(c)
		neg := raw.Sign() < 0
		mag := new(big.Int).Abs(raw)
		return DecimalValue{Negative: neg, Mag256: mag}
	}
}

func writeDecimal(s *sink, t *TypeDesc, d DecimalValue) {
	width := decimalCanonicalWidth(t.Precision)
	if t.DeclaredWidth != 0 {
		width = t.DeclaredWidth
	}
	switch width {
	case 32:
		v := int32(d.Mag32)
		if d.Negative {
			v = -v
		}
		s.u32(uint32(v))
	case 64:
		v := int64(d.Mag64)
		if d.Negative {
			v = -v
		}
		s.u64(uint64(v))
	case 128:
		writeUInt128(s, decimal128ToTwosComplement(d))
	default:
		mag := d.Mag256
		if mag == nil {
			mag = new(big.Int)
		}
		v := new(big.Int).Set(mag)
		if d.Negative {
			v.Neg(v)
		}
		writeInt256(s, v)
	}
}

// decimal128FromTwosComplement interprets raw as a two's-complement
// signed 128-bit integer and splits it into sign + magnitude.
func decimal128FromTwosComplement(raw uint128.Uint128) DecimalValue {
	signBit := raw.Hi>>63 != 0
	if !signBit {
		return DecimalValue{Mag128: raw}
	}
	// two's complement negate: ^raw + 1
	notLo := ^raw.Lo
	notHi := ^raw.Hi
	mag := uint128.New(notLo, notHi)
	mag = mag.Add64(1)
	return DecimalValue{Negative: true, Mag128: mag}
}

func decimal128ToTwosComplement(d DecimalValue) uint128.Uint128 {
	if !d.Negative {
		return d.Mag128
	}
	notLo := ^d.Mag128.Lo
	notHi := ^d.Mag128.Hi
	neg := uint128.New(notLo, notHi)
	return neg.Add64(1)
}
