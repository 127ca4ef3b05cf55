package chwire

import (
	"math"
	"math/big"
	"net"

	"lukechampine.com/uint128"
)

// --- 128-bit integers ---
//
// UInt128/Int128 are stored as lukechampine.com/uint128.Uint128, a
// fixed-width 128-bit integer type, rather than hand-rolling [2]uint64
// arithmetic the way the 256-bit path below is forced to.

func readUInt128(c *cursor) uint128.Uint128 {
	lo := c.u64()
	hi := c.u64()
	return uint128.New(lo, hi)
}

func writeUInt128(s *sink, v uint128.Uint128) {
	s.u64(v.Lo)
	s.u64(v.Hi)
}

// readInt128 reads a two's-complement little-endian 128-bit signed value.
// Go has no signed 128-bit primitive, so the magnitude is carried in the
// same Uint128 bit pattern; sign interpretation is left to the caller
// (Value.Int128Neg, decimal.go).
func readInt128(c *cursor) uint128.Uint128 { return readUInt128(c) }
func writeInt128(s *sink, v uint128.Uint128) { writeUInt128(s, v) }

// --- 256-bit integers ---
//
// lukechampine.com/uint128 tops out at 128 bits, so this path uses
// math/big out of necessity; see DESIGN.md.

func zeroBig() *big.Int { return new(big.Int) }

func readUInt256(c *cursor) *big.Int {
	b := c.bytes(32)
	if c.err != nil {
		return new(big.Int)
	}
	return leBytesToBig(b, false)
}

func writeUInt256(s *sink, v *big.Int) {
	s.write(bigToLEBytes(v, 32))
}

func readInt256(c *cursor) *big.Int {
	b := c.bytes(32)
	if c.err != nil {
		return new(big.Int)
	}
	return leBytesToBig(b, true)
}

func writeInt256(s *sink, v *big.Int) {
	s.write(bigToLEBytes(v, 32))
}

// leBytesToBig interprets b as a little-endian two's-complement integer
// of len(b) bytes, signed if signed is true.
func leBytesToBig(b []byte, signed bool) *big.Int {
	be := make([]byte, len(b))
	for i, v := range b {
		be[len(b)-1-i] = v
	}
	v := new(big.Int).SetBytes(be)
	if signed && len(b) > 0 && be[0]&0x80 != 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), uint(len(b)*8))
		v.Sub(v, mod)
	}
	return v
}

// bigToLEBytes renders v as a width-byte little-endian two's-complement
// integer (negative values wrap via two's complement).
func bigToLEBytes(v *big.Int, width int) []byte {
	x := new(big.Int).Set(v)
	if x.Sign() < 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), uint(width*8))
		x.Add(x, mod)
	}
	be := x.FillBytes(make([]byte, width))
	le := make([]byte, width)
	for i, b := range be {
		le[width-1-i] = b
	}
	return le
}

// --- floats ---

func readFloat32(c *cursor) float32 { return math.Float32frombits(c.u32()) }
func writeFloat32(s *sink, v float32) { s.u32(math.Float32bits(v)) }

func readFloat64(c *cursor) float64 { return math.Float64frombits(c.u64()) }
func writeFloat64(s *sink, v float64) { s.u64(math.Float64bits(v)) }

// --- String / FixedString ---

func readString(c *cursor) string {
	n := c.uvarint()
	if c.err != nil {
		return ""
	}
	return string(c.bytes(int(n)))
}

func writeString(s *sink, v string) {
	s.uvarint(uint64(len(v)))
	s.write([]byte(v))
}

func readFixedString(c *cursor, n int) []byte {
	return c.bytes(n)
}

func writeFixedString(s *sink, v []byte, n int) {
	if len(v) > n {
		s.err = newEncodingError("FixedString(%d): value of length %d does not fit", n, len(v))
		return
	}
	padded := make([]byte, n)
	copy(padded, v)
	s.write(padded)
}

// --- Date family ---

const daysEpoch = 0 // days since 1970-01-01, already the wire unit

func readDate(c *cursor) uint16       { return c.u16() }
func writeDate(s *sink, days uint16)  { s.u16(days) }
func readDate32(c *cursor) int32      { return int32(c.u32()) }
func writeDate32(s *sink, days int32) { s.u32(uint32(days)) }

func readDateTime(c *cursor) uint32      { return c.u32() }
func writeDateTime(s *sink, sec uint32)  { s.u32(sec) }
func readDateTime64(c *cursor) int64     { return int64(c.u64()) }
func writeDateTime64(s *sink, v int64)   { s.u64(uint64(v)) }

// --- UUID ---
//
// ClickHouse stores a UUID's 16 bytes as two little-endian uint64 halves
// with the textual high/low halves swapped relative to RFC 4122 order;
// readUUID/writeUUID operate purely on that wire convention. Textual
// parsing and formatting use google/uuid outside the wire codec, in the
// JSON bridge (parseUUIDString in native_writer.go, uuidString in
// value_json.go).

type UUIDBytes [16]byte

func readUUID(c *cursor) UUIDBytes {
	var u UUIDBytes
	lo := c.u64()
	hi := c.u64()
	// ClickHouse wire order swaps the textual high/low 64-bit halves;
	// ClickHouse wire: first 8 bytes = low 64 bits of the *second* RFC half.
	for i := 0; i < 8; i++ {
		u[7-i] = byte(hi >> (8 * uint(i)))
	}
	for i := 0; i < 8; i++ {
		u[15-i] = byte(lo >> (8 * uint(i)))
	}
	return u
}

func writeUUID(s *sink, u UUIDBytes) {
	var hi, lo uint64
	for i := 0; i < 8; i++ {
		hi |= uint64(u[7-i]) << (8 * uint(i))
	}
	for i := 0; i < 8; i++ {
		lo |= uint64(u[15-i]) << (8 * uint(i))
	}
	s.u64(lo)
	s.u64(hi)
}

// --- IPv4 / IPv6 ---

func readIPv4(c *cursor) net.IP {
	v := c.u32()
	return net.IPv4(byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func writeIPv4(s *sink, ip net.IP) {
	v4 := ip.To4()
	if v4 == nil {
		s.err = newEncodingError("IPv4: value %v is not an IPv4 address", ip)
		return
	}
	v := uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3])
	s.u32(v)
}

func readIPv6(c *cursor) net.IP {
	b := c.bytes(16)
	return net.IP(b)
}

func writeIPv6(s *sink, ip net.IP) {
	v6 := ip.To16()
	if v6 == nil {
		s.err = newEncodingError("IPv6: value %v is not a valid address", ip)
		return
	}
	s.write(v6)
}
