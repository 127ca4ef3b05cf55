package chwire

import (
	"math/big"
	"strconv"

	"github.com/google/uuid"
)

// JSONToValue coerces a generically-decoded JSON value (as produced by
// encoding/json into interface{}) into a Value matching t. Exported for
// callers, such as the chwire CLI, that need the same coercion rules
// NativeWriter.AppendJSON applies without going through a NativeWriter.
func JSONToValue(t *TypeDesc, raw interface{}, column string) (*Value, error) {
	return jsonToValue(t, raw, column)
}

// JSONValue renders v as a plain Go value suitable for encoding/json,
// the inverse of JSONToValue. Nullable/LowCardinality nulls render as
// nil. Integers, floats, strings, FixedString, Enum, UUID, IPv4/IPv6,
// Array, Tuple and Map with String keys render as the same shape
// JSONToValue accepts back, so those survive a decode -> JSONValue ->
// JSONToValue -> encode round trip unchanged. Date/DateTime kinds render
// as their raw day/second counts, 128/256-bit integers as decimal
// strings, Nested and Dynamic as their inner shape; JSONToValue rejects
// those kinds. Decimal renders its unscaled magnitude (see
// decimalString), which JSONToValue scales again, so a Decimal does not
// round-trip unchanged.
func (v *Value) JSONValue() interface{} {
	if v == nil || v.Null || (v.DynNull) {
		return nil
	}
	switch v.Kind {
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return v.Int
	case KindUInt8, KindUInt16, KindUInt32, KindUInt64:
		return v.UInt
	case KindInt128:
		mag := v.Int128.Big()
		if v.Int128Neg {
			mag.Neg(mag)
		}
		return mag.String()
	case KindUInt128:
		return v.UInt128.Big().String()
	case KindInt256:
		if v.Int256 == nil {
			return "0"
		}
		return v.Int256.String()
	case KindUInt256:
		if v.UInt256 == nil {
			return "0"
		}
		return v.UInt256.String()
	case KindFloat32:
		return float64(v.Float32)
	case KindFloat64:
		return v.Float64
	case KindString:
		return v.Str
	case KindFixedString:
		return string(v.Bytes)
	case KindDate:
		return v.DateDays
	case KindDate32:
		return v.Date32Days
	case KindDateTime:
		return v.DateTimeSec
	case KindDateTime64:
		return v.DateTime64Val
	case KindDecimal:
		return decimalString(v.Decimal)
	case KindUUID:
		return uuidString(v.UUID)
	case KindIPv4, KindIPv6:
		if v.IP == nil {
			return ""
		}
		return v.IP.String()
	case KindEnum8, KindEnum16:
		return v.EnumName
	case KindArray, KindNested:
		out := make([]interface{}, len(v.Elems))
		for i, e := range v.Elems {
			out[i] = e.JSONValue()
		}
		return out
	case KindTuple:
		out := make([]interface{}, len(v.Elems))
		for i, e := range v.Elems {
			out[i] = e.JSONValue()
		}
		return out
	case KindMap:
		out := make(map[string]interface{}, len(v.Map))
		for _, e := range v.Map {
			out[jsonMapKey(e.Key)] = e.Value.JSONValue()
		}
		return out
	case KindDynamic:
		if v.DynValue == nil {
			return nil
		}
		return v.DynValue.JSONValue()
	default:
		return nil
	}
}

// jsonMapKey renders a Map key as a JSON object key, since JSON objects
// only have string keys regardless of the Map's declared key type.
func jsonMapKey(v *Value) string {
	switch rendered := v.JSONValue().(type) {
	case string:
		return rendered
	case nil:
		return ""
	default:
		return toStringAny(rendered)
	}
}

func toStringAny(v interface{}) string {
	switch n := v.(type) {
	case int64:
		return strconv.FormatInt(n, 10)
	case uint64:
		return strconv.FormatUint(n, 10)
	case float64:
		return strconv.FormatFloat(n, 'g', -1, 64)
	default:
		return ""
	}
}

func uuidString(u UUIDBytes) string {
	return uuid.UUID(u).String()
}

// decimalString renders a DecimalValue's unscaled magnitude with its
// sign. The scale is carried by the column's TypeDesc, not the Value,
// so no decimal point is inserted.
func decimalString(d DecimalValue) string {
	var mag *big.Int
	switch {
	case d.Mag256 != nil:
		mag = d.Mag256
	case !d.Mag128.IsZero():
		mag = d.Mag128.Big()
	case d.Mag64 != 0:
		mag = new(big.Int).SetUint64(d.Mag64)
	default:
		mag = new(big.Int).SetUint64(uint64(d.Mag32))
	}
	s := mag.String()
	if d.Negative && s != "0" {
		s = "-" + s
	}
	return s
}
