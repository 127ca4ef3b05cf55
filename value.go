package chwire

import (
	"math/big"
	"net"

	"lukechampine.com/uint128"
)

// MapEntry is one key/value pair of a Map(K, V) Value, in insertion order.
type MapEntry struct {
	Key   *Value
	Value *Value
}

// Value is a tagged-union value model: a single closed struct keyed by
// Kind, dispatched by switch rather than a type hierarchy. Only the
// fields relevant to Kind are populated.
type Value struct {
	Kind Kind

	// Nullable(T): Null marks this Value as the null case; when Null is
	// false the other fields below describe the concrete inner value.
	Null bool

	Int       int64           // Int8/16/32/64
	UInt      uint64          // UInt8/16/32/64
	Int128    uint128.Uint128
	Int128Neg bool
	UInt128   uint128.Uint128
	Int256    *big.Int
	UInt256   *big.Int

	Float32 float32
	Float64 float64

	Str   string // String
	Bytes []byte // FixedString

	DateDays      uint16 // Date
	Date32Days    int32  // Date32
	DateTimeSec   uint32 // DateTime
	DateTime64Val int64  // DateTime64

	Decimal DecimalValue

	UUID UUIDBytes
	IP   net.IP // IPv4 / IPv6

	EnumName string // Enum8 / Enum16, by variant name

	Elems []*Value   // Array(T) elements, Tuple(T1..Tn) elements
	Map   []MapEntry // Map(K, V) entries

	// Nested(f1 T1, ..., fn Tn): row-level shape is Array(Tuple(...)),
	// i.e. Elems holds one *Value per repetition, each a Tuple Value
	// whose own Elems hold one value per field.

	DynType  *TypeDesc // Dynamic: child type
	DynValue *Value    // Dynamic: child value; nil + DynNull=true for DynamicNull
	DynNull  bool
}

// NewNull returns the Nullable(T) null Value.
func NewNull() *Value { return &Value{Null: true} }

// Validate checks v structurally matches t, recursively.
func (v *Value) Validate(t *TypeDesc) error {
	return validateValue(v, t, t.Kind.String())
}

func validateValue(v *Value, t *TypeDesc, path string) error {
	if t.Kind == KindNullable {
		if v.Null {
			return nil
		}
		return validateValue(v, t.Elem, path)
	}
	if t.Kind == KindLowCardinality {
		return validateValue(v, t.Elem, path)
	}
	if v.Null {
		return newValidationError(path, "null value for non-Nullable type %s", t.Kind)
	}

	switch t.Kind {
	case KindInt8, KindInt16, KindInt32, KindInt64,
		KindUInt8, KindUInt16, KindUInt32, KindUInt64:
		if v.Kind != t.Kind {
			return newValidationError(path, "expected %s, got %s", t.Kind, v.Kind)
		}
	case KindInt128, KindUInt128, KindInt256, KindUInt256, KindFloat32, KindFloat64,
		KindString, KindDate, KindDate32, KindDateTime, KindDateTime64,
		KindUUID, KindIPv4, KindIPv6:
		if v.Kind != t.Kind {
			return newValidationError(path, "expected %s, got %s", t.Kind, v.Kind)
		}
	case KindFixedString:
		if v.Kind != KindFixedString {
			return newValidationError(path, "expected FixedString, got %s", v.Kind)
		}
		if len(v.Bytes) > t.FixedLen {
			return newValidationError(path, "FixedString(%d): value too long (%d bytes)", t.FixedLen, len(v.Bytes))
		}
	case KindDecimal:
		if v.Kind != KindDecimal {
			return newValidationError(path, "expected Decimal, got %s", v.Kind)
		}
	case KindEnum8, KindEnum16:
		if v.Kind != t.Kind {
			return newValidationError(path, "expected %s, got %s", t.Kind, v.Kind)
		}
		if !enumHasVariant(t, v.EnumName) {
			return newValidationError(path, "unknown enum variant %q", v.EnumName)
		}
	case KindArray:
		if v.Kind != KindArray {
			return newValidationError(path, "expected Array, got %s", v.Kind)
		}
		for _, e := range v.Elems {
			if err := validateValue(e, t.Elem, path+"[]"); err != nil {
				return err
			}
		}
	case KindTuple:
		if v.Kind != KindTuple {
			return newValidationError(path, "expected Tuple, got %s", v.Kind)
		}
		if len(v.Elems) != len(t.Elems) {
			return newValidationError(path, "Tuple arity mismatch: expected %d, got %d", len(t.Elems), len(v.Elems))
		}
		for i, e := range v.Elems {
			if err := validateValue(e, t.Elems[i], path+"."+t.Elems[i].Kind.String()); err != nil {
				return err
			}
		}
	case KindMap:
		if v.Kind != KindMap {
			return newValidationError(path, "expected Map, got %s", v.Kind)
		}
		for _, e := range v.Map {
			if err := validateValue(e.Key, t.Key, path+".key"); err != nil {
				return err
			}
			if err := validateValue(e.Value, t.Value, path+".value"); err != nil {
				return err
			}
		}
	case KindNested:
		if v.Kind != KindArray {
			return newValidationError(path, "Nested row value must be shaped like Array(Tuple(...))")
		}
		tupleType := &TypeDesc{Kind: KindTuple, Elems: nestedFieldTypes(t)}
		for _, e := range v.Elems {
			if err := validateValue(e, tupleType, path+"[]"); err != nil {
				return err
			}
		}
	case KindDynamic:
		if v.Kind != KindDynamic {
			return newValidationError(path, "expected Dynamic, got %s", v.Kind)
		}
		if v.DynNull {
			return nil
		}
		if v.DynType == nil || v.DynValue == nil {
			return newValidationError(path, "Dynamic value missing child type/value")
		}
		return validateValue(v.DynValue, v.DynType, path+".dyn")
	default:
		return newValidationError(path, "unsupported type kind %s", t.Kind)
	}
	return nil
}

func enumHasVariant(t *TypeDesc, name string) bool {
	for _, v := range t.Variants {
		if v.Name == name {
			return true
		}
	}
	return false
}

func enumValueOf(t *TypeDesc, name string) (int16, bool) {
	for _, v := range t.Variants {
		if v.Name == name {
			return v.Value, true
		}
	}
	return 0, false
}

func enumNameOf(t *TypeDesc, value int16) (string, bool) {
	for _, v := range t.Variants {
		if v.Value == value {
			return v.Name, true
		}
	}
	return "", false
}

func nestedFieldTypes(t *TypeDesc) []*TypeDesc {
	elems := make([]*TypeDesc, len(t.Fields))
	for i, f := range t.Fields {
		elems[i] = f.Type
	}
	return elems
}
