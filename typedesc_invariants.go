package chwire

// validateType enforces type-combination legality recursively. ParseType
// calls it once on the fully parsed tree.
func validateType(t *TypeDesc, path string) error {
	switch t.Kind {
	case KindDecimal:
		if t.Scale < 1 || t.Precision < t.Scale || t.Precision > 76 {
			return newTypeError(path, "Decimal(%d, %d) requires 1 <= S <= P <= 76", t.Precision, t.Scale)
		}
	case KindArray:
		if t.Elem.Kind == KindNested {
			return newTypeError(path, "Array(Nested(...)) is forbidden")
		}
		if err := validateType(t.Elem, path+".Elem"); err != nil {
			return err
		}
	case KindNullable:
		if t.Elem.Kind == KindArray {
			return newTypeError(path, "Nullable(Array(T)) is forbidden")
		}
		if t.Elem.Kind == KindNullable || t.Elem.Kind == KindLowCardinality {
			return newTypeError(path, "Nullable(%s) is forbidden", t.Elem.Kind)
		}
		if err := validateType(t.Elem, path+".Elem"); err != nil {
			return err
		}
	case KindLowCardinality:
		if err := validateLowCardinalityInner(t.Elem, path); err != nil {
			return err
		}
	case KindMap:
		if isNullableKey(t.Key) {
			return newTypeError(path, "Map key must not be Nullable or LowCardinality(Nullable(...))")
		}
		if err := validateType(t.Key, path+".Key"); err != nil {
			return err
		}
		if err := validateType(t.Value, path+".Value"); err != nil {
			return err
		}
	case KindTuple:
		if len(t.Elems) == 0 {
			return newTypeError(path, "Tuple arity must be >= 1")
		}
		for i, e := range t.Elems {
			if err := validateType(e, path+".Elem"); err != nil {
				_ = i
				return err
			}
		}
	case KindNested:
		for _, f := range t.Fields {
			if err := validateType(f.Type, path+"."+f.Name); err != nil {
				return err
			}
		}
	case KindEnum8:
		if err := validateEnumWidth(t, 8); err != nil {
			return err
		}
	case KindEnum16:
		if err := validateEnumWidth(t, 16); err != nil {
			return err
		}
	}
	return nil
}

func validateEnumWidth(t *TypeDesc, bits int) error {
	lo, hi := int16(-(1 << (bits - 1))), int16((1<<(bits-1))-1)
	for _, v := range t.Variants {
		if v.Value < lo || v.Value > hi {
			return newTypeError(t.Kind.String(), "variant %q value %d out of range for %d-bit enum", v.Name, v.Value, bits)
		}
	}
	return nil
}

// validateLowCardinalityInner enforces the allow-list:
// LowCardinality(T) is legal only for integers, floats, String,
// FixedString, Date, Date32, DateTime, UUID, IPv4, IPv6, or Nullable(U)
// of one of those.
func validateLowCardinalityInner(elem *TypeDesc, path string) error {
	inner := elem
	if elem.Kind == KindNullable {
		inner = elem.Elem
	}
	if inner.Kind == KindLowCardinality {
		return newTypeError(path, "LowCardinality(LowCardinality(...)) is forbidden")
	}
	if lowCardinalityAllowed(inner.Kind) {
		return nil
	}
	return newTypeError(path, "LowCardinality(%s) is forbidden", elem.Kind)
}

func lowCardinalityAllowed(k Kind) bool {
	if k.IsInteger() || k.IsFloat() {
		return true
	}
	switch k {
	case KindString, KindFixedString, KindDate, KindDate32, KindDateTime, KindUUID, KindIPv4, KindIPv6:
		return true
	}
	return false
}

// isNullableKey reports whether k is Nullable(...) or
// LowCardinality(Nullable(...)), both forbidden as Map keys.
func isNullableKey(k *TypeDesc) bool {
	if k.Kind == KindNullable {
		return true
	}
	if k.Kind == KindLowCardinality && k.Elem.Kind == KindNullable {
		return true
	}
	return false
}
