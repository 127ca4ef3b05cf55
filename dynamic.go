package chwire

// Dynamic values are encoded as a per-value type tag followed by the
// value itself. The tag is the textual type grammar (CanonicalString),
// the same form the rest of the library already produces for Native
// column headers, rather than a separate binary type-encoding. A null
// Dynamic value emits the literal "Nothing" marker in place of a tag.
//
// Decoding parses the tag with ParseType and decodes the value with the
// RowBinary row codec, so any parsable type the row codec handles is
// decoded, composite ones (Array, Tuple, Map) included. A Nested tag is
// not handled by the row codec and yields a DecodingError.

const dynamicNothingMarker = "Nothing"

func encodeDynamicValue(s *sink, v *Value) {
	if v.DynNull {
		writeString(s, dynamicNothingMarker)
		return
	}
	if v.DynType == nil || v.DynValue == nil {
		s.err = newEncodingError("Dynamic value missing child type/value")
		return
	}
	writeString(s, v.DynType.CanonicalString())
	encodeRowValue(s, v.DynType, v.DynValue)
}

func decodeDynamicValue(c *cursor) *Value {
	typeStr := readString(c)
	if c.err != nil {
		return nil
	}
	if typeStr == dynamicNothingMarker {
		return &Value{Kind: KindDynamic, DynNull: true}
	}
	childType, err := ParseType(typeStr)
	if err != nil {
		c.err = err
		return nil
	}
	childVal := decodeRowValue(c, childType)
	if c.err != nil {
		return nil
	}
	return &Value{Kind: KindDynamic, DynType: childType, DynValue: childVal}
}
