package chwire

import (
	"errors"
	"testing"
)

func TestValue_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		typ     string
		value   *Value
		wantErr bool
	}{
		{"uint32 ok", "UInt32", &Value{Kind: KindUInt32, UInt: 7}, false},
		{"uint32 wrong kind", "UInt32", &Value{Kind: KindInt32, Int: 7}, true},
		{"nullable null ok", "Nullable(String)", NewNull(), false},
		{"nullable inner ok", "Nullable(String)", &Value{Kind: KindString, Str: "hi"}, false},
		{"non-nullable null rejected", "String", NewNull(), true},
		{"fixedstring too long", "FixedString(2)", &Value{Kind: KindFixedString, Bytes: []byte("abc")}, true},
		{"fixedstring ok", "FixedString(4)", &Value{Kind: KindFixedString, Bytes: []byte("ab")}, false},
		{"enum unknown variant", "Enum8('a' = 1)", &Value{Kind: KindEnum8, EnumName: "z"}, true},
		{"enum known variant", "Enum8('a' = 1)", &Value{Kind: KindEnum8, EnumName: "a"}, false},
		{
			"tuple arity mismatch", "Tuple(UInt8, String)",
			&Value{Kind: KindTuple, Elems: []*Value{{Kind: KindUInt8, UInt: 1}}}, true,
		},
		{
			"tuple ok", "Tuple(UInt8, String)",
			&Value{Kind: KindTuple, Elems: []*Value{{Kind: KindUInt8, UInt: 1}, {Kind: KindString, Str: "x"}}}, false,
		},
		{
			"array element invalid", "Array(UInt8)",
			&Value{Kind: KindArray, Elems: []*Value{{Kind: KindString, Str: "nope"}}}, true,
		},
		{
			"nested row shape must be array", "Nested(a UInt8)",
			&Value{Kind: KindTuple}, true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			typ := mustType(t, tc.typ)
			err := tc.value.Validate(typ)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("got %v (%T), want *ValidationError", err, err)
				}
			}
		})
	}
}

func TestJSONValue_RoundTrip(t *testing.T) {
	testCases := []struct {
		typ string
		raw interface{}
	}{
		{"UInt32", float64(42)},
		{"Int32", float64(-7)},
		{"String", "hello"},
		{"Nullable(String)", nil},
		{"Array(String)", []interface{}{"a", "b"}},
		{"Enum8('a' = 1, 'b' = 2)", "b"},
	}
	for _, tc := range testCases {
		t.Run(tc.typ, func(t *testing.T) {
			typ := mustType(t, tc.typ)
			v, err := JSONToValue(typ, tc.raw, "col")
			if err != nil {
				t.Fatal(err)
			}
			if err := v.Validate(typ); err != nil {
				t.Fatalf("coerced value failed validation: %v", err)
			}
			back := v.JSONValue()
			v2, err := JSONToValue(typ, back, "col")
			if err != nil {
				t.Fatal(err)
			}
			if err := v2.Validate(typ); err != nil {
				t.Fatalf("round-tripped value failed validation: %v", err)
			}
		})
	}
}

func TestEnumValueOfAndNameOf(t *testing.T) {
	typ := mustType(t, "Enum8('a' = 1, 'b' = 2)")
	if v, ok := enumValueOf(typ, "b"); !ok || v != 2 {
		t.Fatalf("enumValueOf(b) = %d, %v", v, ok)
	}
	if name, ok := enumNameOf(typ, 1); !ok || name != "a" {
		t.Fatalf("enumNameOf(1) = %q, %v", name, ok)
	}
	if _, ok := enumValueOf(typ, "z"); ok {
		t.Fatal("enumValueOf(z) should not be found")
	}
}
