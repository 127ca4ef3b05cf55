package chwire

import "testing"

func TestParseType_RoundTrip(t *testing.T) {
	testCases := []struct {
		in   string
		want string // canonical form, empty means same as in
	}{
		{in: "UInt32"},
		{in: "Int8"},
		{in: "String"},
		{in: "FixedString(16)"},
		{in: "Nullable(String)"},
		{in: "Array(UInt8)"},
		{in: "Array(Array(String))"},
		{in: "Tuple(UInt8, String)"},
		{in: "Map(String, UInt32)"},
		{in: "LowCardinality(String)"},
		{in: "LowCardinality(Nullable(String))"},
		{in: "Enum8('a' = 1, 'b' = 2)"},
		{in: "Decimal(9, 2)"},
		{in: "Decimal32(2)", want: "Decimal(9, 2)"},
		{in: "Decimal64(4)", want: "Decimal(18, 4)"},
		{in: "Nested(a UInt8, b String)"},
		{in: "UUID"},
		{in: "IPv4"},
		{in: "IPv6"},
		{in: "DateTime64(3)"},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			parsed, err := ParseType(tc.in)
			if err != nil {
				t.Fatalf("ParseType(%q): %v", tc.in, err)
			}
			want := tc.want
			if want == "" {
				want = tc.in
			}
			if got := parsed.CanonicalString(); got != want {
				t.Fatalf("CanonicalString() = %q, want %q", got, want)
			}
		})
	}
}

// TestParseType_Rejects covers illegal type combinations.
func TestParseType_Rejects(t *testing.T) {
	bad := []string{
		"LowCardinality(DateTime64(3))",
		"LowCardinality(Enum8('a'=1))",
		"LowCardinality(LowCardinality(String))",
		"Map(Nullable(String), Int32)",
		"Map(LowCardinality(Nullable(String)), Int32)",
		"Array(Nested(a Int8))",
		"Nullable(Array(Int32))",
		"Decimal(80, 2)",
	}
	for _, s := range bad {
		t.Run(s, func(t *testing.T) {
			if _, err := ParseType(s); err == nil {
				t.Fatalf("ParseType(%q): expected error, got nil", s)
			}
		})
	}
}

func TestParseSchemaSpec(t *testing.T) {
	schema, err := ParseSchemaSpec("id:UInt32,name:String")
	if err != nil {
		t.Fatal(err)
	}
	if len(schema) != 2 {
		t.Fatalf("len(schema) = %d, want 2", len(schema))
	}
	if schema[0].Name != "id" || schema[0].Type.Kind != KindUInt32 {
		t.Fatalf("schema[0] = %+v", schema[0])
	}
	if schema[1].Name != "name" || schema[1].Type.Kind != KindString {
		t.Fatalf("schema[1] = %+v", schema[1])
	}
}

func TestParseSchemaSpec_Malformed(t *testing.T) {
	for _, spec := range []string{"", "id", "id:", ":UInt32"} {
		if _, err := ParseSchemaSpec(spec); err == nil {
			t.Fatalf("ParseSchemaSpec(%q): expected error", spec)
		}
	}
}
