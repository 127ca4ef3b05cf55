package chwire

import "strings"

// Column is one (name, TypeDesc) pair of a Schema.
type Column struct {
	Name string
	Type *TypeDesc
}

// Schema is an ordered sequence of columns. Column names are opaque;
// duplicates are permitted and preserved in insertion order, the
// library never de-duplicates.
type Schema []Column

// Equivalent reports whether s and other describe compatible RowBinary
// headers: same column count, same names in order, and types equal
// after canonicalization. The RowBinary WithNamesAndTypes reader uses it
// to check the wire header against a caller-supplied schema.
func (s Schema) Equivalent(other Schema) error {
	if len(s) != len(other) {
		return newSchemaMismatch("column count mismatch: %d vs %d", len(s), len(other))
	}
	for i := range s {
		if s[i].Name != other[i].Name {
			return newSchemaMismatch("column %d: name %q vs %q", i, s[i].Name, other[i].Name)
		}
		if s[i].Type.CanonicalString() != other[i].Type.CanonicalString() {
			return newSchemaMismatch("column %q: type %s vs %s", s[i].Name,
				s[i].Type.CanonicalString(), other[i].Type.CanonicalString())
		}
	}
	return nil
}

func (s Schema) columnIndex(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ParseSchemaSpec parses a compact "name:Type,name2:Type2" schema
// description, the form accepted by the chwire CLI's --schema flag.
func ParseSchemaSpec(spec string) (Schema, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, newParseError(0, "empty schema spec")
	}
	parts := strings.Split(spec, ",")
	schema := make(Schema, 0, len(parts))
	for i, part := range parts {
		part = strings.TrimSpace(part)
		idx := strings.Index(part, ":")
		if idx < 0 {
			return nil, newParseError(i, "column %q missing 'name:Type' separator", part)
		}
		name := strings.TrimSpace(part[:idx])
		typeStr := strings.TrimSpace(part[idx+1:])
		if name == "" {
			return nil, newParseError(i, "empty column name in %q", part)
		}
		t, err := ParseType(typeStr)
		if err != nil {
			return nil, err
		}
		schema = append(schema, Column{Name: name, Type: t})
	}
	return schema, nil
}
