package chwire

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies a TypeDesc variant. Kept as a closed, dense enum so
// dispatch is a plain switch rather than a dynamic registry.
type Kind uint8

const (
	KindInt8 Kind = iota
	KindInt16
	KindInt32
	KindInt64
	KindInt128
	KindInt256
	KindUInt8
	KindUInt16
	KindUInt32
	KindUInt64
	KindUInt128
	KindUInt256
	KindFloat32
	KindFloat64
	KindString
	KindFixedString
	KindDate
	KindDate32
	KindDateTime
	KindDateTime64
	KindDecimal
	KindUUID
	KindIPv4
	KindIPv6
	KindEnum8
	KindEnum16
	KindArray
	KindTuple
	KindMap
	KindNested
	KindNullable
	KindLowCardinality
	KindDynamic
)

var kindNames = map[Kind]string{
	KindInt8: "Int8", KindInt16: "Int16", KindInt32: "Int32", KindInt64: "Int64",
	KindInt128: "Int128", KindInt256: "Int256",
	KindUInt8: "UInt8", KindUInt16: "UInt16", KindUInt32: "UInt32", KindUInt64: "UInt64",
	KindUInt128: "UInt128", KindUInt256: "UInt256",
	KindFloat32: "Float32", KindFloat64: "Float64",
	KindString: "String", KindFixedString: "FixedString",
	KindDate: "Date", KindDate32: "Date32", KindDateTime: "DateTime", KindDateTime64: "DateTime64",
	KindDecimal: "Decimal", KindUUID: "UUID", KindIPv4: "IPv4", KindIPv6: "IPv6",
	KindEnum8: "Enum8", KindEnum16: "Enum16",
	KindArray: "Array", KindTuple: "Tuple", KindMap: "Map", KindNested: "Nested",
	KindNullable: "Nullable", KindLowCardinality: "LowCardinality", KindDynamic: "Dynamic",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// IsInteger reports whether k is any signed or unsigned integer width.
func (k Kind) IsInteger() bool {
	switch k {
	case KindInt8, KindInt16, KindInt32, KindInt64, KindInt128, KindInt256,
		KindUInt8, KindUInt16, KindUInt32, KindUInt64, KindUInt128, KindUInt256:
		return true
	}
	return false
}

// IsFloat reports whether k is Float32 or Float64.
func (k Kind) IsFloat() bool { return k == KindFloat32 || k == KindFloat64 }

// EnumVariant is one (name, value) pair of an Enum8/Enum16 type.
type EnumVariant struct {
	Name  string
	Value int16
}

// NestedField is one named child of a Nested(...) type.
type NestedField struct {
	Name string
	Type *TypeDesc
}

// TypeDesc is the recursive description of a ClickHouse type. Composite
// kinds carry Elem/Elems/Fields; leaves carry only the scalar fields
// relevant to their Kind.
type TypeDesc struct {
	Kind Kind

	// FixedString(N)
	FixedLen int

	// DateTime64(scale, tz) / Decimal(P,S)
	Scale     int
	Precision int
	// DeclaredWidth records a width alias (e.g. Decimal64) the caller used;
	// the decimal codec uses it as the wire width. Precision is filled in
	// from the alias at parse time, so CanonicalString emits Decimal(P,S)
	// either way. Zero when the type was declared with explicit P.
	DeclaredWidth int

	// DateTime / DateTime64 timezone, preserved for header round-trip
	// only; empty when the caller did not specify one.
	Timezone string

	// Enum8 / Enum16
	Variants []EnumVariant

	// Array(T) / Nullable(T) / LowCardinality(T)
	Elem *TypeDesc

	// Tuple(T1, ..., Tn)
	Elems []*TypeDesc

	// Map(K, V)
	Key   *TypeDesc
	Value *TypeDesc

	// Nested(f1 T1, ..., fn Tn)
	Fields []NestedField
}

// decimalCanonicalWidth returns the canonical storage width {32,64,128,256}
// for a Decimal(P,S) given its precision.
func decimalCanonicalWidth(precision int) int {
	switch {
	case precision <= 9:
		return 32
	case precision <= 18:
		return 64
	case precision <= 38:
		return 128
	default:
		return 256
	}
}

// CanonicalString renders t using ClickHouse's textual type grammar,
// normalizing width-aliased Decimals to Decimal(P, S).
func (t *TypeDesc) CanonicalString() string {
	var b strings.Builder
	t.writeCanonical(&b)
	return b.String()
}

func (t *TypeDesc) writeCanonical(b *strings.Builder) {
	switch t.Kind {
	case KindFixedString:
		fmt.Fprintf(b, "FixedString(%d)", t.FixedLen)
	case KindDateTime:
		b.WriteString("DateTime")
		if t.Timezone != "" {
			fmt.Fprintf(b, "('%s')", t.Timezone)
		}
	case KindDateTime64:
		if t.Timezone != "" {
			fmt.Fprintf(b, "DateTime64(%d, '%s')", t.Scale, t.Timezone)
		} else {
			fmt.Fprintf(b, "DateTime64(%d)", t.Scale)
		}
	case KindDecimal:
		fmt.Fprintf(b, "Decimal(%d, %d)", t.Precision, t.Scale)
	case KindEnum8, KindEnum16:
		b.WriteString(t.Kind.String())
		b.WriteByte('(')
		for i, v := range t.Variants {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "'%s' = %d", v.Name, v.Value)
		}
		b.WriteByte(')')
	case KindArray:
		b.WriteString("Array(")
		t.Elem.writeCanonical(b)
		b.WriteByte(')')
	case KindNullable:
		b.WriteString("Nullable(")
		t.Elem.writeCanonical(b)
		b.WriteByte(')')
	case KindLowCardinality:
		b.WriteString("LowCardinality(")
		t.Elem.writeCanonical(b)
		b.WriteByte(')')
	case KindTuple:
		b.WriteString("Tuple(")
		for i, e := range t.Elems {
			if i > 0 {
				b.WriteString(", ")
			}
			e.writeCanonical(b)
		}
		b.WriteByte(')')
	case KindMap:
		b.WriteString("Map(")
		t.Key.writeCanonical(b)
		b.WriteString(", ")
		t.Value.writeCanonical(b)
		b.WriteByte(')')
	case KindNested:
		b.WriteString("Nested(")
		for i, f := range t.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "%s ", f.Name)
			f.Type.writeCanonical(b)
		}
		b.WriteByte(')')
	default:
		b.WriteString(t.Kind.String())
	}
}

// --- parser ---

type tokKind uint8

const (
	tokIdent tokKind = iota
	tokNumber
	tokString
	tokLParen
	tokRParen
	tokComma
	tokEquals
	tokEOF
)

type token struct {
	kind tokKind
	text string
	pos  int
}

type lexer struct {
	src string
	pos int
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) && (l.src[l.pos] == ' ' || l.src[l.pos] == '\t' || l.src[l.pos] == '\n') {
		l.pos++
	}
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func (l *lexer) next() (token, error) {
	l.skipSpace()
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: start}, nil
	}
	c := l.src[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{kind: tokLParen, pos: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, pos: start}, nil
	case c == ',':
		l.pos++
		return token{kind: tokComma, pos: start}, nil
	case c == '=':
		l.pos++
		return token{kind: tokEquals, pos: start}, nil
	case c == '\'' || c == '`':
		quote := c
		l.pos++
		var sb strings.Builder
		for l.pos < len(l.src) && l.src[l.pos] != quote {
			if l.src[l.pos] == '\\' && l.pos+1 < len(l.src) {
				l.pos++
			}
			sb.WriteByte(l.src[l.pos])
			l.pos++
		}
		if l.pos >= len(l.src) {
			return token{}, newParseError(start, "unterminated quoted string")
		}
		l.pos++ // closing quote
		return token{kind: tokString, text: sb.String(), pos: start}, nil
	case c == '-' || (c >= '0' && c <= '9'):
		l.pos++
		for l.pos < len(l.src) && (l.src[l.pos] >= '0' && l.src[l.pos] <= '9') {
			l.pos++
		}
		return token{kind: tokNumber, text: l.src[start:l.pos], pos: start}, nil
	case isIdentByte(c):
		for l.pos < len(l.src) && isIdentByte(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: tokIdent, text: l.src[start:l.pos], pos: start}, nil
	default:
		return token{}, newParseError(start, "unexpected character %q", c)
	}
}

// ParseType parses a ClickHouse type expression into a TypeDesc and
// validates the tree against the combination rules in
// typedesc_invariants.go.
func ParseType(s string) (*TypeDesc, error) {
	p := &parser{lex: &lexer{src: s}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, newParseError(p.tok.pos, "unexpected trailing input %q", p.tok.text)
	}
	if err := validateType(t, t.Kind.String()); err != nil {
		return nil, err
	}
	return t, nil
}

type parser struct {
	lex *lexer
	tok token
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) expect(k tokKind) (token, error) {
	if p.tok.kind != k {
		return token{}, newParseError(p.tok.pos, "unexpected token %q", p.tok.text)
	}
	t := p.tok
	if err := p.advance(); err != nil {
		return token{}, err
	}
	return t, nil
}

var simpleKinds = map[string]Kind{
	"Int8": KindInt8, "Int16": KindInt16, "Int32": KindInt32, "Int64": KindInt64,
	"Int128": KindInt128, "Int256": KindInt256,
	"UInt8": KindUInt8, "UInt16": KindUInt16, "UInt32": KindUInt32, "UInt64": KindUInt64,
	"UInt128": KindUInt128, "UInt256": KindUInt256,
	"Float32": KindFloat32, "Float64": KindFloat64,
	"String": KindString, "Date": KindDate, "Date32": KindDate32,
	"UUID": KindUUID, "IPv4": KindIPv4, "IPv6": KindIPv6,
}

// decimalAliasWidths maps DecimalNN(S) alias names to their fixed width.
var decimalAliasWidths = map[string]int{
	"Decimal32": 32, "Decimal64": 64, "Decimal128": 128, "Decimal256": 256,
}

// decimalAliasPrecision is the canonical precision ClickHouse assigns to
// each width alias when no explicit precision is given.
var decimalAliasPrecision = map[int]int{32: 9, 64: 18, 128: 38, 256: 76}

func (p *parser) parseType() (*TypeDesc, error) {
	if p.tok.kind != tokIdent {
		return nil, newParseError(p.tok.pos, "expected type name, got %q", p.tok.text)
	}
	name := p.tok.text
	pos := p.tok.pos
	if err := p.advance(); err != nil {
		return nil, err
	}

	if k, ok := simpleKinds[name]; ok {
		return &TypeDesc{Kind: k}, nil
	}

	switch name {
	case "FixedString":
		if _, err := p.expect(tokLParen); err != nil {
			return nil, err
		}
		n, err := p.parseIntLiteral()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return &TypeDesc{Kind: KindFixedString, FixedLen: n}, nil

	case "DateTime":
		t := &TypeDesc{Kind: KindDateTime}
		if p.tok.kind == tokLParen {
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.tok.kind == tokString {
				t.Timezone = p.tok.text
				if err := p.advance(); err != nil {
					return nil, err
				}
			}
			if _, err := p.expect(tokRParen); err != nil {
				return nil, err
			}
		}
		return t, nil

	case "DateTime64":
		if _, err := p.expect(tokLParen); err != nil {
			return nil, err
		}
		scale, err := p.parseIntLiteral()
		if err != nil {
			return nil, err
		}
		t := &TypeDesc{Kind: KindDateTime64, Scale: scale}
		if p.tok.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			tz, err := p.expect(tokString)
			if err != nil {
				return nil, err
			}
			t.Timezone = tz.text
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		if t.Scale < 0 || t.Scale > 9 {
			return nil, newTypeError("DateTime64", "scale %d out of range [0, 9]", t.Scale)
		}
		return t, nil

	case "Decimal":
		if _, err := p.expect(tokLParen); err != nil {
			return nil, err
		}
		prec, err := p.parseIntLiteral()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokComma); err != nil {
			return nil, err
		}
		scale, err := p.parseIntLiteral()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return &TypeDesc{Kind: KindDecimal, Precision: prec, Scale: scale}, nil

	case "Decimal32", "Decimal64", "Decimal128", "Decimal256":
		width := decimalAliasWidths[name]
		if _, err := p.expect(tokLParen); err != nil {
			return nil, err
		}
		scale, err := p.parseIntLiteral()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return &TypeDesc{
			Kind: KindDecimal, Precision: decimalAliasPrecision[width], Scale: scale,
			DeclaredWidth: width,
		}, nil

	case "Enum8", "Enum16":
		k := KindEnum8
		if name == "Enum16" {
			k = KindEnum16
		}
		if _, err := p.expect(tokLParen); err != nil {
			return nil, err
		}
		var variants []EnumVariant
		for {
			nameTok, err := p.expect(tokString)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokEquals); err != nil {
				return nil, err
			}
			val, err := p.parseIntLiteral()
			if err != nil {
				return nil, err
			}
			variants = append(variants, EnumVariant{Name: nameTok.text, Value: int16(val)})
			if p.tok.kind == tokComma {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return &TypeDesc{Kind: k, Variants: variants}, nil

	case "Array":
		if _, err := p.expect(tokLParen); err != nil {
			return nil, err
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return &TypeDesc{Kind: KindArray, Elem: elem}, nil

	case "Nullable":
		if _, err := p.expect(tokLParen); err != nil {
			return nil, err
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return &TypeDesc{Kind: KindNullable, Elem: elem}, nil

	case "LowCardinality":
		if _, err := p.expect(tokLParen); err != nil {
			return nil, err
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return &TypeDesc{Kind: KindLowCardinality, Elem: elem}, nil

	case "Tuple":
		if _, err := p.expect(tokLParen); err != nil {
			return nil, err
		}
		var elems []*TypeDesc
		for {
			e, err := p.parseType()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
			if p.tok.kind == tokComma {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		if len(elems) == 0 {
			return nil, newTypeError("Tuple", "arity must be >= 1")
		}
		return &TypeDesc{Kind: KindTuple, Elems: elems}, nil

	case "Map":
		if _, err := p.expect(tokLParen); err != nil {
			return nil, err
		}
		key, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokComma); err != nil {
			return nil, err
		}
		val, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return &TypeDesc{Kind: KindMap, Key: key, Value: val}, nil

	case "Nested":
		if _, err := p.expect(tokLParen); err != nil {
			return nil, err
		}
		var fields []NestedField
		for {
			fname, err := p.expect(tokIdent)
			if err != nil {
				return nil, err
			}
			ftype, err := p.parseType()
			if err != nil {
				return nil, err
			}
			fields = append(fields, NestedField{Name: fname.text, Type: ftype})
			if p.tok.kind == tokComma {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return &TypeDesc{Kind: KindNested, Fields: fields}, nil

	case "Dynamic":
		t := &TypeDesc{Kind: KindDynamic}
		if p.tok.kind == tokLParen {
			// accepted but unused: max_types(=N) parameter, not modeled.
			depth := 1
			for depth > 0 {
				if p.tok.kind == tokEOF {
					return nil, newParseError(p.tok.pos, "unterminated Dynamic(...)")
				}
				if p.tok.kind == tokLParen {
					depth++
				} else if p.tok.kind == tokRParen {
					depth--
				}
				if err := p.advance(); err != nil {
					return nil, err
				}
			}
		}
		return t, nil

	default:
		return nil, newParseError(pos, "unknown type %q", name)
	}
}

func (p *parser) parseIntLiteral() (int, error) {
	if p.tok.kind != tokNumber {
		return 0, newParseError(p.tok.pos, "expected integer, got %q", p.tok.text)
	}
	n, err := strconv.Atoi(p.tok.text)
	if err != nil {
		return 0, newParseError(p.tok.pos, "invalid integer %q", p.tok.text)
	}
	if err := p.advance(); err != nil {
		return 0, err
	}
	return n, nil
}
