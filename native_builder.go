package chwire

// ColumnBuilder accumulates values for one typed column: push/extend
// validate each value against the declared TypeDesc before it is
// accepted, so a bad value never corrupts builder state.
type ColumnBuilder struct {
	Type   *TypeDesc
	Values []*Value
}

func NewColumnBuilder(t *TypeDesc) *ColumnBuilder {
	return &ColumnBuilder{Type: t}
}

func (b *ColumnBuilder) Push(v *Value) error {
	if err := v.Validate(b.Type); err != nil {
		return err
	}
	b.Values = append(b.Values, v)
	return nil
}

func (b *ColumnBuilder) Extend(vs []*Value) error {
	for _, v := range vs {
		if err := v.Validate(b.Type); err != nil {
			return err
		}
	}
	b.Values = append(b.Values, vs...)
	return nil
}

func (b *ColumnBuilder) Len() int { return len(b.Values) }

// Block is an immutable, built Native block: a schema paired with one
// value slice per column, all of length NumRows.
type Block struct {
	Schema  Schema
	NumRows int
	Columns [][]*Value
}

// BlockBuilder assembles a Block from named ColumnBuilders. By default
// it rejects a second declaration of a column name even though the wire
// format itself tolerates duplicates (Schema does not de-duplicate).
// After AllowDuplicateNames, a second declaration with the same type
// returns the existing builder, so the built Block still holds one
// column per name.
type BlockBuilder struct {
	order    []string
	builders map[string]*ColumnBuilder
	schema   Schema

	allowDuplicates bool
}

func NewBlockBuilder() *BlockBuilder {
	return &BlockBuilder{builders: map[string]*ColumnBuilder{}}
}

func (bb *BlockBuilder) AllowDuplicateNames() { bb.allowDuplicates = true }

// Column declares (or returns) the builder for column name with type t.
// By default a second call for a name already declared is a TypeError.
// After AllowDuplicateNames, re-declaring with the identical type
// returns the existing builder and a different type is a TypeError.
func (bb *BlockBuilder) Column(name string, t *TypeDesc) (*ColumnBuilder, error) {
	if existing, ok := bb.builders[name]; ok {
		if !bb.allowDuplicates {
			return nil, newTypeError(name, "duplicate column name (builder rejects duplicates by default)")
		}
		if existing.Type.CanonicalString() != t.CanonicalString() {
			return nil, newTypeError(name, "redeclared with a different type")
		}
		return existing, nil
	}
	cb := NewColumnBuilder(t)
	bb.builders[name] = cb
	bb.order = append(bb.order, name)
	return cb, nil
}

// Build verifies every column has the same row count and produces an
// immutable Block. RowCountMismatch names the first offending column.
func (bb *BlockBuilder) Build() (*Block, error) {
	var numRows int
	for i, name := range bb.order {
		cb := bb.builders[name]
		if i == 0 {
			numRows = cb.Len()
			continue
		}
		if cb.Len() != numRows {
			return nil, newRowCountMismatch(name, numRows, cb.Len())
		}
	}
	schema := make(Schema, len(bb.order))
	columns := make([][]*Value, len(bb.order))
	for i, name := range bb.order {
		cb := bb.builders[name]
		schema[i] = Column{Name: name, Type: cb.Type}
		columns[i] = cb.Values
	}
	return &Block{Schema: schema, NumRows: numRows, Columns: columns}, nil
}

// lowCardinalityBuilder maintains the incremental per-block dictionary
// state (dictionary map, index buffer, current index width) behind one
// LowCardinality(T) column of the streaming Native writer. Unlike
// encodeLowCardinalityColumn's one-shot pass, the index width is raised
// progressively as rows are appended. Indices are held as uint64
// throughout and narrowed to the current width only when encoded; a
// width upgrade does not rewrite the index buffer.
type lowCardinalityBuilder struct {
	base     *TypeDesc
	nullable bool

	dict       []*Value
	keyToIndex map[string]uint64
	indices    []uint64
	width      uint64
}

func newLowCardinalityBuilder(t *TypeDesc) *lowCardinalityBuilder {
	base, nullable := lowCardinalityBaseType(t)
	return &lowCardinalityBuilder{
		base:       base,
		nullable:   nullable,
		dict:       []*Value{zeroValue(base)},
		keyToIndex: map[string]uint64{},
		width:      lcIndexU8,
	}
}

func (b *lowCardinalityBuilder) push(v *Value) {
	var idx uint64
	if b.nullable && v.Null {
		idx = 0
	} else {
		key := lcDictKey(b.base, v)
		var ok bool
		idx, ok = b.keyToIndex[key]
		if !ok {
			b.dict = append(b.dict, v)
			idx = uint64(len(b.dict) - 1)
			b.keyToIndex[key] = idx
		}
	}
	b.indices = append(b.indices, idx)

	newWidth := lcIndexWidthFor(len(b.dict))
	if newWidth != b.width {
		b.width = newWidth // index buffer is logical (uint64), no physical rewrite needed until encode
	}
}

func (b *lowCardinalityBuilder) len() int { return len(b.indices) }

// encode writes the builder's current state using the same framing as
// encodeLowCardinalityColumn.
func (b *lowCardinalityBuilder) encode(s *sink) {
	flags := b.width | lcHasAdditionalKeysBit | lcNeedUpdateDictionaryBit
	s.u64(lcKeysVersion)
	s.u64(flags)
	s.u64(uint64(len(b.dict)))
	encodeColumn(s, b.base, b.dict)
	s.u64(uint64(len(b.indices)))
	writeLCIndices(s, b.width, b.indices)
}

func (b *lowCardinalityBuilder) reset() {
	b.dict = []*Value{zeroValue(b.base)}
	b.keyToIndex = map[string]uint64{}
	b.indices = nil
	b.width = lcIndexU8
}
