package metadata

import "fmt"

// ColumnDef is one (name, numeric_type) pair in the fixed schema.
type ColumnDef struct {
	Name string
	Type ColumnType
}

// Schema is the fixed column list shared by the whole storage (spec.md §3).
type Schema struct {
	columns []ColumnDef
	index   map[string]int
}

// NewSchema builds a Schema from an ordered column list.
func NewSchema(columns []ColumnDef) *Schema {
	s := &Schema{columns: columns, index: make(map[string]int, len(columns))}
	for i, c := range columns {
		s.index[c.Name] = i
	}
	return s
}

// Column returns the column definition and its ordinal, or false if name is
// not part of the schema.
func (s *Schema) Column(name string) (ColumnDef, int, bool) {
	i, ok := s.index[name]
	if !ok {
		return ColumnDef{}, 0, false
	}
	return s.columns[i], i, true
}

// Columns returns the schema's column list in order.
func (s *Schema) Columns() []ColumnDef { return s.columns }

// Table is the dense docno -> row array (spec.md §3 "MetaData row").
type Table struct {
	schema *Schema
	rows   map[uint32][]float64
}

// NewTable creates an empty metadata table over schema.
func NewTable(schema *Schema) *Table {
	return &Table{schema: schema, rows: make(map[uint32][]float64)}
}

// Schema returns the table's column schema.
func (t *Table) Schema() *Schema { return t.schema }

func (t *Table) row(docno uint32, create bool) []float64 {
	r, ok := t.rows[docno]
	if !ok && create {
		r = make([]float64, len(t.schema.columns))
		t.rows[docno] = r
	}
	return r
}

// SetCell sets one (docno, name) cell (spec.md's DocumentBuilder
// setMetaData(name, numeric)).
func (t *Table) SetCell(docno uint32, name string, value float64) error {
	_, ord, ok := t.schema.Column(name)
	if !ok {
		return fmt.Errorf("metadata: unknown column %q", name)
	}
	row := t.row(docno, true)
	row[ord] = value
	return nil
}

// Cell reads one (docno, name) cell; returns false if the document has no
// row or the column does not exist.
func (t *Table) Cell(docno uint32, name string) (float64, bool) {
	_, ord, ok := t.schema.Column(name)
	if !ok {
		return 0, false
	}
	row, ok := t.rows[docno]
	if !ok {
		return 0, false
	}
	return row[ord], true
}

// HasRow reports whether docno has a metadata row at all.
func (t *Table) HasRow(docno uint32) bool {
	_, ok := t.rows[docno]
	return ok
}

// DeleteRow removes a document's row entirely, used on document deletion.
func (t *Table) DeleteRow(docno uint32) { delete(t.rows, docno) }

// EncodeCell packs one cell into its on-disk byte representation for the
// 'M' + column + docno key (spec.md §6).
func (t *Table) EncodeCell(docno uint32, name string) ([]byte, error) {
	col, _, ok := t.schema.Column(name)
	if !ok {
		return nil, fmt.Errorf("metadata: unknown column %q", name)
	}
	v, ok := t.Cell(docno, name)
	if !ok {
		return nil, fmt.Errorf("metadata: no row for docno %d", docno)
	}
	return EncodeValue(col.Type, v), nil
}
