package psdata

import "sort"

// Row represents a single record as a mapping from column name to scalar
// value. Values are strings, json.Number, booleans, or nil. A key that is
// missing from the map is an absent value, which is distinct from a key that
// is present with an empty string.
type Row map[string]any

// RecordSet is an ordered sequence of rows. The column set is the union of
// column names across all rows, in order of first appearance.
type RecordSet struct {
	columns []string
	seen    map[string]struct{}
	rows    []Row
}

// NewRecordSet creates a record set with the given columns pre-registered in
// the given order.
func NewRecordSet(columns ...string) *RecordSet {
	recordSet := &RecordSet{
		seen: make(map[string]struct{}),
	}

	for _, column := range columns {
		recordSet.AddColumn(column)
	}

	return recordSet
}

// Len returns the number of rows.
func (rs *RecordSet) Len() int {
	return len(rs.rows)
}

// Empty reports whether the record set has no rows.
func (rs *RecordSet) Empty() bool {
	return len(rs.rows) == 0
}

// Columns returns the column names in first-seen order.
func (rs *RecordSet) Columns() []string {
	columns := make([]string, len(rs.columns))
	copy(columns, rs.columns)

	return columns
}

// HasColumn reports whether the column is registered.
func (rs *RecordSet) HasColumn(name string) bool {
	_, ok := rs.seen[name]

	return ok
}

// AddColumn registers a column if it has not been seen before.
func (rs *RecordSet) AddColumn(name string) {
	if _, ok := rs.seen[name]; ok {
		return
	}

	rs.seen[name] = struct{}{}
	rs.columns = append(rs.columns, name)
}

// Append adds a row to the end of the set. Columns that have not been
// registered yet are added in sorted order so that sets built from maps have
// a deterministic column order.
func (rs *RecordSet) Append(row Row) {
	unseen := make([]string, 0, len(row))

	for column := range row {
		if _, ok := rs.seen[column]; !ok {
			unseen = append(unseen, column)
		}
	}

	sort.Strings(unseen)

	for _, column := range unseen {
		rs.AddColumn(column)
	}

	rs.rows = append(rs.rows, row)
}

// Row returns the row at the given index. The returned map is the live row,
// not a copy.
func (rs *RecordSet) Row(index int) Row {
	return rs.rows[index]
}

// Value returns the value at the given row and column. The second return
// value is false when the value is absent from the row.
func (rs *RecordSet) Value(index int, column string) (any, bool) {
	value, ok := rs.rows[index][column]

	return value, ok
}

// SetValue sets the value at the given row and column, registering the column
// if needed.
func (rs *RecordSet) SetValue(index int, column string, value any) {
	rs.AddColumn(column)
	rs.rows[index][column] = value
}

// Clone returns a deep copy of the record set. Row values are scalars, so a
// per-row map copy is sufficient.
func (rs *RecordSet) Clone() *RecordSet {
	clone := NewRecordSet(rs.columns...)

	for _, row := range rs.rows {
		copied := make(Row, len(row))
		for column, value := range row {
			copied[column] = value
		}

		clone.rows = append(clone.rows, copied)
	}

	return clone
}

// ReorderColumns returns a new record set whose columns are exactly the given
// names in the given order. Columns missing from the source are added with
// the fill value in every row; source columns not named are dropped.
func (rs *RecordSet) ReorderColumns(columns []string, fill any) *RecordSet {
	reordered := NewRecordSet(columns...)

	for _, row := range rs.rows {
		shaped := make(Row, len(columns))

		for _, column := range columns {
			if value, ok := row[column]; ok {
				shaped[column] = value
			} else {
				shaped[column] = fill
			}
		}

		reordered.rows = append(reordered.rows, shaped)
	}

	return reordered
}
