package table

import (
	"reflect"

	"github.com/elliotchance/orderedmap/v3"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	// IDField is the store-assigned identifier dropped from exported tables.
	IDField = "_id"
	// NAString is the literal cell value normalized to NA.
	NAString = "na"
)

// Missing marks an absent or unknown cell value.
type Missing struct{}

func (Missing) String() string { return "NA" }

// NA is the missing-value marker stored in table cells.
var NA = Missing{}

// IsMissing reports whether v is the missing-value marker.
func IsMissing(v any) bool {
	_, ok := v.(Missing)
	return ok
}

// Table is an in-memory snapshot of a collection: ordered columns and rows of cells.
type Table struct {
	columns []string
	rows    [][]any
}

// FromDocuments builds a Table from documents. Columns are the union of document keys in
// first-seen order with idField left out. Keys missing from a document and values equal
// to "na" become NA.
func FromDocuments(docs []bson.D, idField string) *Table {
	index := orderedmap.NewOrderedMap[string, int]()
	for _, doc := range docs {
		for _, elem := range doc {
			if elem.Key == idField {
				continue
			}
			if !index.Has(elem.Key) {
				index.Set(elem.Key, index.Len())
			}
		}
	}

	t := &Table{
		columns: make([]string, 0, index.Len()),
		rows:    make([][]any, 0, len(docs)),
	}
	for name := range index.Keys() {
		t.columns = append(t.columns, name)
	}

	for _, doc := range docs {
		row := make([]any, len(t.columns))
		for i := range row {
			row[i] = NA
		}
		for _, elem := range doc {
			pos, ok := index.Get(elem.Key)
			if !ok || elem.Key == idField {
				continue
			}
			row[pos] = normalize(elem.Value)
		}
		t.rows = append(t.rows, row)
	}
	return t
}

func normalize(v any) any {
	if s, ok := v.(string); ok && s == NAString {
		return NA
	}
	return v
}

// Columns returns a copy of the column names.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Rows returns the table rows. Callers must not modify them.
func (t *Table) Rows() [][]any {
	return t.rows
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Width returns the number of columns.
func (t *Table) Width() int {
	return len(t.columns)
}

// Column returns every cell of the named column.
func (t *Table) Column(name string) ([]any, bool) {
	pos := -1
	for i, c := range t.columns {
		if c == name {
			pos = i
			break
		}
	}
	if pos < 0 {
		return nil, false
	}
	out := make([]any, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[pos]
	}
	return out, true
}

// Row returns row i as a map of column name to value, leaving out NA cells.
func (t *Table) Row(i int) map[string]any {
	out := make(map[string]any, len(t.columns))
	for j, v := range t.rows[i] {
		if IsMissing(v) {
			continue
		}
		out[t.columns[j]] = v
	}
	return out
}

// Equal reports whether both tables have the same columns and cell values.
func (t *Table) Equal(other *Table) bool {
	if t == nil || other == nil {
		return t == other
	}
	if !reflect.DeepEqual(t.columns, other.columns) || len(t.rows) != len(other.rows) {
		return false
	}
	for i := range t.rows {
		if !reflect.DeepEqual(t.rows[i], other.rows[i]) {
			return false
		}
	}
	return true
}
