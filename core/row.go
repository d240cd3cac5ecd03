package core

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shrek82/leasedb/dialect"
)

// Column describes one result column as reported by the driver.
type Column struct {
	Label    string           `json:"label"`
	TypeName string           `json:"type_name"`
	Code     dialect.TypeCode `json:"code"`
}

// Kind returns the kind values of this column decode to.
func (c Column) Kind() Kind {
	return KindOf(c.Code)
}

// Row maps column labels to decoded values and remembers the order in which
// labels first appeared. When two columns share a label the row keeps the
// first position and the last value.
type Row struct {
	keys   []string
	values map[string]any
}

// NewRow returns an empty row with room for n columns.
func NewRow(n int) Row {
	return Row{keys: make([]string, 0, n), values: make(map[string]any, n)}
}

// Set stores v under label.
func (r *Row) Set(label string, v any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[label]; !ok {
		r.keys = append(r.keys, label)
	}
	r.values[label] = v
}

// Get returns the value stored under label.
func (r Row) Get(label string) (any, bool) {
	v, ok := r.values[label]
	return v, ok
}

// Columns returns the labels in result order.
func (r Row) Columns() []string {
	return append([]string(nil), r.keys...)
}

// Len returns the number of distinct labels.
func (r Row) Len() int { return len(r.keys) }

// Map returns a copy of the row as a plain map.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.values))
	for k, v := range r.values {
		m[k] = v
	}
	return m
}

// MarshalJSON writes the row as an object whose keys follow result order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Result is the outcome of one statement. Queries fill Columns and Rows;
// executes fill RowsAffected.
type Result struct {
	Columns      []Column
	Rows         []Row
	RowsAffected int64
	Duration     time.Duration
	// Cached is set when a cache middleware answered the statement.
	Cached bool
}
