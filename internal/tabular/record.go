package tabular

// Record is a flat column->value mapping that remembers the order in which
// columns were first set. Output headers are derived from that order.
type Record struct {
	columns []string
	values  map[string]string
}

func NewRecord() *Record {
	return &Record{values: make(map[string]string)}
}

// Set stores a value, registering the column on first use.
func (r *Record) Set(column, value string) {
	if _, ok := r.values[column]; !ok {
		r.columns = append(r.columns, column)
	}
	r.values[column] = value
}

// Get returns the value for a column, or "" when unset.
func (r *Record) Get(column string) string {
	return r.values[column]
}

// Has reports whether the column was ever set on this record.
func (r *Record) Has(column string) bool {
	_, ok := r.values[column]
	return ok
}

// Columns returns the record's columns in first-set order.
func (r *Record) Columns() []string {
	return r.columns
}

// Clone returns an independent copy of the record.
func (r *Record) Clone() *Record {
	c := NewRecord()
	for _, col := range r.columns {
		c.Set(col, r.values[col])
	}
	return c
}
