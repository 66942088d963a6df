package recording

// ResultItem is one named analysis result in execution order.
type ResultItem struct {
	Key   string
	Value any
}

// ResultSet accumulates named analysis results in insertion order.
type ResultSet struct {
	order  []string
	values map[string]any
}

// NewResultSet creates an empty result set.
func NewResultSet() *ResultSet {
	return &ResultSet{values: make(map[string]any)}
}

// Set stores value under key. An existing key keeps its position.
func (rs *ResultSet) Set(key string, value any) {
	_, exists := rs.values[key]
	if !exists {
		rs.order = append(rs.order, key)
	}

	rs.values[key] = value
}

// Get returns the value for key and whether it is present.
func (rs *ResultSet) Get(key string) (any, bool) {
	v, ok := rs.values[key]

	return v, ok
}

// Keys returns the result keys in insertion order.
func (rs *ResultSet) Keys() []string {
	out := make([]string, len(rs.order))
	copy(out, rs.order)

	return out
}

// Len returns the number of results.
func (rs *ResultSet) Len() int {
	return len(rs.order)
}

// Clone returns a copy sharing no ordering state with the original.
// Values are copied by reference.
func (rs *ResultSet) Clone() *ResultSet {
	out := NewResultSet()

	for _, k := range rs.order {
		out.Set(k, rs.values[k])
	}

	return out
}

// Reset clears all results.
func (rs *ResultSet) Reset() {
	rs.order = nil
	rs.values = make(map[string]any)
}

// Snapshot returns the results as an ordered, serializable item list.
func (rs *ResultSet) Snapshot() []ResultItem {
	out := make([]ResultItem, 0, len(rs.order))

	for _, k := range rs.order {
		out = append(out, ResultItem{Key: k, Value: rs.values[k]})
	}

	return out
}

// ResultSetFromSnapshot rebuilds a result set from an ordered item list.
func ResultSetFromSnapshot(items []ResultItem) *ResultSet {
	rs := NewResultSet()

	for _, item := range items {
		rs.Set(item.Key, item.Value)
	}

	return rs
}
