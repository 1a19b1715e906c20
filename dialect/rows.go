package dialect

import (
	"github.com/syssam/strata"
)

// ResultSet is one fully materialized result set.
type ResultSet struct {
	Columns []string
	Records [][]strata.Value
}

// NewStaticRows returns a Rows cursor over pre-materialized result sets.
// Providers that evaluate plans eagerly use it to satisfy the Rows contract.
func NewStaticRows(sets []ResultSet) Rows {
	return &staticRows{sets: sets, record: -1}
}

type staticRows struct {
	sets   []ResultSet
	set    int
	record int
	closed bool
}

func (r *staticRows) Columns() ([]string, error) {
	if r.closed || r.set >= len(r.sets) {
		return nil, strata.NewInvalidOperationError("rows are closed")
	}
	return r.sets[r.set].Columns, nil
}

func (r *staticRows) Next() bool {
	if r.closed || r.set >= len(r.sets) {
		return false
	}
	r.record++
	return r.record < len(r.sets[r.set].Records)
}

func (r *staticRows) NextResultSet() bool {
	if r.closed || r.set+1 >= len(r.sets) {
		return false
	}
	r.set++
	r.record = -1
	return true
}

func (r *staticRows) Scan(dest []strata.Value) error {
	if r.closed || r.set >= len(r.sets) {
		return strata.NewInvalidOperationError("rows are closed")
	}
	set := r.sets[r.set]
	if r.record < 0 || r.record >= len(set.Records) {
		return strata.NewInvalidOperationError("scan without a row; call Next first")
	}
	if len(dest) != len(set.Columns) {
		return strata.NewInvalidOperationError("scan expects %d destinations, got %d", len(set.Columns), len(dest))
	}
	copy(dest, set.Records[r.record])
	return nil
}

func (r *staticRows) Err() error { return nil }

func (r *staticRows) Close() error {
	r.closed = true
	return nil
}
