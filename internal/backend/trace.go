package backend

// Trace records the optimizer trajectory as one row per statistic
// evaluation. The first column is always the total statistic; the remaining
// columns are the factors of the unique free parameters in set order.
type Trace struct {
	Columns []string
	Rows    []TraceRow
}

// TraceRow is a single evaluation of the statistic function.
type TraceRow struct {
	// Call is the 1-based evaluation index.
	Call int

	// TotalStat is the statistic value at this evaluation.
	TotalStat float64

	// Factors is the factor vector the statistic was evaluated at.
	Factors []float64
}

// Rename replaces the factor column names, keeping the leading statistic
// column. Used to substitute fully qualified parameter names once the model
// context is known.
func (t *Trace) Rename(names []string) {
	if t == nil || len(names) != len(t.Columns)-1 {
		return
	}
	cols := make([]string, 0, len(names)+1)
	cols = append(cols, t.Columns[0])
	cols = append(cols, names...)
	t.Columns = cols
}

// Len returns the number of recorded rows.
func (t *Trace) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}
