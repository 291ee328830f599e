package warehouse

type Column struct {
	Name       string
	DataType   string
	IsNullable bool
	Position   int
}

type TableStats struct {
	RowCount       int64
	NullCounts     map[string]int64
	DistinctCounts map[string]int64
}

// Row preserves the result set's column order alongside the scanned values
// so defect examples and sample data render deterministically.
type Row struct {
	Columns []string
	Values  map[string]any
}

// Probe is the warehouse capability consumed by the audit pipeline. Tests
// substitute fakes; production wires the lib/pq client below.
type Probe interface {
	GetTableMetadata(table string) ([]Column, error)
	GetTableStats(table string, maxColumns int) (*TableStats, error)
	GetSampleData(table string, limit int) ([]Row, error)
	ExecuteQuery(query string) ([]Row, error)
}
