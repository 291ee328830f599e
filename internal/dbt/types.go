package dbt

// ModelContext carries everything the audit pipeline knows about one dbt
// model before touching the warehouse. Built once per audited model and
// never mutated afterwards.
type ModelContext struct {
	ModelName          string
	SQL                string
	Description        string
	Config             map[string]string
	Dependencies       []string
	ColumnDescriptions map[string]string
	ExistingTests      []ExistingTest
}

// ExistingTest is a dbt test reference already declared in the model's
// schema file, kept as display text for the proposal prompt.
type ExistingTest struct {
	Level  string
	Column string
	Test   string
}
