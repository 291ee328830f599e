package audit

import "time"

type Status string

const (
	StatusPass  Status = "PASS"
	StatusFail  Status = "FAIL"
	StatusError Status = "ERROR"
)

type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// severityRank orders severities for worst-severity aggregation.
// CRITICAL > HIGH > MEDIUM > LOW.
var severityRank = map[Severity]int{
	SeverityCritical: 4,
	SeverityHigh:     3,
	SeverityMedium:   2,
	SeverityLow:      1,
}

// Categories a proposed test may belong to.
const (
	CategoryUniqueness   = "Uniqueness"
	CategoryNullability  = "Nullability"
	CategoryReferential  = "Referential Integrity"
	CategoryDateValidity = "Date Validity"
	CategoryBusiness     = "Business Logic"
	CategoryValueRange   = "Value Range"
	CategoryConsistency  = "Data Consistency"
)

// TestDefinition is one accepted candidate test. Definitions are immutable
// once accepted; the executor only reads them.
type TestDefinition struct {
	Name        string   `json:"test_name"`
	Category    string   `json:"test_category"`
	Description string   `json:"test_description"`
	Query       string   `json:"test_query"`
	Severity    Severity `json:"severity"`
}

// TestResult records one executed test. DefectCount is the executed query's
// row count; ERROR results carry a zero count and the failure in Notes.
type TestResult struct {
	Definition     TestDefinition
	DefectCount    int
	DefectExamples string
	Status         Status
	Notes          string
	ExecutedAt     time.Time
}

// ModelReport is the ordered result sequence for one audited model.
type ModelReport struct {
	ModelName string
	Results   []TestResult
}

// Summary aggregates one model's results.
type Summary struct {
	ModelName        string
	TotalTests       int
	Passed           int
	Failed           int
	Errors           int
	TotalDefects     int
	CriticalFailures int
	HighFailures     int
	WorstSeverity    Severity
}

// Summarize computes the aggregate row for a report. WorstSeverity considers
// FAIL and ERROR results only and stays empty when every test passed.
func (r *ModelReport) Summarize() Summary {
	s := Summary{
		ModelName:  r.ModelName,
		TotalTests: len(r.Results),
	}

	for _, result := range r.Results {
		switch result.Status {
		case StatusPass:
			s.Passed++
			continue
		case StatusFail:
			s.Failed++
			s.TotalDefects += result.DefectCount
			if result.Definition.Severity == SeverityCritical {
				s.CriticalFailures++
			}
			if result.Definition.Severity == SeverityHigh {
				s.HighFailures++
			}
		case StatusError:
			s.Errors++
		}

		if severityRank[result.Definition.Severity] > severityRank[s.WorstSeverity] {
			s.WorstSeverity = result.Definition.Severity
		}
	}

	return s
}
