package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/syrupdata/dqaudit/internal/warehouse"
	"github.com/syrupdata/dqaudit/pkg/logger"
)

// Executor runs accepted test definitions sequentially against the shared
// warehouse connection. A failing query yields an ERROR result and execution
// moves on; one bad test never aborts a model's audit.
type Executor struct {
	probe       warehouse.Probe
	logger      *logger.Logger
	maxExamples int
}

func NewExecutor(probe warehouse.Probe, maxExamples int, log *logger.Logger) *Executor {
	if maxExamples <= 0 {
		maxExamples = 10
	}
	return &Executor{
		probe:       probe,
		logger:      log,
		maxExamples: maxExamples,
	}
}

// ExecuteTests runs every definition in acceptance order and returns the
// model's report.
func (e *Executor) ExecuteTests(definitions []TestDefinition, modelName string) *ModelReport {
	e.logger.Infof("Executing %d tests for %s", len(definitions), modelName)

	report := &ModelReport{ModelName: modelName}
	for _, def := range definitions {
		report.Results = append(report.Results, e.executeSingle(def))
	}

	summary := report.Summarize()
	e.logger.Infof("Completed %d tests for %s. Passed: %d, Failed: %d, Errors: %d",
		summary.TotalTests, modelName, summary.Passed, summary.Failed, summary.Errors)

	return report
}

func (e *Executor) executeSingle(def TestDefinition) TestResult {
	e.logger.Debugf("Executing test: %s", def.Name)

	result := TestResult{
		Definition: def,
		ExecutedAt: time.Now().UTC(),
	}

	rows, err := e.probe.ExecuteQuery(def.Query)
	if err != nil {
		e.logger.Errorf("Test %s could not be executed: %v", def.Name, err)
		result.Status = StatusError
		result.Notes = fmt.Sprintf("Test execution failed: %v", err)
		return result
	}

	result.DefectCount = len(rows)
	if result.DefectCount == 0 {
		result.Status = StatusPass
	} else {
		result.Status = StatusFail
		result.DefectExamples = formatDefectExamples(rows, e.maxExamples)
	}
	result.Notes = buildNotes(def, result.Status, result.DefectCount)

	return result
}

// formatDefectExamples renders the first rows as "col=val, col=val" pairs
// joined by "; ", preserving result column order.
func formatDefectExamples(rows []warehouse.Row, limit int) string {
	if len(rows) > limit {
		rows = rows[:limit]
	}

	examples := make([]string, 0, len(rows))
	for _, row := range rows {
		pairs := make([]string, 0, len(row.Columns))
		for _, col := range row.Columns {
			pairs = append(pairs, fmt.Sprintf("%s=%v", col, row.Values[col]))
		}
		examples = append(examples, strings.Join(pairs, ", "))
	}

	return strings.Join(examples, "; ")
}

func buildNotes(def TestDefinition, status Status, defectCount int) string {
	if status == StatusPass {
		return fmt.Sprintf("No issues found - %s", strings.ToLower(def.Description))
	}

	switch def.Category {
	case CategoryUniqueness:
		return fmt.Sprintf("Found %d duplicate record(s) - investigate data load process", defectCount)
	case CategoryNullability:
		return fmt.Sprintf("Found %d record(s) with unexpected NULL values", defectCount)
	case CategoryReferential:
		return fmt.Sprintf("Found %d record(s) with referential integrity issues", defectCount)
	case CategoryDateValidity:
		return fmt.Sprintf("Found %d record(s) with invalid dates", defectCount)
	case CategoryBusiness:
		return fmt.Sprintf("Found %d record(s) with business logic violations", defectCount)
	case CategoryValueRange:
		return fmt.Sprintf("Found %d record(s) with values outside expected range", defectCount)
	case CategoryConsistency:
		return fmt.Sprintf("Found %d record(s) with data consistency issues", defectCount)
	default:
		return fmt.Sprintf("Found %d defect(s)", defectCount)
	}
}
