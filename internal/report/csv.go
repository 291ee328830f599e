package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/syrupdata/dqaudit/internal/audit"
	"github.com/syrupdata/dqaudit/pkg/logger"
)

// TimestampLayout renders execution timestamps in report rows.
const TimestampLayout = "2006-01-02 15:04:05"

// FilenameLayout stamps report filenames per run.
const FilenameLayout = "20060102_150405"

var reportHeader = []string{
	"test_name",
	"test_category",
	"test_description",
	"test_query",
	"defect_count",
	"defect_examples",
	"status",
	"severity",
	"notes",
	"execution_timestamp",
}

var summaryHeader = []string{
	"model_name",
	"total_tests",
	"passed",
	"failed",
	"errors",
	"total_defects",
	"worst_severity",
}

// Writer emits per-model report files and the batch summary file into one
// output directory, created on first use.
type Writer struct {
	outputDir string
	logger    *logger.Logger
}

func NewWriter(outputDir string, log *logger.Logger) *Writer {
	return &Writer{
		outputDir: outputDir,
		logger:    log,
	}
}

// WriteReport writes one model's results. Returns the file path.
func (w *Writer) WriteReport(report *audit.ModelReport, runTimestamp string) (string, error) {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	filename := fmt.Sprintf("%s_data_quality_report_%s.csv", report.ModelName, runTimestamp)
	path := filepath.Join(w.outputDir, filename)

	w.logger.Infof("Writing data quality report to: %s", path)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	if err := cw.Write(reportHeader); err != nil {
		return "", fmt.Errorf("failed to write report header: %w", err)
	}

	for _, result := range report.Results {
		row := []string{
			result.Definition.Name,
			result.Definition.Category,
			result.Definition.Description,
			result.Definition.Query,
			strconv.Itoa(result.DefectCount),
			result.DefectExamples,
			string(result.Status),
			string(result.Definition.Severity),
			result.Notes,
			result.ExecutedAt.UTC().Format(TimestampLayout) + " UTC",
		}
		if err := cw.Write(row); err != nil {
			return "", fmt.Errorf("failed to write report row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("failed to flush report: %w", err)
	}

	return path, nil
}

// WriteSummary writes the aggregate row per model. Only emitted for
// multi-model runs; the caller decides when.
func (w *Writer) WriteSummary(summaries []audit.Summary, runTimestamp string) (string, error) {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	filename := fmt.Sprintf("data_quality_summary_%s.csv", runTimestamp)
	path := filepath.Join(w.outputDir, filename)

	w.logger.Infof("Writing summary report to: %s", path)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	if err := cw.Write(summaryHeader); err != nil {
		return "", fmt.Errorf("failed to write summary header: %w", err)
	}

	for _, s := range summaries {
		row := []string{
			s.ModelName,
			strconv.Itoa(s.TotalTests),
			strconv.Itoa(s.Passed),
			strconv.Itoa(s.Failed),
			strconv.Itoa(s.Errors),
			strconv.Itoa(s.TotalDefects),
			string(s.WorstSeverity),
		}
		if err := cw.Write(row); err != nil {
			return "", fmt.Errorf("failed to write summary row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("failed to flush summary: %w", err)
	}

	return path, nil
}

// ReadReport parses a written report back into results. Used to verify
// round-trips and to re-load archived runs.
func ReadReport(path string) (*audit.ModelReport, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open report file: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse report file: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("report file %s is empty", path)
	}

	report := &audit.ModelReport{}
	for _, record := range records[1:] {
		if len(record) != len(reportHeader) {
			return nil, fmt.Errorf("report row has %d fields, expected %d", len(record), len(reportHeader))
		}

		defectCount, err := strconv.Atoi(record[4])
		if err != nil {
			return nil, fmt.Errorf("invalid defect count %q: %w", record[4], err)
		}

		report.Results = append(report.Results, audit.TestResult{
			Definition: audit.TestDefinition{
				Name:        record[0],
				Category:    record[1],
				Description: record[2],
				Query:       record[3],
				Severity:    audit.Severity(record[7]),
			},
			DefectCount:    defectCount,
			DefectExamples: record[5],
			Status:         audit.Status(record[6]),
			Notes:          record[8],
		})
	}

	return report, nil
}
