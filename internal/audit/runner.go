package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/syrupdata/dqaudit/internal/dbt"
	"github.com/syrupdata/dqaudit/internal/warehouse"
	"github.com/syrupdata/dqaudit/pkg/logger"
	"github.com/syrupdata/dqaudit/pkg/progress"
)

const runTimestampLayout = "20060102_150405"

// ModelError wraps any stage failure at per-model granularity so the batch
// can continue past it.
type ModelError struct {
	Model string
	Err   error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model %s: %v", e.Model, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// ModelSource provides model discovery and context extraction.
type ModelSource interface {
	ParseModel(modelName string) (*dbt.ModelContext, error)
	ListMartModels() ([]string, error)
}

// Proposer produces candidate test definitions for one model.
type Proposer interface {
	ProposeTests(
		ctx context.Context,
		modelCtx *dbt.ModelContext,
		columns []warehouse.Column,
		stats *warehouse.TableStats,
		samples []warehouse.Row,
	) ([]TestDefinition, error)
}

// ReportSink persists per-model reports and the batch summary.
type ReportSink interface {
	WriteReport(report *ModelReport, runTimestamp string) (string, error)
	WriteSummary(summaries []Summary, runTimestamp string) (string, error)
}

// Archiver stores completed reports in a secondary store. Optional; archive
// failures are logged, never surfaced as audit failures.
type Archiver interface {
	Store(ctx context.Context, report *ModelReport, runTimestamp string) error
}

// ModelOutcome is the tagged per-model result: a written report or an error
// entry, never both.
type ModelOutcome struct {
	ModelName  string
	Report     *ModelReport
	ReportPath string
	Err        *ModelError
}

// RunResult is the ordered outcome sequence plus batch aggregates.
type RunResult struct {
	RunTimestamp string
	Outcomes     []ModelOutcome
	Summaries    []Summary
	SummaryPath  string
}

// Failures returns the error entries in batch order.
func (r *RunResult) Failures() []*ModelError {
	var failures []*ModelError
	for _, outcome := range r.Outcomes {
		if outcome.Err != nil {
			failures = append(failures, outcome.Err)
		}
	}
	return failures
}

// HardFailed reports whether any model could not be audited at all. Test
// FAIL rows are expected output and do not count.
func (r *RunResult) HardFailed() bool {
	return len(r.Failures()) > 0
}

// Options carries the run-scoped policy knobs.
type Options struct {
	SampleLimit       int
	MaxStatsColumns   int
	MaxDefectExamples int
	ModelTimeout      time.Duration
	ShowProgress      bool
}

// Runner sequences the audit pipeline per model: context extraction, probe,
// proposal, execution, report. Models run one at a time over one shared
// warehouse connection; a failure in any stage is recorded and the batch
// moves on.
type Runner struct {
	source   ModelSource
	probe    warehouse.Probe
	proposer Proposer
	sink     ReportSink
	archiver Archiver
	logger   *logger.Logger
	opts     Options
}

func NewRunner(
	source ModelSource,
	probe warehouse.Probe,
	proposer Proposer,
	sink ReportSink,
	archiver Archiver,
	opts Options,
	log *logger.Logger,
) *Runner {
	if opts.SampleLimit <= 0 {
		opts.SampleLimit = 10
	}
	return &Runner{
		source:   source,
		probe:    probe,
		proposer: proposer,
		sink:     sink,
		archiver: archiver,
		logger:   log,
		opts:     opts,
	}
}

// Run audits the named models, or every discovered mart model when the list
// is empty. It always processes the whole batch; per-model failures become
// error entries in the result.
func (r *Runner) Run(ctx context.Context, modelNames []string) (*RunResult, error) {
	if len(modelNames) == 0 {
		discovered, err := r.source.ListMartModels()
		if err != nil {
			return nil, fmt.Errorf("failed to discover mart models: %w", err)
		}
		modelNames = discovered
	}
	if len(modelNames) == 0 {
		return nil, fmt.Errorf("no models to audit")
	}

	result := &RunResult{
		RunTimestamp: time.Now().UTC().Format(runTimestampLayout),
	}

	r.logger.Infof("Starting data quality audit for %d model(s)", len(modelNames))

	var bar *progress.Bar
	if r.opts.ShowProgress && len(modelNames) > 1 {
		bar = progress.NewBar(int64(len(modelNames)), "auditing models")
	}

	for _, modelName := range modelNames {
		outcome := r.auditModel(ctx, modelName, result.RunTimestamp)
		result.Outcomes = append(result.Outcomes, outcome)

		if outcome.Err != nil {
			r.logger.Errorf("Skipping model %s: %v", modelName, outcome.Err.Err)
		} else {
			result.Summaries = append(result.Summaries, outcome.Report.Summarize())
		}

		if bar != nil {
			bar.Increment()
		}
	}
	if bar != nil {
		bar.Finish()
	}

	// Multi-model runs get a summary file even when some models errored out;
	// it covers whatever survived.
	if len(modelNames) > 1 && len(result.Summaries) > 0 {
		path, err := r.sink.WriteSummary(result.Summaries, result.RunTimestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to write summary report: %w", err)
		}
		result.SummaryPath = path
	}

	r.logger.Infof("Audit complete: %d model(s) audited, %d error(s)",
		len(result.Summaries), len(result.Failures()))

	return result, nil
}

func (r *Runner) auditModel(ctx context.Context, modelName, runTimestamp string) ModelOutcome {
	outcome := ModelOutcome{ModelName: modelName}

	var deadline time.Time
	if r.opts.ModelTimeout > 0 {
		deadline = time.Now().Add(r.opts.ModelTimeout)
	}

	report, path, err := r.runPipeline(ctx, modelName, runTimestamp, deadline)
	if err != nil {
		outcome.Err = &ModelError{Model: modelName, Err: err}
		return outcome
	}

	outcome.Report = report
	outcome.ReportPath = path
	return outcome
}

func (r *Runner) runPipeline(ctx context.Context, modelName, runTimestamp string, deadline time.Time) (*ModelReport, string, error) {
	r.logger.Infof("Starting audit for model: %s", modelName)

	modelCtx, err := r.source.ParseModel(modelName)
	if err != nil {
		return nil, "", err
	}
	if err := checkDeadline(deadline, "context extraction"); err != nil {
		return nil, "", err
	}

	columns, err := r.probe.GetTableMetadata(modelName)
	if err != nil {
		return nil, "", err
	}

	stats, err := r.probe.GetTableStats(modelName, r.opts.MaxStatsColumns)
	if err != nil {
		return nil, "", err
	}

	samples, err := r.probe.GetSampleData(modelName, r.opts.SampleLimit)
	if err != nil {
		return nil, "", err
	}
	if err := checkDeadline(deadline, "warehouse probing"); err != nil {
		return nil, "", err
	}

	definitions, err := r.proposer.ProposeTests(ctx, modelCtx, columns, stats, samples)
	if err != nil {
		return nil, "", err
	}
	if err := checkDeadline(deadline, "test generation"); err != nil {
		return nil, "", err
	}

	executor := NewExecutor(r.probe, r.opts.MaxDefectExamples, r.logger)
	report := executor.ExecuteTests(definitions, modelName)

	path, err := r.sink.WriteReport(report, runTimestamp)
	if err != nil {
		return nil, "", err
	}

	if r.archiver != nil {
		if err := r.archiver.Store(ctx, report, runTimestamp); err != nil {
			r.logger.Warnf("failed to archive report for %s: %v", modelName, err)
		}
	}

	r.logger.Infof("Audit complete for model: %s", modelName)
	return report, path, nil
}

// checkDeadline enforces the per-model time budget between stages. There is
// no mid-query cancellation; an exceeded budget turns the model into an
// error entry at the next stage boundary.
func checkDeadline(deadline time.Time, stage string) error {
	if deadline.IsZero() || time.Now().Before(deadline) {
		return nil
	}
	return fmt.Errorf("model audit exceeded its time budget after %s", stage)
}
