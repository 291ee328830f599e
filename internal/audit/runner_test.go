package audit_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syrupdata/dqaudit/internal/audit"
	"github.com/syrupdata/dqaudit/internal/dbt"
	"github.com/syrupdata/dqaudit/internal/warehouse"
	"github.com/syrupdata/dqaudit/pkg/logger"
)

type fakeSource struct {
	models    []string
	parseErrs map[string]error
}

func (f *fakeSource) ParseModel(name string) (*dbt.ModelContext, error) {
	if err := f.parseErrs[name]; err != nil {
		return nil, err
	}
	return &dbt.ModelContext{ModelName: name, SQL: "select 1"}, nil
}

func (f *fakeSource) ListMartModels() ([]string, error) {
	return f.models, nil
}

type fakeProposer struct {
	errs  map[string]error
	empty map[string]bool
}

func (f *fakeProposer) ProposeTests(
	ctx context.Context,
	modelCtx *dbt.ModelContext,
	columns []warehouse.Column,
	stats *warehouse.TableStats,
	samples []warehouse.Row,
) ([]audit.TestDefinition, error) {
	if err := f.errs[modelCtx.ModelName]; err != nil {
		return nil, err
	}
	if f.empty[modelCtx.ModelName] {
		return nil, nil
	}
	return []audit.TestDefinition{{
		Name:        "row_count_positive",
		Category:    audit.CategoryBusiness,
		Description: "table is not empty",
		Query:       "SELECT check " + modelCtx.ModelName,
		Severity:    audit.SeverityMedium,
	}}, nil
}

type fakeSink struct {
	reports   []*audit.ModelReport
	summaries []audit.Summary
}

func (f *fakeSink) WriteReport(report *audit.ModelReport, runTimestamp string) (string, error) {
	f.reports = append(f.reports, report)
	return "/tmp/" + report.ModelName + ".csv", nil
}

func (f *fakeSink) WriteSummary(summaries []audit.Summary, runTimestamp string) (string, error) {
	f.summaries = summaries
	return "/tmp/summary.csv", nil
}

type fakeArchiver struct {
	stored []string
	err    error
}

func (f *fakeArchiver) Store(ctx context.Context, report *audit.ModelReport, runTimestamp string) error {
	if f.err != nil {
		return f.err
	}
	f.stored = append(f.stored, report.ModelName)
	return nil
}

func newTestRunner(source *fakeSource, probe *fakeProbe, proposer *fakeProposer, sink *fakeSink, archiver audit.Archiver) *audit.Runner {
	return audit.NewRunner(source, probe, proposer, sink, archiver, audit.Options{}, logger.NewLogger(false))
}

func TestRunIsolatesFailingModel(t *testing.T) {
	source := &fakeSource{
		parseErrs: map[string]error{
			"b": fmt.Errorf("%w: b.sql", dbt.ErrModelNotFound),
		},
	}

	probe := newFakeProbe()
	probe.addTable("a")
	probe.addTable("c")

	sink := &fakeSink{}
	runner := newTestRunner(source, probe, &fakeProposer{}, sink, nil)

	result, err := runner.Run(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)

	require.Len(t, result.Outcomes, 3)
	assert.NotNil(t, result.Outcomes[0].Report)
	assert.Nil(t, result.Outcomes[1].Report)
	assert.NotNil(t, result.Outcomes[2].Report)

	failures := result.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "b", failures[0].Model)
	assert.ErrorIs(t, failures[0], dbt.ErrModelNotFound)

	// Reports were written for the surviving models, in batch order.
	require.Len(t, sink.reports, 2)
	assert.Equal(t, "a", sink.reports[0].ModelName)
	assert.Equal(t, "c", sink.reports[1].ModelName)

	assert.True(t, result.HardFailed())
}

func TestRunMissingTableBecomesModelError(t *testing.T) {
	source := &fakeSource{}
	probe := newFakeProbe()
	probe.addTable("a")
	// "b" has no warehouse table at all.

	sink := &fakeSink{}
	runner := newTestRunner(source, probe, &fakeProposer{}, sink, nil)

	result, err := runner.Run(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	failures := result.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "b", failures[0].Model)
	assert.ErrorIs(t, failures[0], warehouse.ErrTableNotFound)

	require.Len(t, sink.reports, 1)
	assert.Equal(t, "a", sink.reports[0].ModelName)
}

func TestRunProposerFailureSkipsModel(t *testing.T) {
	source := &fakeSource{}
	probe := newFakeProbe()
	probe.addTable("a")

	proposer := &fakeProposer{errs: map[string]error{"a": errors.New("generation exhausted")}}
	sink := &fakeSink{}
	runner := newTestRunner(source, probe, proposer, sink, nil)

	result, err := runner.Run(context.Background(), []string{"a"})
	require.NoError(t, err)

	require.Len(t, result.Failures(), 1)
	assert.Empty(t, sink.reports)
}

func TestRunDiscoversModelsWhenNoneNamed(t *testing.T) {
	source := &fakeSource{models: []string{"a", "c"}}
	probe := newFakeProbe()
	probe.addTable("a")
	probe.addTable("c")

	sink := &fakeSink{}
	runner := newTestRunner(source, probe, &fakeProposer{}, sink, nil)

	result, err := runner.Run(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, result.Outcomes, 2)
	assert.False(t, result.HardFailed())
}

func TestRunWritesSummaryOnlyForMultiModelRuns(t *testing.T) {
	probe := newFakeProbe()
	probe.addTable("a")
	probe.addTable("b")

	single := &fakeSink{}
	runner := newTestRunner(&fakeSource{}, probe, &fakeProposer{}, single, nil)
	result, err := runner.Run(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, single.summaries)
	assert.Empty(t, result.SummaryPath)

	multi := &fakeSink{}
	runner = newTestRunner(&fakeSource{}, probe, &fakeProposer{}, multi, nil)
	result, err = runner.Run(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, multi.summaries, 2)
	assert.Equal(t, "/tmp/summary.csv", result.SummaryPath)
}

func TestRunWritesSummaryWhenSomeModelsFail(t *testing.T) {
	source := &fakeSource{
		parseErrs: map[string]error{
			"b": fmt.Errorf("%w: b.sql", dbt.ErrModelNotFound),
		},
	}

	probe := newFakeProbe()
	probe.addTable("a")
	probe.addTable("c")

	sink := &fakeSink{}
	runner := newTestRunner(source, probe, &fakeProposer{}, sink, nil)

	result, err := runner.Run(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)

	// The batch was multi-model, so the surviving models still get a summary.
	require.Len(t, sink.summaries, 2)
	assert.Equal(t, "/tmp/summary.csv", result.SummaryPath)
}

func TestRunEmptyProposalStillWritesReport(t *testing.T) {
	probe := newFakeProbe()
	probe.addTable("a")

	proposer := &fakeProposer{empty: map[string]bool{"a": true}}
	sink := &fakeSink{}
	runner := newTestRunner(&fakeSource{}, probe, proposer, sink, nil)

	result, err := runner.Run(context.Background(), []string{"a"})
	require.NoError(t, err)

	// No accepted tests is not a model failure: an empty report is written.
	assert.False(t, result.HardFailed())
	require.Len(t, sink.reports, 1)
	assert.Equal(t, "a", sink.reports[0].ModelName)
	assert.Empty(t, sink.reports[0].Results)
}

func TestRunArchivesReportsBestEffort(t *testing.T) {
	probe := newFakeProbe()
	probe.addTable("a")
	probe.addTable("b")

	archiver := &fakeArchiver{}
	sink := &fakeSink{}
	runner := newTestRunner(&fakeSource{}, probe, &fakeProposer{}, sink, archiver)

	result, err := runner.Run(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, archiver.stored)
	assert.False(t, result.HardFailed())

	// An archive failure is a warning, not an audit failure.
	failing := &fakeArchiver{err: errors.New("mongo unreachable")}
	runner = newTestRunner(&fakeSource{}, probe, &fakeProposer{}, &fakeSink{}, failing)
	result, err = runner.Run(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.False(t, result.HardFailed())
}

func TestRunNoModels(t *testing.T) {
	runner := newTestRunner(&fakeSource{}, newFakeProbe(), &fakeProposer{}, &fakeSink{}, nil)

	_, err := runner.Run(context.Background(), nil)
	require.Error(t, err)
}
