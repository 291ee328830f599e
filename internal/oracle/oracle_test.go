package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syrupdata/dqaudit/internal/audit"
	"github.com/syrupdata/dqaudit/internal/dbt"
	"github.com/syrupdata/dqaudit/internal/warehouse"
	"github.com/syrupdata/dqaudit/pkg/logger"
)

type fakeGenerator struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return "", f.errs[idx]
	}
	if idx < len(f.responses) {
		return f.responses[idx], nil
	}
	return f.responses[len(f.responses)-1], nil
}

func testContext() (*dbt.ModelContext, []warehouse.Column, *warehouse.TableStats, []warehouse.Row) {
	modelCtx := &dbt.ModelContext{
		ModelName:          "customers",
		SQL:                "select * from {{ ref('stg_customers') }}",
		Dependencies:       []string{"stg_customers"},
		ColumnDescriptions: map[string]string{"customer_id": "Primary key."},
	}
	columns := []warehouse.Column{
		{Name: "customer_id", DataType: "integer", Position: 1},
	}
	stats := &warehouse.TableStats{
		RowCount:       100,
		NullCounts:     map[string]int64{"customer_id": 0},
		DistinctCounts: map[string]int64{"customer_id": 100},
	}
	samples := []warehouse.Row{
		{Columns: []string{"customer_id"}, Values: map[string]any{"customer_id": 1}},
	}
	return modelCtx, columns, stats, samples
}

func validTest(name string) map[string]string {
	return map[string]string{
		"test_name":        name,
		"test_category":    "Uniqueness",
		"test_description": "Checks " + name,
		"test_query":       "SELECT customer_id FROM waffles.customers GROUP BY 1 HAVING COUNT(*) > 1 LIMIT 5",
		"severity":         "HIGH",
	}
}

func marshalTests(t *testing.T, tests []map[string]string) string {
	t.Helper()
	data, err := json.Marshal(tests)
	require.NoError(t, err)
	return string(data)
}

func newTestOracle(gen Generator) *Oracle {
	return New(gen, "waffles", 3, time.Millisecond, logger.NewLogger(false))
}

func TestProposeTestsAcceptsValidResponse(t *testing.T) {
	tests := []map[string]string{validTest("t1"), validTest("t2")}
	gen := &fakeGenerator{responses: []string{
		"Here are your tests:\n" + marshalTests(t, tests) + "\nDone.",
	}}

	modelCtx, columns, stats, samples := testContext()
	defs, err := newTestOracle(gen).ProposeTests(context.Background(), modelCtx, columns, stats, samples)
	require.NoError(t, err)

	require.Len(t, defs, 2)
	assert.Equal(t, "t1", defs[0].Name)
	assert.Equal(t, audit.SeverityHigh, defs[0].Severity)
	assert.Equal(t, "Uniqueness", defs[0].Category)
}

func TestProposeTestsDropsNonReadOnlyQuery(t *testing.T) {
	tests := make([]map[string]string, 0, 9)
	for i := 0; i < 9; i++ {
		tests = append(tests, validTest(fmt.Sprintf("t%d", i)))
	}
	tests[4]["test_query"] = "DELETE FROM waffles.customers"

	gen := &fakeGenerator{responses: []string{marshalTests(t, tests)}}

	modelCtx, columns, stats, samples := testContext()
	defs, err := newTestOracle(gen).ProposeTests(context.Background(), modelCtx, columns, stats, samples)
	require.NoError(t, err)

	// The destructive candidate is dropped, the other eight survive.
	require.Len(t, defs, 8)
	for _, def := range defs {
		assert.NotEqual(t, "t4", def.Name)
	}
}

func TestProposeTestsDropsIncompleteCandidates(t *testing.T) {
	complete := validTest("complete")
	missingQuery := validTest("missing_query")
	delete(missingQuery, "test_query")
	badSeverity := validTest("bad_severity")
	badSeverity["severity"] = "URGENT"

	gen := &fakeGenerator{responses: []string{
		marshalTests(t, []map[string]string{complete, missingQuery, badSeverity}),
	}}

	modelCtx, columns, stats, samples := testContext()
	defs, err := newTestOracle(gen).ProposeTests(context.Background(), modelCtx, columns, stats, samples)
	require.NoError(t, err)

	require.Len(t, defs, 1)
	assert.Equal(t, "complete", defs[0].Name)
}

func TestProposeTestsSuffixesDuplicateNames(t *testing.T) {
	gen := &fakeGenerator{responses: []string{
		marshalTests(t, []map[string]string{validTest("dup"), validTest("dup"), validTest("dup")}),
	}}

	modelCtx, columns, stats, samples := testContext()
	defs, err := newTestOracle(gen).ProposeTests(context.Background(), modelCtx, columns, stats, samples)
	require.NoError(t, err)

	require.Len(t, defs, 3)
	assert.Equal(t, "dup", defs[0].Name)
	assert.Equal(t, "dup_2", defs[1].Name)
	assert.Equal(t, "dup_3", defs[2].Name)
}

func TestProposeTestsSuffixedNamesNeverCollide(t *testing.T) {
	// The third candidate already claims the name the second one would be
	// renamed to.
	gen := &fakeGenerator{responses: []string{
		marshalTests(t, []map[string]string{validTest("a"), validTest("a"), validTest("a_2")}),
	}}

	modelCtx, columns, stats, samples := testContext()
	defs, err := newTestOracle(gen).ProposeTests(context.Background(), modelCtx, columns, stats, samples)
	require.NoError(t, err)

	require.Len(t, defs, 3)
	assert.Equal(t, "a", defs[0].Name)
	assert.Equal(t, "a_2", defs[1].Name)
	assert.Equal(t, "a_2_2", defs[2].Name)

	names := map[string]int{}
	for _, def := range defs {
		names[def.Name]++
	}
	for name, count := range names {
		assert.Equal(t, 1, count, "name %q must be unique within one response", name)
	}
}

func TestProposeTestsAllCandidatesRejectedYieldsEmptySet(t *testing.T) {
	destructive := validTest("drop_everything")
	destructive["test_query"] = "DELETE FROM waffles.customers"

	gen := &fakeGenerator{responses: []string{
		marshalTests(t, []map[string]string{destructive}),
	}}

	// A response that parses but yields no accepted candidates is not an
	// error; the model still gets an (empty) report downstream.
	modelCtx, columns, stats, samples := testContext()
	defs, err := newTestOracle(gen).ProposeTests(context.Background(), modelCtx, columns, stats, samples)
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestProposeTestsUnparseableResponse(t *testing.T) {
	gen := &fakeGenerator{responses: []string{"I'm sorry, I cannot help with that."}}

	modelCtx, columns, stats, samples := testContext()
	_, err := newTestOracle(gen).ProposeTests(context.Background(), modelCtx, columns, stats, samples)
	require.Error(t, err)

	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestProposeTestsRetriesTransientFailures(t *testing.T) {
	response := marshalTests(t, []map[string]string{validTest("t1")})
	gen := &fakeGenerator{
		errs:      []error{errors.New("throttled"), errors.New("throttled")},
		responses: []string{"", "", response},
	}

	modelCtx, columns, stats, samples := testContext()
	defs, err := newTestOracle(gen).ProposeTests(context.Background(), modelCtx, columns, stats, samples)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, 3, gen.calls)
}

func TestProposeTestsExhaustsRetries(t *testing.T) {
	gen := &fakeGenerator{
		errs: []error{errors.New("down"), errors.New("down"), errors.New("down")},
	}

	modelCtx, columns, stats, samples := testContext()
	_, err := newTestOracle(gen).ProposeTests(context.Background(), modelCtx, columns, stats, samples)
	require.Error(t, err)

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, 3, genErr.Attempts)
	assert.Equal(t, 3, gen.calls)
}

func TestBuildPromptContents(t *testing.T) {
	modelCtx, columns, stats, samples := testContext()
	modelCtx.ExistingTests = []dbt.ExistingTest{
		{Level: "column", Column: "customer_id", Test: "unique"},
	}

	prompt := buildPrompt("waffles", modelCtx, columns, stats, samples)

	assert.Contains(t, prompt, "Model Name: customers")
	assert.Contains(t, prompt, "customer_id (integer, NOT NULL)")
	assert.Contains(t, prompt, "0 nulls, 100 distinct values")
	assert.Contains(t, prompt, "This model references: stg_customers")
	assert.Contains(t, prompt, "Total rows: 100")
	assert.Contains(t, prompt, "column customer_id: unique")
	assert.Contains(t, prompt, "Start your response with [ and end with ].")
}
