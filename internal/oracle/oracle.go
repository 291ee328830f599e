package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/syrupdata/dqaudit/internal/audit"
	"github.com/syrupdata/dqaudit/internal/dbt"
	"github.com/syrupdata/dqaudit/internal/warehouse"
	"github.com/syrupdata/dqaudit/pkg/logger"
)

// Generator is the text generation capability the oracle runs on. Production
// wires the Bedrock client; tests substitute canned responses.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Oracle turns a model's context into an accepted set of test definitions.
// Generated text is treated as untrusted data: candidates are parsed into a
// closed field set and pass a read-only gate before they are accepted.
type Oracle struct {
	generator Generator
	logger    *logger.Logger
	schema    string
	attempts  int
	baseDelay time.Duration
}

func New(generator Generator, schema string, attempts int, baseDelay time.Duration, log *logger.Logger) *Oracle {
	if attempts < 1 {
		attempts = 1
	}
	return &Oracle{
		generator: generator,
		logger:    log,
		schema:    schema,
		attempts:  attempts,
		baseDelay: baseDelay,
	}
}

// ProposeTests invokes the generation backend once per model, with bounded
// retry and exponential backoff on transport failures, and returns the
// accepted candidate set in response order.
func (o *Oracle) ProposeTests(
	ctx context.Context,
	modelCtx *dbt.ModelContext,
	columns []warehouse.Column,
	stats *warehouse.TableStats,
	samples []warehouse.Row,
) ([]audit.TestDefinition, error) {
	prompt := buildPrompt(o.schema, modelCtx, columns, stats, samples)

	o.logger.Infof("Generating tests for model: %s", modelCtx.ModelName)

	response, err := o.generateWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}

	definitions, err := o.parseResponse(response)
	if err != nil {
		return nil, err
	}

	o.logger.Infof("Accepted %d tests for %s", len(definitions), modelCtx.ModelName)
	return definitions, nil
}

func (o *Oracle) generateWithRetry(ctx context.Context, prompt string) (string, error) {
	delay := o.baseDelay
	var lastErr error

	for attempt := 1; attempt <= o.attempts; attempt++ {
		response, err := o.generator.Generate(ctx, prompt)
		if err == nil {
			return response, nil
		}

		lastErr = err
		o.logger.Warnf("generation attempt %d/%d failed: %v", attempt, o.attempts, err)

		if attempt < o.attempts {
			time.Sleep(delay)
			delay *= 2
		}
	}

	return "", &GenerationError{Attempts: o.attempts, Err: lastErr}
}

// candidate mirrors the contract the prompt imposes on the response. Extra
// fields are ignored; missing ones disqualify the candidate.
type candidate struct {
	Name        string `json:"test_name"`
	Category    string `json:"test_category"`
	Description string `json:"test_description"`
	Query       string `json:"test_query"`
	Severity    string `json:"severity"`
}

func (o *Oracle) parseResponse(response string) ([]audit.TestDefinition, error) {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start == -1 || end <= start {
		return nil, &ParseError{Reason: "no JSON array in response"}
	}

	var candidates []candidate
	if err := json.Unmarshal([]byte(response[start:end+1]), &candidates); err != nil {
		return nil, &ParseError{Reason: "malformed JSON array", Err: err}
	}

	var accepted []audit.TestDefinition
	seen := make(map[string]bool)
	rejected := 0

	for _, c := range candidates {
		def, ok := o.validate(c)
		if !ok {
			rejected++
			continue
		}

		// Names must be unique within one report; later duplicates get the
		// first free numeric suffix instead of being dropped. The suffixed
		// name is re-checked so it cannot collide with a name the response
		// already used.
		if seen[def.Name] {
			base := def.Name
			for n := 2; ; n++ {
				next := fmt.Sprintf("%s_%d", base, n)
				if !seen[next] {
					def.Name = next
					break
				}
			}
		}
		seen[def.Name] = true

		accepted = append(accepted, def)
	}

	if rejected > 0 {
		o.logger.Warnf("rejected %d of %d candidate tests", rejected, len(candidates))
	}

	return accepted, nil
}

func (o *Oracle) validate(c candidate) (audit.TestDefinition, bool) {
	if c.Name == "" || c.Category == "" || c.Description == "" || c.Query == "" || c.Severity == "" {
		o.logger.Warnf("dropping candidate with missing fields: %q", c.Name)
		return audit.TestDefinition{}, false
	}

	severity := audit.Severity(strings.ToUpper(strings.TrimSpace(c.Severity)))
	switch severity {
	case audit.SeverityCritical, audit.SeverityHigh, audit.SeverityMedium, audit.SeverityLow:
	default:
		o.logger.Warnf("dropping candidate %q with unknown severity %q", c.Name, c.Severity)
		return audit.TestDefinition{}, false
	}

	if !isReadOnly(c.Query) {
		o.logger.Warnf("dropping candidate %q: query is not read-only", c.Name)
		return audit.TestDefinition{}, false
	}

	return audit.TestDefinition{
		Name:        c.Name,
		Category:    strings.TrimSpace(c.Category),
		Description: c.Description,
		Query:       c.Query,
		Severity:    severity,
	}, true
}
