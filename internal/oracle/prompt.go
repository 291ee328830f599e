package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/syrupdata/dqaudit/internal/dbt"
	"github.com/syrupdata/dqaudit/internal/warehouse"
)

// buildPrompt assembles the fixed proposal prompt: model SQL, per-column
// schema with null/distinct stats, a handful of sample rows, dependencies,
// and the output contract (JSON array of 10-15 tests across 7 categories).
func buildPrompt(
	schema string,
	modelCtx *dbt.ModelContext,
	columns []warehouse.Column,
	stats *warehouse.TableStats,
	samples []warehouse.Row,
) string {
	var b strings.Builder

	description := modelCtx.Description
	if description == "" {
		description = "No description provided"
	}

	dependencies := "None"
	if len(modelCtx.Dependencies) > 0 {
		dependencies = strings.Join(modelCtx.Dependencies, ", ")
	}

	fmt.Fprintf(&b, `You are a data quality expert reviewing a dbt mart model for a UAT audit. Your goal is to generate comprehensive SQL test queries that will identify data quality issues a business SME would care about.

CONTEXT:

Model Name: %s
Model Description: %s

Model SQL:
`+"```sql\n%s\n```"+`

Schema:
%s
`, modelCtx.ModelName, description, modelCtx.SQL, formatColumns(modelCtx, columns, stats))

	fmt.Fprintf(&b, `
Sample Data (first 5 rows):
%s

Statistics:
- Total rows: %d

Dependencies:
This model references: %s
`, formatSamples(samples), stats.RowCount, dependencies)

	if len(modelCtx.ExistingTests) > 0 {
		fmt.Fprintf(&b, "\nExisting dbt tests (do not duplicate these):\n%s\n", formatExistingTests(modelCtx.ExistingTests))
	}

	fmt.Fprintf(&b, `
TASK:

Generate 10-15 data quality test queries covering these categories:
1. Uniqueness (primary keys, composite keys)
2. Nullability (required fields)
3. Referential Integrity (foreign keys to upstream models like %s)
4. Date Validity (no future dates, valid ranges, logical order)
5. Business Logic (calculated fields match components, aggregations match details)
6. Value Range (no negatives where inappropriate, categorical values are valid)
7. Data Consistency (related fields are logically consistent)

For each test, return JSON in this format:
{
  "test_name": "unique_snake_case_name",
  "test_category": "Uniqueness|Nullability|Referential Integrity|Date Validity|Business Logic|Value Range|Data Consistency",
  "test_description": "Clear human-readable description of what this test validates",
  "test_query": "SQL query that returns rows WHERE defects exist (empty result = pass). Use schema '%s' and LIMIT 5 for performance.",
  "severity": "CRITICAL|HIGH|MEDIUM|LOW"
}

IMPORTANT QUERY GUIDELINES:
- Queries should return ONLY defective records (so empty result = test passes)
- Include key identifiers in SELECT clause for defect examples
- Use LIMIT 5 to prevent huge result sets
- Queries should be read-only (SELECT only)
- Test queries should be self-contained (no temp tables)
- Use the schema '%s' when referencing tables (e.g., %s.%s)
- For referential integrity tests with upstream models, reference them as %s.model_name

Return ONLY a JSON array of test objects, no other text. Start your response with [ and end with ].
`, dependencies, schema, schema, schema, modelCtx.ModelName, schema)

	return b.String()
}

func formatColumns(modelCtx *dbt.ModelContext, columns []warehouse.Column, stats *warehouse.TableStats) string {
	var lines []string

	for _, col := range columns {
		nullable := "NOT NULL"
		if col.IsNullable {
			nullable = "NULL"
		}

		line := fmt.Sprintf("  - %s (%s, %s)", col.Name, col.DataType, nullable)
		if desc := modelCtx.ColumnDescriptions[col.Name]; desc != "" {
			line += " - " + desc
		}

		if nulls, ok := stats.NullCounts[col.Name]; ok {
			line += fmt.Sprintf("\n    Stats: %d nulls, %d distinct values", nulls, stats.DistinctCounts[col.Name])
		}

		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}

func formatSamples(samples []warehouse.Row) string {
	if len(samples) > 5 {
		samples = samples[:5]
	}

	rows := make([]map[string]any, 0, len(samples))
	for _, sample := range samples {
		row := make(map[string]any, len(sample.Values))
		for k, v := range sample.Values {
			if s, ok := v.(fmt.Stringer); ok {
				row[k] = s.String()
			} else {
				row[k] = v
			}
		}
		rows = append(rows, row)
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}

func formatExistingTests(tests []dbt.ExistingTest) string {
	var lines []string
	for _, t := range tests {
		if t.Level == "column" {
			lines = append(lines, fmt.Sprintf("  - column %s: %s", t.Column, t.Test))
		} else {
			lines = append(lines, fmt.Sprintf("  - model: %s", t.Test))
		}
	}
	return strings.Join(lines, "\n")
}
