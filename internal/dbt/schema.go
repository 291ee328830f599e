package dbt

import "fmt"

type schemaFile struct {
	Models []modelSchema `yaml:"models"`
}

type modelSchema struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Tests       []any          `yaml:"tests"`
	Columns     []columnSchema `yaml:"columns"`
}

type columnSchema struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Tests       []any  `yaml:"tests"`
}

func (m *modelSchema) columnDescriptions() map[string]string {
	descriptions := make(map[string]string, len(m.Columns))
	for _, col := range m.Columns {
		if col.Name != "" {
			descriptions[col.Name] = col.Description
		}
	}
	return descriptions
}

func (m *modelSchema) existingTests() []ExistingTest {
	var tests []ExistingTest

	for _, t := range m.Tests {
		tests = append(tests, ExistingTest{
			Level: "model",
			Test:  renderTest(t),
		})
	}

	for _, col := range m.Columns {
		for _, t := range col.Tests {
			tests = append(tests, ExistingTest{
				Level:  "column",
				Column: col.Name,
				Test:   renderTest(t),
			})
		}
	}

	return tests
}

// renderTest flattens a dbt test entry to display text. Entries are either
// bare names ("unique") or single-key maps with arguments.
func renderTest(t any) string {
	if s, ok := t.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", t)
}
