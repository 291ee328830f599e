package dbt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/syrupdata/dqaudit/pkg/logger"
)

// ErrModelNotFound reports a model name with no matching SQL file under the
// models directory.
var ErrModelNotFound = errors.New("model not found")

var (
	refPattern      = regexp.MustCompile(`\{\{\s*ref\s*\(\s*['"]([^'"]+)['"]\s*\)\s*\}\}`)
	configPattern   = regexp.MustCompile(`(?s)\{\{\s*config\s*\((.*?)\)\s*\}\}`)
	configKVPattern = regexp.MustCompile(`(\w+)\s*=\s*['"]([^'"]+)['"]`)
)

// Parser reads dbt model files (SQL and YAML) from a models directory.
type Parser struct {
	modelsPath string
	logger     *logger.Logger
}

func NewParser(modelsPath string, log *logger.Logger) *Parser {
	return &Parser{
		modelsPath: modelsPath,
		logger:     log,
	}
}

// ParseModel builds the full context for one model. A missing SQL file is
// fatal for the model; missing or malformed YAML degrades to empty metadata.
func (p *Parser) ParseModel(modelName string) (*ModelContext, error) {
	sqlText, err := p.readModelSQL(modelName)
	if err != nil {
		return nil, err
	}

	schema := p.readModelSchema(modelName)

	ctx := &ModelContext{
		ModelName:          modelName,
		SQL:                sqlText,
		Config:             extractConfig(sqlText),
		Dependencies:       extractRefs(sqlText),
		ColumnDescriptions: map[string]string{},
	}

	if schema != nil {
		ctx.Description = schema.Description
		ctx.ColumnDescriptions = schema.columnDescriptions()
		ctx.ExistingTests = schema.existingTests()
	}

	return ctx, nil
}

// ListMartModels returns the sorted names of every SQL model in the models
// directory.
func (p *Parser) ListMartModels() ([]string, error) {
	entries, err := os.ReadDir(p.modelsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read models directory %s: %w", p.modelsPath, err)
	}

	var models []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if name, ok := strings.CutSuffix(entry.Name(), ".sql"); ok {
			models = append(models, name)
		}
	}

	sort.Strings(models)
	return models, nil
}

func (p *Parser) readModelSQL(modelName string) (string, error) {
	sqlPath := filepath.Join(p.modelsPath, modelName+".sql")

	data, err := os.ReadFile(sqlPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrModelNotFound, sqlPath)
		}
		return "", fmt.Errorf("failed to read model SQL for %s: %w", modelName, err)
	}

	return string(data), nil
}

// readModelSchema looks for {model}.yml first, then the directory-wide
// schema.yml. Parsing is best effort: malformed YAML logs a warning and
// yields no metadata rather than failing the audit.
func (p *Parser) readModelSchema(modelName string) *modelSchema {
	for _, name := range []string{modelName + ".yml", "schema.yml"} {
		path := filepath.Join(p.modelsPath, name)

		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var file schemaFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			p.logger.Warnf("skipping malformed schema file %s: %v", path, err)
			continue
		}

		for i := range file.Models {
			if file.Models[i].Name == modelName {
				return &file.Models[i]
			}
		}
	}

	p.logger.Debugf("no schema metadata found for model %s", modelName)
	return nil
}

// extractRefs scans for {{ ref('model') }} dependencies in first-occurrence
// order, deduplicated.
func extractRefs(sqlText string) []string {
	matches := refPattern.FindAllStringSubmatch(sqlText, -1)

	seen := make(map[string]bool, len(matches))
	var refs []string
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			refs = append(refs, m[1])
		}
	}

	return refs
}

// extractConfig pulls key='value' pairs out of a {{ config(...) }} block
// (materialization, dist/sort keys and the like).
func extractConfig(sqlText string) map[string]string {
	config := make(map[string]string)

	m := configPattern.FindStringSubmatch(sqlText)
	if m == nil {
		return config
	}

	for _, kv := range configKVPattern.FindAllStringSubmatch(m[1], -1) {
		config[kv[1]] = kv[2]
	}

	return config
}
