package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type WarehouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Schema   string `yaml:"schema"`
	SSLMode  string `yaml:"sslmode"`
}

type DbtConfig struct {
	ModelsPath string `yaml:"models_path"`
}

type BedrockConfig struct {
	Region  string `yaml:"region"`
	ModelID string `yaml:"model_id"`
}

type AuditConfig struct {
	SampleLimit       int `yaml:"sample_limit"`
	MaxDefectExamples int `yaml:"max_defect_examples"`
	MaxStatsColumns   int `yaml:"max_stats_columns"`
	RetryAttempts     int `yaml:"retry_attempts"`
	RetryBaseSeconds  int `yaml:"retry_base_seconds"`
	ModelTimeoutSecs  int `yaml:"model_timeout_seconds"`
}

type OutputConfig struct {
	Dir     string `yaml:"dir"`
	LogFile string `yaml:"log_file"`
}

type ArchiveConfig struct {
	Enabled    bool   `yaml:"enabled"`
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type Config struct {
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Dbt       DbtConfig       `yaml:"dbt"`
	Bedrock   BedrockConfig   `yaml:"bedrock"`
	Audit     AuditConfig     `yaml:"audit"`
	Output    OutputConfig    `yaml:"output"`
	Archive   ArchiveConfig   `yaml:"archive"`
}

// LoadConfig reads a YAML configuration file. ${VAR} references are expanded
// from the environment before parsing so credentials never live in the file.
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyDefaults()

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Warehouse.Port == 0 {
		c.Warehouse.Port = 5439
	}
	if c.Warehouse.Schema == "" {
		c.Warehouse.Schema = "waffles"
	}
	if c.Warehouse.SSLMode == "" {
		c.Warehouse.SSLMode = "require"
	}
	if c.Dbt.ModelsPath == "" {
		c.Dbt.ModelsPath = "models/marts"
	}
	if c.Bedrock.ModelID == "" {
		c.Bedrock.ModelID = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	}
	if c.Audit.SampleLimit == 0 {
		c.Audit.SampleLimit = 10
	}
	if c.Audit.MaxDefectExamples == 0 {
		c.Audit.MaxDefectExamples = 10
	}
	if c.Audit.MaxStatsColumns == 0 {
		c.Audit.MaxStatsColumns = 50
	}
	if c.Audit.RetryAttempts == 0 {
		c.Audit.RetryAttempts = 3
	}
	if c.Audit.RetryBaseSeconds == 0 {
		c.Audit.RetryBaseSeconds = 1
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "data_quality_reports"
	}
	if c.Archive.Database == "" {
		c.Archive.Database = "dqaudit"
	}
	if c.Archive.Collection == "" {
		c.Archive.Collection = "reports"
	}
}

func (c *Config) GetConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Warehouse.Host,
		c.Warehouse.Port,
		c.Warehouse.Username,
		c.Warehouse.Password,
		c.Warehouse.Database,
		c.Warehouse.SSLMode,
	)
}
