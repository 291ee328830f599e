package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/syrupdata/dqaudit/internal/archive"
	"github.com/syrupdata/dqaudit/internal/audit"
	"github.com/syrupdata/dqaudit/internal/config"
	"github.com/syrupdata/dqaudit/internal/database"
	"github.com/syrupdata/dqaudit/internal/dbt"
	"github.com/syrupdata/dqaudit/internal/oracle"
	"github.com/syrupdata/dqaudit/internal/report"
	"github.com/syrupdata/dqaudit/internal/ui/picker"
	"github.com/syrupdata/dqaudit/internal/warehouse"
	"github.com/syrupdata/dqaudit/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "dqaudit",
	Short: "LLM-assisted data quality audits for dbt mart models",
	Long:  `Generates candidate data quality tests for dbt mart models with Amazon Bedrock, executes them against the warehouse, and writes CSV reports with defect counts and examples.`,
}

var auditCmd = &cobra.Command{
	Use:   "audit [models...]",
	Short: "Audit mart models (all discovered models when none are named)",
	RunE:  runAudit,
}

var listModelsCmd = &cobra.Command{
	Use:   "list-models",
	Short: "List discovered mart models",
	RunE:  runListModels,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <table>",
	Short: "Show column metadata and statistics for a warehouse table",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var (
	configPath  string
	verbose     bool
	interactive bool
	noProgress  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "dqaudit.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")

	auditCmd.Flags().BoolVar(&interactive, "interactive", false, "Pick models from a list instead of auditing everything")
	auditCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")

	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(listModelsCmd)
	rootCmd.AddCommand(inspectCmd)

	cobra.OnInitialize(func() {
		rootCmd.SilenceUsage = true
		rootCmd.SilenceErrors = true
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("cannot load config: %w", err)
	}

	log := logger.NewAuditLogger(verbose, cfg.Output.LogFile)
	defer log.Close()

	conn, err := database.NewConnection(cfg)
	if err != nil {
		return fmt.Errorf("cannot connect to warehouse: %w", err)
	}
	defer conn.Close()

	client := warehouse.NewClient(conn.DB, conn.Schema(), log)
	if err := client.TestConnection(); err != nil {
		return fmt.Errorf("warehouse connection test failed: %w", err)
	}
	log.Infof("Connected to warehouse %s/%s", cfg.Warehouse.Host, cfg.Warehouse.Database)

	parser := dbt.NewParser(cfg.Dbt.ModelsPath, log)

	ctx := context.Background()

	generator, err := oracle.NewBedrockGenerator(ctx, cfg.Bedrock.Region, cfg.Bedrock.ModelID)
	if err != nil {
		return fmt.Errorf("cannot initialize bedrock client: %w", err)
	}

	proposer := oracle.New(
		generator,
		cfg.Warehouse.Schema,
		cfg.Audit.RetryAttempts,
		time.Duration(cfg.Audit.RetryBaseSeconds)*time.Second,
		log,
	)

	writer := report.NewWriter(cfg.Output.Dir, log)

	var archiver audit.Archiver
	if cfg.Archive.Enabled {
		store := archive.NewMongoStore(cfg.Archive, log)
		defer store.Close()
		archiver = store
	}

	if len(args) == 0 && interactive {
		discovered, err := parser.ListMartModels()
		if err != nil {
			return fmt.Errorf("cannot discover mart models: %w", err)
		}

		picked, err := picker.PickModels(discovered)
		if err != nil {
			if errors.Is(err, picker.ErrCancelled) {
				log.Info("No models selected, nothing to do.")
				return nil
			}
			return err
		}
		args = picked
	}

	runner := audit.NewRunner(parser, client, proposer, writer, archiver, audit.Options{
		SampleLimit:       cfg.Audit.SampleLimit,
		MaxStatsColumns:   cfg.Audit.MaxStatsColumns,
		MaxDefectExamples: cfg.Audit.MaxDefectExamples,
		ModelTimeout:      time.Duration(cfg.Audit.ModelTimeoutSecs) * time.Second,
		ShowProgress:      !noProgress,
	}, log)

	result, err := runner.Run(ctx, args)
	if err != nil {
		return fmt.Errorf("audit run failed: %w", err)
	}

	fmt.Println()
	report.RenderSummaryTable(os.Stdout, result.Summaries, result.Failures())
	if result.SummaryPath != "" {
		fmt.Printf("\nSummary report: %s\n", result.SummaryPath)
	}

	if result.HardFailed() {
		return fmt.Errorf("%d model(s) could not be audited", len(result.Failures()))
	}

	return nil
}

func runListModels(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("cannot load config: %w", err)
	}

	log := logger.NewLogger(verbose)
	parser := dbt.NewParser(cfg.Dbt.ModelsPath, log)

	models, err := parser.ListMartModels()
	if err != nil {
		return err
	}

	for _, model := range models {
		fmt.Println(model)
	}
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("cannot load config: %w", err)
	}

	log := logger.NewLogger(verbose)

	conn, err := database.NewConnection(cfg)
	if err != nil {
		return fmt.Errorf("cannot connect to warehouse: %w", err)
	}
	defer conn.Close()

	client := warehouse.NewClient(conn.DB, conn.Schema(), log)

	table := args[0]
	columns, err := client.GetTableMetadata(table)
	if err != nil {
		return err
	}

	stats, err := client.GetTableStats(table, cfg.Audit.MaxStatsColumns)
	if err != nil {
		return err
	}

	view := make([]report.Column, 0, len(columns))
	for _, col := range columns {
		view = append(view, report.Column{
			Position:      col.Position,
			Name:          col.Name,
			DataType:      col.DataType,
			IsNullable:    col.IsNullable,
			NullCount:     stats.NullCounts[col.Name],
			DistinctCount: stats.DistinctCounts[col.Name],
		})
	}

	fmt.Printf("%s.%s (%d rows)\n", cfg.Warehouse.Schema, table, stats.RowCount)
	report.RenderColumnTable(os.Stdout, view)

	return nil
}
