// Command pipeline runs the batch document-processing pipeline: raw
// crawl records in, cleaned documents and chunks out as queue files.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-search/internal/config"
	"github.com/jonesrussell/north-search/internal/logger"
	"github.com/jonesrussell/north-search/internal/pipeline"
)

var (
	cfgFile string
	rawDir  string
	outDir  string
	workers int
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "pipeline",
		Short:         "Process raw crawl records into indexable documents and chunks",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runPipeline,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default config.yml, or CONFIG_PATH)")
	root.Flags().StringVar(&rawDir, "raw-dir", "", "raw input directory (overrides config)")
	root.Flags().StringVar(&outDir, "out-dir", "", "queue-file output directory (overrides config)")
	root.Flags().IntVar(&workers, "workers", 0, "worker pool size (overrides config)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cfg, err := config.Load(configPath())
			if err != nil {
				cmd.Println("pipeline (version unknown)")
				return
			}
			cmd.Printf("pipeline %s\n", cfg.Service.Version)
		},
	})
	return root
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.GetConfigPath("config.yml")
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if rawDir != "" {
		cfg.Pipeline.RawDir = rawDir
	}
	if outDir != "" {
		cfg.Pipeline.OutDir = outDir
	}
	if workers > 0 {
		cfg.Pipeline.MaxWorkers = workers
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	log = log.With(logger.String("service", "pipeline"))

	log.Info("Starting pipeline run",
		logger.String("raw_dir", cfg.Pipeline.RawDir),
		logger.String("out_dir", cfg.Pipeline.OutDir),
		logger.Int("max_workers", cfg.Pipeline.MaxWorkers),
	)

	runner := pipeline.NewRunner(&cfg.Pipeline, log)
	stats, err := runner.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}

	log.Info("Pipeline run complete",
		logger.Int("files", stats.Files),
		logger.Int64("records", stats.Records),
		logger.Int64("documents", stats.Documents),
		logger.Int64("chunks", stats.Chunks),
		logger.Int64("rejected", stats.Rejected),
		logger.Duration("duration", stats.Duration),
	)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
