package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/messaging-cli/internal/pipeline"
)

// dryRunLimit is how many input rows a --dry-run processes end to end.
const dryRunLimit = 5

var (
	runInput          string
	runOutput         string
	runConcurrency    int
	runBriefModel     string
	runMessagingModel string
	runReprocess      bool
	runDryRun         bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process a prospect list",
	Long:  "Reads a CSV or XLSX prospect list, collects LinkedIn profiles in bulk, scrapes each company website, and generates briefs and outbound messaging. Completed prospects are served from the cache on rerun.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if _, err := os.Stat(runInput); err != nil {
			return eris.Wrapf(err, "input file %s", runInput)
		}

		if runConcurrency > 0 {
			cfg.Pipeline.MaxConcurrentProspects = runConcurrency
		}

		opts := pipeline.Options{
			BriefModel:           cfg.Anthropic.BriefModel,
			MessagingModel:       cfg.Anthropic.MessagingModel,
			MaxTokens:            cfg.Anthropic.MaxTokens,
			RetryAttempts:        cfg.Anthropic.RetryAttempts,
			MaxResearchOfferings: cfg.Pipeline.MaxResearchOfferings,
		}
		if runBriefModel != "" {
			opts.BriefModel = runBriefModel
		}
		if runMessagingModel != "" {
			opts.MessagingModel = runMessagingModel
		}

		env, err := initPipeline(ctx, opts)
		if err != nil {
			return err
		}
		defer env.Close()

		runOpts := pipeline.RunOptions{
			InputPath:  runInput,
			OutputPath: runOutput,
			Reprocess:  runReprocess,
		}
		if runDryRun {
			runOpts.Limit = dryRunLimit
			zap.L().Info("dry run: processing only the first rows",
				zap.Int("limit", dryRunLimit))
		}

		summary, err := env.Coordinator.Run(ctx, runOpts)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("run complete",
			zap.String("run_id", summary.RunID),
			zap.Int("total", summary.Total),
			zap.Int("completed", summary.Completed),
			zap.Int("failed", summary.Failed),
			zap.Int("from_cache", summary.FromCache),
			zap.String("output", runOutput),
		)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "", "prospect list, .csv or .xlsx (required)")
	runCmd.Flags().StringVar(&runOutput, "output", "", "output CSV path")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "max concurrent prospects (default from config)")
	runCmd.Flags().StringVar(&runBriefModel, "brief-model", "", "override the brief model")
	runCmd.Flags().StringVar(&runMessagingModel, "messaging-model", "", "override the messaging model")
	runCmd.Flags().BoolVar(&runReprocess, "reprocess", false, "regenerate briefs and messaging for cached prospects")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "process only the first 5 input rows")
	_ = runCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(runCmd)
}
