package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/messaging-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "messaging-cli",
	Short: "Outbound messaging enrichment pipeline",
	Long:  "Gathers LinkedIn and website data for prospect lists, generates structured briefs and intent-signal messaging via Claude, with a persistent cache for resumable runs.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
