package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/marketarea-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "marketarea",
	Short: "Market-area spreadsheet import and geometry resolution",
	Long:  "Reads market-area spreadsheets, resolves location boundaries from the Census TIGERweb map service, and saves the areas to a project.",
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
