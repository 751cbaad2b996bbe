package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"validert/internal/config"
)

var (
	scoringModelPath string
	promptContextDir string
	providerList     string
	logMode          string
)

var rootCmd = &cobra.Command{
	Use:   "validert",
	Short: "Deterministic quality scoring for building condition reports",
	Long: `validert scores Norwegian building condition reports against a versioned
scoring model and prints structured, page-grounded feedback.

Commands run the same pipeline as the worker, without Temporal or Postgres:
  - analyze one report from a saved model output or a configured provider
  - print the cache identity of a report
  - batch-score a directory of reports`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&scoringModelPath, "scoring-model", "", "scoring model file (default: $VALIDERT_SCORING_MODEL)")
	rootCmd.PersistentFlags().StringVar(&promptContextDir, "prompt-context", "", "prompt context directory (default: $VALIDERT_PROMPT_CONTEXT_DIR)")
	rootCmd.PersistentFlags().StringVar(&providerList, "providers", "", "comma separated model providers (default: $VALIDERT_LLM_PROVIDERS)")
	rootCmd.PersistentFlags().StringVar(&logMode, "log-mode", "", "dev or prod (default: $VALIDERT_LOG_MODE)")

	rootCmd.AddCommand(analyzeCmd, identityCmd, batchCmd)
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig() config.Config {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	if scoringModelPath != "" {
		cfg.ScoringModelPath = scoringModelPath
	}
	if promptContextDir != "" {
		cfg.PromptContextDir = promptContextDir
	}
	if providerList != "" {
		cfg.LLMProviders = providerList
	}
	if logMode != "" {
		cfg.LogMode = logMode
	}
	return cfg
}
