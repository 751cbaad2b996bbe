package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var (
	modelOutputPath string
	analyzeOutDir   string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <report>",
	Short: "Score one report and print its feedback",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		r, err := newRunner(cfg)
		if err != nil {
			return err
		}
		defer r.log.Sync()
		raw, err := readOptional(modelOutputPath)
		if err != nil {
			return err
		}
		res, err := r.analyzeFile(cmd.Context(), args[0], raw)
		if err != nil {
			return err
		}
		if analyzeOutDir != "" {
			if err := writeResult(analyzeOutDir, res); err != nil {
				return err
			}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res.Feedback)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&modelOutputPath, "model-output", "", "saved raw model output to score instead of calling a provider")
	analyzeCmd.Flags().StringVar(&analyzeOutDir, "out", "", "directory for detected_points.json, scoring_result.json and feedback.json")
}
