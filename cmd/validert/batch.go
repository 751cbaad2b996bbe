package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"validert/internal/pipeline"
	"validert/internal/util"
)

var (
	batchOutDir      string
	batchConcurrency int
)

type batchRow struct {
	File         string   `json:"file"`
	ReportID     string   `json:"report_id"`
	Status       string   `json:"status"`
	DocumentHash string   `json:"document_hash,omitempty"`
	ScoreTotal   *int     `json:"score_total,omitempty"`
	Blockers     []string `json:"blockers,omitempty"`
	Cached       bool     `json:"cached,omitempty"`
	Error        string   `json:"error,omitempty"`
}

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Score every PDF and text report in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		r, err := newRunner(cfg)
		if err != nil {
			return err
		}
		defer r.log.Sync()

		files, err := reportFiles(args[0])
		if err != nil {
			return err
		}
		outDir := batchOutDir
		if outDir == "" {
			outDir = filepath.Join(cfg.DataOutRoot, "batch")
		}
		limit := batchConcurrency
		if limit <= 0 {
			limit = cfg.BatchConcurrency
		}

		rows := make([]batchRow, len(files))
		g, gctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(max(limit, 1))
		for i, path := range files {
			g.Go(func() error {
				row := batchRow{File: filepath.Base(path), ReportID: reportIDFor(path)}
				res, err := r.analyzeFile(gctx, path, "")
				switch {
				case err != nil && pipeline.Failed(err):
					row.Status = pipeline.OutcomeFailed
					row.Error = err.Error()
				case err != nil:
					return fmt.Errorf("%s: %w", path, err)
				default:
					row.Status = pipeline.OutcomeCompleted
					if res.FromCache {
						row.Status = pipeline.OutcomeCached
						row.Cached = true
					}
					row.DocumentHash = res.Key.DocumentHash
					row.ScoreTotal = res.Scoring.ScoreTotal
					row.Blockers = res.Scoring.Blockers
					if err := writeResult(filepath.Join(outDir, row.ReportID), res); err != nil {
						return err
					}
				}
				rows[i] = row
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		summary := filepath.Join(outDir, "summary.jsonl")
		if err := util.WriteJSONLinesAtomic(summary, rows); err != nil {
			return err
		}
		r.log.Info("batch finished", "reports", len(rows), "summary", summary)
		fmt.Fprintln(cmd.OutOrStdout(), summary)
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchOutDir, "out", "", "output directory (default: $VALIDERT_DATA_OUT/batch)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "reports scored in parallel (default: $VALIDERT_BATCH_CONCURRENCY)")
}

func reportFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".pdf", ".txt":
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
