package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"validert/internal/cache"
	"validert/internal/config"
	"validert/internal/extract"
	"validert/internal/logger"
	"validert/internal/pipeline"
	"validert/internal/prompts"
	"validert/internal/providers"
	"validert/internal/util"
)

const analyzeSystem = "Svar kun med ett gyldig JSON-objekt."

type runner struct {
	cfg       config.Config
	log       *logger.Logger
	pipeline  *pipeline.Pipeline
	providers *providers.Manager
}

func newRunner(cfg config.Config) (*runner, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, err
	}
	mem, err := cache.NewMemoryStore(cfg.CacheLRUSize)
	if err != nil {
		return nil, err
	}
	p, err := pipeline.FromConfig(cfg, mem, log, nil)
	if err != nil {
		return nil, err
	}
	pm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	return &runner{cfg: cfg, log: log, pipeline: p, providers: pm}, nil
}

func reportIDFor(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// analyzeFile extracts path and scores it against rawOutput, or against a fresh
// provider response when rawOutput is empty.
func (r *runner) analyzeFile(ctx context.Context, path, rawOutput string) (pipeline.Result, error) {
	ex, err := extract.File(path)
	if err != nil {
		return pipeline.Result{}, err
	}
	reportID := reportIDFor(path)
	if rawOutput == "" {
		if res, hit, err := r.pipeline.Lookup(ctx, reportID, ex.Text); err == nil && hit {
			return res, nil
		}
		rawOutput, err = r.generate(ctx, reportID, filepath.Base(path), ex.Text)
		if err != nil {
			return pipeline.Result{}, err
		}
	}
	return r.pipeline.Process(ctx, pipeline.Input{
		ReportID:       reportID,
		SourceFilename: filepath.Base(path),
		Method:         ex.Method,
		Text:           ex.Text,
		RawModelOutput: rawOutput,
	})
}

// generate asks the configured providers in preference order and returns the first
// non-empty answer.
func (r *runner) generate(ctx context.Context, reportID, filename, text string) (string, error) {
	prompt := prompts.BuildUserPrompt(r.pipeline.Context(), prompts.ReportMeta{Filename: filename}, text, r.cfg.MaxPromptTokens, prompts.CountTokens)
	var errs []error
	for _, idx := range r.providers.PreferredLLMOrder() {
		p, ref := r.providers.LLMProviderByIndex(idx)
		resp, info, err := p.Generate(ctx, providers.GenerateRequest{
			Operation: "analyze_report",
			ReportID:  reportID,
			System:    analyzeSystem,
			Prompt:    prompt,
		})
		if err != nil {
			r.log.Warn("provider failed", "provider", ref.Raw, "error_type", string(providers.ClassifyError(err)), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", ref.Raw, err))
			if providers.ClassifyError(err) == providers.ErrorContext {
				break
			}
			continue
		}
		if strings.TrimSpace(resp.Text) == "" {
			continue
		}
		r.log.Debug("provider answered", "provider", info.Name, "model", info.Model, "prompt_tokens", resp.PromptTokens)
		return resp.Text, nil
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("no provider produced an analysis")
	}
	return "", errors.Join(errs...)
}

// writeResult stores the three artifacts of res under dir.
func writeResult(dir string, res pipeline.Result) error {
	if err := util.EnsureDir(dir); err != nil {
		return err
	}
	if err := util.WriteJSONAtomic(filepath.Join(dir, "detected_points.json"), res.DetectedPoints); err != nil {
		return err
	}
	if err := util.WriteJSONAtomic(filepath.Join(dir, "scoring_result.json"), res.Scoring); err != nil {
		return err
	}
	return util.WriteJSONAtomic(filepath.Join(dir, "feedback.json"), res.Feedback)
}

func readOptional(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read model output: %w", err)
	}
	return string(b), nil
}
