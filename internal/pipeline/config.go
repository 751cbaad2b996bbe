package pipeline

import (
	"fmt"

	"validert/internal/cache"
	"validert/internal/config"
	"validert/internal/logger"
	"validert/internal/metrics"
	"validert/internal/prompts"
	"validert/internal/registry"
)

// FromConfig loads the scoring model and prompt context named by cfg and builds a
// Pipeline over store. A scoring model that fails to load or validate is fatal.
func FromConfig(cfg config.Config, store cache.Store, log *logger.Logger, obs *metrics.Observer) (*Pipeline, error) {
	model, err := registry.LoadFile(cfg.ScoringModelPath)
	if err != nil {
		return nil, err
	}
	pctx, err := prompts.LoadDir(cfg.PromptContextDir)
	if err != nil {
		return nil, fmt.Errorf("load prompt context: %w", err)
	}
	return New(Deps{
		Model:   model,
		Context: pctx,
		Store:   store,
		Logger:  log,
		Metrics: obs,
		Options: Options{NumericRatioThreshold: cfg.NumericRatioThreshold},
	})
}
