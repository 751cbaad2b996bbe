package main

import (
	"context"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"validert/internal/activities"
	"validert/internal/cache"
	"validert/internal/config"
	"validert/internal/logger"
	"validert/internal/metrics"
	"validert/internal/pipeline"
	"validert/internal/storage"
	"validert/internal/workflows"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatal("connect postgres", "error", err)
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatal("ensure schema", "error", err)
	}

	mem, err := cache.NewMemoryStore(cfg.CacheLRUSize)
	if err != nil {
		log.Fatal("memory cache", "error", err)
	}
	tiers := []cache.Store{mem}
	if cfg.RedisAddr != "" {
		rs, err := cache.NewRedisStore(ctx, cfg.RedisAddr, time.Duration(cfg.RedisTTLSeconds)*time.Second)
		if err != nil {
			log.Warn("redis cache unavailable, continuing without it", "addr", cfg.RedisAddr, "error", err)
		} else {
			defer rs.Close()
			tiers = append(tiers, rs)
		}
	}
	tiers = append(tiers, storage.NewAnalysisCacheRepo(db))

	obs, err := metrics.New("validert", prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal("metrics", "error", err)
	}
	p, err := pipeline.FromConfig(cfg, cache.NewTiered(tiers...), log, obs)
	if err != nil {
		log.Fatal("build pipeline", "error", err)
	}
	a, err := activities.New(cfg, activities.Deps{
		Reports:  storage.NewReportRepo(db),
		Audit:    storage.NewLLMAuditRepo(db),
		Pipeline: p,
		Logger:   log,
	})
	if err != nil {
		log.Fatal("build activities", "error", err)
	}

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatal("dial temporal", "error", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	activities.Register(w, a)

	if cfg.WorkerMetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.WorkerMetricsAddr, mux); err != nil {
				log.Error("metrics listener stopped", "error", err)
			}
		}()
	}

	log.Info("validert worker listening", "temporal", cfg.TemporalAddress, "queue", cfg.TemporalTaskQueue, "llm_providers", cfg.LLMProviders,
		"scoring_model", p.Model().Info.ModelID, "scoring_model_sha", p.Model().SHA256())
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal("worker stopped", "error", err)
	}
}
