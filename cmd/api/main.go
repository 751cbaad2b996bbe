package main

import (
	"context"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	tclient "go.temporal.io/sdk/client"

	"validert/internal/api"
	"validert/internal/config"
	"validert/internal/logger"
	"validert/internal/storage"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatal("connect postgres", "error", err)
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatal("ensure schema", "error", err)
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatal("dial temporal", "error", err)
	}
	defer tc.Close()

	h := api.NewServer(cfg, api.Deps{
		Reports:  storage.NewReportRepo(db),
		Cache:    storage.NewAnalysisCacheRepo(db),
		Temporal: tc,
		Metrics:  promhttp.Handler(),
		Logger:   log,
	})
	log.Info("validert api listening", "addr", cfg.APIAddr, "llm_providers", cfg.LLMProviders)
	if err := http.ListenAndServe(cfg.APIAddr, h.Routes()); err != nil {
		log.Fatal("api stopped", "error", err)
	}
}
