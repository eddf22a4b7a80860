// File: cmd/app/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classroom-ai-grading/internal/config"
	"classroom-ai-grading/internal/domain/ports/adapter"
	aiAdapters "classroom-ai-grading/internal/infra/adapters/ai"
	"classroom-ai-grading/internal/infra/jobs"
	"classroom-ai-grading/internal/infra/logging"
	"classroom-ai-grading/internal/infra/metrics"
	"classroom-ai-grading/internal/infra/web"
	"classroom-ai-grading/internal/usecase"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}
	metrics.MustRegister()

	// ---- Evaluator ----
	var evaluator adapter.Evaluator
	if cfg.AI.Offline {
		evaluator = aiAdapters.NewOfflineEvaluator(cfg.AI.OfflineThreshold)
		logger.Info().Int("threshold", cfg.AI.OfflineThreshold).Msg("evaluator: offline")
	} else {
		proxyURL := cfg.AI.Proxy.Resolve()
		gen, err := aiAdapters.NewGeminiGenerator(cfg.AI.BaseURL, cfg.AI.MaxOutput, proxyURL, cfg.AI.RequestTimeout)
		if err != nil {
			log.Fatalf("gemini: %v", err)
		}
		pool := aiAdapters.NewPool(cfg.AI.APIKeys, aiAdapters.PoolOptions{
			MinDelay:    cfg.AI.MinDelay,
			BackoffBase: cfg.AI.BackoffBase,
			BackoffCap:  cfg.AI.BackoffCap,
			WaitLimit:   cfg.AI.SlotWaitLimit,
		})
		evaluator = aiAdapters.NewClient(gen, pool, cfg.AI.Models, cfg.AI.MaxAttempts, cfg.AI.RequestTimeout, logger)
		logger.Info().
			Int("credentials", pool.Size()).
			Strs("models", cfg.AI.Models).
			Bool("proxy", proxyURL != "").
			Msg("evaluator: gemini")
	}

	// ---- Pipeline and job manager ----
	workers := cfg.Checker.Workers
	if !cfg.AI.Offline && len(cfg.AI.APIKeys) < workers {
		// More workers than credential slots just queue on the pool.
		workers = len(cfg.AI.APIKeys)
	}
	checker := usecase.NewChecker(evaluator, workers, logger)
	manager := jobs.NewManager(checker, cfg.Checker.ReportsDir, cfg.Checker.JobTimeout, logger)

	// ---- HTTP API ----
	srv := web.NewServer(manager, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Handler(),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http api listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
