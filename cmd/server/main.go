package main

import (
	"log"

	"github.com/liu-chun-wu/SleepGenius/internal"
	"github.com/liu-chun-wu/SleepGenius/internal/api"
	"github.com/liu-chun-wu/SleepGenius/internal/config"
	"github.com/liu-chun-wu/SleepGenius/internal/gemini"
	"github.com/liu-chun-wu/SleepGenius/internal/storage"
)

func main() {
	cfg := config.Load()

	logger, err := internal.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}

	repo, err := storage.NewSleepRepository(cfg, logger)
	if err != nil {
		logger.Fatalf("failed to init storage: %v", err)
	}

	gen := gemini.NewClient(cfg.GeminiURL, logger)

	app := api.NewApp(logger, repo, gen)
	r := api.NewRouter(app)

	logger.Infof("Server running on %s (storage=%s)", cfg.ListenAddr, cfg.DBType)
	if err := r.Run(cfg.ListenAddr); err != nil {
		logger.Fatalf("failed to start server: %v", err)
	}
}
