package main

import (
	"fmt"

	"news-archive-parser/internal/config"
	"news-archive-parser/internal/crawl"
	"news-archive-parser/internal/fetcher"
	"news-archive-parser/internal/observability"
	"news-archive-parser/internal/storage"
	"news-archive-parser/internal/storage/mssql"
	"news-archive-parser/internal/storage/sqlite"
)

// services собирает зависимости команд run и crawl
type services struct {
	cfg       *config.Config
	logger    *observability.Logger
	transport crawl.Transport
	repo      storage.Repository
	closers   []func() error
}

func newServices(configPath string) (*services, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Observability.LogPath, cfg.Observability.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	rt := &services{cfg: cfg, logger: logger}

	if cfg.Rod.Enabled {
		rf, err := fetcher.NewRodFetcher(cfg, logger)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
		rt.transport = rf
		rt.closers = append(rt.closers, rf.Close)
	} else {
		rt.transport = fetcher.NewFetcher(cfg, logger)
	}

	repo, err := openRepository(cfg, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.repo = repo
	rt.closers = append(rt.closers, repo.Close)

	logger.Info("Runtime initialised",
		"config", configPath,
		"storage", cfg.Storage.Driver,
		"rod", cfg.Rod.Enabled,
	)
	return rt, nil
}

func openRepository(cfg *config.Config, logger *observability.Logger) (storage.Repository, error) {
	switch cfg.Storage.Driver {
	case "mssql":
		repo, err := mssql.NewRepository(cfg.Storage.DSN, cfg.GetCommandTimeout(), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open mssql storage: %w", err)
		}
		return repo, nil
	case "sqlite":
		repo, err := sqlite.NewRepository(cfg.Storage.DSN, cfg.GetCommandTimeout(), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Storage.Driver)
	}
}

// Close закрывает ресурсы в обратном порядке и сбрасывает буфер логгера
func (r *services) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.logger.Error("Failed to close resource", "error", err.Error())
		}
	}
	_ = r.logger.Sync()
}
