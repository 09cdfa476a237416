package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"news-archive-parser/internal/checksum"
	"news-archive-parser/internal/config"
	"news-archive-parser/internal/crawl"
	"news-archive-parser/internal/observability"
	"news-archive-parser/internal/scraper"
	"news-archive-parser/internal/storage"
)

type Orchestrator struct {
	cfg        *config.Config
	logger     *observability.Logger
	transport  crawl.Transport
	repo       storage.Repository
	checksum   *checksum.Generator
	dateParser *scraper.DateParser
	now        func() time.Time
}

func NewOrchestrator(
	cfg *config.Config,
	logger *observability.Logger,
	transport crawl.Transport,
	repo storage.Repository,
) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		logger:     logger,
		transport:  transport,
		repo:       repo,
		checksum:   checksum.NewGenerator(),
		dateParser: scraper.NewDateParser(),
		now:        time.Now,
	}
}

// ChainResult: итог одной цепочки. Err не влияет на соседние цепочки.
type ChainResult struct {
	Source string
	Stats  *crawl.Stats
	Saved  int
	// Stored: сколько записей источника лежит в хранилище после прогона (-1, если неизвестно)
	Stored int
	Err    error
}

// RunAll запускает по одной независимой цепочке на источник. Если names пуст,
// берутся все включённые источники.
func (o *Orchestrator) RunAll(ctx context.Context, names ...string) ([]ChainResult, error) {
	sources, err := o.cfg.EnabledSources(names...)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		o.logger.Warn("No enabled sources to crawl")
		return nil, nil
	}

	runID := uuid.NewString()
	o.logger.Info("Harvest run started",
		"run_id", runID,
		"sources", len(sources),
		"max_parallel_chains", o.cfg.Concurrency.MaxParallelChains,
	)

	results := make([]ChainResult, len(sources))

	// Без WithContext: ошибка одной цепочки не отменяет остальные
	var g errgroup.Group
	if o.cfg.Concurrency.MaxParallelChains > 0 {
		g.SetLimit(o.cfg.Concurrency.MaxParallelChains)
	}
	for i := range sources {
		src := sources[i]
		g.Go(func() error {
			results[i] = o.runChain(ctx, runID, &src)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", res.Source, res.Err))
		}
	}

	o.logger.Info("Harvest run completed",
		"run_id", runID,
		"sources", len(sources),
		"failed", len(errs),
	)

	return results, errors.Join(errs...)
}

func (o *Orchestrator) runChain(ctx context.Context, runID string, src *config.SourceConfig) ChainResult {
	res := ChainResult{Source: src.Name, Stored: -1}
	logger := o.logger.With("run_id", runID, "source", src.Name)

	strategy, err := crawl.NewStrategy(src, logger)
	if err != nil {
		logger.Error("Failed to build pagination strategy", "error", err.Error())
		res.Err = err
		return res
	}

	extractor := scraper.NewSelectorExtractor(src.Fields, o.cfg.Normalize)
	driver := crawl.NewDriver(src.Name, strategy, extractor, o.transport, o.logger.With("run_id", runID))

	seq := 0
	stats, err := driver.Run(ctx, func(rec scraper.Record) error {
		seq++
		stored := o.toStored(runID, src, seq, rec)
		if err := o.repo.SaveRecord(ctx, stored); err != nil {
			return fmt.Errorf("save record %d: %w", seq, err)
		}
		res.Saved++
		return nil
	})
	res.Stats = stats
	res.Err = err

	if err != nil {
		logger.Error("Chain stopped with error",
			"saved", res.Saved,
			"error", err.Error(),
		)
	}

	// Счёт не зависит от отмены ctx: сохранённые записи всё равно хотим видеть в сводке
	total, countErr := o.repo.CountBySource(context.WithoutCancel(ctx), src.Name)
	if countErr != nil {
		logger.Warn("Failed to count stored records", "error", countErr.Error())
		return res
	}
	res.Stored = total
	logger.Info("Chain summary", "saved", res.Saved, "stored_total", total)
	return res
}

func (o *Orchestrator) toStored(runID string, src *config.SourceConfig, seq int, rec scraper.Record) *storage.StoredRecord {
	stored := &storage.StoredRecord{
		RunID:       runID,
		Source:      src.Name,
		SequenceNum: seq,
		Link:        rec.Value(src.LinkField),
		Title:       rec.Value(src.TitleField),
		Fields:      rec,
		CheckSum:    o.checksum.GenerateRecordHash(src.Name, rec),
		HarvestedAt: o.now().UTC(),
	}

	if src.DateField == "" {
		return stored
	}
	raw := rec.Value(src.DateField)
	if raw == scraper.Sentinel {
		return stored
	}
	date, err := o.dateParser.Parse(raw)
	if err != nil {
		o.logger.Debug("Failed to parse record date",
			"source", src.Name,
			"date_raw", raw,
			"error", err.Error(),
		)
		return stored
	}
	stored.PublishedAt = &date
	return stored
}
