package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"news-archive-parser/internal/config"
	"news-archive-parser/internal/observability"
)

const (
	ModeOneshot  = "oneshot"
	ModeInterval = "interval"
	ModeCron     = "cron"
)

// Job: один прогон сбора
type Job func(ctx context.Context) error

// Scheduler запускает Job один раз, с фиксированным интервалом или по cron.
type Scheduler struct {
	mode     string
	interval time.Duration
	cronExpr string
	logger   *observability.Logger
}

func NewScheduler(cfg *config.Config, logger *observability.Logger) *Scheduler {
	return &Scheduler{
		mode:     cfg.Scheduler.Mode,
		interval: cfg.GetSchedulerInterval(),
		cronExpr: cfg.Scheduler.CronExpr,
		logger:   logger,
	}
}

// Run блокирует до завершения: после одного прогона в режиме oneshot,
// до отмены ctx в режимах interval и cron. В периодических режимах ошибка прогона
// логируется и не останавливает расписание.
func (s *Scheduler) Run(ctx context.Context, job Job) error {
	switch s.mode {
	case ModeOneshot, "":
		return job(ctx)
	case ModeInterval:
		return s.runInterval(ctx, job)
	case ModeCron:
		return s.runCron(ctx, job)
	default:
		return fmt.Errorf("unknown scheduler mode: %s", s.mode)
	}
}

func (s *Scheduler) runInterval(ctx context.Context, job Job) error {
	s.logger.Info("Scheduler started", "mode", ModeInterval, "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.runJob(ctx, job)

		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped", "mode", ModeInterval)
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runCron(ctx context.Context, job Job) error {
	// Стандартный 5-польный формат: minute hour day month weekday
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	if _, err := c.AddFunc(s.cronExpr, func() { s.runJob(ctx, job) }); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", s.cronExpr, err)
	}

	s.logger.Info("Scheduler started", "mode", ModeCron, "cron_expr", s.cronExpr)
	c.Start()

	<-ctx.Done()

	stopCtx := c.Stop()
	<-stopCtx.Done()
	s.logger.Info("Scheduler stopped", "mode", ModeCron)
	return nil
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := job(ctx); err != nil {
		s.logger.Error("Scheduled run failed",
			"duration", time.Since(start).String(),
			"error", err.Error(),
		)
		return
	}
	s.logger.Info("Scheduled run finished", "duration", time.Since(start).String())
}
