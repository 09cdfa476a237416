package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"news-archive-parser/internal/config"
	"news-archive-parser/internal/observability"
)

// RodFetcher отдаёт HTML после рендера в headless Chrome.
// Нужен для архивов, где листинг дорисовывается скриптами.
type RodFetcher struct {
	browser     *rod.Browser
	cfg         *config.Config
	logger      *observability.Logger
	rateLimiter *RateLimiter
}

func NewRodFetcher(cfg *config.Config, logger *observability.Logger) (*RodFetcher, error) {
	l := launcher.New().Headless(true)
	if cfg.Rod.ChromePath != "" {
		l = l.Bin(cfg.Rod.ChromePath)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	logger.Info("Headless browser started", "control_url", controlURL)

	return &RodFetcher{
		browser:     browser,
		cfg:         cfg,
		logger:      logger,
		rateLimiter: NewRateLimiter(cfg.RateLimit.MaxConcurrentPerHost, cfg.RateLimit.RPM),
	}, nil
}

func (r *RodFetcher) Fetch(ctx context.Context, urlStr string) (*FetchResponse, error) {
	host, err := hostOf(urlStr)
	if err != nil {
		return nil, err
	}
	release, err := r.rateLimiter.Acquire(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}
	defer release()

	page, err := r.browser.Context(ctx).Timeout(r.cfg.GetRodPageTimeout()).Page(proto.TargetCreateTarget{URL: urlStr})
	if err != nil {
		return nil, fmt.Errorf("open page %s: %w", urlStr, err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			r.logger.Warn("Failed to close page", "url", urlStr, "error", err.Error())
		}
	}()

	if err := page.Timeout(r.cfg.GetRodWaitLoadTimeout()).WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load %s: %w", urlStr, err)
	}

	// Даём ленивой подгрузке дорисовать карточки
	if delay := r.cfg.GetRodLazyLoadDelay(); delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read html %s: %w", urlStr, err)
	}

	finalURL := urlStr
	if info, err := page.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	r.logger.Debug("Rendered page", "url", finalURL, "body_bytes", len(html))

	return &FetchResponse{
		StatusCode: http.StatusOK,
		Body:       []byte(html),
		URL:        finalURL,
		Headers:    http.Header{},
	}, nil
}

func (r *RodFetcher) Close() error {
	return r.browser.Close()
}
