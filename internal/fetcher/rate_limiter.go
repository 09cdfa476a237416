package fetcher

import (
	"context"
	"sync"
	"time"
)

// RateLimiter ограничивает запросы к одному хосту: не больше maxConcurrent
// одновременных запросов и не больше rpm запросов в минутном окне.
// Цепочки разных источников на один хост делят этот лимит.
type RateLimiter struct {
	maxConcurrent int
	rpm           int
	window        time.Duration
	hosts         map[string]*hostLimiter
	mu            sync.Mutex
}

type hostLimiter struct {
	sem         chan struct{}
	windowStart time.Time
	requests    int
	mu          sync.Mutex
}

func NewRateLimiter(maxConcurrent, rpm int) *RateLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &RateLimiter{
		maxConcurrent: maxConcurrent,
		rpm:           rpm,
		window:        time.Minute,
		hosts:         make(map[string]*hostLimiter),
	}
}

func (rl *RateLimiter) limiterFor(host string) *hostLimiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.hosts[host]
	if !exists {
		limiter = &hostLimiter{sem: make(chan struct{}, rl.maxConcurrent)}
		rl.hosts[host] = limiter
	}
	return limiter
}

// Acquire блокирует до появления свободного слота для host или до отмены ctx.
// Слот занят до вызова release, поэтому его держат на всё время запроса.
func (rl *RateLimiter) Acquire(ctx context.Context, host string) (release func(), err error) {
	limiter := rl.limiterFor(host)

	select {
	case limiter.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	release = func() { <-limiter.sem }

	if rl.rpm <= 0 {
		return release, nil
	}

	for {
		wait := limiter.reserve(time.Now(), rl.rpm, rl.window)
		if wait <= 0 {
			return release, nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			release()
			return nil, ctx.Err()
		}
	}
}

// reserve занимает слот в текущем окне или возвращает, сколько ждать до следующего
func (h *hostLimiter) reserve(now time.Time, rpm int, window time.Duration) time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()

	if now.Sub(h.windowStart) >= window {
		h.windowStart = now
		h.requests = 0
	}

	if h.requests < rpm {
		h.requests++
		return 0
	}

	return window - now.Sub(h.windowStart)
}
