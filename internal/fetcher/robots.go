package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

const maxRobotsBodyBytes = 512 * 1024

// RobotsChecker кэширует robots.txt по хосту. Если robots.txt недоступен,
// хост считается открытым.
type RobotsChecker struct {
	client    *http.Client
	userAgent string
	ttl       time.Duration
	cache     map[string]*robotsEntry
	mu        sync.RWMutex
	// параллельные цепочки одного хоста качают robots.txt один раз
	group singleflight.Group
}

type robotsEntry struct {
	data      *robotstxt.RobotsData
	expiresAt time.Time
}

func NewRobotsChecker(client *http.Client, userAgent string, ttl time.Duration) *RobotsChecker {
	return &RobotsChecker{
		client:    client,
		userAgent: userAgent,
		ttl:       ttl,
		cache:     make(map[string]*robotsEntry),
	}
}

func (rc *RobotsChecker) IsAllowed(ctx context.Context, urlStr string) (bool, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return false, fmt.Errorf("robots: parse url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	if host == "" {
		return false, fmt.Errorf("robots: empty host in url %q", urlStr)
	}

	rc.mu.RLock()
	cached, exists := rc.cache[host]
	rc.mu.RUnlock()

	if !exists || time.Now().After(cached.expiresAt) {
		// Общий запрос не должен зависеть от отмены контекста одной цепочки
		shared := context.WithoutCancel(ctx)
		v, _, _ := rc.group.Do(host, func() (interface{}, error) {
			rc.mu.RLock()
			fresh, ok := rc.cache[host]
			rc.mu.RUnlock()
			if ok && time.Now().Before(fresh.expiresAt) {
				return fresh, nil
			}

			entry, definitive := rc.fetch(shared, parsed.Scheme, host)
			if definitive {
				rc.mu.Lock()
				rc.cache[host] = entry
				rc.mu.Unlock()
			}
			return entry, nil
		})
		cached = v.(*robotsEntry)
	}

	if cached.data == nil {
		return true, nil
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}
	return cached.data.TestAgent(path, rc.userAgent), nil
}

// fetch никогда не падает: любая ошибка → allow all (data == nil).
// definitive == true только для ответов, которые можно кэшировать на весь TTL:
// разобранный 2xx или 4xx (robots.txt отсутствует). Сетевые ошибки и 5xx не кэшируются.
func (rc *RobotsChecker) fetch(ctx context.Context, scheme, host string) (entry *robotsEntry, definitive bool) {
	entry = &robotsEntry{expiresAt: time.Now().Add(rc.ttl)}
	if scheme == "" {
		scheme = "https"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, scheme+"://"+host+"/robots.txt", http.NoBody)
	if err != nil {
		return entry, false
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := rc.client.Do(req)
	if err != nil {
		return entry, false
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError:
		// robots.txt нет: ограничений нет
		return entry, true
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return entry, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBodyBytes))
	if err != nil {
		return entry, false
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return entry, false
	}
	entry.data = data
	return entry, true
}
