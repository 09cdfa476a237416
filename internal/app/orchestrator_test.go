package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news-archive-parser/internal/config"
	"news-archive-parser/internal/crawl"
	"news-archive-parser/internal/fetcher"
	"news-archive-parser/internal/normalize"
	"news-archive-parser/internal/observability"
	"news-archive-parser/internal/scraper"
	"news-archive-parser/internal/storage"
)

const (
	archiveBase = "https://archiv.example.de"
	ajaxStart   = "https://lokal.example.de/dortmund"
	ajaxTmpl    = "https://lokal.example.de/api/more/?offset={offset}&per_page={per_page}&order={order}&tag={tag}"
)

type stubTransport struct {
	mu    sync.Mutex
	pages map[string]string
	fail  map[string]error
}

func (s *stubTransport) Fetch(_ context.Context, u string) (*fetcher.FetchResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.fail[u]; ok {
		return nil, err
	}
	body, ok := s.pages[u]
	if !ok {
		return nil, fmt.Errorf("unexpected url %s", u)
	}
	return &fetcher.FetchResponse{StatusCode: 200, URL: u, Body: []byte(body)}, nil
}

type memoryRepository struct {
	mu        sync.Mutex
	records   []*storage.StoredRecord
	failAt    int
	countFail bool
}

func (m *memoryRepository) SaveRecord(_ context.Context, rec *storage.StoredRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAt > 0 && len(m.records)+1 == m.failAt {
		return errors.New("insert failed")
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memoryRepository) CountBySource(_ context.Context, source string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countFail {
		return 0, errors.New("count failed")
	}
	n := 0
	for _, r := range m.records {
		if r.Source == source {
			n++
		}
	}
	return n, nil
}

func (m *memoryRepository) Close() error { return nil }

func (m *memoryRepository) bySource(source string) []*storage.StoredRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*storage.StoredRecord
	for _, r := range m.records {
		if r.Source == source {
			out = append(out, r)
		}
	}
	return out
}

func listing(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<div class="item"><h2>Meldung %d</h2><a href="/meldung-%d">weiter</a></div>`, i, i)
	}
	return "<html><body>" + b.String() + "</body></html>"
}

func ajaxItems(n, start int, date string) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<article class="teaser"><h3>Artikel %d</h3><time>%s</time><a href="/dortmund/a-%d">mehr</a></article>`, start+i, date, start+i)
	}
	return b.String()
}

func testConfig() *config.Config {
	fields := func(extra ...scraper.FieldSpec) []scraper.FieldSpec {
		return append([]scraper.FieldSpec{
			{Name: "titel", Selectors: []string{"h2", "h3"}},
			{Name: "link", Selectors: []string{"a"}, Attr: "href", Kind: scraper.KindURL},
		}, extra...)
	}

	cfg := &config.Config{
		Sources: []config.SourceConfig{
			{
				Name:         "archiv",
				Enabled:      true,
				Strategy:     config.StrategySequential,
				ItemSelector: "div.item",
				TitleField:   "titel",
				Fields:       fields(),
				Sequential:   config.SequentialConfig{BaseURL: archiveBase, PagePath: "/archiv"},
			},
			{
				Name:         "lokal",
				Enabled:      true,
				Strategy:     config.StrategyOffsetAJAX,
				ItemSelector: "article.teaser",
				TitleField:   "titel",
				DateField:    "datum",
				Fields:       fields(scraper.FieldSpec{Name: "datum", Selectors: []string{"time"}}),
				OffsetAJAX: config.OffsetAJAXConfig{
					StartURL:         ajaxStart,
					LoadMoreSelector: "button.more",
					EndpointTemplate: ajaxTmpl,
				},
			},
			{
				Name:         "aus",
				Enabled:      false,
				Strategy:     config.StrategySequential,
				ItemSelector: "div.item",
				Fields:       fields(),
				Sequential:   config.SequentialConfig{BaseURL: "https://aus.example.de", PagePath: "/archiv"},
			},
		},
		Normalize: normalize.Options{TrimNBSP: true, CollapseSpaces: true},
	}
	cfg.ApplyDefaults()
	return cfg
}

func healthyTransport() *stubTransport {
	boot := `<html><body>` + ajaxItems(2, 0, "13.03.2025") +
		`<button class="more" data-per-load="2" data-last-param='{"order":"date"}'>Mehr</button></body></html>`
	return &stubTransport{
		pages: map[string]string{
			archiveBase + "/archiv?page=0": listing(3),
			archiveBase + "/archiv?page=1": listing(0),
			ajaxStart: boot,
			crawl.BuildAJAXURL(ajaxTmpl, 2, 2, map[string]string{"order": "date"}): ajaxItems(2, 2, "gestern"),
			crawl.BuildAJAXURL(ajaxTmpl, 4, 2, map[string]string{"order": "date"}): "",
		},
		fail: map[string]error{},
	}
}

func newTestOrchestrator(cfg *config.Config, tr crawl.Transport, repo storage.Repository) *Orchestrator {
	o := NewOrchestrator(cfg, observability.NewNop(), tr, repo)
	o.now = func() time.Time { return time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC) }
	return o
}

func TestRunAll_PersistsEveryRecord(t *testing.T) {
	repo := &memoryRepository{}
	o := newTestOrchestrator(testConfig(), healthyTransport(), repo)

	results, err := o.RunAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2, "disabled sources are skipped")

	archiv := repo.bySource("archiv")
	require.Len(t, archiv, 3)
	for i, rec := range archiv {
		assert.Equal(t, i+1, rec.SequenceNum)
		assert.Equal(t, fmt.Sprintf("Meldung %d", i), rec.Title)
		assert.Equal(t, fmt.Sprintf("%s/meldung-%d", archiveBase, i), rec.Link)
		assert.Len(t, rec.CheckSum, 64)
		assert.Nil(t, rec.PublishedAt, "source without date field")
	}

	lokal := repo.bySource("lokal")
	require.Len(t, lokal, 4)
	require.NotNil(t, lokal[0].PublishedAt)
	assert.Equal(t, time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC), *lokal[0].PublishedAt)

	runID := archiv[0].RunID
	assert.NotEmpty(t, runID)
	assert.Equal(t, runID, lokal[0].RunID, "one run id per RunAll")

	for _, res := range results {
		assert.NoError(t, res.Err)
		require.NotNil(t, res.Stats)
		assert.Equal(t, res.Saved, res.Stored, "fresh store holds exactly this run")
	}

	// Второй прогон: хранилище только дописывает, итог по источнику растёт
	again, err := o.RunAll(context.Background(), "archiv")
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, 3, again[0].Saved)
	assert.Equal(t, 6, again[0].Stored)
}

func TestRunAll_ChainFailureDoesNotStopSiblings(t *testing.T) {
	tr := healthyTransport()
	tr.fail[crawl.BuildAJAXURL(ajaxTmpl, 2, 2, map[string]string{"order": "date"})] = errors.New("connection refused")

	repo := &memoryRepository{}
	cfg := testConfig()
	cfg.Concurrency.MaxParallelChains = 1
	o := newTestOrchestrator(cfg, tr, repo)

	results, err := o.RunAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, crawl.ErrTransport)
	assert.Contains(t, err.Error(), "source lokal")

	byName := map[string]ChainResult{}
	for _, r := range results {
		byName[r.Source] = r
	}
	assert.NoError(t, byName["archiv"].Err)
	assert.Equal(t, 3, byName["archiv"].Saved)
	assert.ErrorIs(t, byName["lokal"].Err, crawl.ErrTransport)
	assert.Equal(t, 2, byName["lokal"].Saved, "bootstrap records stay persisted")
	assert.Equal(t, 2, byName["lokal"].Stored)

	n, err := repo.CountBySource(context.Background(), "archiv")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRunAll_StorageFailureStopsOnlyThatChain(t *testing.T) {
	repo := &memoryRepository{failAt: 2}
	cfg := testConfig()
	cfg.Concurrency.MaxParallelChains = 1
	o := newTestOrchestrator(cfg, healthyTransport(), repo)

	results, err := o.RunAll(context.Background(), "archiv")
	require.Error(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Saved)
}

func TestRunAll_CountFailureKeepsChainResult(t *testing.T) {
	repo := &memoryRepository{countFail: true}
	o := newTestOrchestrator(testConfig(), healthyTransport(), repo)

	results, err := o.RunAll(context.Background(), "archiv")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 3, results[0].Saved)
	assert.Equal(t, -1, results[0].Stored)
}

func TestRunAll_NamedSources(t *testing.T) {
	repo := &memoryRepository{}
	o := newTestOrchestrator(testConfig(), healthyTransport(), repo)

	results, err := o.RunAll(context.Background(), "lokal")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "lokal", results[0].Source)
	assert.Empty(t, repo.bySource("archiv"))

	_, err = o.RunAll(context.Background(), "missing")
	assert.Error(t, err)
}

func TestRunAll_NoEnabledSources(t *testing.T) {
	cfg := testConfig()
	for i := range cfg.Sources {
		cfg.Sources[i].Enabled = false
	}
	o := newTestOrchestrator(cfg, healthyTransport(), &memoryRepository{})

	results, err := o.RunAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
}
