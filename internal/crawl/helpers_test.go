package crawl

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"news-archive-parser/internal/config"
	"news-archive-parser/internal/fetcher"
	"news-archive-parser/internal/normalize"
	"news-archive-parser/internal/observability"
	"news-archive-parser/internal/scraper"
)

const (
	freieBase    = "https://www.freiepresse.de"
	ruhrStart    = "https://www.ruhrnachrichten.de/dortmund"
	ruhrTemplate = "https://www.ruhrnachrichten.de/api/tns/more-articles/?offset={offset}&per_page={per_page}&order={order}&dateheading={dateheading}&tag={tag}&familytag={familytag}&immobilientag={immobilientag}&unternehmens_tag={unternehmens_tag}"
)

type fakeTransport struct {
	mu        sync.Mutex
	pages     map[string]string
	fail      map[string]error
	requested []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{pages: map[string]string{}, fail: map[string]error{}}
}

func (f *fakeTransport) Fetch(ctx context.Context, u string) (*fetcher.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, u)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.fail[u]; ok {
		return nil, err
	}
	body, ok := f.pages[u]
	if !ok {
		return nil, fmt.Errorf("unexpected url %s", u)
	}
	return &fetcher.FetchResponse{StatusCode: 200, Body: []byte(body), URL: u}, nil
}

func (f *fakeTransport) Requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requested...)
}

func freiePage(n int) string {
	var b strings.Builder
	b.WriteString("<html><body><main>")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<a class="article-preview card" href="/artikel-%d"><div class="article-preview__title">Titel %d</div></a>`, i, i)
	}
	b.WriteString("</main></body></html>")
	return b.String()
}

func ruhrItems(b *strings.Builder, n, start int) {
	for i := 0; i < n; i++ {
		fmt.Fprintf(b, `<article class="teaser-bundle__item"><h3 class="teaser-title"><span class="teaser__link">Artikel %d</span></h3><a href="/dortmund/artikel-%d">mehr</a></article>`, start+i, start+i)
	}
}

// ruhrBootstrap renders n inline items and, when button is non-empty, a
// load-more control with the given attributes.
func ruhrBootstrap(n int, button string) string {
	var b strings.Builder
	b.WriteString(`<html><body><section class="teaser-bundle">`)
	ruhrItems(&b, n, 0)
	if button != "" {
		fmt.Fprintf(&b, `<button class="load-more-button teaser-bundle__more-button" %s>Mehr Artikel</button>`, button)
	}
	b.WriteString(`</section></body></html>`)
	return b.String()
}

func ruhrBatch(n, start int) string {
	var b strings.Builder
	ruhrItems(&b, n, start)
	return b.String()
}

func ajaxURL(offset, perPage int, params map[string]string) string {
	return BuildAJAXURL(ruhrTemplate, offset, perPage, params)
}

func freieSource() *config.SourceConfig {
	return &config.SourceConfig{
		Name:         "freiepresse",
		Strategy:     config.StrategySequential,
		ItemSelector: "a.article-preview.card",
		Sequential: config.SequentialConfig{
			BaseURL:   freieBase,
			PagePath:  "/archiv",
			PageParam: "page",
		},
		Fields: []scraper.FieldSpec{
			{Name: "titel", Selectors: []string{".article-preview__title"}},
			{Name: "link", Attr: "href", Kind: scraper.KindURL},
			{Name: "teaser", Selectors: []string{".article-preview__teaser"}},
		},
	}
}

func ruhrSource() *config.SourceConfig {
	return &config.SourceConfig{
		Name:         "ruhr",
		Strategy:     config.StrategyOffsetAJAX,
		ItemSelector: "article.teaser-bundle__item",
		OffsetAJAX: config.OffsetAJAXConfig{
			StartURL:         ruhrStart,
			LoadMoreSelector: ".load-more-button.teaser-bundle__more-button",
			EndpointTemplate: ruhrTemplate,
		},
		Fields: []scraper.FieldSpec{
			{Name: "titel", Selectors: []string{".teaser-title span.teaser__link"}},
			{Name: "link", Selectors: []string{"a"}, Attr: "href", Kind: scraper.KindURL},
			{Name: "datum", Selectors: []string{".teaser__date"}},
		},
	}
}

func newDriver(t *testing.T, src *config.SourceConfig, transport Transport) *Driver {
	t.Helper()
	logger := observability.NewNop()
	strategy, err := NewStrategy(src, logger)
	require.NoError(t, err)
	extractor := scraper.NewSelectorExtractor(src.Fields, normalize.Options{CollapseSpaces: true})
	return NewDriver(src.Name, strategy, extractor, transport, logger)
}

func collect(records *[]scraper.Record) EmitFunc {
	return func(rec scraper.Record) error {
		*records = append(*records, rec)
		return nil
	}
}
