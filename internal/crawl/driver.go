package crawl

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"news-archive-parser/internal/fetcher"
	"news-archive-parser/internal/observability"
	"news-archive-parser/internal/scraper"
)

// ErrTransport wraps every fetch failure. It ends the chain it happened in
// and nothing else.
var ErrTransport = errors.New("transport failure")

var errStopIteration = errors.New("iteration stopped by consumer")

// Transport fetches one URL. fetcher.Fetcher and fetcher.RodFetcher satisfy it.
type Transport interface {
	Fetch(ctx context.Context, url string) (*fetcher.FetchResponse, error)
}

// Extractor turns one item container into a Record.
type Extractor interface {
	Extract(item *goquery.Selection, base *url.URL) scraper.Record
}

// EmitFunc receives each Record as soon as it is extracted. A non-nil error
// stops the chain.
type EmitFunc func(scraper.Record) error

type Stats struct {
	Source        string
	Kind          Kind
	Requests      int
	Records       int
	LastPage      int
	LastOffset    int
	StoppedReason string
	Diagnostics   []string
}

// Driver runs one chain: fetch, extract, emit, ask the strategy for the next
// request, repeat. The loop is iterative and strictly sequential.
type Driver struct {
	source    string
	strategy  Strategy
	extractor Extractor
	transport Transport
	logger    *observability.Logger
}

func NewDriver(source string, strategy Strategy, extractor Extractor, transport Transport, logger *observability.Logger) *Driver {
	return &Driver{
		source:    source,
		strategy:  strategy,
		extractor: extractor,
		transport: transport,
		logger:    logger.With("source", source, "strategy", strategy.Kind().String()),
	}
}

// Run crawls until the strategy terminates, the transport fails, emit fails
// or ctx is cancelled. Records emitted before an error stay emitted.
func (d *Driver) Run(ctx context.Context, emit EmitFunc) (*Stats, error) {
	st := NewState()
	stats := &Stats{Source: d.source, Kind: d.strategy.Kind()}
	defer func() {
		stats.LastPage = st.PageNumber
		stats.LastOffset = st.Offset
		stats.Diagnostics = append([]string(nil), st.Diagnostics...)
	}()

	req, err := d.strategy.Initial(st)
	if err != nil {
		stats.StoppedReason = "invalid initial request"
		return stats, fmt.Errorf("initial request: %w", err)
	}

	d.logger.Info("Chain started", "url", req.URL)

	for req != nil {
		if err := ctx.Err(); err != nil {
			stats.StoppedReason = "cancelled"
			return stats, err
		}

		resp, err := d.fetch(ctx, req)
		stats.Requests++
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				stats.StoppedReason = "cancelled"
				return stats, ctxErr
			}
			d.logger.Error("Fetch failed, chain stopped",
				"phase", req.Phase.String(),
				"url", req.URL,
				"error", err.Error(),
			)
			stats.StoppedReason = fmt.Sprintf("fetch error at %s", req.URL)
			return stats, err
		}

		items := d.strategy.Items(resp)
		count := items.Length()

		var emitErr error
		items.EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			if err := emit(d.extractor.Extract(sel, resp.URL)); err != nil {
				emitErr = err
				return false
			}
			stats.Records++
			return true
		})
		if emitErr != nil {
			stats.StoppedReason = "emit failed"
			return stats, emitErr
		}

		d.logger.Info("Page processed",
			"phase", req.Phase.String(),
			"url", req.URL,
			"page", req.Page,
			"offset", req.Offset,
			"items", count,
		)

		next, ok := d.strategy.Next(st, resp)
		if !ok {
			if count == 0 {
				stats.StoppedReason = fmt.Sprintf("no items at %s", req.URL)
			} else {
				stats.StoppedReason = fmt.Sprintf("no continuation after %s", req.URL)
			}
			break
		}
		req = next
	}

	d.logger.Info("Chain finished",
		"requests", stats.Requests,
		"records", stats.Records,
		"reason", stats.StoppedReason,
	)

	return stats, nil
}

// All exposes the chain as a lazy sequence. The crawl advances only while the
// consumer keeps pulling; a chain error is yielded once as the last element.
func (d *Driver) All(ctx context.Context) iter.Seq2[scraper.Record, error] {
	return func(yield func(scraper.Record, error) bool) {
		_, err := d.Run(ctx, func(rec scraper.Record) error {
			if !yield(rec, nil) {
				return errStopIteration
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStopIteration) {
			yield(scraper.Record{}, err)
		}
	}
}

func (d *Driver) fetch(ctx context.Context, req *Request) (*Response, error) {
	fr, err := d.transport.Fetch(ctx, req.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTransport, req.URL, err)
	}
	resp, err := NewResponse(req, fr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return resp, nil
}
