package crawl

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"news-archive-parser/internal/config"
)

// SequentialPage walks /archiv?page=N until a page comes back without items.
// There is no page cap and no cycle check: an archive that never runs empty
// is crawled forever.
type SequentialPage struct {
	base         *url.URL
	pagePath     string
	pageParam    string
	startPage    int
	itemSelector string
}

func NewSequentialPage(cfg config.SequentialConfig, itemSelector string) (*SequentialPage, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("base url must be absolute: %q", cfg.BaseURL)
	}
	if itemSelector == "" {
		return nil, fmt.Errorf("item selector is required")
	}
	param := cfg.PageParam
	if param == "" {
		param = "page"
	}

	return &SequentialPage{
		base:         base,
		pagePath:     cfg.PagePath,
		pageParam:    param,
		startPage:    cfg.StartPage,
		itemSelector: itemSelector,
	}, nil
}

func (s *SequentialPage) Kind() Kind { return KindSequentialPage }

func (s *SequentialPage) Initial(st *State) (*Request, error) {
	st.PageNumber = s.startPage
	target, err := s.pageURL(s.base, s.startPage)
	if err != nil {
		return nil, err
	}
	return &Request{URL: target, Phase: PhasePage, Page: s.startPage}, nil
}

func (s *SequentialPage) Items(resp *Response) *goquery.Selection {
	return resp.Doc.Find(s.itemSelector)
}

func (s *SequentialPage) Next(st *State, resp *Response) (*Request, bool) {
	if st.Terminated {
		return nil, false
	}
	if s.Items(resp).Length() == 0 {
		st.Terminated = true
		return nil, false
	}

	st.PageNumber++

	// The archive path is rebuilt from the template; the response's own
	// query string is never reused.
	target, err := s.pageURL(resp.URL, st.PageNumber)
	if err != nil {
		st.Terminated = true
		return nil, false
	}
	return &Request{URL: target, Phase: PhasePage, Page: st.PageNumber}, true
}

func (s *SequentialPage) pageURL(base *url.URL, page int) (string, error) {
	ref, err := url.Parse(s.pagePath + "?" + url.QueryEscape(s.pageParam) + "=" + strconv.Itoa(page))
	if err != nil {
		return "", fmt.Errorf("build page url: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}
