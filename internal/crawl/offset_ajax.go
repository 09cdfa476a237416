package crawl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"news-archive-parser/internal/config"
	"news-archive-parser/internal/observability"
)

// AJAX endpoint placeholders. Every one of them is substituted on every
// request, with "" when the captured blob does not carry the key.
const (
	PlaceholderOffset  = "offset"
	PlaceholderPerPage = "per_page"
)

var ParamPlaceholders = []string{
	"order",
	"dateheading",
	"tag",
	"familytag",
	"immobilientag",
	"unternehmens_tag",
}

// OffsetAJAX reads a bootstrap page with a "load more" button, then pages
// through the AJAX endpoint by offset until a batch comes back empty.
type OffsetAJAX struct {
	startURL     string
	loadMore     string
	perPageAttr  string
	paramsAttr   string
	defPerPage   int
	template     string
	itemSelector string
	logger       *observability.Logger
}

func NewOffsetAJAX(cfg config.OffsetAJAXConfig, itemSelector string, logger *observability.Logger) (*OffsetAJAX, error) {
	start, err := url.Parse(cfg.StartURL)
	if err != nil || !start.IsAbs() {
		return nil, fmt.Errorf("start url must be absolute: %q", cfg.StartURL)
	}
	if itemSelector == "" {
		return nil, fmt.Errorf("item selector is required")
	}
	if cfg.LoadMoreSelector == "" || cfg.EndpointTemplate == "" {
		return nil, fmt.Errorf("load more selector and endpoint template are required")
	}

	perPage := cfg.DefaultPerPage
	if perPage <= 0 {
		perPage = config.DefaultPerPage
	}

	return &OffsetAJAX{
		startURL:     start.String(),
		loadMore:     cfg.LoadMoreSelector,
		perPageAttr:  orDefault(cfg.PerPageAttr, "data-per-load"),
		paramsAttr:   orDefault(cfg.ParamsAttr, "data-last-param"),
		defPerPage:   perPage,
		template:     cfg.EndpointTemplate,
		itemSelector: itemSelector,
		logger:       logger,
	}, nil
}

func (s *OffsetAJAX) Kind() Kind { return KindOffsetAJAX }

func (s *OffsetAJAX) Initial(st *State) (*Request, error) {
	st.Offset = 0
	return &Request{URL: s.startURL, Phase: PhaseBootstrap}, nil
}

func (s *OffsetAJAX) Items(resp *Response) *goquery.Selection {
	return resp.Doc.Find(s.itemSelector)
}

func (s *OffsetAJAX) Next(st *State, resp *Response) (*Request, bool) {
	if st.Terminated {
		return nil, false
	}

	count := s.Items(resp).Length()
	if count == 0 {
		s.logger.Info("No more items, chain finished",
			"phase", resp.Request.Phase.String(),
			"offset", resp.Request.Offset,
		)
		st.Terminated = true
		return nil, false
	}

	if resp.Request.Phase == PhaseBootstrap {
		return s.bootstrap(st, resp, count)
	}

	next := resp.Request.Offset + count
	if next > st.Offset {
		st.Offset = next
	}
	return s.ajaxRequest(st, resp.URL, next)
}

// bootstrap captures per-page count and the parameter blob from the first
// page. The inline items already on that page are emitted by the driver and
// counted here as the initial offset, so they are never requested again.
func (s *OffsetAJAX) bootstrap(st *State, resp *Response, inline int) (*Request, bool) {
	button := resp.Doc.Find(s.loadMore).First()
	if button.Length() == 0 {
		s.logger.Info("No load-more control on bootstrap page, chain finished",
			"url", resp.URL.String(),
			"inline_items", inline,
		)
		st.Terminated = true
		return nil, false
	}

	if !st.Captured {
		st.PerPage = s.parsePerPage(button)
		st.FixedParams = s.parseParams(st, button)
		st.Captured = true
	}

	if inline > st.Offset {
		st.Offset = inline
	}
	return s.ajaxRequest(st, resp.URL, inline)
}

func (s *OffsetAJAX) parsePerPage(button *goquery.Selection) int {
	raw, ok := button.Attr(s.perPageAttr)
	if !ok {
		s.logger.Warn("Load-more control has no per-page attribute, using default",
			"attr", s.perPageAttr,
			"default", s.defPerPage,
		)
		return s.defPerPage
	}

	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		s.logger.Warn("Invalid per-page value, using default",
			"attr", s.perPageAttr,
			"value", raw,
			"default", s.defPerPage,
		)
		return s.defPerPage
	}
	return n
}

// parseParams never fails: a missing or broken blob yields an empty mapping
// and a diagnostic on the chain state.
func (s *OffsetAJAX) parseParams(st *State, button *goquery.Selection) map[string]string {
	raw, ok := button.Attr(s.paramsAttr)
	var (
		params map[string]string
		err    error
	)
	if ok {
		params, err = ParseParamBlob(raw)
	} else {
		err = fmt.Errorf("attribute %s missing", s.paramsAttr)
	}
	if err != nil {
		s.logger.Error("Failed to parse parameter blob, using empty parameters",
			"attr", s.paramsAttr,
			"value", raw,
			"error", err.Error(),
		)
		st.Diagnostics = append(st.Diagnostics, "parameter blob: "+err.Error())
		return map[string]string{}
	}
	return params
}

func (s *OffsetAJAX) ajaxRequest(st *State, base *url.URL, offset int) (*Request, bool) {
	target := BuildAJAXURL(s.template, offset, st.PerPage, st.FixedParams)

	ref, err := url.Parse(target)
	if err != nil {
		s.logger.Error("Failed to build AJAX url", "url", target, "error", err.Error())
		st.Terminated = true
		return nil, false
	}

	return &Request{
		URL:    base.ResolveReference(ref).String(),
		Phase:  PhaseAJAX,
		Offset: offset,
	}, true
}

// BuildAJAXURL fills the endpoint template. Placeholders are written as
// {name}; values are query-escaped.
func BuildAJAXURL(template string, offset, perPage int, params map[string]string) string {
	pairs := []string{
		"{" + PlaceholderOffset + "}", strconv.Itoa(offset),
		"{" + PlaceholderPerPage + "}", strconv.Itoa(perPage),
	}
	for _, name := range ParamPlaceholders {
		pairs = append(pairs, "{"+name+"}", url.QueryEscape(params[name]))
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// ParseParamBlob decodes the JSON object stored on the load-more control.
// Scalars are kept as text, null becomes "", nested values stay compact JSON.
func ParseParamBlob(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty parameter blob")
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var decoded map[string]any
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode parameter blob: %w", err)
	}
	if decoded == nil {
		return nil, fmt.Errorf("parameter blob is not an object")
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("decode parameter blob: trailing data after object")
	}

	params := make(map[string]string, len(decoded))
	for k, v := range decoded {
		switch val := v.(type) {
		case nil:
			params[k] = ""
		case string:
			params[k] = val
		case json.Number:
			params[k] = val.String()
		case bool:
			params[k] = strconv.FormatBool(val)
		default:
			var buf bytes.Buffer
			enc := json.NewEncoder(&buf)
			enc.SetEscapeHTML(false)
			if err := enc.Encode(val); err != nil {
				return nil, fmt.Errorf("encode parameter %q: %w", k, err)
			}
			params[k] = strings.TrimSpace(buf.String())
		}
	}
	return params, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
