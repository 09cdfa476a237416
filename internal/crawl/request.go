package crawl

import (
	"bytes"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"news-archive-parser/internal/fetcher"
)

// Phase says which step of a strategy a request belongs to.
type Phase int

const (
	PhasePage Phase = iota
	PhaseBootstrap
	PhaseAJAX
)

func (p Phase) String() string {
	switch p {
	case PhasePage:
		return "page"
	case PhaseBootstrap:
		return "bootstrap"
	case PhaseAJAX:
		return "ajax"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Request is one outbound fetch. Page and Offset are the state token at
// dispatch time; they travel with the Response so the continuation decision
// never depends on mutable chain state.
type Request struct {
	URL    string
	Phase  Phase
	Page   int
	Offset int
}

// Response pairs fetched content with the Request that produced it.
type Response struct {
	Request *Request
	URL     *url.URL
	Body    []byte
	Doc     *goquery.Document
}

// NewResponse parses a transport result into a Response bound to req.
func NewResponse(req *Request, fr *fetcher.FetchResponse) (*Response, error) {
	finalURL := fr.URL
	if finalURL == "" {
		finalURL = req.URL
	}
	u, err := url.Parse(finalURL)
	if err != nil {
		return nil, fmt.Errorf("parse response url %q: %w", finalURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(fr.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html from %s: %w", finalURL, err)
	}

	return &Response{Request: req, URL: u, Body: fr.Body, Doc: doc}, nil
}
