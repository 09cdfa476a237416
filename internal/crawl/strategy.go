package crawl

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"news-archive-parser/internal/config"
	"news-archive-parser/internal/observability"
)

// Kind tags the pagination variant.
type Kind int

const (
	KindSequentialPage Kind = iota
	KindOffsetAJAX
)

func (k Kind) String() string {
	switch k {
	case KindSequentialPage:
		return config.StrategySequential
	case KindOffsetAJAX:
		return config.StrategyOffsetAJAX
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case config.StrategySequential:
		return KindSequentialPage, nil
	case config.StrategyOffsetAJAX:
		return KindOffsetAJAX, nil
	default:
		return 0, fmt.Errorf("unknown pagination strategy: %q", s)
	}
}

// Strategy decides what to fetch next. Implementations hold configuration
// only; everything that changes during a crawl lives in *State.
type Strategy interface {
	Kind() Kind
	// Initial returns the first request of the chain.
	Initial(st *State) (*Request, error)
	// Items returns the item containers found in resp.
	Items(resp *Response) *goquery.Selection
	// Next returns the request that continues the chain, or false when the
	// chain is finished. Once it has returned false it always returns false.
	Next(st *State, resp *Response) (*Request, bool)
}

// NewStrategy builds the variant named by src.Strategy.
func NewStrategy(src *config.SourceConfig, logger *observability.Logger) (Strategy, error) {
	kind, err := ParseKind(src.Strategy)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindSequentialPage:
		return NewSequentialPage(src.Sequential, src.ItemSelector)
	default:
		return NewOffsetAJAX(src.OffsetAJAX, src.ItemSelector, logger)
	}
}
