package crawl

// State is the mutable state of one crawl chain. A Driver creates a fresh
// State per run and never shares it with another chain.
type State struct {
	// Sequential-Page
	PageNumber int

	// Offset-AJAX
	Offset      int
	PerPage     int
	FixedParams map[string]string
	Captured    bool

	Terminated bool

	// Recoverable problems seen during the chain, e.g. a broken parameter blob.
	Diagnostics []string
}

func NewState() *State {
	return &State{FixedParams: map[string]string{}}
}

// Param returns a captured parameter, or "" when the blob did not carry it.
func (s *State) Param(name string) string {
	return s.FixedParams[name]
}
