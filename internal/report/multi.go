package report

import "github.com/dreamware/sshchic/internal/search"

// Multi forwards every event to each reporter in order.
type Multi []search.Reporter

// Match forwards m.
func (r Multi) Match(m search.Match) {
	for _, rep := range r {
		rep.Match(m)
	}
}

// Progress forwards s.
func (r Multi) Progress(s search.Sample) {
	for _, rep := range r {
		rep.Progress(s)
	}
}
