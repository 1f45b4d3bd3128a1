package search

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/sshchic/internal/keygen"
	"github.com/dreamware/sshchic/internal/pattern"
)

// fixedCandidate returns the deterministic candidate for a repeated seed byte.
func fixedCandidate(t *testing.T, b byte) *keygen.Candidate {
	t.Helper()
	c, err := keygen.FromSeed(bytes.Repeat([]byte{b}, ed25519.SeedSize))
	require.NoError(t, err)
	return c
}

// constGenerator always returns the same candidate.
func constGenerator(c *keygen.Candidate) Generator {
	return GeneratorFunc(func() (*keygen.Candidate, error) { return c, nil })
}

// neverMatch compiles a pattern no non-empty target can satisfy.
func neverMatch() *pattern.Matcher {
	return pattern.MustCompile("^$", false, pattern.TargetPublicKey)
}

// recordingReporter collects everything it receives.
type recordingReporter struct {
	mu      sync.Mutex
	matches []Match
	samples []Sample
}

func (r *recordingReporter) Match(m Match) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches = append(r.matches, m)
}

func (r *recordingReporter) Progress(s Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
}

func (r *recordingReporter) Matches() []Match {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Match(nil), r.matches...)
}

func (r *recordingReporter) Samples() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sample(nil), r.samples...)
}

// countingPersister counts Persist calls and can be made to fail.
type countingPersister struct {
	calls atomic.Int32
	fail  bool
	gate  chan struct{} // When set, Persist waits on it
}

func (p *countingPersister) Persist(c *keygen.Candidate) ([]string, error) {
	p.calls.Add(1)
	if p.gate != nil {
		<-p.gate
	}
	if p.fail {
		return nil, errors.New("disk full")
	}
	return []string{"id_ed25519", "id_ed25519.pub"}, nil
}
