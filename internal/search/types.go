package search

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/dreamware/sshchic/internal/keygen"
)

// ErrNoMatcher is returned by Run when the coordinator was built without a matcher.
var ErrNoMatcher = errors.New("search: no matcher configured")

// Match is a candidate whose match target satisfied the pattern.
// The candidate is owned by the receiver once delivered.
type Match struct {
	Candidate   *keygen.Candidate // Matching key pair
	FoundAt     time.Time         // When the worker found it
	PublicKey   string            // "ssh-ed25519 <base64>", no comment
	Fingerprint string            // Rendered SHA256 fingerprint, no prefix
	Examined    uint64            // Progress counter observed at match time
	Worker      int               // Index of the worker that found it
}

// Sample is one rate monitor observation.
type Sample struct {
	At       time.Time     // Wall clock time of the sample
	Examined uint64        // Progress counter value
	Rate     float64       // Keys per second since the previous sample
	Smoothed float64       // Exponentially weighted moving average of Rate
	Elapsed  time.Duration // Time since the monitor started
}

// Reporter receives match notifications from workers and progress samples
// from the rate monitor. Match may be called from several workers at once;
// implementations must be safe for concurrent use and should not block.
type Reporter interface {
	Match(m Match)
	Progress(s Sample)
}

// Persister stores the single match of a single-shot run and returns the
// paths it wrote.
type Persister interface {
	Persist(c *keygen.Candidate) ([]string, error)
}

// Generator produces one fresh candidate per call. Implementations are
// called concurrently from every worker and must not share mutable state.
type Generator interface {
	Generate() (*keygen.Candidate, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func() (*keygen.Candidate, error)

// Generate calls f.
func (f GeneratorFunc) Generate() (*keygen.Candidate, error) { return f() }

// RandomGenerator draws candidates from crypto/rand.
var RandomGenerator Generator = GeneratorFunc(func() (*keygen.Candidate, error) {
	return keygen.Generate(rand.Reader)
})

// Outcome summarizes a finished run.
type Outcome struct {
	Files       []string      // Paths written by the persister, if any
	Examined    uint64        // Total candidates examined
	Matches     uint64        // Matches reported
	Elapsed     time.Duration // Wall time of the run
	Saved       bool          // The single-shot match was persisted
	Interrupted bool          // The run ended because the context was canceled
	Exhausted   bool          // The candidate budget was used up
}

// WorkerFault is returned when a worker fails unexpectedly, either because
// candidate generation failed or because the worker panicked.
type WorkerFault struct {
	Cause  error
	Worker int
}

func (e *WorkerFault) Error() string {
	return fmt.Sprintf("worker %d: %v", e.Worker, e.Cause)
}

func (e *WorkerFault) Unwrap() error { return e.Cause }

// PersistError wraps a failure to store the single-shot match.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist match: %v", e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

type nopReporter struct{}

func (nopReporter) Match(Match)     {}
func (nopReporter) Progress(Sample) {}
