// Package search provides the concurrent vanity key search engine.
// This file implements the coordinator that owns a run from start to join.
package search

import (
	"context"
	"errors"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/dreamware/sshchic/internal/keygen"
	"github.com/dreamware/sshchic/internal/pattern"
)

// Options configures a search run.
type Options struct {
	Encoder       keygen.Encoder // Renders match targets and reported keys
	Workers       int            // Worker goroutines; <= 0 means runtime.NumCPU()
	MaxCandidates uint64         // Total candidate budget; 0 means unlimited
	Interval      time.Duration  // Rate monitor period
	Window        time.Duration  // Rate monitor smoothing window
	Streaming     bool           // Keep searching after a match
}

// DefaultOptions returns the options used when nothing is configured:
// one worker per CPU, single-shot, 250ms sampling over a 5s window.
func DefaultOptions() Options {
	return Options{
		Workers:  runtime.NumCPU(),
		Interval: DefaultInterval,
		Window:   DefaultWindow,
	}
}

// Coordinator runs one search: it spawns the workers, runs the rate
// monitor, turns context cancellation into a shutdown request, and joins
// every worker before returning.
// A Coordinator runs at most once; build a new one for each run.
type Coordinator struct {
	matcher   *pattern.Matcher
	generator Generator
	reporter  Reporter
	persister Persister
	progress  *Progress
	opts      Options
}

// NewCoordinator creates a coordinator for the compiled matcher. The matcher
// must already be valid; pattern errors are reported by pattern.Compile
// before any goroutine starts.
//
// Example:
//
//	m, err := pattern.Compile("AAA$", true, pattern.TargetPublicKey)
//	if err != nil {
//	    return err
//	}
//	c := search.NewCoordinator(m, search.DefaultOptions())
//	c.SetReporter(console)
//	c.SetPersister(storage.NewFilePersister(".", "id_ed25519", enc))
//	outcome, err := c.Run(ctx)
func NewCoordinator(matcher *pattern.Matcher, opts Options) *Coordinator {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Coordinator{
		matcher:   matcher,
		opts:      opts,
		generator: RandomGenerator,
		reporter:  nopReporter{},
		progress:  NewProgress(),
	}
}

// SetGenerator overrides the candidate source. Useful for testing.
func (c *Coordinator) SetGenerator(g Generator) {
	if g != nil {
		c.generator = g
	}
}

// SetReporter sets the sink for matches and progress samples.
func (c *Coordinator) SetReporter(r Reporter) {
	if r != nil {
		c.reporter = r
	}
}

// SetPersister sets where the single-shot match is stored. Without a
// persister single-shot runs still stop on the first match but write nothing.
// Streaming runs never persist.
func (c *Coordinator) SetPersister(p Persister) {
	c.persister = p
}

// Progress exposes the shared state of the run, e.g. to sample it externally.
func (c *Coordinator) Progress() *Progress {
	return c.progress
}

// Workers returns the number of workers Run will start.
func (c *Coordinator) Workers() int {
	return c.opts.Workers
}

// Run searches until a terminating condition is reached and every worker
// has returned:
//   - single-shot mode: the first match (which is persisted exactly once)
//   - streaming mode: cancellation of ctx
//   - either mode: ctx cancellation, candidate budget exhaustion, or a
//     worker fault
//
// Worker faults and persistence failures are joined into the returned
// error. The Outcome is valid even when an error is returned.
func (c *Coordinator) Run(ctx context.Context) (Outcome, error) {
	if c.matcher == nil {
		return Outcome{}, ErrNoMatcher
	}
	p := c.progress
	start := time.Now()

	// Interrupt collaborator: one idempotent shutdown write on cancellation.
	go func() {
		select {
		case <-ctx.Done():
			if p.Stop() {
				log.Println("interrupt received, stopping workers")
			}
		case <-p.Done():
		}
	}()

	monitor := NewRateMonitor(c.opts.Interval, c.opts.Window)
	monitor.SetSink(c.reporter.Progress)
	monitor.Start(p)

	workers := c.spawn()
	log.Printf("search started with %d workers (pattern %q, target %v, streaming %v)",
		len(workers), c.matcher.String(), c.matcher.Target(), c.opts.Streaming)

	errs := make([]error, len(workers))
	var wg sync.WaitGroup
	for i, w := range workers {
		wg.Add(1)
		go func(i int, w *worker) {
			defer wg.Done()
			errs[i] = w.run()
		}(i, w)
	}
	wg.Wait()

	// Budget exhaustion ends the workers without a stop request; make sure
	// the monitor and interrupt goroutines are released.
	p.Stop()
	monitor.Stop()

	out := Outcome{
		Examined:    p.Examined(),
		Elapsed:     time.Since(start),
		Interrupted: ctx.Err() != nil,
		Exhausted:   c.opts.MaxCandidates > 0 && p.Examined() >= c.opts.MaxCandidates,
	}
	for _, w := range workers {
		out.Matches += w.matches
		if w.saved != nil {
			out.Saved = true
			out.Files = w.saved
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		log.Printf("search finished with errors: %v", err)
	}
	return out, err
}

// spawn builds the workers, splitting any candidate budget evenly.
func (c *Coordinator) spawn() []*worker {
	n := c.opts.Workers
	workers := make([]*worker, n)
	bounded := c.opts.MaxCandidates > 0
	share := c.opts.MaxCandidates / uint64(n)
	extra := c.opts.MaxCandidates % uint64(n)

	for i := range workers {
		w := &worker{
			id:        i,
			progress:  c.progress,
			matcher:   c.matcher,
			generator: c.generator,
			reporter:  c.reporter,
			persister: c.persister,
			encoder:   c.opts.Encoder,
			streaming: c.opts.Streaming,
			bounded:   bounded,
		}
		if bounded {
			w.budget = share
			if uint64(i) < extra {
				w.budget++
			}
		}
		workers[i] = w
	}
	return workers
}
