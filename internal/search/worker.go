// Package search provides the concurrent vanity key search engine.
// This file implements the worker loop that generates and tests candidates.
package search

import (
	"fmt"
	"runtime"
	"time"

	"github.com/dreamware/sshchic/internal/keygen"
	"github.com/dreamware/sshchic/internal/pattern"
)

// worker is one search loop. Everything except progress is private to the
// worker; progress is shared through atomics only.
type worker struct {
	progress  *Progress
	matcher   *pattern.Matcher
	generator Generator
	reporter  Reporter
	persister Persister
	encoder   keygen.Encoder
	saved     []string // Files written by this worker, single-shot only
	id        int
	budget    uint64 // Candidates this worker may examine when bounded
	examined  uint64 // Candidates this worker examined
	matches   uint64 // Matches this worker reported
	streaming bool
	bounded   bool
}

// run loops until shutdown is requested, the budget is spent, or (in
// single-shot mode) a match is found. The shutdown check at the top of the
// loop is the only exit point for a healthy worker. A panic or generator
// failure is returned as a *WorkerFault and requests shutdown so sibling
// workers stop at their next check.
func (w *worker) run() (err error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	defer func() {
		if r := recover(); r != nil {
			err = &WorkerFault{Worker: w.id, Cause: fmt.Errorf("panic: %v", r)}
		}
		if err != nil {
			w.progress.Stop()
		}
	}()

	for {
		if w.progress.Stopped() {
			return nil
		}
		if w.bounded && w.examined >= w.budget {
			return nil
		}

		c, err := w.generator.Generate()
		if err != nil {
			return &WorkerFault{Worker: w.id, Cause: err}
		}
		w.progress.Add()
		w.examined++

		target, err := w.target(c)
		if err != nil {
			return &WorkerFault{Worker: w.id, Cause: err}
		}
		if !w.matcher.Matches(target) {
			continue
		}

		finished, err := w.found(c)
		if err != nil || finished {
			return err
		}
	}
}

// target renders the representation the matcher was compiled for.
func (w *worker) target(c *keygen.Candidate) (string, error) {
	if w.matcher.Target() == pattern.TargetFingerprint {
		return w.encoder.Fingerprint(c)
	}
	return w.encoder.AuthorizedKey(c)
}

// found handles a match and reports whether the worker should exit.
// In single-shot mode only the worker that wins the claim reports and
// persists; a worker losing the race discards its candidate.
func (w *worker) found(c *keygen.Candidate) (bool, error) {
	if !w.streaming {
		if !w.progress.Claim() {
			return true, nil
		}
		w.progress.Stop()
	}

	m, err := w.describe(c)
	if err != nil {
		return true, &WorkerFault{Worker: w.id, Cause: err}
	}
	w.matches++
	w.reporter.Match(m)

	if w.streaming {
		return false, nil
	}
	if w.persister == nil {
		return true, nil
	}
	files, err := w.persister.Persist(c)
	if err != nil {
		return true, &PersistError{Err: err}
	}
	w.saved = files
	return true, nil
}

func (w *worker) describe(c *keygen.Candidate) (Match, error) {
	pub, err := w.encoder.AuthorizedKey(c)
	if err != nil {
		return Match{}, err
	}
	fp, err := w.encoder.Fingerprint(c)
	if err != nil {
		return Match{}, err
	}
	return Match{
		Worker:      w.id,
		Candidate:   c,
		PublicKey:   pub,
		Fingerprint: fp,
		Examined:    w.progress.Examined(),
		FoundAt:     time.Now(),
	}, nil
}
