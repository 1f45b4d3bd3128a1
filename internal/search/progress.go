// Package search provides the concurrent vanity key search engine.
// This file implements the progress state shared by workers, the rate
// monitor and the coordinator.
package search

import (
	"sync/atomic"
)

// Progress is the only state mutated across goroutines during a run: a
// monotonically increasing count of examined candidates, a one-way shutdown
// flag, and a one-way claim used to persist exactly one match in
// single-shot mode.
// Thread-safe: every field is accessed atomically; no locks are taken.
type Progress struct {
	examined atomic.Uint64 // Candidates examined across all workers
	stopped  atomic.Bool   // Shutdown requested; never reverts to false
	claimed  atomic.Bool   // A worker owns the single-shot match
	done     chan struct{} // Closed on the stopped transition
}

// NewProgress returns a zeroed progress state ready for one run.
func NewProgress() *Progress {
	return &Progress{done: make(chan struct{})}
}

// Add records one examined candidate and returns the new total.
func (p *Progress) Add() uint64 {
	return p.examined.Add(1)
}

// Examined returns the number of candidates examined so far. Concurrent
// readers may see a value that lags the true total but never exceeds it.
func (p *Progress) Examined() uint64 {
	return p.examined.Load()
}

// Stop requests shutdown. It is safe to call any number of times from any
// goroutine; only the first call performs the transition and returns true.
func (p *Progress) Stop() bool {
	if !p.stopped.CompareAndSwap(false, true) {
		return false
	}
	close(p.done)
	return true
}

// Stopped reports whether shutdown has been requested.
func (p *Progress) Stopped() bool {
	return p.stopped.Load()
}

// Done returns a channel that is closed once shutdown has been requested.
func (p *Progress) Done() <-chan struct{} {
	return p.done
}

// Claim marks the single-shot match as taken. Only the first caller gets
// true; every later caller must discard its match.
func (p *Progress) Claim() bool {
	return p.claimed.CompareAndSwap(false, true)
}

// Claimed reports whether a worker has claimed the single-shot match.
func (p *Progress) Claimed() bool {
	return p.claimed.Load()
}
