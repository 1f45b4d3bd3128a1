// Package search implements the concurrent engine of sshchic: a pool of
// workers that generate ed25519 candidates, test them against a compiled
// pattern, and report matches, plus the coordinator and rate monitor that
// drive a run.
//
// # Overview
//
// A vanity key search is a CPU-bound lottery. Every worker draws candidates
// independently, so throughput scales with cores as long as the workers
// never wait on each other. The only state shared across goroutines is the
// Progress value: one atomic counter and two one-way atomic flags.
//
// # Architecture
//
//	┌────────────────────────────────────────────┐
//	│               Coordinator                  │
//	├────────────────────────────────────────────┤
//	│  ctx.Done() ──► Progress.Stop()  (once)    │
//	│                                            │
//	│  ┌──────────┐ ┌──────────┐   ┌──────────┐  │
//	│  │ worker 0 │ │ worker 1 │ … │ worker N │  │
//	│  └────┬─────┘ └────┬─────┘   └────┬─────┘  │
//	│       └──── Progress (atomics) ───┘        │
//	│                    │                       │
//	│              RateMonitor ──► Reporter      │
//	└────────────────────────────────────────────┘
//
// # Worker Loop
//
// Each iteration runs in this order:
//  1. Return if shutdown was requested (the only exit point)
//  2. Generate one candidate
//  3. Add exactly one to the shared counter
//  4. Render the match target (public key or fingerprint)
//  5. Test it against the matcher
//  6. On a match, report it; in single-shot mode also claim, stop and persist
//
// # Single-shot Exclusivity
//
// Two workers can find a match in the same instant. Progress.Claim is a
// compare-and-swap, so exactly one of them reports and persists; the other
// discards its candidate and exits. The winner requests shutdown before
// writing files so siblings stop while the files are written.
//
// # Cancellation
//
// Cancellation is cooperative. A worker in the middle of an iteration
// finishes it before it sees the flag, so shutdown latency is one iteration
// (microseconds). Canceling the context passed to Run any number of times
// results in one Stop transition.
//
// # Failure Handling
//
// A worker that panics or whose generator fails returns a *WorkerFault and
// requests shutdown, so its siblings stop promptly. A persistence failure
// is returned as a *PersistError. Run always joins every worker and the
// rate monitor before it returns the joined errors.
//
// # Rate Monitor
//
// The monitor ticks every Options.Interval (250ms by default), computes the
// instantaneous rate from the counter delta, and smooths it with an
// exponentially weighted moving average whose time constant is
// Options.Window (5s by default):
//
//	alpha    = 1 - exp(-dt/window)
//	smoothed = alpha*rate + (1-alpha)*smoothed
//
// # Usage Example
//
//	m := pattern.MustCompile("AAA$", true, pattern.TargetPublicKey)
//	c := search.NewCoordinator(m, search.DefaultOptions())
//	c.SetReporter(report.NewConsole(os.Stdout, enc))
//	c.SetPersister(storage.NewFilePersister(".", "id_ed25519", enc))
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	outcome, err := c.Run(ctx)
//
// # See Also
//
// Related packages:
//   - internal/pattern: compiled matcher and match targets
//   - internal/keygen: candidate generation and encodings
//   - internal/storage: key file persister and match journal
//   - internal/report: console, JSON and webhook reporters
package search
