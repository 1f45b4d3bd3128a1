// Package search provides the concurrent vanity key search engine.
// This file implements the rate monitor that samples search throughput.
package search

import (
	"context"
	"log"
	"math"
	"sync"
	"time"
)

const (
	// DefaultInterval is the rate monitor sampling period.
	DefaultInterval = 250 * time.Millisecond
	// DefaultWindow is the time constant of the smoothed rate.
	DefaultWindow = 5 * time.Second
)

// RateMonitor periodically samples a Progress counter, derives the
// instantaneous and smoothed throughput, and hands each Sample to a sink.
// It only reads the progress state; it never changes the counter or the
// shutdown flag.
// Thread-safe: Start must be called at most once; Stop, Done and Last may be
// called from any goroutine.
type RateMonitor struct {
	last     Sample             // Most recent sample
	sink     func(Sample)       // Receives every sample
	ctx      context.Context    // Context for cancellation
	cancel   context.CancelFunc // Cancel function for shutdown
	done     chan struct{}      // Closed when the sampling loop exits
	interval time.Duration      // Sampling period
	window   time.Duration      // Smoothing time constant
	mu       sync.Mutex         // Protects last
	wg       sync.WaitGroup     // Wait group for graceful shutdown
}

// NewRateMonitor creates a monitor that samples every interval and smooths
// the rate over window. Non-positive values fall back to DefaultInterval
// and DefaultWindow.
//
// Example:
//
//	monitor := NewRateMonitor(250*time.Millisecond, 5*time.Second)
//	monitor.SetSink(reporter.Progress)
//	monitor.Start(progress)
//	defer monitor.Stop()
func NewRateMonitor(interval, window time.Duration) *RateMonitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if window <= 0 {
		window = DefaultWindow
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RateMonitor{
		interval: interval,
		window:   window,
		sink:     func(Sample) {},
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// SetSink sets the function receiving samples. It must be called before Start.
func (m *RateMonitor) SetSink(sink func(Sample)) {
	if sink == nil {
		sink = func(Sample) {}
	}
	m.sink = sink
}

// Start launches the sampling loop for p in its own goroutine. The loop
// runs until shutdown is requested on p or Stop is called.
func (m *RateMonitor) Start(p *Progress) {
	m.wg.Add(1)
	go m.run(p)
	log.Printf("rate monitor started with interval %v (window %v)", m.interval, m.window)
}

// Done is closed once the sampling loop has exited.
func (m *RateMonitor) Done() <-chan struct{} {
	return m.done
}

func (m *RateMonitor) run(p *Progress) {
	defer m.wg.Done()
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	start := time.Now()
	prevTime := start
	prevCount := p.Examined()
	first := true
	var smoothed float64

	for {
		select {
		case now := <-ticker.C:
			count := p.Examined()
			dt := now.Sub(prevTime).Seconds()
			if dt <= 0 {
				continue
			}
			rate := float64(count-prevCount) / dt
			if first {
				smoothed = rate
				first = false
			} else {
				smoothed = ExpMovingAverage(rate, smoothed, dt, m.window.Seconds())
			}

			s := Sample{
				At:       now,
				Examined: count,
				Rate:     rate,
				Smoothed: smoothed,
				Elapsed:  now.Sub(start),
			}
			m.mu.Lock()
			m.last = s
			m.mu.Unlock()
			m.sink(s)

			prevTime, prevCount = now, count
		case <-p.Done():
			return
		case <-m.ctx.Done():
			return
		}
	}
}

// Stop cancels the monitor and waits for the sampling loop to exit. It is
// safe to call more than once, and before Start.
func (m *RateMonitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

// Last returns the most recent sample, or the zero Sample before the first tick.
func (m *RateMonitor) Last() Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// ExpMovingAverage folds value into the running average old, weighting it
// by how much of the time constant window elapsed (dt, in seconds):
//
//	alpha = 1 - exp(-dt/window)
//	avg   = alpha*value + (1-alpha)*old
func ExpMovingAverage(value, old, dt, window float64) float64 {
	if window <= 0 {
		return value
	}
	alpha := 1 - math.Exp(-dt/window)
	return alpha*value + (1-alpha)*old
}
