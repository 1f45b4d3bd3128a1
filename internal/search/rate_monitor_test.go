package search

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateMonitor(t *testing.T) {
	m := NewRateMonitor(100*time.Millisecond, 2*time.Second)
	defer m.Stop()

	assert.Equal(t, 100*time.Millisecond, m.interval)
	assert.Equal(t, 2*time.Second, m.window)
	assert.NotNil(t, m.sink)
	assert.NotNil(t, m.ctx)
	assert.Equal(t, Sample{}, m.Last())

	d := NewRateMonitor(0, -1)
	defer d.Stop()
	assert.Equal(t, DefaultInterval, d.interval)
	assert.Equal(t, DefaultWindow, d.window)
}

func TestExpMovingAverage(t *testing.T) {
	tests := []struct {
		name                   string
		value, old, dt, window float64
		want                   float64
	}{
		{name: "no elapsed time keeps old", value: 100, old: 50, dt: 0, window: 5, want: 50},
		{name: "long gap converges to value", value: 100, old: 50, dt: 1000, window: 5, want: 100},
		{name: "zero window returns value", value: 7, old: 3, dt: 1, window: 0, want: 7},
		{name: "one time constant", value: 100, old: 0, dt: 5, window: 5, want: 100 * (1 - math.Exp(-1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpMovingAverage(tt.value, tt.old, tt.dt, tt.window)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

// TestRateMonitorSamples runs the monitor next to a busy writer and checks
// that samples never go backwards and rates are sane.
func TestRateMonitorSamples(t *testing.T) {
	p := NewProgress()
	m := NewRateMonitor(50*time.Millisecond, 200*time.Millisecond)

	var mu sync.Mutex
	var samples []Sample
	m.SetSink(func(s Sample) {
		mu.Lock()
		samples = append(samples, s)
		mu.Unlock()
	})

	m.Start(p)
	defer m.Stop()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for !p.Stopped() {
			p.Add()
		}
	}()

	time.Sleep(300 * time.Millisecond)
	p.Stop()
	<-writerDone

	select {
	case <-m.Done():
	case <-time.After(50 * time.Millisecond):
		t.Fatal("monitor did not stop within one tick of shutdown")
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, samples)
	for i := 1; i < len(samples); i++ {
		assert.GreaterOrEqual(t, samples[i].Examined, samples[i-1].Examined, "sample %d went backwards", i)
		assert.True(t, samples[i].At.After(samples[i-1].At))
	}
	for _, s := range samples {
		assert.GreaterOrEqual(t, s.Rate, 0.0)
		assert.GreaterOrEqual(t, s.Smoothed, 0.0)
	}
	assert.Equal(t, samples[len(samples)-1], m.Last())
}

// TestRateMonitorStop verifies Stop returns promptly and leaves progress untouched.
func TestRateMonitorStop(t *testing.T) {
	p := NewProgress()
	p.Add()
	m := NewRateMonitor(time.Hour, time.Second)

	m.Start(p)
	time.Sleep(10 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
	select {
	case <-m.Done():
	default:
		t.Fatal("Stop returned before the sampling loop exited")
	}

	assert.False(t, p.Stopped(), "monitor must not request shutdown")
	assert.Equal(t, uint64(1), p.Examined())
}

// TestRateMonitorFirstSampleSeedsAverage verifies the first sample's smoothed
// rate equals its instantaneous rate.
func TestRateMonitorFirstSampleSeedsAverage(t *testing.T) {
	p := NewProgress()
	m := NewRateMonitor(20*time.Millisecond, time.Hour)

	first := make(chan Sample, 1)
	m.SetSink(func(s Sample) {
		select {
		case first <- s:
		default:
		}
	})
	m.Start(p)
	defer m.Stop()

	for i := 0; i < 100; i++ {
		p.Add()
	}

	select {
	case s := <-first:
		assert.Equal(t, s.Rate, s.Smoothed)
	case <-time.After(time.Second):
		t.Fatal("no sample received")
	}
}

// TestRateMonitorStopRightAfterStart stops monitors immediately after
// starting them, with and without a pending shutdown, and checks Stop always
// waits for the loop. Stop before Start must not block.
func TestRateMonitorStopRightAfterStart(t *testing.T) {
	idle := NewRateMonitor(time.Hour, time.Second)
	idle.Stop()
	idle.Stop()

	for i := 0; i < 200; i++ {
		p := NewProgress()
		if i%2 == 0 {
			p.Stop()
		}
		m := NewRateMonitor(time.Millisecond, time.Second)
		m.Start(p)
		m.Stop()
		select {
		case <-m.Done():
		default:
			t.Fatalf("run %d: Stop returned before the sampling loop exited", i)
		}
	}
}
