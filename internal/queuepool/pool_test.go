package queuepool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"lottied/internal/looper"
	"lottied/internal/metrics"
)

func newTestPool(t *testing.T, cfg Config) (*looper.Loop, *Pool) {
	t.Helper()
	l := looper.New(zerolog.Nop()).Start()
	t.Cleanup(l.Close)
	var p *Pool
	_ = l.Call(func() { p = New(l, cfg) })
	t.Cleanup(func() { _ = l.Call(p.Close) })
	return l, p
}

func stats(t *testing.T, l *looper.Loop, p *Pool) Stats {
	t.Helper()
	var s Stats
	if err := l.Call(func() { s = p.Stats() }); err != nil {
		t.Fatalf("call: %v", err)
	}
	return s
}

// eventually polls cond on the loop until it holds or the deadline passes.
func eventually(t *testing.T, l *looper.Loop, p *Pool, cond func(Stats) bool) Stats {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		s := stats(t, l, p)
		if cond(s) {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met, last stats: %+v", s)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewDefaults(t *testing.T) {
	p := New(looper.New(zerolog.Nop()), Config{})
	if p.maxCount != defaultMaxQueues {
		t.Fatalf("expected default max %d got %d", defaultMaxQueues, p.maxCount)
	}
	if p.idleTimeout != defaultIdleTimeout {
		t.Fatalf("expected default idle timeout %v got %v", defaultIdleTimeout, p.idleTimeout)
	}
}

func TestSubmitRunsAndReturnsQueueToIdle(t *testing.T) {
	l, p := newTestPool(t, Config{MaxQueues: 2})
	var ran atomic.Int32
	_ = l.Call(func() {
		for i := 0; i < 5; i++ {
			p.Submit(func() { ran.Add(1) })
		}
	})
	s := eventually(t, l, p, func(s Stats) bool { return s.Outstanding == 0 })
	if ran.Load() != 5 {
		t.Fatalf("expected 5 runs, got %d", ran.Load())
	}
	if s.Busy != 0 || s.Idle == 0 {
		t.Fatalf("expected all queues idle, got %+v", s)
	}
}

func TestSaturationCountsBackpressure(t *testing.T) {
	l, p := newTestPool(t, Config{MaxQueues: 1})
	c := metrics.Backpressure.WithLabelValues(metrics.ReasonQueueSaturated)
	before := testutil.ToFloat64(c)
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(3)
	_ = l.Call(func() {
		for i := 0; i < 3; i++ {
			p.Submit(func() {
				defer wg.Done()
				<-release
			})
		}
	})
	if d := testutil.ToFloat64(c) - before; d != 2 {
		t.Fatalf("saturation counted %v times, want 2", d)
	}
	close(release)
	wg.Wait()
	eventually(t, l, p, func(s Stats) bool { return s.Outstanding == 0 })
}

func TestQueueCountNeverExceedsCap(t *testing.T) {
	l, p := newTestPool(t, Config{MaxQueues: 3})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(30)
	_ = l.Call(func() {
		for i := 0; i < 30; i++ {
			p.Submit(func() {
				defer wg.Done()
				<-release
			})
		}
	})
	s := stats(t, l, p)
	if s.Created > 3 {
		t.Fatalf("created %d queues, cap is 3", s.Created)
	}
	if s.Outstanding != 30 {
		t.Fatalf("expected 30 outstanding tasks queued, got %d", s.Outstanding)
	}
	close(release)
	wg.Wait()
	eventually(t, l, p, func(s Stats) bool { return s.Outstanding == 0 })
}

func TestSingleQueueSerializesWork(t *testing.T) {
	l, p := newTestPool(t, Config{MaxQueues: 1})
	var concurrent, peak atomic.Int32
	var wg sync.WaitGroup
	wg.Add(20)
	_ = l.Call(func() {
		for i := 0; i < 20; i++ {
			p.Submit(func() {
				defer wg.Done()
				n := concurrent.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				concurrent.Add(-1)
			})
		}
	})
	wg.Wait()
	if peak.Load() != 1 {
		t.Fatalf("expected strictly serial execution, peak concurrency %d", peak.Load())
	}
}

func TestIdleQueuesAreReaped(t *testing.T) {
	l, p := newTestPool(t, Config{MaxQueues: 2, IdleTimeout: 20 * time.Millisecond})
	_ = l.Call(func() { p.Submit(func() {}) })
	eventually(t, l, p, func(s Stats) bool { return s.Created == 0 && s.Outstanding == 0 })
	var scheduled bool
	_ = l.Call(func() { scheduled = p.cleanupScheduled })
	if scheduled {
		t.Fatalf("reaper should stop rescheduling once no queues remain")
	}
}

func TestPanickingWorkStillCompletes(t *testing.T) {
	l, p := newTestPool(t, Config{MaxQueues: 1})
	_ = l.Call(func() { p.Submit(func() { panic("boom") }) })
	eventually(t, l, p, func(s Stats) bool { return s.Outstanding == 0 && s.Busy == 0 })

	done := make(chan struct{})
	_ = l.Call(func() { p.Submit(func() { close(done) }) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("queue did not survive a panicking task")
	}
}

func TestSubmitAfterCloseIsDropped(t *testing.T) {
	l, p := newTestPool(t, Config{})
	var ran atomic.Bool
	_ = l.Call(func() {
		if p.Closed() {
			t.Errorf("fresh pool reports closed")
		}
		p.Close()
		if !p.Closed() {
			t.Errorf("pool not closed after Close")
		}
		p.Submit(func() { ran.Store(true) })
	})
	time.Sleep(20 * time.Millisecond)
	if ran.Load() {
		t.Fatalf("work ran after Close")
	}
	if s := stats(t, l, p); s.Outstanding != 0 {
		t.Fatalf("expected no outstanding work, got %+v", s)
	}
}
