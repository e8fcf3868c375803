// Package queuepool runs decode and cache work off the coordinating loop on a
// small, self-scaling set of serial queues.
//
// Every exported method must be called on the coordinating loop. Completion
// of a unit of work is accounted by a message posted back to that loop, so
// the pool's bookkeeping needs no locks.
package queuepool

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lottied/internal/looper"
	"lottied/internal/metrics"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxQueues   = 4
	defaultIdleTimeout = 30 * time.Second
)

// Config tunes a Pool.
type Config struct {
	MaxQueues   int
	IdleTimeout time.Duration
	Log         zerolog.Logger
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Created     int `json:"created"`
	Idle        int `json:"idle"`
	Busy        int `json:"busy"`
	Outstanding int `json:"outstanding"`
}

// Pool is a bounded set of serial queues.
type Pool struct {
	loop        looper.Poster
	log         zerolog.Logger
	maxCount    int
	idleTimeout time.Duration
	guid        string

	queues    []*serialQueue // idle, least recently used first
	busy      []*serialQueue
	busyCount map[*serialQueue]int

	createdCount     int
	totalTasks       int
	cleanupScheduled bool
	cancelCleanup    func()
	closed           bool

	now func() time.Time
}

// New creates a pool whose completions are posted to loop.
func New(loop looper.Poster, cfg Config) *Pool {
	p := &Pool{
		loop:      loop,
		log:       cfg.Log,
		guid:      uuid.NewString()[:8],
		busyCount: make(map[*serialQueue]int),
		now:       time.Now,
	}
	if cfg.MaxQueues <= 0 {
		p.maxCount = defaultMaxQueues
	} else {
		p.maxCount = cfg.MaxQueues
	}
	if cfg.IdleTimeout <= 0 {
		p.idleTimeout = defaultIdleTimeout
	} else {
		p.idleTimeout = cfg.IdleTimeout
	}
	return p
}

// Submit enqueues work and returns immediately. Work runs on a pool
// goroutine; it must post any results back to the loop itself.
func (p *Pool) Submit(work func()) {
	if p.closed {
		p.log.Warn().Msg("submit on closed queue pool dropped")
		return
	}
	var q *serialQueue
	saturated := len(p.queues) == 0 && p.createdCount >= p.maxCount
	switch {
	case len(p.busy) > 0 && (p.totalTasks/2 <= len(p.busy) || saturated):
		q = p.busy[0]
		p.busy = p.busy[1:]
		if saturated {
			metrics.Backpressure.WithLabelValues(metrics.ReasonQueueSaturated).Inc()
		}
	case len(p.queues) == 0:
		q = newSerialQueue(fmt.Sprintf("queuepool-%s-%d", p.guid, p.createdCount), p.now(), p.log)
		p.createdCount++
		p.log.Debug().Str("queue", q.name).Int("created", p.createdCount).Msg("queue created")
	default:
		q = p.queues[0]
		p.queues = p.queues[1:]
	}
	if !p.cleanupScheduled {
		p.scheduleCleanup()
	}
	p.totalTasks++
	p.busy = append(p.busy, q)
	p.busyCount[q]++
	metrics.QueueTasksSubmitted.Inc()
	p.publishGauges()

	q.post(func() {
		defer p.loop.Post(func() { p.complete(q) })
		work()
	})
}

func (p *Pool) complete(q *serialQueue) {
	p.totalTasks--
	remaining := p.busyCount[q] - 1
	if remaining <= 0 {
		delete(p.busyCount, q)
		p.busy = removeQueue(p.busy, q)
		if p.closed {
			q.stop()
			p.createdCount--
		} else {
			p.queues = append(p.queues, q)
		}
	} else {
		p.busyCount[q] = remaining
	}
	p.publishGauges()
}

func (p *Pool) scheduleCleanup() {
	p.cleanupScheduled = true
	p.cancelCleanup = p.loop.PostDelayed(p.cleanup, p.idleTimeout)
}

// cleanup tears down queues idle for longer than the idle timeout and
// reschedules itself only while queues exist.
func (p *Pool) cleanup() {
	if p.closed {
		p.cleanupScheduled = false
		return
	}
	if len(p.queues) > 0 {
		deadline := p.now().Add(-p.idleTimeout)
		kept := p.queues[:0]
		for _, q := range p.queues {
			if q.lastTaskTime().Before(deadline) {
				q.stop()
				p.createdCount--
				metrics.QueuesReaped.Inc()
				p.log.Debug().Str("queue", q.name).Msg("idle queue reaped")
				continue
			}
			kept = append(kept, q)
		}
		for i := len(kept); i < len(p.queues); i++ {
			p.queues[i] = nil
		}
		p.queues = kept
	}
	if len(p.queues) > 0 || len(p.busy) > 0 {
		p.scheduleCleanup()
	} else {
		p.cleanupScheduled = false
	}
	p.publishGauges()
}

// Stats reports the current queue counts.
func (p *Pool) Stats() Stats {
	return Stats{
		Created:     p.createdCount,
		Idle:        len(p.queues),
		Busy:        len(p.busyCount),
		Outstanding: p.totalTasks,
	}
}

// Closed reports whether Close has run. Loop-confined like Submit.
func (p *Pool) Closed() bool { return p.closed }

// Close stops idle queues now and busy queues once their last task reports
// back. Submit after Close drops the work.
func (p *Pool) Close() {
	if p.closed {
		return
	}
	p.closed = true
	if p.cancelCleanup != nil {
		p.cancelCleanup()
	}
	p.cleanupScheduled = false
	for _, q := range p.queues {
		q.stop()
	}
	p.createdCount -= len(p.queues)
	p.queues = nil
	p.publishGauges()
}

func (p *Pool) publishGauges() {
	metrics.QueuesActive.WithLabelValues("idle").Set(float64(len(p.queues)))
	metrics.QueuesActive.WithLabelValues("busy").Set(float64(len(p.busyCount)))
}

func removeQueue(list []*serialQueue, q *serialQueue) []*serialQueue {
	out := list[:0]
	for _, x := range list {
		if x != q {
			out = append(out, x)
		}
	}
	for i := len(out); i < len(list); i++ {
		list[i] = nil
	}
	return out
}
