package queuepool

import (
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// serialQueue runs its tasks one at a time on a dedicated goroutine. The task
// list is unbounded; Submit never fails because a queue is busy.
type serialQueue struct {
	name string
	log  zerolog.Logger

	mu    sync.Mutex
	tasks []func()
	wake  chan struct{}
	quit  chan struct{}
	once  sync.Once
	done  chan struct{}

	lastTask atomic.Int64 // unix nanos of the last finished task (or creation)
}

func newSerialQueue(name string, now time.Time, log zerolog.Logger) *serialQueue {
	q := &serialQueue{
		name: name,
		log:  log.With().Str("queue", name).Logger(),
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	q.lastTask.Store(now.UnixNano())
	go q.run()
	return q
}

func (q *serialQueue) post(fn func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, fn)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *serialQueue) lastTaskTime() time.Time { return time.Unix(0, q.lastTask.Load()) }

// stop terminates the goroutine. Tasks not yet started are dropped.
func (q *serialQueue) stop() {
	q.once.Do(func() { close(q.quit) })
}

func (q *serialQueue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		var fn func()
		if len(q.tasks) > 0 {
			fn = q.tasks[0]
			q.tasks[0] = nil
			q.tasks = q.tasks[1:]
		}
		q.mu.Unlock()

		if fn == nil {
			select {
			case <-q.wake:
				continue
			case <-q.quit:
				return
			}
		}
		select {
		case <-q.quit:
			return
		default:
		}
		q.exec(fn)
		q.lastTask.Store(time.Now().UnixNano())
	}
}

// exec keeps the queue alive across a panicking task. Pool accounting is
// posted from a deferred call inside the task wrapper, so it still runs.
func (q *serialQueue) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("queue task panicked")
		}
	}()
	fn()
}
