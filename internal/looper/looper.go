// Package looper provides the coordinating thread: a single goroutine that
// runs posted closures one at a time, in order. State confined to a Loop
// needs no locking as long as it is only touched from posted closures.
package looper

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrClosed is returned by Call when the loop has been closed.
var ErrClosed = errors.New("looper: closed")

// Poster is the narrow surface other packages depend on.
type Poster interface {
	Post(fn func())
	PostDelayed(fn func(), d time.Duration) (cancel func())
}

// Loop is a serial executor. Post never blocks: the queue is unbounded so a
// worker posting a completion can never deadlock against a busy loop.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	closed  bool
	done    chan struct{}
	started sync.Once
	log     zerolog.Logger
}

// New creates a loop. Call Start before posting work that must run.
func New(log zerolog.Logger) *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		log:  log,
	}
}

// Start launches the loop goroutine. Safe to call more than once.
func (l *Loop) Start() *Loop {
	l.started.Do(func() { go l.run() })
	return l
}

// Post enqueues fn. Posting to a closed loop drops fn.
func (l *Loop) Post(fn func()) {
	l.TryPost(fn)
}

// TryPost is Post that reports whether fn was queued.
func (l *Loop) TryPost(fn func()) bool {
	if fn == nil {
		return false
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// PostDelayed posts fn after d. The returned func cancels the post if it has
// not fired yet.
func (l *Loop) PostDelayed(fn func(), d time.Duration) func() {
	if d <= 0 {
		l.Post(fn)
		return func() {}
	}
	t := time.AfterFunc(d, func() { l.Post(fn) })
	return func() { t.Stop() }
}

// Call posts fn and waits for it to run. It must not be called from the loop
// goroutine itself.
func (l *Loop) Call(fn func()) error {
	ran := make(chan struct{})
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.mu.Unlock()
	l.Post(func() {
		defer close(ran)
		fn()
	})
	select {
	case <-ran:
		return nil
	case <-l.done:
		// The loop may have drained fn before exiting.
		select {
		case <-ran:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Close stops the loop after the queued closures have run.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()
	l.Start()
	select {
	case l.wake <- struct{}{}:
	default:
	}
	<-l.done
}

// Done is closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		closed := l.closed
		l.mu.Unlock()

		for _, fn := range batch {
			l.exec(fn)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-l.wake
	}
}

// exec runs fn. A panic escapes and takes the process down: closures on the
// loop own scheduler invariants, and a violated invariant is fatal.
func (l *Loop) exec(fn func()) {
	if l.log.GetLevel() <= zerolog.TraceLevel {
		start := time.Now()
		defer func() { l.log.Trace().Dur("dur", time.Since(start)).Msg("loop task") }()
	}
	fn()
}
