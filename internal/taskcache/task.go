package taskcache

import (
	"context"
	"sync"
)

// Result is the terminal outcome of a Task.
type Result struct {
	Path string
	Err  error
}

// Listener receives a task's result exactly once.
type Listener func(Result)

// Dispatcher runs listener callbacks, typically by posting to the
// coordinating loop. A nil dispatcher calls listeners inline.
type Dispatcher func(fn func())

// Task is a one-shot asynchronous result shared by every requester of a key.
type Task struct {
	dispatch Dispatcher

	mu        sync.Mutex
	resolved  bool
	result    Result
	listeners map[uint64]Listener
	nextID    uint64
	done      chan struct{}
}

func newTask(dispatch Dispatcher) *Task {
	return &Task{
		dispatch:  dispatch,
		listeners: make(map[uint64]Listener),
		done:      make(chan struct{}),
	}
}

// Resolved returns a task that already completed with path.
func Resolved(path string, dispatch Dispatcher) *Task {
	t := newTask(dispatch)
	t.resolve(Result{Path: path})
	return t
}

// Failed returns a task that already completed with err.
func Failed(err error, dispatch Dispatcher) *Task {
	t := newTask(dispatch)
	t.resolve(Result{Err: err})
	return t
}

// AddListener registers l. If the task is already terminal, l is dispatched
// right away with the known result. The returned func removes l; it is safe
// to call at any time, including after resolution.
func (t *Task) AddListener(l Listener) (remove func()) {
	t.mu.Lock()
	if t.resolved {
		r := t.result
		t.mu.Unlock()
		t.run(func() { l(r) })
		return func() {}
	}
	id := t.nextID
	t.nextID++
	t.listeners[id] = l
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

// Done is closed once the task is terminal.
func (t *Task) Done() <-chan struct{} { return t.done }

// Result reports the outcome if the task is terminal.
func (t *Task) Result() (Result, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.resolved
}

// Wait blocks until the task resolves or ctx is done.
func (t *Task) Wait(ctx context.Context) (string, error) {
	select {
	case <-t.done:
		r, _ := t.Result()
		return r.Path, r.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// resolve publishes r. Resolving twice is a programming error.
func (t *Task) resolve(r Result) {
	t.mu.Lock()
	if t.resolved {
		t.mu.Unlock()
		panic("taskcache: task already resolved")
	}
	t.resolved = true
	t.result = r
	ls := t.listeners
	t.listeners = nil
	close(t.done)
	t.mu.Unlock()
	for _, l := range ls {
		l := l
		t.run(func() { l(r) })
	}
}

func (t *Task) run(fn func()) {
	if t.dispatch == nil {
		fn()
		return
	}
	t.dispatch(fn)
}
