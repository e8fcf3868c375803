// Package taskcache collapses concurrent requests for the same resource key
// into one asynchronous operation and remembers successful results in a
// bounded, resizable LRU.
package taskcache

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"lottied/internal/metrics"
)

// DefaultSize is the LRU capacity used when Config.Size is unset.
const DefaultSize = 20

// Producer computes the value for a key. It runs on whatever Config.Run
// hands it to.
type Producer func(ctx context.Context) (string, error)

type Config struct {
	Size     int
	Dispatch Dispatcher
	// Validate, when set, vets LRU hits; a rejected hit is evicted and the
	// key is produced again.
	Validate func(path string) bool
	// BaseContext is handed to producers. Defaults to context.Background.
	BaseContext context.Context
	// Run executes producers. Defaults to one goroutine per producer.
	Run func(func())
	Log zerolog.Logger
}

// Stats is a snapshot of registry occupancy.
type Stats struct {
	Cached   int `json:"cached"`
	Capacity int `json:"capacity"`
	InFlight int `json:"in_flight"`
}

// Registry is safe for concurrent use. The mutex guards the map and LRU
// only; producers run unlocked.
type Registry struct {
	dispatch Dispatcher
	validate func(string) bool
	runner   func(func())
	ctx      context.Context
	log      zerolog.Logger

	mu       sync.Mutex
	lru      *lru.Cache[string, string]
	size     int
	inflight map[string]*Task
}

func New(cfg Config) (*Registry, error) {
	size := cfg.Size
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("taskcache: %w", err)
	}
	ctx := cfg.BaseContext
	if ctx == nil {
		ctx = context.Background()
	}
	runner := cfg.Run
	if runner == nil {
		runner = func(fn func()) { go fn() }
	}
	return &Registry{
		dispatch: cfg.Dispatch,
		validate: cfg.Validate,
		runner:   runner,
		ctx:      ctx,
		log:      cfg.Log,
		lru:      c,
		size:     size,
		inflight: make(map[string]*Task),
	}, nil
}

// Resolve returns the task for key: an already-resolved one on an LRU hit
// (consulted only when useCache is set), the in-flight one if a producer is
// running, or a fresh one backed by produce. Successful results enter the
// LRU unless Clear ran while they were produced.
func (r *Registry) Resolve(key string, useCache bool, produce Producer) *Task {
	r.mu.Lock()
	if useCache {
		if path, ok := r.lru.Get(key); ok {
			if r.validate == nil || r.validate(path) {
				r.mu.Unlock()
				metrics.TaskCacheLookups.WithLabelValues("lru_hit").Inc()
				return Resolved(path, r.dispatch)
			}
			r.lru.Remove(key)
			r.log.Debug().Str("key", key).Str("path", path).Msg("stale lru entry evicted")
		}
	}
	if t, ok := r.inflight[key]; ok {
		r.mu.Unlock()
		metrics.TaskCacheLookups.WithLabelValues("joined").Inc()
		return t
	}
	t := newTask(r.dispatch)
	r.inflight[key] = t
	metrics.TaskCacheInflight.Set(float64(len(r.inflight)))
	r.mu.Unlock()
	metrics.TaskCacheLookups.WithLabelValues("produced").Inc()

	r.runner(func() { r.run(key, t, produce) })
	return t
}

func (r *Registry) run(key string, t *Task, produce Producer) {
	var res Result
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error().Interface("panic", rec).Str("stack", string(debug.Stack())).Str("key", key).Msg("producer panicked")
				res = Result{Err: fmt.Errorf("taskcache: producer for %s panicked: %v", key, rec)}
			}
		}()
		res.Path, res.Err = produce(r.ctx)
	}()

	r.mu.Lock()
	// Clear may have dropped this task already; a dropped task neither
	// removes a successor nor refills the purged LRU.
	own := r.inflight[key] == t
	if own {
		delete(r.inflight, key)
	}
	if res.Err == nil && own {
		r.lru.Add(key, res.Path)
	}
	metrics.TaskCacheInflight.Set(float64(len(r.inflight)))
	r.mu.Unlock()

	if res.Err != nil {
		r.log.Debug().Err(res.Err).Str("key", key).Msg("task failed")
	}
	t.resolve(res)
}

// Get returns the cached path for key without touching in-flight work.
func (r *Registry) Get(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lru.Get(key)
}

// Put records a resolved path for key.
func (r *Registry) Put(key, path string) {
	r.mu.Lock()
	r.lru.Add(key, path)
	r.mu.Unlock()
}

// Clear forgets in-flight tasks and empties the LRU. Running producers
// still resolve their own tasks but no longer cache their results.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.inflight = make(map[string]*Task)
	r.lru.Purge()
	metrics.TaskCacheInflight.Set(0)
	r.mu.Unlock()
}

// Resize changes the LRU capacity, evicting the oldest entries if needed.
func (r *Registry) Resize(size int) error {
	if size <= 0 {
		return fmt.Errorf("taskcache: size must be > 0, got %d", size)
	}
	r.mu.Lock()
	evicted := r.lru.Resize(size)
	r.size = size
	r.mu.Unlock()
	r.log.Debug().Int("size", size).Int("evicted", evicted).Msg("lru resized")
	return nil
}

func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{Cached: r.lru.Len(), Capacity: r.size, InFlight: len(r.inflight)}
}
