package manager

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"lottied/internal/cache"
	"lottied/internal/common/fsutil"
	"lottied/internal/fetch"
	"lottied/internal/format"
	"lottied/internal/looper"
	"lottied/internal/queuepool"
	"lottied/internal/registry"
	"lottied/internal/renderer"
	"lottied/internal/taskcache"
)

// Manager owns the coordinating loop and everything confined to it: the
// worker pool and every live animation. Its exported methods may be called
// from any goroutine except the loop itself.
type Manager struct {
	cfg       ManagerConfig
	log       zerolog.Logger
	publisher EventPublisher

	loop    *looper.Loop
	pool    *queuepool.Pool
	cache   *cache.Cache
	formats *format.Registry
	tasks   *taskcache.Registry
	fetcher *fetch.Fetcher
	library *registry.Scanner
	rnd     renderer.Renderer
	rndErr  error

	// Loop-confined.
	instances      map[string]*Instance
	draining       map[string]*Instance
	loadsTotal     uint64
	evictionsTotal uint64
	lastErr        string

	closed    atomic.Bool
	closeOnce sync.Once
	startTime time.Time
	now       func() time.Time
}

// New builds a manager with a cache rooted at cacheDir and the given
// renderer (the native one when nil).
func New(cacheDir string, rnd renderer.Renderer) (*Manager, error) {
	return NewWithConfig(ManagerConfig{CacheDir: cacheDir, Renderer: rnd})
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) (*Manager, error) {
	cfg = cfg.withDefaults()
	log := cfg.Log
	c, err := cache.New(cache.Config{Fs: cfg.Fs, Root: cfg.CacheDir, Log: log})
	if err != nil {
		return nil, err
	}
	m := &Manager{
		cfg:       cfg,
		log:       log,
		publisher: cfg.Publisher,
		cache:     c,
		formats:   format.Default(log),
		library:   registry.NewScanner(cfg.Fs),
		instances: make(map[string]*Instance),
		draining:  make(map[string]*Instance),
		startTime: time.Now(),
		now:       time.Now,
	}
	m.loop = looper.New(log).Start()
	m.tasks, err = taskcache.New(taskcache.Config{
		Size:     cfg.LRUSize,
		Dispatch: m.loop.Post,
		Validate: func(path string) bool { return fsutil.FileExists(cfg.Fs, path) },
		Run:      m.runProducer,
		Log:      log,
	})
	if err != nil {
		m.loop.Close()
		return nil, err
	}
	tr := cfg.Transport
	if tr == nil {
		tr = fetch.NewHTTPTransport(cfg.ConnectTimeout, cfg.ReadTimeout)
	}
	m.fetcher = fetch.New(fetch.Config{Transport: tr, Cache: c, Formats: m.formats, Tasks: m.tasks, Log: log})

	if cfg.Renderer != nil {
		m.rnd = cfg.Renderer
	} else if m.rnd, m.rndErr = renderer.NewNative(); m.rndErr != nil {
		log.Warn().Err(m.rndErr).Msg("native renderer unavailable; animations cannot be loaded")
	}

	if err := m.loop.Call(func() {
		m.pool = queuepool.New(m.loop, queuepool.Config{
			MaxQueues:   cfg.MaxQueues,
			IdleTimeout: cfg.QueueIdleTimeout,
			Log:         log,
		})
	}); err != nil {
		return nil, err
	}
	return m, nil
}

// runProducer hands a taskcache producer to the worker pool so downloads and
// parses share the max_queues bound with decodes. Once the loop or pool is
// closed the producer gets its own goroutine so its waiters still resolve.
func (m *Manager) runProducer(fn func()) {
	queued := m.loop.TryPost(func() {
		if m.pool == nil || m.pool.Closed() {
			go fn()
			return
		}
		m.pool.Submit(fn)
	})
	if !queued {
		go fn()
	}
}

// SetEventPublisher replaces the event sink.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	_ = m.loop.Call(func() { m.publisher = p })
}

// Ready reports whether animations can be loaded.
func (m *Manager) Ready() bool {
	return m.rndErr == nil && !m.closed.Load()
}

func (m *Manager) Cache() *cache.Cache { return m.cache }

func (m *Manager) Fetcher() *fetch.Fetcher { return m.fetcher }

// Close recycles every animation, waits up to the drain timeout for
// in-flight decodes to release their handles, then stops the pool and the
// loop.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		_ = m.loop.Call(func() {
			for _, inst := range m.instances {
				m.recycle(inst)
			}
		})
		if n := m.drain(m.cfg.DrainTimeout); n > 0 {
			err = fmt.Errorf("manager: %d animations still draining at shutdown", n)
		}
		_ = m.loop.Call(func() { m.pool.Close() })
		m.loop.Close()
	})
	return err
}

// drain polls until no recycled animation awaits its last decode, or the
// deadline passes. It returns how many are still draining.
func (m *Manager) drain(timeout time.Duration) int {
	deadline := time.Now().Add(timeout)
	for {
		n := 0
		if err := m.loop.Call(func() { n = len(m.draining) }); err != nil {
			return 0
		}
		if n == 0 || time.Now().After(deadline) {
			return n
		}
		time.Sleep(10 * time.Millisecond)
	}
}
