// Package player implements the per-animation frame scheduler.
//
// An Animation is confined to the coordinating loop: every exported method
// must be called there, and every worker completion is posted back to it
// before touching scheduler state. A worker only ever sees the scratch
// buffer and the handle captured when its task was submitted.
package player

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"lottied/internal/looper"
	"lottied/internal/metrics"
	"lottied/internal/renderer"
	"lottied/internal/taskcache"
)

// State is the lifecycle state of an Animation.
type State int

const (
	Idle State = iota
	Loading
	Ready
	Running
	Stopped
	Destroying
	Destroyed
)

var stateNames = [...]string{"idle", "loading", "ready", "running", "stopped", "destroying", "destroyed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Submitter runs work off the loop. queuepool.Pool satisfies it.
type Submitter interface {
	Submit(work func())
}

type Config struct {
	ID       string
	Loop     looper.Poster
	Pool     Submitter
	Renderer renderer.Renderer
	Surface  Surface
	Options  Options
}

type loadResult struct {
	handle  renderer.Handle
	meta    renderer.Metadata
	markers []renderer.Marker
	layers  []renderer.LayerInfo
	err     error
}

// Animation schedules decoding and display of one composition.
type Animation struct {
	id      string
	loop    looper.Poster
	pool    Submitter
	rnd     renderer.Renderer
	surface Surface
	opts    Options
	log     zerolog.Logger
	now     func() time.Time

	state        State
	loadErr      error
	loading      bool
	pendingStart bool
	cancelLoad   func()
	source       string

	handle  renderer.Handle
	meta    renderer.Metadata
	markers []renderer.Marker
	layers  []renderer.LayerInfo

	// rendering is visible, next awaits a swap, scratch is free for the
	// next decode. A buffer handed to a worker is in none of the three.
	rendering      *renderer.Buffer
	next           *renderer.Buffer
	scratch        *renderer.Buffer
	renderingFrame int
	nextFrame      int

	seq                sequencer
	currentFrame       int
	running            bool
	completed          bool
	nextIsLast         bool
	singleFrameDecoded bool
	singleRequested    bool
	forceRedraw        bool
	lastFrameTime      time.Time
	base               time.Duration
	interval           time.Duration
	speed              float64

	incoming []renderer.PropertyUpdate
	colors   []renderer.ColorReplacement
	batching bool

	taskPending     bool
	gen             uint64
	destroyWhenDone bool
	recycled        bool
	cancelRetry     func()
	waiters         []*FrameFuture

	decodes  int
	noFrames int
}

type nopSurface struct{}

func (nopSurface) Invalidate() {}

// New builds an idle Animation. Call Load or LoadFrom on the loop.
func New(cfg Config) *Animation {
	opts := cfg.Options.withDefaults()
	surface := cfg.Surface
	if surface == nil {
		surface = nopSurface{}
	}
	a := &Animation{
		id:       cfg.ID,
		loop:     cfg.Loop,
		pool:     cfg.Pool,
		rnd:      cfg.Renderer,
		surface:  surface,
		opts:     opts,
		log:      opts.Log.With().Str("animation", cfg.ID).Logger(),
		now:      time.Now,
		speed:    opts.Speed,
		incoming: opts.Properties,
		colors:   opts.ColorReplacements,
		seq: sequencer{
			customStart: opts.CustomStart,
			customEnd:   opts.CustomEnd,
			playToward:  opts.PlayTowardCustomEnd,
			repeatCount: opts.RepeatCount,
			mode:        opts.RepeatMode,
		},
	}
	return a
}

// Load creates the renderer handle for a local source file.
func (a *Animation) Load(path string) {
	if a.recycled || (a.state != Idle && a.state != Loading) || a.loading {
		a.log.Warn().Str("state", a.state.String()).Msg("load ignored")
		return
	}
	a.state = Loading
	a.loading = true
	a.loadErr = nil
	a.source = path
	rnd, w, h, pre := a.rnd, a.opts.Width, a.opts.Height, a.opts.Precache
	a.pool.Submit(func() {
		var res loadResult
		res.err = guard(func() error {
			var err error
			res.handle, res.meta, err = rnd.Create(path, w, h, pre)
			if err != nil {
				return err
			}
			res.markers, _ = rnd.Markers(res.handle)
			res.layers, _ = rnd.Layers(res.handle)
			return nil
		})
		a.loop.Post(func() { a.loaded(res) })
	})
}

// LoadFrom waits for a source resolution task (a fetch, typically) and
// loads its result.
func (a *Animation) LoadFrom(t *taskcache.Task) {
	if a.recycled || a.state != Idle {
		return
	}
	a.state = Loading
	a.loadErr = nil
	a.cancelLoad = t.AddListener(func(r taskcache.Result) {
		a.loop.Post(func() { a.sourceResolved(r) })
	})
}

func (a *Animation) sourceResolved(r taskcache.Result) {
	a.cancelLoad = nil
	if a.recycled || a.state != Loading {
		return
	}
	if r.Err != nil {
		a.failLoad(r.Err)
		return
	}
	a.Load(r.Path)
}

func (a *Animation) loaded(res loadResult) {
	a.loading = false
	if a.recycled {
		if res.err == nil {
			a.handle = res.handle
		}
		a.destroyNow()
		return
	}
	if res.err != nil {
		a.failLoad(res.err)
		return
	}
	a.handle = res.handle
	a.meta = res.meta
	a.markers = res.markers
	a.layers = res.layers
	a.seq.total = res.meta.TotalFrames
	a.seq.limitFps = a.opts.LimitFps && res.meta.FrameRate >= limitFpsThreshold
	a.base = baseInterval(res.meta.FrameRate, a.seq.limitFps)
	a.updateInterval()
	if a.opts.Marker != "" {
		if err := a.SelectMarker(a.opts.Marker); err != nil {
			a.log.Warn().Err(err).Str("marker", a.opts.Marker).Msg("initial marker not applied")
		}
	}
	start, _ := a.seq.window()
	a.currentFrame = start
	a.state = Ready
	a.log.Debug().Int("frames", res.meta.TotalFrames).Float64("fps", res.meta.FrameRate).Dur("interval", a.base).Msg("animation loaded")
	if l := a.opts.LifecycleListener; l != nil {
		l.Loaded(a)
	}
	if a.opts.DecodeSingleFrame {
		a.scheduleNext()
	}
	if a.opts.AutoStart || a.pendingStart {
		a.pendingStart = false
		_ = a.Start()
	}
	a.surface.Invalidate()
}

func (a *Animation) failLoad(err error) {
	a.state = Idle
	a.loadErr = err
	a.pendingStart = false
	a.log.Warn().Err(err).Str("source", a.source).Msg("animation load failed")
	if l := a.opts.LifecycleListener; l != nil {
		l.LoadFailed(a, err)
	}
}

// Start begins continuous playback. Before the composition is loaded it
// only records the request. After a finite repeat run has completed it is a
// no-op until Restart.
func (a *Animation) Start() error {
	if a.recycled {
		return ErrRecycled
	}
	switch a.state {
	case Idle:
		if a.loadErr != nil {
			return fmt.Errorf("%w: %v", ErrNotLoaded, a.loadErr)
		}
		a.pendingStart = true
		return nil
	case Loading:
		a.pendingStart = true
		return nil
	}
	if a.running {
		return nil
	}
	if a.completed {
		if a.seq.finite() {
			return nil
		}
		a.rewind()
	}
	a.running = true
	a.state = Running
	a.scheduleNext()
	a.surface.Invalidate()
	return nil
}

// Restart rewinds to the start of the window, clears the play count and
// starts.
func (a *Animation) Restart() error {
	if a.recycled {
		return ErrRecycled
	}
	if a.handle != 0 {
		a.rewind()
		a.gen++
		a.supersedeWaiters(a.currentFrame)
	}
	return a.Start()
}

func (a *Animation) rewind() {
	a.seq.reset()
	a.completed = false
	a.nextIsLast = false
	start, _ := a.seq.window()
	a.currentFrame = start
}

// Stop pauses continuous playback.
func (a *Animation) Stop() {
	a.pendingStart = false
	if !a.running {
		return
	}
	a.stopInternal()
}

func (a *Animation) stopInternal() {
	a.running = false
	if a.state == Running {
		a.state = Stopped
	}
	if l := a.opts.LifecycleListener; l != nil {
		l.Stopped(a)
	}
}

// scheduleNext submits a decode of the current frame when the scheduler
// permits one: loaded, nothing in flight, next slot empty, not being torn
// down, and either running or owing a single-frame decode.
func (a *Animation) scheduleNext() bool {
	if a.handle == 0 || a.taskPending || a.next != nil || a.destroyWhenDone || a.recycled {
		return false
	}
	if !a.running && (!(a.opts.DecodeSingleFrame || a.singleRequested) || a.singleFrameDecoded) {
		return false
	}
	if a.cancelRetry != nil {
		a.cancelRetry()
		a.cancelRetry = nil
	}
	buf := a.scratch
	a.scratch = nil
	if buf == nil {
		var err error
		if buf, err = renderer.NewBuffer(a.opts.Width, a.opts.Height); err != nil {
			a.log.Error().Err(err).Msg("allocate frame buffer")
			return false
		}
	}
	props, colors := a.incoming, a.colors
	a.incoming, a.colors = nil, nil
	frame, gen := a.currentFrame, a.gen
	h, rnd, log := a.handle, a.rnd, a.log
	a.taskPending = true
	a.decodes++
	a.pool.Submit(func() {
		for _, p := range props {
			if err := guard(func() error { return rnd.ApplyProperty(h, p) }); err != nil {
				log.Warn().Err(err).Str("key_path", p.KeyPath).Str("property", p.Kind.String()).Msg("property update skipped")
			}
		}
		if len(colors) > 0 {
			if err := guard(func() error { return rnd.ReplaceColors(h, colors) }); err != nil {
				log.Warn().Err(err).Int("colors", len(colors)).Msg("color replacement skipped")
			}
		}
		start := time.Now()
		err := guard(func() error { return rnd.DecodeFrame(h, frame, buf) })
		metrics.DecodeDuration.Observe(time.Since(start).Seconds())
		a.loop.Post(func() { a.decodeFinished(frame, gen, buf, err) })
	})
	return true
}

func (a *Animation) decodeFinished(frame int, gen uint64, buf *renderer.Buffer, err error) {
	a.taskPending = false
	if err != nil {
		metrics.DecodeTotal.WithLabelValues("no_frame").Inc()
		a.noFrames++
		a.log.Debug().Err(err).Int("frame", frame).Msg("no frame produced")
		a.resolveWaiters(frame, nil, ErrNoFrame)
	} else {
		metrics.DecodeTotal.WithLabelValues("ok").Inc()
		a.resolveWaiters(frame, buf, nil)
	}
	if a.destroyWhenDone {
		a.destroyNow()
		return
	}
	stale := gen != a.gen

	if err != nil {
		a.scratch = buf
		switch {
		case stale:
			a.scheduleNext()
		case a.running:
			a.retryLater()
		default:
			// The single-frame request is answered, just without pixels.
			a.singleFrameDecoded = true
		}
		return
	}
	if stale {
		// A seek superseded this frame; decode the new target instead.
		a.scratch = buf
		if a.scheduleNext() {
			a.forceRedraw = false
		}
		return
	}

	a.next = buf
	a.nextFrame = frame
	if a.running {
		next, last, ev := a.seq.advance(frame)
		a.currentFrame = next
		a.nextIsLast = last
		if ev != nil && a.opts.RepeatListener != nil {
			a.opts.RepeatListener.Repeated(a, *ev)
		}
	}
	a.surface.Invalidate()
}

func (a *Animation) retryLater() {
	if a.cancelRetry != nil {
		return
	}
	a.cancelRetry = a.loop.PostDelayed(func() {
		a.cancelRetry = nil
		a.scheduleNext()
	}, a.interval)
}

func (a *Animation) resolveWaiters(frame int, buf *renderer.Buffer, err error) {
	if len(a.waiters) == 0 {
		return
	}
	kept := a.waiters[:0]
	for _, w := range a.waiters {
		if w.frame != frame {
			kept = append(kept, w)
			continue
		}
		if err != nil {
			w.resolve(nil, err)
		} else {
			w.resolve(cloneBuffer(buf), nil)
		}
	}
	for i := len(kept); i < len(a.waiters); i++ {
		a.waiters[i] = nil
	}
	a.waiters = kept
}

// supersedeWaiters fails every pending synchronous seek for a frame other
// than target. Decodes of those frames are never scheduled again.
func (a *Animation) supersedeWaiters(target int) {
	kept := a.waiters[:0]
	for _, w := range a.waiters {
		if w.frame == target {
			kept = append(kept, w)
			continue
		}
		w.resolve(nil, ErrSuperseded)
	}
	for i := len(kept); i < len(a.waiters); i++ {
		a.waiters[i] = nil
	}
	a.waiters = kept
}

func (a *Animation) timeCheck() time.Duration {
	if a.opts.ScreenRefreshRate <= 60 {
		return max(a.interval-drawSlack, 0)
	}
	return a.interval
}

// Draw is the redraw opportunity: it promotes a decoded frame when its time
// has come and returns the visible buffer and its frame index, or nil and
// -1 before the first frame. The buffer stays owned by the Animation and is
// only valid until the next loop turn.
func (a *Animation) Draw() (*renderer.Buffer, int) {
	if a.handle == 0 || a.destroyWhenDone || a.recycled {
		return nil, -1
	}
	now := a.now()
	diff := now.Sub(a.lastFrameTime)
	if diff < 0 {
		diff = -diff
	}
	check := a.timeCheck()
	if a.running {
		if a.rendering == nil && a.next == nil {
			a.scheduleNext()
		} else if a.next != nil && (a.rendering == nil || diff >= check) {
			a.swap(now, diff, check, false)
		}
	} else if a.next != nil && (a.forceRedraw || (a.opts.DecodeSingleFrame || a.singleRequested) && diff >= check) {
		a.swap(now, diff, check, true)
	}
	if a.running {
		a.surface.Invalidate()
	}
	if a.rendering == nil {
		return nil, -1
	}
	return a.rendering, a.renderingFrame
}

func (a *Animation) swap(now time.Time, diff, check time.Duration, force bool) {
	if a.rendering != nil {
		a.scratch = a.rendering
	}
	a.rendering, a.renderingFrame = a.next, a.nextFrame
	a.next = nil
	if a.nextIsLast {
		a.nextIsLast = false
		a.completed = true
		a.stopInternal()
	}
	a.singleFrameDecoded = true
	if a.opts.ScreenRefreshRate <= 60 {
		a.lastFrameTime = now
	} else {
		a.lastFrameTime = now.Add(-clampDur(diff-check, 0, 16*time.Millisecond))
	}
	if force && a.forceRedraw {
		a.singleFrameDecoded = false
		a.forceRedraw = false
	} else {
		a.singleRequested = false
	}
	if l := a.opts.FrameListener; l != nil {
		l.FrameChanged(a, a.renderingFrame)
	}
	a.scheduleNext()
}

// SetCurrentFrame moves playback to frame. With async false the returned
// future completes once that frame is decoded; wait on it off the loop.
// resetBuffers discards an already decoded, not yet shown frame.
func (a *Animation) SetCurrentFrame(frame int, async, resetBuffers bool) (*FrameFuture, error) {
	if a.recycled {
		return nil, ErrRecycled
	}
	if a.handle == 0 {
		return nil, ErrNotLoaded
	}
	if frame < 0 || frame > a.meta.TotalFrames {
		return nil, fmt.Errorf("%w: %d not in [0,%d]", ErrFrameOutOfRange, frame, a.meta.TotalFrames)
	}
	a.currentFrame = frame
	a.nextIsLast = false
	a.singleFrameDecoded = false
	a.singleRequested = true
	if !a.seq.finite() {
		a.completed = false
	}
	a.gen++
	a.supersedeWaiters(frame)
	var fut *FrameFuture
	if !async {
		fut = newFrameFuture(frame)
		a.waiters = append(a.waiters, fut)
	}
	if (!async || resetBuffers) && a.next != nil {
		a.scratch = a.next
		a.next = nil
	}
	if !a.scheduleNext() {
		a.forceRedraw = true
	}
	a.surface.Invalidate()
	return fut, nil
}

// SetProgress seeks to total*fraction, fraction clamped to [0,1].
func (a *Animation) SetProgress(fraction float64, async bool) (*FrameFuture, error) {
	fraction = max(0, min(1, fraction))
	return a.SetCurrentFrame(int(float64(a.meta.TotalFrames)*fraction), async, false)
}

// SetProgressMs seeks to the frame shown ms milliseconds into playback,
// wrapping around the composition.
func (a *Animation) SetProgressMs(ms int64) (*FrameFuture, error) {
	if a.handle == 0 || a.meta.TotalFrames <= 0 {
		return a.SetCurrentFrame(0, true, true)
	}
	iv := a.base.Milliseconds()
	if iv <= 0 {
		iv = 1
	}
	frame := int((max(0, ms) / iv) % int64(a.meta.TotalFrames))
	return a.SetCurrentFrame(frame, true, true)
}

// SetRepeat sets the repeat policy and clears the play count. count is
// RepeatInfinite, or the number of passes (0 and 1 both play once).
func (a *Animation) SetRepeat(count int, mode RepeatMode) error {
	if count < RepeatInfinite {
		return fmt.Errorf("%w: %d", ErrInvalidRepeat, count)
	}
	a.seq.repeatCount = count
	a.seq.mode = mode
	a.seq.reset()
	a.completed = false
	return nil
}

// SetSpeed scales the frame interval by 1/speed.
func (a *Animation) SetSpeed(speed float64) error {
	if speed <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidSpeed, speed)
	}
	a.speed = speed
	a.updateInterval()
	return nil
}

func (a *Animation) updateInterval() {
	a.interval = time.Duration(float64(a.base) / a.speed)
}

// SelectSegment limits playback to m, or lifts the limit when m is nil.
func (a *Animation) SelectSegment(m *renderer.Marker) {
	if m == nil {
		a.seq.marker = nil
	} else {
		cp := *m
		a.seq.marker = &cp
	}
	a.clampToWindow()
}

// SelectMarker selects the first marker named name.
func (a *Animation) SelectMarker(name string) error {
	for i := range a.markers {
		if a.markers[i].Name == name {
			a.SelectSegment(&a.markers[i])
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrMarkerNotFound, name)
}

// SetCustomWindow sets an explicit frame window used when no marker is
// selected. end <= 0 means the end of the composition.
func (a *Animation) SetCustomWindow(start, end int) {
	a.seq.customStart = start
	a.seq.customEnd = end
	a.clampToWindow()
}

func (a *Animation) SetPlayTowardCustomEnd(v bool) { a.seq.playToward = v }

func (a *Animation) clampToWindow() {
	if a.handle == 0 {
		return
	}
	start, end := a.seq.window()
	if a.currentFrame < start || a.currentFrame > end {
		a.currentFrame = start
	}
}

// ApplyProperty queues a property override applied right before the next
// decode.
func (a *Animation) ApplyProperty(p renderer.PropertyUpdate) error {
	if a.recycled {
		return ErrRecycled
	}
	if err := p.Validate(); err != nil {
		return err
	}
	a.incoming = append(a.incoming, p)
	a.requestRedraw()
	return nil
}

// ReplaceColors swaps static shape colors before the next decode. A later
// call before that decode replaces the pending set.
func (a *Animation) ReplaceColors(reps []renderer.ColorReplacement) error {
	if a.recycled {
		return ErrRecycled
	}
	a.colors = append([]renderer.ColorReplacement(nil), reps...)
	a.requestRedraw()
	return nil
}

// BeginPropertyBatch defers redraws until CommitPropertyBatch.
func (a *Animation) BeginPropertyBatch() { a.batching = true }

func (a *Animation) CommitPropertyBatch() {
	if !a.batching {
		return
	}
	a.batching = false
	a.requestRedraw()
}

func (a *Animation) requestRedraw() {
	if !a.batching && !a.running && a.opts.DecodeSingleFrame && a.handle != 0 {
		if a.currentFrame <= 2 {
			start, end := a.seq.window()
			a.currentFrame = clamp(0, start, end)
		}
		a.nextIsLast = false
		a.singleFrameDecoded = false
		if !a.scheduleNext() {
			a.forceRedraw = true
		}
	}
	a.surface.Invalidate()
}

// Recycle stops playback and releases the handle and buffers, at once if
// no task references them, otherwise when the last one completes. It is
// idempotent.
func (a *Animation) Recycle() {
	if a.recycled {
		return
	}
	a.recycled = true
	a.running = false
	a.pendingStart = false
	if a.cancelRetry != nil {
		a.cancelRetry()
		a.cancelRetry = nil
	}
	if a.cancelLoad != nil {
		a.cancelLoad()
		a.cancelLoad = nil
	}
	a.state = Destroying
	a.next = nil
	if a.taskPending || a.loading {
		a.destroyWhenDone = true
		return
	}
	a.destroyNow()
}

func (a *Animation) destroyNow() {
	if a.taskPending {
		panic("player: destroying a handle with a decode in flight")
	}
	if a.state == Destroyed {
		return
	}
	if a.handle != 0 {
		a.rnd.Destroy(a.handle)
		metrics.HandlesDestroyed.Inc()
		a.handle = 0
	}
	a.rendering, a.next, a.scratch = nil, nil, nil
	a.destroyWhenDone = false
	a.state = Destroyed
	for _, w := range a.waiters {
		w.resolve(nil, ErrRecycled)
	}
	a.waiters = nil
	a.log.Debug().Msg("animation destroyed")
	if l := a.opts.LifecycleListener; l != nil {
		l.Recycled(a)
	}
}

// guard turns a renderer panic into ErrDecodeFailed.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v\n%s", renderer.ErrDecodeFailed, r, debug.Stack())
		}
	}()
	return fn()
}

func clampDur(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
