package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"lottied/internal/looper"
	"lottied/internal/queuepool"
	"lottied/internal/renderer"
	"lottied/internal/taskcache"
)

const docPath = "/anim.json"

func writeDoc(t *testing.T, fs afero.Fs, path string, fps float64, frames int) {
	t.Helper()
	doc := fmt.Sprintf(`{"v":"5.7.4","nm":"test","fr":%v,"ip":0,"op":%d,"w":64,"h":64,`+
		`"layers":[{"nm":"bg","ty":1,"ip":0,"op":%d},{"nm":"dot","ty":4,"ip":0,"op":%d}],`+
		`"markers":[{"cm":"intro","tm":1,"dr":2}]}`, fps, frames, frames, frames)
	if err := afero.WriteFile(fs, path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write doc: %v", err)
	}
}

// manualPool holds submitted work until the test runs it.
type manualPool struct {
	mu    sync.Mutex
	tasks []func()
}

func (p *manualPool) Submit(work func()) {
	p.mu.Lock()
	p.tasks = append(p.tasks, work)
	p.mu.Unlock()
}

func (p *manualPool) pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tasks)
}

func (p *manualPool) runOne() bool {
	p.mu.Lock()
	if len(p.tasks) == 0 {
		p.mu.Unlock()
		return false
	}
	fn := p.tasks[0]
	p.tasks = p.tasks[1:]
	p.mu.Unlock()
	fn()
	return true
}

// recorder is only touched on the loop.
type recorder struct {
	frames   []int
	repeats  []RepeatEvent
	loaded   int
	failed   int
	stopped  int
	recycled int
	loadErr  error
}

func (r *recorder) FrameChanged(_ *Animation, frame int)  { r.frames = append(r.frames, frame) }
func (r *recorder) Repeated(_ *Animation, ev RepeatEvent) { r.repeats = append(r.repeats, ev) }
func (r *recorder) Loaded(*Animation)                     { r.loaded++ }
func (r *recorder) Stopped(*Animation)                    { r.stopped++ }
func (r *recorder) Recycled(*Animation)                   { r.recycled++ }

func (r *recorder) LoadFailed(_ *Animation, err error) {
	r.failed++
	r.loadErr = err
}

type harness struct {
	t     *testing.T
	loop  *looper.Loop
	pool  *manualPool
	fs    afero.Fs
	fake  *renderer.Fake
	rnd   renderer.Renderer
	rec   *recorder
	clock time.Time // loop-confined
}

func newHarness(t *testing.T, fps float64, frames int) *harness {
	t.Helper()
	fs := afero.NewMemMapFs()
	writeDoc(t, fs, docPath, fps, frames)
	loop := looper.New(zerolog.Nop()).Start()
	t.Cleanup(loop.Close)
	fake := renderer.NewFake(fs)
	return &harness{
		t:     t,
		loop:  loop,
		pool:  &manualPool{},
		fs:    fs,
		fake:  fake,
		rnd:   fake,
		rec:   &recorder{},
		clock: time.Unix(1_000_000, 0),
	}
}

func (h *harness) call(fn func()) {
	h.t.Helper()
	if err := h.loop.Call(fn); err != nil {
		h.t.Fatalf("loop call: %v", err)
	}
}

func (h *harness) newAnimation(opts Options) *Animation {
	h.t.Helper()
	if opts.Width == 0 {
		opts.Width, opts.Height = 8, 8
	}
	opts.FrameListener = h.rec
	opts.RepeatListener = h.rec
	opts.LifecycleListener = h.rec
	var a *Animation
	h.call(func() {
		a = New(Config{ID: "test", Loop: h.loop, Pool: h.pool, Renderer: h.rnd, Options: opts})
		a.now = func() time.Time { return h.clock }
	})
	return a
}

func (h *harness) load(opts Options) *Animation {
	h.t.Helper()
	a := h.newAnimation(opts)
	h.call(func() { a.Load(docPath) })
	h.drain()
	h.call(func() {
		if a.State() != Ready && a.State() != Running {
			h.t.Fatalf("expected loaded animation, state=%s err=%v", a.State(), a.Err())
		}
	})
	return a
}

// drain runs queued work and the completions it posts until nothing is left.
func (h *harness) drain() {
	h.t.Helper()
	for h.pool.runOne() {
		h.call(func() {})
	}
}

// tick moves the clock well past any frame interval and draws.
func (h *harness) tick(a *Animation) (frame int) {
	h.t.Helper()
	h.call(func() {
		h.clock = h.clock.Add(time.Second)
		_, frame = a.Draw()
	})
	return frame
}

func (h *harness) advance(a *Animation, n int) {
	h.t.Helper()
	for i := 0; i < n; i++ {
		h.drain()
		h.tick(a)
	}
}

func (h *harness) playToEnd(a *Animation, limit int) {
	h.t.Helper()
	for i := 0; i < limit; i++ {
		h.drain()
		h.tick(a)
		running := true
		h.call(func() { running = a.IsRunning() })
		if !running {
			return
		}
	}
	h.t.Fatalf("playback still running after %d ticks", limit)
}

func (h *harness) frames() []int {
	var out []int
	h.call(func() { out = append(out, h.rec.frames...) })
	return out
}

func waitFrame(t *testing.T, fut *FrameFuture) (*renderer.Buffer, error) {
	t.Helper()
	if fut == nil {
		t.Fatalf("expected a future for a synchronous seek")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return fut.Wait(ctx)
}

func sameInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLoadReportsMetadata(t *testing.T) {
	h := newHarness(t, 30, 60)
	a := h.newAnimation(Options{})
	h.call(func() {
		a.Load(docPath)
		if a.State() != Loading {
			t.Fatalf("expected loading, got %s", a.State())
		}
	})
	if h.pool.pending() != 1 {
		t.Fatalf("expected the create task to be queued")
	}
	h.drain()
	h.call(func() {
		if a.State() != Ready || a.TotalFrames() != 60 || a.Metadata().FrameRate != 30 {
			t.Fatalf("unexpected state after load: %+v", a.Info())
		}
		if a.Interval() != 33*time.Millisecond {
			t.Fatalf("expected 33ms interval, got %v", a.Interval())
		}
		if a.Duration() != 2*time.Second {
			t.Fatalf("expected 2s duration, got %v", a.Duration())
		}
		ms := a.Markers()
		if len(ms) != 1 || ms[0].Name != "intro" || ms[0].InFrame != 1 || ms[0].OutFrame != 3 {
			t.Fatalf("unexpected markers %+v", ms)
		}
		if l, ok := a.LayerByName("dot"); !ok || l.Type != "shape" {
			t.Fatalf("layer lookup: %+v %v", l, ok)
		}
		if h.rec.loaded != 1 {
			t.Fatalf("expected one loaded callback, got %d", h.rec.loaded)
		}
		if buf, frame := a.Draw(); buf != nil || frame != -1 {
			t.Fatalf("nothing should be visible before playback")
		}
	})
	if h.pool.pending() != 0 {
		t.Fatalf("a stopped animation without single-frame decoding must not decode")
	}
}

func TestLoadFailureLeavesAnimationIdle(t *testing.T) {
	h := newHarness(t, 30, 60)
	a := h.newAnimation(Options{})
	h.call(func() { a.Load("/missing.json") })
	h.drain()
	h.call(func() {
		if a.State() != Idle || a.Err() == nil {
			t.Fatalf("expected idle with error, got %s %v", a.State(), a.Err())
		}
		if h.rec.failed != 1 || h.rec.loadErr == nil {
			t.Fatalf("expected load failure callback")
		}
		if err := a.Start(); !errors.Is(err, ErrNotLoaded) {
			t.Fatalf("expected ErrNotLoaded from Start, got %v", err)
		}
		if _, err := a.SetCurrentFrame(3, true, false); !errors.Is(err, ErrNotLoaded) {
			t.Fatalf("expected ErrNotLoaded from seek, got %v", err)
		}
		if a.Info().Error == "" {
			t.Fatalf("info should carry the load error")
		}
	})
}

func TestStartBeforeLoadIsDeferred(t *testing.T) {
	h := newHarness(t, 30, 60)
	a := h.newAnimation(Options{})
	h.call(func() {
		a.Load(docPath)
		if err := a.Start(); err != nil {
			t.Fatalf("start while loading: %v", err)
		}
	})
	h.drain()
	h.tick(a)
	h.call(func() {
		if !a.IsRunning() || a.State() != Running {
			t.Fatalf("deferred start not honored: %s", a.State())
		}
	})
	if got := h.frames(); !sameInts(got, []int{0}) {
		t.Fatalf("expected first frame 0, got %v", got)
	}
}

func TestFiniteRepeatPlaysExactCyclesThenHolds(t *testing.T) {
	h := newHarness(t, 30, 4)
	a := h.load(Options{RepeatCount: 3})
	h.call(func() { _ = a.Start() })
	h.playToEnd(a, 100)

	want := []int{0, 1, 2, 3, 0, 1, 2, 3, 0, 1, 2, 3}
	if got := h.frames(); !sameInts(got, want) {
		t.Fatalf("frames %v, want %v", got, want)
	}
	h.call(func() {
		if len(h.rec.repeats) != 2 || h.rec.repeats[0].PlayCount != 1 || h.rec.repeats[1].PlayCount != 2 {
			t.Fatalf("unexpected repeat events %+v", h.rec.repeats)
		}
		if a.State() != Stopped || h.rec.stopped != 1 {
			t.Fatalf("expected stopped after the run, got %s stopped=%d", a.State(), h.rec.stopped)
		}
		if err := a.Start(); err != nil || a.IsRunning() {
			t.Fatalf("start after a completed finite run must be a no-op (err=%v)", err)
		}
	})
	if h.pool.pending() != 0 {
		t.Fatalf("no decode expected after completion")
	}

	h.call(func() {
		if err := a.Restart(); err != nil {
			t.Fatalf("restart: %v", err)
		}
	})
	h.playToEnd(a, 100)
	if got := h.frames(); len(got) != 24 || !sameInts(got[12:], want) {
		t.Fatalf("restart should replay the full run, got %v", got)
	}
}

func TestPlayOnceRewindsOnStart(t *testing.T) {
	h := newHarness(t, 30, 3)
	a := h.load(Options{AutoStart: true})
	h.playToEnd(a, 20)
	h.call(func() { _ = a.Start() })
	h.playToEnd(a, 20)
	if got := h.frames(); !sameInts(got, []int{0, 1, 2, 0, 1, 2}) {
		t.Fatalf("frames %v", got)
	}
}

func TestReverseModeBounces(t *testing.T) {
	h := newHarness(t, 30, 4)
	a := h.load(Options{RepeatCount: RepeatInfinite, RepeatMode: Reverse})
	h.call(func() { _ = a.Start() })
	h.advance(a, 10)
	if got := h.frames(); !sameInts(got, []int{0, 1, 2, 3, 2, 1, 0, 1, 2, 3}) {
		t.Fatalf("frames %v", got)
	}
	h.call(func() {
		var bounds []Bound
		for _, ev := range h.rec.repeats {
			if !ev.Infinite {
				t.Fatalf("expected infinite events, got %+v", ev)
			}
			bounds = append(bounds, ev.Bound)
		}
		if len(bounds) != 3 || bounds[0] != BoundEnd || bounds[1] != BoundStart || bounds[2] != BoundEnd {
			t.Fatalf("unexpected bounds %v", bounds)
		}
	})
}

func TestLimitFpsSkipsFramesOnHighRateSources(t *testing.T) {
	h := newHarness(t, 60, 20)
	a := h.load(Options{LimitFps: true})
	h.call(func() {
		if a.Interval() != 33*time.Millisecond {
			t.Fatalf("expected 33ms interval, got %v", a.Interval())
		}
		_ = a.Start()
	})
	h.advance(a, 3)
	if got := h.frames(); !sameInts(got, []int{0, 2, 4}) {
		t.Fatalf("frames %v", got)
	}

	h2 := newHarness(t, 30, 20)
	b := h2.load(Options{LimitFps: true})
	h2.call(func() { _ = b.Start() })
	h2.advance(b, 3)
	if got := h2.frames(); !sameInts(got, []int{0, 1, 2}) {
		t.Fatalf("30fps source must not be limited, frames %v", got)
	}
}

func TestMarkerLimitsPlayback(t *testing.T) {
	h := newHarness(t, 30, 60)
	a := h.load(Options{Marker: "intro", RepeatCount: RepeatInfinite})
	h.call(func() {
		if a.CurrentFrame() != 1 {
			t.Fatalf("expected playback to start at the marker, got %d", a.CurrentFrame())
		}
		if err := a.SelectMarker("nope"); !errors.Is(err, ErrMarkerNotFound) {
			t.Fatalf("expected ErrMarkerNotFound, got %v", err)
		}
		_ = a.Start()
	})
	h.advance(a, 6)
	if got := h.frames(); !sameInts(got, []int{1, 2, 1, 2, 1, 2}) {
		t.Fatalf("frames %v", got)
	}
	h.call(func() {
		info := a.Info()
		if info.Marker != "intro" || info.WindowStart != 1 || info.WindowEnd != 3 {
			t.Fatalf("unexpected window in info %+v", info)
		}
		a.SelectSegment(nil)
		if s, e := a.seq.window(); s != 0 || e != 60 {
			t.Fatalf("clearing the segment should restore the full window, got [%d,%d]", s, e)
		}
	})
}

func TestSyncSeekResolvesWithDecodedFrame(t *testing.T) {
	h := newHarness(t, 30, 60)
	a := h.load(Options{})
	var fut *FrameFuture
	h.call(func() {
		var err error
		if fut, err = a.SetCurrentFrame(10, false, false); err != nil {
			t.Fatalf("seek: %v", err)
		}
	})
	h.drain()
	buf, err := waitFrame(t, fut)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if renderer.FrameOf(buf) != 10 {
		t.Fatalf("expected frame 10 pixels, got %d", renderer.FrameOf(buf))
	}
	if got := h.tick(a); got != 10 {
		t.Fatalf("expected the seeked frame to become visible, got %d", got)
	}
	h.call(func() {
		if a.CurrentFrame() != 10 {
			t.Fatalf("a stopped seek must not advance, current=%d", a.CurrentFrame())
		}
		buf.Pix[0] = 0xee
		if snap, _ := a.Snapshot(); renderer.FrameOf(snap) != 10 {
			t.Fatalf("future buffer must be a private copy")
		}
		if _, err := a.SetCurrentFrame(61, true, false); !errors.Is(err, ErrFrameOutOfRange) {
			t.Fatalf("expected ErrFrameOutOfRange, got %v", err)
		}
	})
	if h.pool.pending() != 0 {
		t.Fatalf("no further decode expected while stopped")
	}
}

func TestSeekSupersedesInflightDecode(t *testing.T) {
	h := newHarness(t, 30, 60)
	a := h.load(Options{})
	var fut *FrameFuture
	h.call(func() {
		_ = a.Start()
		fut, _ = a.SetCurrentFrame(30, false, false)
	})
	if n := h.pool.pending(); n != 1 {
		t.Fatalf("expected exactly one decode in flight, got %d", n)
	}
	h.pool.runOne()
	h.call(func() {})
	if n := h.pool.pending(); n != 1 {
		t.Fatalf("the stale result should trigger one decode of the new target, got %d", n)
	}
	h.drain()
	buf, err := waitFrame(t, fut)
	if err != nil || renderer.FrameOf(buf) != 30 {
		t.Fatalf("expected frame 30, got %d err=%v", renderer.FrameOf(buf), err)
	}
	h.tick(a)
	if got := h.frames(); !sameInts(got, []int{30}) {
		t.Fatalf("the superseded frame must never be shown, got %v", got)
	}
	h.call(func() {
		if a.CurrentFrame() != 31 {
			t.Fatalf("playback should continue after the seek target, got %d", a.CurrentFrame())
		}
	})
	if st := h.fake.Stats(); st.Decodes != 2 {
		t.Fatalf("expected 2 decodes, got %d", st.Decodes)
	}
}

func TestReplacedSyncSeekFailsInsteadOfHanging(t *testing.T) {
	h := newHarness(t, 30, 60)
	a := h.load(Options{})
	var fut *FrameFuture
	h.call(func() {
		_, _ = a.SetCurrentFrame(2, true, false)
		fut, _ = a.SetCurrentFrame(5, false, false)
		_, _ = a.SetCurrentFrame(7, true, false)
	})
	if _, err := waitFrame(t, fut); !errors.Is(err, ErrSuperseded) || !errors.Is(err, ErrNoFrame) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	h.advance(a, 5)
	if got := h.frames(); !sameInts(got, []int{7}) {
		t.Fatalf("expected only the last target to show, got %v", got)
	}
	h.call(func() {
		if n := len(a.waiters); n != 0 {
			t.Fatalf("waiters left behind: %d", n)
		}
	})
}

func TestRepeatedSyncSeeksKeepWaitersBounded(t *testing.T) {
	h := newHarness(t, 30, 60)
	a := h.load(Options{})
	futs := make([]*FrameFuture, 0, 40)
	for i := 1; i <= 40; i++ {
		h.call(func() {
			fut, err := a.SetCurrentFrame(i, false, false)
			if err != nil {
				t.Fatalf("seek %d: %v", i, err)
			}
			futs = append(futs, fut)
			if n := len(a.waiters); n != 1 {
				t.Fatalf("after seek %d: %d waiters", i, n)
			}
		})
	}
	h.drain()
	for i, fut := range futs[:len(futs)-1] {
		if _, err := waitFrame(t, fut); !errors.Is(err, ErrSuperseded) {
			t.Fatalf("seek %d: expected ErrSuperseded, got %v", i+1, err)
		}
	}
	buf, err := waitFrame(t, futs[len(futs)-1])
	if err != nil || renderer.FrameOf(buf) != 40 {
		t.Fatalf("expected frame 40, got %d err=%v", renderer.FrameOf(buf), err)
	}
	h.call(func() {
		if n := len(a.waiters); n != 0 {
			t.Fatalf("waiters left behind: %d", n)
		}
	})
}

func TestDecodeFailureYieldsNoFrame(t *testing.T) {
	h := newHarness(t, 30, 60)
	h.fake.FailFrame = func(_ renderer.Handle, frame int) bool { return frame == 7 }
	a := h.load(Options{})
	var fut *FrameFuture
	h.call(func() { fut, _ = a.SetCurrentFrame(7, false, false) })
	h.drain()
	if _, err := waitFrame(t, fut); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("expected ErrNoFrame, got %v", err)
	}
	h.call(func() { fut, _ = a.SetCurrentFrame(8, false, false) })
	h.drain()
	if buf, err := waitFrame(t, fut); err != nil || renderer.FrameOf(buf) != 8 {
		t.Fatalf("a later seek should still decode, got %v", err)
	}
	h.call(func() {
		if a.Info().NoFrames != 1 {
			t.Fatalf("expected one no-frame result, got %+v", a.Info())
		}
	})
}

func TestRunningDecodeFailureRetries(t *testing.T) {
	h := newHarness(t, 30, 60)
	var failing atomic.Bool
	failing.Store(true)
	h.fake.FailFrame = func(_ renderer.Handle, frame int) bool { return frame == 2 && failing.Load() }
	a := h.load(Options{})
	h.call(func() { _ = a.Start() })
	h.advance(a, 3)
	if got := h.frames(); !sameInts(got, []int{0, 1}) {
		t.Fatalf("frames %v", got)
	}
	failing.Store(false)
	deadline := time.Now().Add(2 * time.Second)
	for h.pool.pending() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("failed frame was never retried")
		}
		time.Sleep(5 * time.Millisecond)
	}
	h.advance(a, 1)
	if got := h.frames(); !sameInts(got, []int{0, 1, 2}) {
		t.Fatalf("frames after retry %v", got)
	}
}

func TestOneDecodeInFlightUnderConcurrentRequests(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeDoc(t, fs, docPath, 60, 120)
	loop := looper.New(zerolog.Nop()).Start()
	t.Cleanup(loop.Close)
	fake := renderer.NewFake(fs)
	gate := make(chan struct{})
	fake.Gate = gate

	var pool *queuepool.Pool
	var a *Animation
	if err := loop.Call(func() {
		pool = queuepool.New(loop, queuepool.Config{MaxQueues: 4})
		a = New(Config{ID: "c", Loop: loop, Pool: pool, Renderer: fake, Options: Options{Width: 4, Height: 4, RepeatCount: RepeatInfinite}})
		a.Load(docPath)
	}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	t.Cleanup(func() { _ = loop.Call(pool.Close) })

	eventually(t, loop, func() bool { return a.State() == Ready })

	hammer := func(n int) {
		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for i := 0; i < n; i++ {
					frame := (g*n + i) % 120
					switch i % 3 {
					case 0:
						loop.Post(func() { _ = a.Start() })
					case 1:
						loop.Post(func() { _, _ = a.SetCurrentFrame(frame, true, i%2 == 0) })
					default:
						loop.Post(func() { a.Draw() })
					}
				}
			}(g)
		}
		wg.Wait()
	}

	hammer(20)
	if err := loop.Call(func() {
		if !a.taskPending || a.decodes != 1 {
			t.Fatalf("expected exactly one submitted decode while the first is blocked, got %d", a.decodes)
		}
	}); err != nil {
		t.Fatalf("call: %v", err)
	}

	close(gate)
	hammer(50)
	_ = loop.Call(func() { a.Stop() })
	eventually(t, loop, func() bool { return !a.taskPending })

	if st := fake.Stats(); st.MaxConcurrentDecodes != 1 {
		t.Fatalf("expected at most one decode in flight per animation, saw %d", st.MaxConcurrentDecodes)
	}
}

func eventually(t *testing.T, loop *looper.Loop, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		ok := false
		if err := loop.Call(func() { ok = cond() }); err != nil {
			t.Fatalf("call: %v", err)
		}
		if ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestRecycleWhileDecodingDestroysOnce(t *testing.T) {
	h := newHarness(t, 30, 60)
	a := h.load(Options{})
	h.call(func() {
		_ = a.Start()
		a.Recycle()
		a.Recycle()
		if a.State() != Destroying {
			t.Fatalf("expected destroying while a decode is in flight, got %s", a.State())
		}
	})
	if st := h.fake.Stats(); st.Destroys != 0 {
		t.Fatalf("handle destroyed under a running decode")
	}
	h.drain()
	h.call(func() {
		if a.State() != Destroyed || h.rec.recycled != 1 {
			t.Fatalf("expected destroyed once, got %s recycled=%d", a.State(), h.rec.recycled)
		}
		a.Recycle()
		if err := a.Start(); !errors.Is(err, ErrRecycled) {
			t.Fatalf("expected ErrRecycled, got %v", err)
		}
		if buf, frame := a.Draw(); buf != nil || frame != -1 {
			t.Fatalf("draw after recycle must be empty")
		}
	})
	if st := h.fake.Stats(); st.Destroys != 1 || st.DoubleDestroys != 0 || st.Live != 0 {
		t.Fatalf("unexpected renderer stats %+v", st)
	}
}

func TestRecycleDuringLoadDestroysCreatedHandle(t *testing.T) {
	h := newHarness(t, 30, 60)
	a := h.newAnimation(Options{AutoStart: true})
	h.call(func() {
		a.Load(docPath)
		a.Recycle()
	})
	h.drain()
	h.call(func() {
		if a.State() != Destroyed || h.rec.loaded != 0 || h.rec.recycled != 1 {
			t.Fatalf("unexpected state %s loaded=%d recycled=%d", a.State(), h.rec.loaded, h.rec.recycled)
		}
	})
	if st := h.fake.Stats(); st.Creates != 1 || st.Destroys != 1 || st.Live != 0 {
		t.Fatalf("unexpected renderer stats %+v", st)
	}
	if h.pool.pending() != 0 {
		t.Fatalf("a recycled animation must not decode")
	}
}

func TestRecycleFailsPendingFutures(t *testing.T) {
	h := newHarness(t, 30, 60)
	a := h.load(Options{})
	var fut *FrameFuture
	h.call(func() {
		_ = a.Start()
		fut, _ = a.SetCurrentFrame(20, false, false)
		a.Recycle()
	})
	h.drain()
	if _, err := waitFrame(t, fut); !errors.Is(err, ErrRecycled) {
		t.Fatalf("expected ErrRecycled, got %v", err)
	}
}

func TestSpeedAndRepeatValidation(t *testing.T) {
	h := newHarness(t, 30, 60)
	a := h.load(Options{})
	h.call(func() {
		for _, s := range []float64{0, -1} {
			if err := a.SetSpeed(s); !errors.Is(err, ErrInvalidSpeed) {
				t.Fatalf("speed %v: expected ErrInvalidSpeed, got %v", s, err)
			}
		}
		if err := a.SetSpeed(2); err != nil {
			t.Fatalf("speed 2: %v", err)
		}
		if a.Interval() != 33*time.Millisecond/2 {
			t.Fatalf("expected half interval, got %v", a.Interval())
		}
		if err := a.SetRepeat(-2, Restart); !errors.Is(err, ErrInvalidRepeat) {
			t.Fatalf("expected ErrInvalidRepeat, got %v", err)
		}
		if err := a.SetRepeat(RepeatInfinite, Reverse); err != nil {
			t.Fatalf("set repeat: %v", err)
		}
		if info := a.Info(); info.RepeatMode != "reverse" || info.RepeatCount != RepeatInfinite {
			t.Fatalf("unexpected info %+v", info)
		}
	})
}

func TestProgressMapsToFrames(t *testing.T) {
	h := newHarness(t, 30, 60)
	a := h.load(Options{})
	h.call(func() {
		cases := []struct {
			fraction float64
			frame    int
		}{{2, 60}, {-1, 0}, {0.5, 30}}
		for _, c := range cases {
			if _, err := a.SetProgress(c.fraction, true); err != nil {
				t.Fatalf("progress %v: %v", c.fraction, err)
			}
			if a.CurrentFrame() != c.frame {
				t.Fatalf("progress %v: frame %d, want %d", c.fraction, a.CurrentFrame(), c.frame)
			}
		}
		_, _ = a.SetProgressMs(330)
		if a.CurrentFrame() != 10 {
			t.Fatalf("330ms at 33ms/frame: got %d", a.CurrentFrame())
		}
		_, _ = a.SetProgressMs(33 * 70)
		if a.CurrentFrame() != 10 {
			t.Fatalf("progress past the end should wrap, got %d", a.CurrentFrame())
		}
	})
}

func TestPropertyBatchSchedulesOneDecode(t *testing.T) {
	h := newHarness(t, 30, 60)
	a := h.load(Options{DecodeSingleFrame: true})
	h.drain()
	if got := h.tick(a); got != 0 {
		t.Fatalf("single-frame decode should show frame 0, got %d", got)
	}
	if h.pool.pending() != 0 {
		t.Fatalf("nothing should be pending after the single frame")
	}

	fill := renderer.PropertyUpdate{KeyPath: "dot.**", Kind: renderer.FillColor, Values: []float64{1, 0, 0}}
	fade := renderer.PropertyUpdate{KeyPath: "bg", Kind: renderer.TrOpacity, Values: []float64{50}}
	h.call(func() {
		a.BeginPropertyBatch()
		if err := a.ApplyProperty(fill); err != nil {
			t.Fatalf("apply: %v", err)
		}
		if err := a.ApplyProperty(fade); err != nil {
			t.Fatalf("apply: %v", err)
		}
		bad := renderer.PropertyUpdate{KeyPath: "dot", Kind: renderer.FillColor, Values: []float64{1}}
		if err := a.ApplyProperty(bad); err == nil {
			t.Fatalf("expected arity error")
		}
	})
	if h.pool.pending() != 0 {
		t.Fatalf("batched updates must not decode before commit")
	}
	var handle renderer.Handle
	h.call(func() {
		a.CommitPropertyBatch()
		handle = a.handle
	})
	if n := h.pool.pending(); n != 1 {
		t.Fatalf("commit should schedule one decode, got %d", n)
	}
	h.drain()
	if applied := h.fake.Applied(handle); len(applied) != 2 || applied[0].KeyPath != "dot.**" {
		t.Fatalf("unexpected applied properties %+v", applied)
	}
}

type failingProps struct{ *renderer.Fake }

func (failingProps) ApplyProperty(renderer.Handle, renderer.PropertyUpdate) error {
	return errors.New("no such key path")
}

func TestPropertyFailureDoesNotBlockDecode(t *testing.T) {
	h := newHarness(t, 30, 60)
	h.rnd = failingProps{h.fake}
	a := h.load(Options{})
	var fut *FrameFuture
	h.call(func() {
		_ = a.ApplyProperty(renderer.PropertyUpdate{KeyPath: "x", Kind: renderer.StrokeWidth, Values: []float64{3}})
		fut, _ = a.SetCurrentFrame(5, false, false)
	})
	h.drain()
	if buf, err := waitFrame(t, fut); err != nil || renderer.FrameOf(buf) != 5 {
		t.Fatalf("decode should proceed past a failed property, err=%v", err)
	}
}

func TestColorReplacementsAppliedBeforeDecode(t *testing.T) {
	h := newHarness(t, 30, 60)
	first := []renderer.ColorReplacement{{From: 0xff0000, To: 0x00ff00}}
	a := h.load(Options{DecodeSingleFrame: true, ColorReplacements: first})
	h.drain()
	var handle renderer.Handle
	h.call(func() { handle = a.handle })
	if got := h.fake.Replaced(handle); len(got) != 1 || got[0][0] != first[0] {
		t.Fatalf("load-time replacements not applied: %+v", got)
	}
	h.tick(a)

	stale := []renderer.ColorReplacement{{From: 1, To: 2}}
	latest := []renderer.ColorReplacement{{From: 3, To: 4}, {From: 5, To: 6}}
	h.call(func() {
		if err := a.ReplaceColors(stale); err != nil {
			t.Fatalf("replace: %v", err)
		}
		if err := a.ReplaceColors(latest); err != nil {
			t.Fatalf("replace: %v", err)
		}
	})
	h.drain()
	got := h.fake.Replaced(handle)
	if len(got) != 2 || len(got[1]) != 2 || got[1][0] != latest[0] {
		t.Fatalf("pending set should be replaced by the latest call, got %+v", got)
	}

	h.call(func() { a.Recycle() })
	h.drain()
	h.call(func() {
		if err := a.ReplaceColors(latest); !errors.Is(err, ErrRecycled) {
			t.Fatalf("expected ErrRecycled, got %v", err)
		}
	})
}

func TestLoadFromTask(t *testing.T) {
	h := newHarness(t, 30, 60)
	a := h.newAnimation(Options{})
	h.call(func() { a.LoadFrom(taskcache.Resolved(docPath, nil)) })
	h.call(func() {})
	h.drain()
	h.call(func() {
		if a.State() != Ready || a.Source() != docPath {
			t.Fatalf("expected ready from task, got %s source=%q", a.State(), a.Source())
		}
	})

	boom := errors.New("fetch failed")
	b := h.newAnimation(Options{})
	h.call(func() { b.LoadFrom(taskcache.Failed(boom, nil)) })
	h.call(func() {
		if b.State() != Idle || !errors.Is(b.Err(), boom) || h.rec.failed != 1 {
			t.Fatalf("expected failed load, got %s %v", b.State(), b.Err())
		}
	})
}

func TestParseRepeatMode(t *testing.T) {
	for in, want := range map[string]RepeatMode{"": Restart, "restart": Restart, "reverse": Reverse} {
		if got, ok := ParseRepeatMode(in); !ok || got != want {
			t.Fatalf("%q: got %v %v", in, got, ok)
		}
	}
	if _, ok := ParseRepeatMode("bounce"); ok {
		t.Fatalf("expected rejection")
	}
}
