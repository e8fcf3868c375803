package manager

import (
	"time"

	"lottied/internal/looper"
	"lottied/internal/player"
	"lottied/pkg/types"
)

// Source names where an animation comes from.
type Source struct {
	Kind string // one of the types.Source* constants
	Ref  string // path, URL, library id or cache name as given
	Path string // resolved local path for file and library sources
	Data []byte // inline document
}

// Instance is one live animation. All fields are loop-confined.
type Instance struct {
	ID       string
	Source   Source
	Created  time.Time
	LastUsed time.Time

	m       *Manager
	anim    *player.Animation
	surface *loopSurface

	settled   chan struct{}
	isSettled bool
	loadErr   error

	framesShown int
	repeats     int
}

func (inst *Instance) settle(err error) {
	if inst.isSettled {
		return
	}
	inst.isSettled = true
	inst.loadErr = err
	close(inst.settled)
}

func (inst *Instance) Loaded(a *player.Animation) {
	inst.settle(nil)
	md := a.Metadata()
	inst.m.publisher.Publish(Event{Name: EventLoadReady, AnimationID: inst.ID, Fields: map[string]any{
		"frames": md.TotalFrames, "fps": md.FrameRate, "from_cache": md.LoadedFromCache,
	}})
}

func (inst *Instance) LoadFailed(_ *player.Animation, err error) {
	inst.settle(err)
	inst.m.lastErr = err.Error()
	inst.m.publisher.Publish(Event{Name: EventLoadFailed, AnimationID: inst.ID, Fields: map[string]any{"error": err.Error()}})
}

func (inst *Instance) Stopped(a *player.Animation) {
	inst.m.publisher.Publish(Event{Name: EventStopped, AnimationID: inst.ID, Fields: map[string]any{"frame": a.CurrentFrame()}})
}

func (inst *Instance) Recycled(*player.Animation) {
	inst.settle(player.ErrRecycled)
	delete(inst.m.draining, inst.ID)
	inst.m.publisher.Publish(Event{Name: EventRecycleDone, AnimationID: inst.ID, Fields: map[string]any{}})
}

func (inst *Instance) FrameChanged(*player.Animation, int) { inst.framesShown++ }

func (inst *Instance) Repeated(*player.Animation, player.RepeatEvent) { inst.repeats++ }

// loopSurface coalesces redraw requests into one Draw per delay.
type loopSurface struct {
	loop    looper.Poster
	delay   time.Duration
	draw    func()
	pending bool
	stopped bool
	cancel  func()
}

func (s *loopSurface) Invalidate() {
	if s.pending || s.stopped || s.draw == nil {
		return
	}
	s.pending = true
	s.cancel = s.loop.PostDelayed(func() {
		s.pending = false
		s.cancel = nil
		if !s.stopped {
			s.draw()
		}
	}, s.delay)
}

func (s *loopSurface) stop() {
	s.stopped = true
	s.pending = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s Source) display() string {
	if s.Kind == types.SourceJSON {
		return "json:" + s.Ref
	}
	return s.Ref
}
