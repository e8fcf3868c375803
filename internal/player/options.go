package player

import (
	"time"

	"github.com/rs/zerolog"

	"lottied/internal/renderer"
)

const (
	DefaultWidth  = 200
	DefaultHeight = 200

	defaultRefreshRate = 60.0

	minInterval        = 16 * time.Millisecond
	minLimitedInterval = 33 * time.Millisecond
	// limitFpsThreshold is the source frame rate below which LimitFps is ignored.
	limitFpsThreshold = 60.0
	drawSlack         = 6 * time.Millisecond
)

// FrameChangedListener is told about every frame that becomes visible.
type FrameChangedListener interface {
	FrameChanged(a *Animation, frame int)
}

// RepeatListener is told when playback wraps (Restart) or bounces (Reverse).
type RepeatListener interface {
	Repeated(a *Animation, ev RepeatEvent)
}

// LifecycleListener follows load, stop and recycle transitions.
type LifecycleListener interface {
	Loaded(a *Animation)
	LoadFailed(a *Animation, err error)
	Stopped(a *Animation)
	Recycled(a *Animation)
}

// Surface is whatever displays the animation. Invalidate asks for a Draw
// on the coordinating loop.
type Surface interface {
	Invalidate()
}

// Options configure an Animation. They are read once, at construction.
type Options struct {
	Width  int
	Height int

	Precache bool
	// LimitFps halves the frame rate of sources running at 60fps or more.
	LimitFps bool
	// DecodeSingleFrame decodes the current frame while stopped.
	DecodeSingleFrame bool
	AutoStart         bool

	RepeatCount int
	RepeatMode  RepeatMode

	CustomStart int
	CustomEnd   int
	// PlayTowardCustomEnd moves toward the window end from wherever the
	// current frame is, forward or backward, and stops there.
	PlayTowardCustomEnd bool
	// Marker selects a named segment once the composition is loaded.
	Marker string

	Properties []renderer.PropertyUpdate
	// ColorReplacements swap static shape colors before the first decode.
	ColorReplacements []renderer.ColorReplacement

	ScreenRefreshRate float64
	Speed             float64

	FrameListener     FrameChangedListener
	RepeatListener    RepeatListener
	LifecycleListener LifecycleListener

	Log zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.ScreenRefreshRate <= 0 {
		o.ScreenRefreshRate = defaultRefreshRate
	}
	if o.Speed <= 0 {
		o.Speed = 1
	}
	if o.RepeatCount < RepeatInfinite {
		o.RepeatCount = 0
	}
	o.Properties = append([]renderer.PropertyUpdate(nil), o.Properties...)
	o.ColorReplacements = append([]renderer.ColorReplacement(nil), o.ColorReplacements...)
	return o
}

// baseInterval is the time between frames at speed 1.
func baseInterval(fps float64, limitFps bool) time.Duration {
	floor := minInterval
	if limitFps {
		floor = minLimitedInterval
	}
	if fps <= 0 {
		return floor
	}
	iv := time.Duration(int(1000.0/fps)) * time.Millisecond
	return max(floor, iv)
}
