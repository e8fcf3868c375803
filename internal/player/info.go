package player

import (
	"time"

	"lottied/internal/renderer"
)

func (a *Animation) ID() string     { return a.id }
func (a *Animation) State() State   { return a.state }
func (a *Animation) Err() error     { return a.loadErr }
func (a *Animation) Source() string { return a.source }

func (a *Animation) IsRunning() bool   { return a.running }
func (a *Animation) CurrentFrame() int { return a.currentFrame }
func (a *Animation) TotalFrames() int  { return a.meta.TotalFrames }

func (a *Animation) Metadata() renderer.Metadata { return a.meta }

// Duration is the composition length at speed 1.
func (a *Animation) Duration() time.Duration {
	if a.meta.FrameRate <= 0 {
		return 0
	}
	return time.Duration(float64(a.meta.TotalFrames) / a.meta.FrameRate * float64(time.Second))
}

// Interval is the effective time between frames at the current speed.
func (a *Animation) Interval() time.Duration { return a.interval }

func (a *Animation) Markers() []renderer.Marker {
	return append([]renderer.Marker(nil), a.markers...)
}

func (a *Animation) Layers() []renderer.LayerInfo {
	return append([]renderer.LayerInfo(nil), a.layers...)
}

// LayerByName returns the first top-level layer named name.
func (a *Animation) LayerByName(name string) (renderer.LayerInfo, bool) {
	for _, l := range a.layers {
		if l.Name == name {
			return l, true
		}
	}
	return renderer.LayerInfo{}, false
}

// Snapshot copies the visible frame.
func (a *Animation) Snapshot() (*renderer.Buffer, int) {
	if a.rendering == nil {
		return nil, -1
	}
	return cloneBuffer(a.rendering), a.renderingFrame
}

// Info is a point-in-time view of an Animation.
type Info struct {
	ID           string  `json:"id"`
	State        string  `json:"state"`
	Source       string  `json:"source,omitempty"`
	Error        string  `json:"error,omitempty"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	TotalFrames  int     `json:"total_frames"`
	FrameRate    float64 `json:"frame_rate"`
	DurationMs   int64   `json:"duration_ms"`
	CurrentFrame int     `json:"current_frame"`
	VisibleFrame int     `json:"visible_frame"`
	Running      bool    `json:"running"`
	Completed    bool    `json:"completed"`
	Speed        float64 `json:"speed"`
	IntervalMs   int64   `json:"interval_ms"`
	RepeatCount  int     `json:"repeat_count"`
	RepeatMode   string  `json:"repeat_mode"`
	PlayCount    int     `json:"play_count"`
	WindowStart  int     `json:"window_start"`
	WindowEnd    int     `json:"window_end"`
	Marker       string  `json:"marker,omitempty"`
	Decodes      int     `json:"decodes"`
	NoFrames     int     `json:"no_frames"`
	FromCache    bool    `json:"loaded_from_cache"`
}

func (a *Animation) Info() Info {
	start, end := a.seq.window()
	visible := -1
	if a.rendering != nil {
		visible = a.renderingFrame
	}
	info := Info{
		ID:           a.id,
		State:        a.state.String(),
		Source:       a.source,
		Width:        a.opts.Width,
		Height:       a.opts.Height,
		TotalFrames:  a.meta.TotalFrames,
		FrameRate:    a.meta.FrameRate,
		DurationMs:   a.Duration().Milliseconds(),
		CurrentFrame: a.currentFrame,
		VisibleFrame: visible,
		Running:      a.running,
		Completed:    a.completed,
		Speed:        a.speed,
		IntervalMs:   a.interval.Milliseconds(),
		RepeatCount:  a.seq.repeatCount,
		RepeatMode:   a.seq.mode.String(),
		PlayCount:    a.seq.playCount,
		WindowStart:  start,
		WindowEnd:    end,
		Decodes:      a.decodes,
		NoFrames:     a.noFrames,
		FromCache:    a.meta.LoadedFromCache,
	}
	if a.seq.marker != nil {
		info.Marker = a.seq.marker.Name
	}
	if a.loadErr != nil {
		info.Error = a.loadErr.Error()
	}
	return info
}

// ParseRepeatMode accepts "restart" or "reverse".
func ParseRepeatMode(s string) (RepeatMode, bool) {
	switch s {
	case "", "restart":
		return Restart, true
	case "reverse":
		return Reverse, true
	}
	return Restart, false
}
