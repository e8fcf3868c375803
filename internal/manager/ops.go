package manager

import (
	"context"

	"lottied/internal/player"
	"lottied/internal/renderer"
	"lottied/pkg/types"
)

// List returns every live animation, oldest first.
func (m *Manager) List() []types.AnimationStatus {
	var out []types.AnimationStatus
	_ = m.loop.Call(func() { out = m.statuses() })
	return out
}

func (m *Manager) Get(id string) (types.AnimationStatus, error) {
	var st types.AnimationStatus
	err := m.withInstance(id, func(inst *Instance) error {
		st = inst.status()
		return nil
	})
	return st, err
}

// Start begins continuous playback. A request made while loading is applied
// once the composition is ready.
func (m *Manager) Start(id string) (types.AnimationStatus, error) {
	return m.mutate(id, func(inst *Instance) error { return inst.anim.Start() })
}

func (m *Manager) Stop(id string) (types.AnimationStatus, error) {
	return m.mutate(id, func(inst *Instance) error {
		inst.anim.Stop()
		return nil
	})
}

// Restart rewinds to the start of the window and plays.
func (m *Manager) Restart(id string) (types.AnimationStatus, error) {
	return m.mutate(id, func(inst *Instance) error { return inst.anim.Restart() })
}

// Seek moves to req.Frame. With req.Sync it returns once the frame has been
// decoded.
func (m *Manager) Seek(ctx context.Context, id string, req types.FrameRequest) (types.AnimationStatus, error) {
	var fut *player.FrameFuture
	if err := m.withInstance(id, func(inst *Instance) error {
		var err error
		fut, err = inst.anim.SetCurrentFrame(req.Frame, !req.Sync, false)
		return err
	}); err != nil {
		return types.AnimationStatus{}, playerErr(err)
	}
	if _, err := waitFrame(ctx, fut); err != nil {
		return types.AnimationStatus{}, err
	}
	return m.Get(id)
}

// SetProgress seeks by fraction of the composition or by elapsed time.
func (m *Manager) SetProgress(id string, req types.ProgressRequest) (types.AnimationStatus, error) {
	if (req.Fraction == nil) == (req.Ms == nil) {
		return types.AnimationStatus{}, invalidf("exactly one of fraction or ms is required")
	}
	return m.mutate(id, func(inst *Instance) error {
		var err error
		if req.Fraction != nil {
			_, err = inst.anim.SetProgress(*req.Fraction, true)
		} else {
			_, err = inst.anim.SetProgressMs(*req.Ms)
		}
		return err
	})
}

func (m *Manager) SetRepeat(id string, req types.RepeatRequest) (types.AnimationStatus, error) {
	mode, ok := player.ParseRepeatMode(req.Mode)
	if !ok {
		return types.AnimationStatus{}, invalidf("unknown repeat mode %q", req.Mode)
	}
	return m.mutate(id, func(inst *Instance) error { return inst.anim.SetRepeat(req.Count, mode) })
}

func (m *Manager) SetSpeed(id string, req types.SpeedRequest) (types.AnimationStatus, error) {
	return m.mutate(id, func(inst *Instance) error { return inst.anim.SetSpeed(req.Speed) })
}

// SetSegment selects a marker, a custom window, or clears both.
func (m *Manager) SetSegment(id string, req types.SegmentRequest) (types.AnimationStatus, error) {
	if !req.Clear && req.Marker == "" && (req.Start < 0 || req.End < 0) {
		return types.AnimationStatus{}, invalidf("segment bounds must be >= 0")
	}
	return m.mutate(id, func(inst *Instance) error {
		a := inst.anim
		switch {
		case req.Clear:
			a.SelectSegment(nil)
			a.SetCustomWindow(0, 0)
			a.SetPlayTowardCustomEnd(false)
			return nil
		case req.Marker != "":
			if a.State() == player.Idle || a.State() == player.Loading {
				return player.ErrNotLoaded
			}
			if err := a.SelectMarker(req.Marker); err != nil {
				return err
			}
		default:
			a.SelectSegment(nil)
			a.SetCustomWindow(req.Start, req.End)
		}
		a.SetPlayTowardCustomEnd(req.PlayTowardEnd)
		return nil
	})
}

// ApplyProperties queues every update as one batch so a stopped animation
// redraws once.
func (m *Manager) ApplyProperties(id string, req types.PropertiesRequest) (types.AnimationStatus, error) {
	if len(req.Updates) == 0 {
		return types.AnimationStatus{}, invalidf("no property updates")
	}
	updates, err := propertyUpdates(req.Updates)
	if err != nil {
		return types.AnimationStatus{}, err
	}
	return m.mutate(id, func(inst *Instance) error {
		a := inst.anim
		a.BeginPropertyBatch()
		defer a.CommitPropertyBatch()
		for _, u := range updates {
			if err := a.ApplyProperty(u); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceColors swaps static shape colors before the next decode.
func (m *Manager) ReplaceColors(id string, req types.ColorsRequest) (types.AnimationStatus, error) {
	if len(req.Replacements) == 0 {
		return types.AnimationStatus{}, invalidf("no color replacements")
	}
	colors, err := colorReplacements(req.Replacements)
	if err != nil {
		return types.AnimationStatus{}, err
	}
	return m.mutate(id, func(inst *Instance) error {
		return inst.anim.ReplaceColors(colors)
	})
}

func (m *Manager) Markers(id string) ([]types.Marker, error) {
	var out []types.Marker
	err := m.withInstance(id, func(inst *Instance) error {
		if err := loadedOrErr(inst.anim); err != nil {
			return err
		}
		out = toMarkers(inst.anim.Markers())
		return nil
	})
	return out, err
}

func (m *Manager) Layers(id string) ([]types.Layer, error) {
	var out []types.Layer
	err := m.withInstance(id, func(inst *Instance) error {
		if err := loadedOrErr(inst.anim); err != nil {
			return err
		}
		out = toLayers(inst.anim.Layers())
		return nil
	})
	return out, err
}

// Frame seeks to frame and returns a private copy of its pixels once it has
// been decoded.
func (m *Manager) Frame(ctx context.Context, id string, frame int) (*renderer.Buffer, error) {
	var fut *player.FrameFuture
	if err := m.withInstance(id, func(inst *Instance) error {
		var err error
		fut, err = inst.anim.SetCurrentFrame(frame, false, false)
		return err
	}); err != nil {
		return nil, playerErr(err)
	}
	return waitFrame(ctx, fut)
}

// Snapshot returns the frame currently on display, if any.
func (m *Manager) Snapshot(id string) (*renderer.Buffer, int, error) {
	var (
		buf   *renderer.Buffer
		frame int
	)
	err := m.withInstance(id, func(inst *Instance) error {
		buf, frame = inst.anim.Snapshot()
		if buf == nil {
			return player.ErrNoFrame
		}
		return nil
	})
	return buf, frame, err
}

// mutate applies fn and returns the resulting status.
func (m *Manager) mutate(id string, fn func(inst *Instance) error) (types.AnimationStatus, error) {
	var st types.AnimationStatus
	err := m.withInstance(id, func(inst *Instance) error {
		if err := fn(inst); err != nil {
			return err
		}
		st = inst.status()
		return nil
	})
	return st, playerErr(err)
}

func loadedOrErr(a *player.Animation) error {
	switch a.State() {
	case player.Idle, player.Loading:
		return player.ErrNotLoaded
	case player.Destroying, player.Destroyed:
		return player.ErrRecycled
	}
	return nil
}
