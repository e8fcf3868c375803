package manager

import (
	"sort"

	"github.com/dustin/go-humanize"

	"lottied/pkg/types"
)

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	resp := types.StatusResponse{
		MaxAnimations: m.cfg.MaxAnimations,
		CacheDir:      m.cache.Root(),
	}
	_ = m.loop.Call(func() {
		resp.Animations = m.statuses()
		resp.Draining = len(m.draining)
		ps := m.pool.Stats()
		resp.Pool = types.PoolStatus{Created: ps.Created, Idle: ps.Idle, Busy: ps.Busy, Outstanding: ps.Outstanding}
		resp.LoadsTotal = m.loadsTotal
		resp.EvictionsTotal = m.evictionsTotal
		resp.LastError = m.lastErr
	})
	ts := m.tasks.Stats()
	resp.Tasks = types.TaskCacheStatus{Cached: ts.Cached, Capacity: ts.Capacity, InFlight: ts.InFlight}
	if files, bytes, err := m.cache.Usage(); err == nil {
		resp.CacheFiles = files
		resp.CacheBytes = bytes
		resp.CacheSize = humanize.Bytes(uint64(bytes))
	} else {
		m.log.Debug().Err(err).Msg("cache usage unavailable")
	}
	sr := m.SanityCheck()
	resp.RendererAvailable = sr.RendererAvailable
	resp.RendererError = sr.Error
	now := m.now()
	resp.UptimeSeconds = int64(now.Sub(m.startTime).Seconds())
	resp.ServerTimeUnix = now.Unix()
	return resp
}

// statuses runs on the loop.
func (m *Manager) statuses() []types.AnimationStatus {
	out := make([]types.AnimationStatus, 0, len(m.instances))
	for _, inst := range m.instances {
		out = append(out, inst.status())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedUnix != out[j].CreatedUnix {
			return out[i].CreatedUnix < out[j].CreatedUnix
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (inst *Instance) status() types.AnimationStatus {
	info := inst.anim.Info()
	return types.AnimationStatus{
		ID:              inst.ID,
		SourceKind:      inst.Source.Kind,
		Source:          inst.Source.display(),
		State:           info.State,
		Error:           info.Error,
		Path:            info.Source,
		Width:           info.Width,
		Height:          info.Height,
		TotalFrames:     info.TotalFrames,
		FrameRate:       info.FrameRate,
		DurationMs:      info.DurationMs,
		CurrentFrame:    info.CurrentFrame,
		VisibleFrame:    info.VisibleFrame,
		Running:         info.Running,
		Completed:       info.Completed,
		Speed:           info.Speed,
		IntervalMs:      info.IntervalMs,
		RepeatCount:     info.RepeatCount,
		RepeatMode:      info.RepeatMode,
		PlayCount:       info.PlayCount,
		WindowStart:     info.WindowStart,
		WindowEnd:       info.WindowEnd,
		Marker:          info.Marker,
		FramesShown:     inst.framesShown,
		Repeats:         inst.repeats,
		Decodes:         info.Decodes,
		NoFrames:        info.NoFrames,
		LoadedFromCache: info.FromCache,
		CreatedUnix:     inst.Created.Unix(),
		LastUsedUnix:    inst.LastUsed.Unix(),
	}
}
