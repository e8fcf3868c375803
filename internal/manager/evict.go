package manager

import "lottied/internal/player"

// evictIdle recycles the least recently used animation that is neither
// playing nor loading. It reports whether a slot was freed. Runs on the loop.
func (m *Manager) evictIdle() bool {
	var lru *Instance
	for _, inst := range m.instances {
		if inst.anim.IsRunning() || !inst.isSettled {
			continue
		}
		if s := inst.anim.State(); s == player.Loading {
			continue
		}
		if lru == nil || inst.LastUsed.Before(lru.LastUsed) {
			lru = inst
		}
	}
	if lru == nil {
		return false
	}
	m.evictionsTotal++
	m.publisher.Publish(Event{Name: EventEvicted, AnimationID: lru.ID, Fields: map[string]any{
		"idle_for": m.now().Sub(lru.LastUsed).String(),
	}})
	m.log.Info().Str("animation", lru.ID).Msg("evicting idle animation")
	m.recycle(lru)
	return true
}
