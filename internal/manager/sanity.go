package manager

import (
	"lottied/internal/cache"
	"lottied/internal/renderer"
)

// SanityReport describes runtime checks for external dependencies.
type SanityReport struct {
	RendererAvailable bool   `json:"renderer_available"`
	NativeCompiledIn  bool   `json:"native_compiled_in"`
	CacheWritable     bool   `json:"cache_writable"`
	Error             string `json:"error,omitempty"`
}

// SanityCheck reports whether the renderer and the cache are usable. It
// does not mutate state and is safe to call at any time.
func (m *Manager) SanityCheck() SanityReport {
	r := SanityReport{
		RendererAvailable: m.rndErr == nil && m.rnd != nil,
		NativeCompiledIn:  renderer.NativeAvailable,
	}
	if m.rndErr != nil {
		r.Error = m.rndErr.Error()
	}
	if _, err := m.cache.Dir(cache.Local); err != nil {
		if r.Error == "" {
			r.Error = err.Error()
		}
	} else {
		r.CacheWritable = true
	}
	return r
}
