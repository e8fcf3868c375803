// Package manager provides lifecycle, admission, and playback coordination
// for animations. It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, Close and drain.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: Instance, Source and the coalescing draw surface.
//   - errors.go: error types and helpers (IsTooBusy, IsAnimationNotFound).
//   - helpers.go: instance lookup on the loop and error mapping.
//   - ensure.go: Load, source validation and local source normalization.
//   - evict.go: eviction of idle animations when every slot is taken.
//   - ops.go: playback operations (start, stop, seek, segments, properties).
//   - unload.go: Recycle.
//   - resources.go: library listing, prefetch, cache and LRU administration.
//   - status_report.go: Status and per-animation status.
//   - sanity.go: renderer and cache availability checks.
//
// Every animation, the worker pool and the manager's bookkeeping are
// confined to one coordinating loop (internal/looper). Exported methods
// marshal onto it with Loop.Call, so they must never be called from the
// loop itself, e.g. from an EventPublisher.
//
// External packages should treat this package as the orchestration layer
// and use public methods only (New/NewWithConfig, Load, Status, Recycle).
package manager
