package types

import "encoding/json"

// LoadRequest creates an animation. Exactly one of File, URL, JSON or
// Library must be set.
type LoadRequest struct {
	// Local path of a .json, .zip, .gz or .tgs file.
	// example: /srv/lottie/confetti.json
	File string `json:"file,omitempty" example:"/srv/lottie/confetti.json"`
	// Remote animation URL.
	// example: https://example.com/anim.json
	URL string `json:"url,omitempty" example:"https://example.com/anim.json"`
	// Inline Lottie document.
	JSON json.RawMessage `json:"json,omitempty" swaggertype:"object"`
	// Cache name for inline JSON; reused across loads. Derived from the
	// content when empty.
	// example: confetti
	CacheName string `json:"cache_name,omitempty" example:"confetti"`
	// Library entry id.
	// example: confetti.json
	Library string `json:"library,omitempty" example:"confetti.json"`
	// Consult the network cache for URL sources. Defaults to the server
	// setting.
	UseCache *bool `json:"use_cache,omitempty"`

	// example: 200
	Width int `json:"width,omitempty" example:"200"`
	// example: 200
	Height            int  `json:"height,omitempty" example:"200"`
	Precache          bool `json:"precache,omitempty"`
	LimitFps          bool `json:"limit_fps,omitempty"`
	DecodeSingleFrame bool `json:"decode_single_frame,omitempty"`
	AutoStart         bool `json:"auto_start,omitempty"`
	// -1 repeats forever; 0 and 1 play once.
	// example: -1
	RepeatCount int `json:"repeat_count,omitempty" example:"-1"`
	// restart or reverse.
	// example: restart
	RepeatMode          string           `json:"repeat_mode,omitempty" example:"restart"`
	CustomStart         int              `json:"custom_start,omitempty"`
	CustomEnd           int              `json:"custom_end,omitempty"`
	PlayTowardCustomEnd bool             `json:"play_toward_custom_end,omitempty"`
	Marker              string           `json:"marker,omitempty"`
	Speed               float64          `json:"speed,omitempty"`
	Properties          []PropertyUpdate `json:"properties,omitempty"`
	// Applied once, before the first frame is decoded.
	ColorReplacements []ColorReplacement `json:"color_replacements,omitempty"`
}

// FrameRequest seeks to a frame. With Sync the call returns after the frame
// has been decoded.
type FrameRequest struct {
	// example: 12
	Frame int  `json:"frame" example:"12"`
	Sync  bool `json:"sync,omitempty"`
}

// ProgressRequest seeks by fraction of the composition or by time.
// Exactly one field must be set.
type ProgressRequest struct {
	// example: 0.5
	Fraction *float64 `json:"fraction,omitempty" example:"0.5"`
	// example: 1500
	Ms *int64 `json:"ms,omitempty" example:"1500"`
}

// RepeatRequest sets the repeat policy.
type RepeatRequest struct {
	// example: 3
	Count int `json:"count" example:"3"`
	// example: reverse
	Mode string `json:"mode,omitempty" example:"reverse"`
}

// SpeedRequest sets the playback speed multiplier.
type SpeedRequest struct {
	// example: 1.5
	Speed float64 `json:"speed" example:"1.5"`
}

// SegmentRequest limits playback to a marker, or to a custom window when
// Marker is empty. Clear lifts any limit.
type SegmentRequest struct {
	Marker        string `json:"marker,omitempty"`
	Start         int    `json:"start,omitempty"`
	End           int    `json:"end,omitempty"`
	PlayTowardEnd bool   `json:"play_toward_end,omitempty"`
	Clear         bool   `json:"clear,omitempty"`
}

// PropertiesRequest applies a batch of property overrides at once.
type PropertiesRequest struct {
	Updates []PropertyUpdate `json:"updates"`
}

// ColorsRequest swaps shape colors on a loaded animation. The set replaces
// any replacements not yet applied.
type ColorsRequest struct {
	Replacements []ColorReplacement `json:"replacements"`
}

// ExportRequest renders frames Start..End (every Step-th) into a GIF. End 0
// means the last frame.
type ExportRequest struct {
	Start int `json:"start,omitempty"`
	End   int `json:"end,omitempty"`
	// example: 1
	Step int `json:"step,omitempty" example:"1"`
	// Output size; zero keeps the animation size.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
	// Painted under translucent pixels. Defaults to white.
	// example: #ffffff
	Background string `json:"background,omitempty" example:"#ffffff"`
	// Hundredths of a second between frames; zero derives it from the
	// frame rate.
	Delay  int  `json:"delay,omitempty"`
	Dither bool `json:"dither,omitempty"`
}

// FetchRequest warms the network cache.
type FetchRequest struct {
	URLs []string `json:"urls"`
	// Parallel transfers; defaults to 4.
	// example: 4
	Concurrency int `json:"concurrency,omitempty" example:"4"`
}

// FetchResult is the outcome for one URL.
type FetchResult struct {
	URL   string `json:"url"`
	Path  string `json:"path,omitempty"`
	Error string `json:"error,omitempty"`
}

// FetchResponse is returned by POST /fetch.
type FetchResponse struct {
	Results []FetchResult `json:"results"`
}

// LRURequest resizes the dedup registry's LRU.
type LRURequest struct {
	// example: 50
	Size int `json:"size" example:"50"`
}

// AnimationStatus is the view of one live animation.
type AnimationStatus struct {
	// example: 2b7c1f0e-6a0b-4c55-9d8e-0c3a1c8a9f11
	ID         string `json:"id" example:"2b7c1f0e-6a0b-4c55-9d8e-0c3a1c8a9f11"`
	SourceKind string `json:"source_kind"`
	Source     string `json:"source"`
	// idle, loading, ready, running, stopped, destroying or destroyed.
	// example: running
	State           string  `json:"state" example:"running"`
	Error           string  `json:"error,omitempty"`
	Path            string  `json:"path,omitempty"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	TotalFrames     int     `json:"total_frames"`
	FrameRate       float64 `json:"frame_rate"`
	DurationMs      int64   `json:"duration_ms"`
	CurrentFrame    int     `json:"current_frame"`
	VisibleFrame    int     `json:"visible_frame"`
	Running         bool    `json:"running"`
	Completed       bool    `json:"completed"`
	Speed           float64 `json:"speed"`
	IntervalMs      int64   `json:"interval_ms"`
	RepeatCount     int     `json:"repeat_count"`
	RepeatMode      string  `json:"repeat_mode"`
	PlayCount       int     `json:"play_count"`
	WindowStart     int     `json:"window_start"`
	WindowEnd       int     `json:"window_end"`
	Marker          string  `json:"marker,omitempty"`
	FramesShown     int     `json:"frames_shown"`
	Repeats         int     `json:"repeats"`
	Decodes         int     `json:"decodes"`
	NoFrames        int     `json:"no_frames"`
	LoadedFromCache bool    `json:"loaded_from_cache"`
	CreatedUnix     int64   `json:"created_unix"`
	LastUsedUnix    int64   `json:"last_used_unix"`
}

// AnimationsResponse wraps GET /animations.
type AnimationsResponse struct {
	Animations []AnimationStatus `json:"animations"`
}

// MarkersResponse wraps GET /animations/{id}/markers.
type MarkersResponse struct {
	Markers []Marker `json:"markers"`
}

// LayersResponse wraps GET /animations/{id}/layers.
type LayersResponse struct {
	Layers []Layer `json:"layers"`
}

// LibraryResponse wraps GET /library.
type LibraryResponse struct {
	Dir     string         `json:"dir"`
	Entries []LibraryEntry `json:"entries"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// PoolStatus reports the worker queue pool.
type PoolStatus struct {
	Created     int `json:"created"`
	Idle        int `json:"idle"`
	Busy        int `json:"busy"`
	Outstanding int `json:"outstanding"`
}

// TaskCacheStatus reports the dedup registry.
type TaskCacheStatus struct {
	Cached   int `json:"cached"`
	Capacity int `json:"capacity"`
	InFlight int `json:"in_flight"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Animations []AnimationStatus `json:"animations"`
	// example: 32
	MaxAnimations int             `json:"max_animations" example:"32"`
	Draining      int             `json:"draining"`
	Pool          PoolStatus      `json:"pool"`
	Tasks         TaskCacheStatus `json:"tasks"`
	// example: /var/cache/lottied
	CacheDir   string `json:"cache_dir" example:"/var/cache/lottied"`
	CacheFiles int    `json:"cache_files"`
	CacheBytes int64  `json:"cache_bytes"`
	// example: 1.2 MB
	CacheSize string `json:"cache_size" example:"1.2 MB"`
	// Whether a native renderer is available.
	RendererAvailable bool   `json:"renderer_available"`
	RendererError     string `json:"renderer_error,omitempty"`
	// Last error observed by the manager (if any).
	LastError string `json:"last_error,omitempty"`
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// example: 12
	LoadsTotal uint64 `json:"loads_total" example:"12"`
	// example: 2
	EvictionsTotal uint64 `json:"evictions_total" example:"2"`
}
