package manager

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"lottied/internal/fetch"
	"lottied/internal/renderer"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxAnimations = 32
	defaultDrainTimeout  = 5 * time.Second
	defaultDrawDelay     = 16 * time.Millisecond
	defaultWidth         = 200
	defaultHeight        = 200
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// CacheDir roots the resource cache. Defaults to <tmp>/lottied.
	CacheDir string
	// Fs backs the cache and library scans. Defaults to the OS filesystem.
	Fs         afero.Fs
	LibraryDir string

	MaxQueues        int
	QueueIdleTimeout time.Duration
	LRUSize          int
	MaxAnimations    int
	DrainTimeout     time.Duration

	ConnectTimeout      time.Duration
	ReadTimeout         time.Duration
	DisableNetworkCache bool
	// Transport overrides the HTTP transport (tests).
	Transport fetch.Transport

	DefaultWidth      int
	DefaultHeight     int
	LimitFps          bool
	ScreenRefreshRate float64
	// DrawDelay is how long a surface coalesces redraw requests.
	DrawDelay time.Duration

	// Renderer overrides the native renderer. When nil the rlottie adapter
	// is used if it was compiled in.
	Renderer renderer.Renderer

	Publisher EventPublisher
	Log       zerolog.Logger
}

func (cfg ManagerConfig) withDefaults() ManagerConfig {
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(os.TempDir(), "lottied")
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.MaxAnimations <= 0 {
		cfg.MaxAnimations = defaultMaxAnimations
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}
	if cfg.DefaultWidth <= 0 {
		cfg.DefaultWidth = defaultWidth
	}
	if cfg.DefaultHeight <= 0 {
		cfg.DefaultHeight = defaultHeight
	}
	if cfg.DrawDelay <= 0 {
		cfg.DrawDelay = defaultDrawDelay
	}
	if cfg.Publisher == nil {
		cfg.Publisher = noopPublisher{}
	}
	return cfg
}
