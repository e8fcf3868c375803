package manager

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"lottied/internal/cache"
	"lottied/internal/common/fsutil"
	"lottied/internal/format"
	"lottied/internal/metrics"
	"lottied/internal/player"
	"lottied/internal/registry"
	"lottied/internal/renderer"
	"lottied/internal/taskcache"
	"lottied/pkg/types"
)

// Load creates an animation from req and blocks until it has loaded, has
// failed to load, or ctx is done. A failed animation is recycled before
// Load returns.
func (m *Manager) Load(ctx context.Context, req types.LoadRequest) (types.AnimationStatus, error) {
	if m.closed.Load() {
		return types.AnimationStatus{}, errClosed
	}
	if m.rndErr != nil {
		return types.AnimationStatus{}, ErrDependencyUnavailable("renderer unavailable: " + m.rndErr.Error())
	}
	src, err := m.sourceOf(req)
	if err != nil {
		return types.AnimationStatus{}, err
	}
	opts, err := m.optionsFor(req)
	if err != nil {
		return types.AnimationStatus{}, err
	}
	useCache := !m.cfg.DisableNetworkCache
	if req.UseCache != nil {
		useCache = *req.UseCache
	}

	var inst *Instance
	if cerr := m.loop.Call(func() { inst, err = m.create(src, opts, useCache) }); cerr != nil {
		return types.AnimationStatus{}, errClosed
	}
	if err != nil {
		return types.AnimationStatus{}, err
	}

	select {
	case <-inst.settled:
	case <-ctx.Done():
		return types.AnimationStatus{ID: inst.ID, State: player.Loading.String()}, ctx.Err()
	}
	var st types.AnimationStatus
	if cerr := m.loop.Call(func() {
		if err = inst.loadErr; err != nil {
			if _, live := m.instances[inst.ID]; live {
				m.recycle(inst)
			}
			return
		}
		st = inst.status()
	}); cerr != nil {
		return types.AnimationStatus{}, errClosed
	}
	return st, err
}

// sourceOf validates that exactly one source is set and resolves local paths.
func (m *Manager) sourceOf(req types.LoadRequest) (Source, error) {
	var srcs []Source
	if req.File != "" {
		srcs = append(srcs, Source{Kind: types.SourceFile, Ref: req.File})
	}
	if req.URL != "" {
		srcs = append(srcs, Source{Kind: types.SourceURL, Ref: req.URL})
	}
	if len(req.JSON) > 0 {
		srcs = append(srcs, Source{Kind: types.SourceJSON, Ref: req.CacheName, Data: req.JSON})
	}
	if req.Library != "" {
		srcs = append(srcs, Source{Kind: types.SourceLibrary, Ref: req.Library})
	}
	if len(srcs) != 1 {
		return Source{}, invalidf("exactly one of file, url, json or library is required (got %d)", len(srcs))
	}
	src := srcs[0]
	switch src.Kind {
	case types.SourceFile:
		p, err := fsutil.ExpandHome(src.Ref)
		if err != nil {
			return Source{}, ErrInvalidRequest(err)
		}
		src.Path = filepath.Clean(p)
	case types.SourceURL:
		u, err := url.Parse(src.Ref)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return Source{}, invalidf("url must be absolute http(s): %q", src.Ref)
		}
	case types.SourceJSON:
		if !json.Valid(src.Data) {
			return Source{}, invalidf("json is not a valid document")
		}
		if src.Ref == "" {
			src.Ref = uuid.NewSHA1(uuid.NameSpaceOID, src.Data).String()
		}
	case types.SourceLibrary:
		if m.cfg.LibraryDir == "" {
			return Source{}, invalidf("no library directory configured")
		}
		e, err := m.library.Find(m.cfg.LibraryDir, src.Ref)
		if errors.Is(err, registry.ErrNotFound) {
			return Source{}, ErrAnimationNotFound("library/" + src.Ref)
		}
		if err != nil {
			return Source{}, err
		}
		src.Path = e.Path
	}
	return src, nil
}

func (m *Manager) optionsFor(req types.LoadRequest) (player.Options, error) {
	if req.Width < 0 || req.Height < 0 {
		return player.Options{}, ErrInvalidRequest(player.ErrInvalidSize)
	}
	if req.RepeatCount < player.RepeatInfinite {
		return player.Options{}, ErrInvalidRequest(player.ErrInvalidRepeat)
	}
	if req.Speed < 0 {
		return player.Options{}, ErrInvalidRequest(player.ErrInvalidSpeed)
	}
	if req.CustomStart < 0 || req.CustomEnd < 0 {
		return player.Options{}, invalidf("custom window bounds must be >= 0")
	}
	mode, ok := player.ParseRepeatMode(req.RepeatMode)
	if !ok {
		return player.Options{}, invalidf("unknown repeat mode %q", req.RepeatMode)
	}
	props, err := propertyUpdates(req.Properties)
	if err != nil {
		return player.Options{}, err
	}
	colors, err := colorReplacements(req.ColorReplacements)
	if err != nil {
		return player.Options{}, err
	}
	opts := player.Options{
		Width:               req.Width,
		Height:              req.Height,
		Precache:            req.Precache,
		LimitFps:            req.LimitFps || m.cfg.LimitFps,
		DecodeSingleFrame:   req.DecodeSingleFrame,
		AutoStart:           req.AutoStart,
		RepeatCount:         req.RepeatCount,
		RepeatMode:          mode,
		CustomStart:         req.CustomStart,
		CustomEnd:           req.CustomEnd,
		PlayTowardCustomEnd: req.PlayTowardCustomEnd,
		Marker:              req.Marker,
		Properties:          props,
		ColorReplacements:   colors,
		ScreenRefreshRate:   m.cfg.ScreenRefreshRate,
		Speed:               req.Speed,
		Log:                 m.log,
	}
	if opts.Width == 0 {
		opts.Width = m.cfg.DefaultWidth
	}
	if opts.Height == 0 {
		opts.Height = m.cfg.DefaultHeight
	}
	return opts, nil
}

// create registers a new instance and starts its load. Runs on the loop.
func (m *Manager) create(src Source, opts player.Options, useCache bool) (*Instance, error) {
	if m.closed.Load() {
		return nil, errClosed
	}
	if len(m.instances) >= m.cfg.MaxAnimations && !m.evictIdle() {
		return nil, ErrTooBusy(metrics.ReasonMaxAnimations, "all animation slots are busy")
	}
	now := m.now()
	inst := &Instance{
		ID:       uuid.NewString(),
		Source:   src,
		Created:  now,
		LastUsed: now,
		m:        m,
		settled:  make(chan struct{}),
		surface:  &loopSurface{loop: m.loop, delay: m.cfg.DrawDelay},
	}
	opts.FrameListener = inst
	opts.RepeatListener = inst
	opts.LifecycleListener = inst
	inst.anim = player.New(player.Config{
		ID:       inst.ID,
		Loop:     m.loop,
		Pool:     m.pool,
		Renderer: m.rnd,
		Surface:  inst.surface,
		Options:  opts,
	})
	inst.surface.draw = func() { inst.anim.Draw() }
	m.instances[inst.ID] = inst
	m.loadsTotal++
	m.publisher.Publish(Event{Name: EventLoadStart, AnimationID: inst.ID, Fields: map[string]any{
		"kind": src.Kind, "source": src.display(),
	}})

	switch src.Kind {
	case types.SourceURL:
		inst.anim.LoadFrom(m.fetcher.Fetch(src.Ref, useCache))
	case types.SourceJSON:
		inst.anim.LoadFrom(m.storeJSON(src.Ref, src.Data))
	default:
		if strings.EqualFold(filepath.Ext(src.Path), format.CanonicalExt) {
			inst.anim.Load(src.Path)
		} else {
			inst.anim.LoadFrom(m.unpack(src.Path))
		}
	}
	return inst, nil
}

// storeJSON writes an inline document to the local cache under name. Loads
// sharing a name share one write.
func (m *Manager) storeJSON(name string, data []byte) *taskcache.Task {
	key := "json_" + name
	return m.tasks.Resolve(key, true, func(context.Context) (string, error) {
		if p, ok := m.cache.Lookup(key, format.CanonicalExt, cache.Local, false); ok {
			return p, nil
		}
		return m.formats.Parse(m.cache, bytes.NewReader(data), "application/json", key, cache.Local)
	})
}

// unpack normalizes a local archive into a canonical JSON entry.
func (m *Manager) unpack(path string) *taskcache.Task {
	key := "file_" + path
	return m.tasks.Resolve(key, true, func(context.Context) (string, error) {
		if p, ok := m.cache.Lookup(key, format.CanonicalExt, cache.Local, false); ok {
			return p, nil
		}
		f, err := m.cfg.Fs.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		return m.formats.ParseNamed(m.cache, f, filepath.Base(path), key, cache.Local)
	})
}

func propertyUpdates(in []types.PropertyUpdate) ([]renderer.PropertyUpdate, error) {
	out := make([]renderer.PropertyUpdate, 0, len(in))
	for _, p := range in {
		kind, err := renderer.ParsePropertyKind(p.Property)
		if err != nil {
			return nil, ErrInvalidRequest(err)
		}
		u := renderer.PropertyUpdate{KeyPath: p.KeyPath, Kind: kind, Values: p.Values}
		if err := u.Validate(); err != nil {
			return nil, ErrInvalidRequest(err)
		}
		out = append(out, u)
	}
	return out, nil
}

func colorReplacements(in []types.ColorReplacement) ([]renderer.ColorReplacement, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]renderer.ColorReplacement, 0, len(in))
	for _, c := range in {
		from, err := renderer.ParseColor(c.From)
		if err != nil {
			return nil, ErrInvalidRequest(err)
		}
		to, err := renderer.ParseColor(c.To)
		if err != nil {
			return nil, ErrInvalidRequest(err)
		}
		out = append(out, renderer.ColorReplacement{From: from, To: to})
	}
	return out, nil
}
