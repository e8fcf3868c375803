package manager

import (
	"context"
	"strings"

	"lottied/pkg/types"
)

// maxPrefetchURLs bounds one prefetch batch.
const maxPrefetchURLs = 64

// Library lists the configured library directory.
func (m *Manager) Library() (types.LibraryResponse, error) {
	if m.cfg.LibraryDir == "" {
		return types.LibraryResponse{}, invalidf("no library directory configured")
	}
	entries, err := m.library.Scan(m.cfg.LibraryDir)
	if err != nil {
		return types.LibraryResponse{}, err
	}
	if entries == nil {
		entries = []types.LibraryEntry{}
	}
	return types.LibraryResponse{Dir: m.cfg.LibraryDir, Entries: entries}, nil
}

// Prefetch warms the network cache for urls. Per-URL failures are reported
// in the results, not as an error.
func (m *Manager) Prefetch(ctx context.Context, req types.FetchRequest) ([]types.FetchResult, error) {
	if m.closed.Load() {
		return nil, errClosed
	}
	if len(req.URLs) == 0 {
		return nil, invalidf("no urls")
	}
	if len(req.URLs) > maxPrefetchURLs {
		return nil, invalidf("at most %d urls per request", maxPrefetchURLs)
	}
	for _, u := range req.URLs {
		if strings.TrimSpace(u) == "" {
			return nil, invalidf("empty url")
		}
	}
	res, err := m.fetcher.Prefetch(ctx, req.URLs, req.Concurrency)
	if err != nil {
		m.log.Debug().Err(err).Int("urls", len(req.URLs)).Msg("prefetch finished with failures")
	}
	out := make([]types.FetchResult, 0, len(res))
	for _, r := range res {
		fr := types.FetchResult{URL: r.URL, Path: r.Path}
		if r.Err != nil {
			fr.Error = r.Err.Error()
		}
		out = append(out, fr)
	}
	return out, ctx.Err()
}

// ClearCache forgets every remembered resolution and empties both cache
// roots. Live animations keep their open handles.
func (m *Manager) ClearCache() error {
	m.tasks.Clear()
	return m.cache.Clear()
}

// ResizeLRU changes how many resolutions the dedup registry remembers.
func (m *Manager) ResizeLRU(size int) error {
	if size <= 0 {
		return invalidf("lru size must be > 0")
	}
	return m.tasks.Resize(size)
}
