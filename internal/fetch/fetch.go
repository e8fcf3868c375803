// Package fetch turns a URL into a promoted file in the network cache. All
// requests for one URL share a single transfer through the task registry.
package fetch

import (
	"context"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"lottied/internal/cache"
	"lottied/internal/format"
	"lottied/internal/metrics"
	"lottied/internal/taskcache"
)

const defaultPrefetchLimit = 4

type Config struct {
	Transport Transport
	Cache     *cache.Cache
	Formats   *format.Registry
	Tasks     *taskcache.Registry
	Log       zerolog.Logger
}

type Fetcher struct {
	transport Transport
	cache     *cache.Cache
	formats   *format.Registry
	tasks     *taskcache.Registry
	log       zerolog.Logger
}

func New(cfg Config) *Fetcher {
	tr := cfg.Transport
	if tr == nil {
		tr = NewHTTPTransport(0, 0)
	}
	formats := cfg.Formats
	if formats == nil {
		formats = format.Default(cfg.Log)
	}
	return &Fetcher{transport: tr, cache: cfg.Cache, formats: formats, tasks: cfg.Tasks, log: cfg.Log}
}

// Key is the dedup key for url.
func Key(url string) string { return "url_" + url }

// FetchSync checks the network cache (when useCache is set) and otherwise
// downloads url and normalizes it into a promoted canonical entry.
func (f *Fetcher) FetchSync(ctx context.Context, url string, useCache bool) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", ErrEmptyURL
	}
	key := Key(url)
	if useCache {
		if p, ok := f.cache.LookupNetwork(key, format.CanonicalExt, f.formats.Extensions()...); ok {
			metrics.FetchTotal.WithLabelValues("cache_hit").Inc()
			f.log.Debug().Str("url", url).Str("path", p).Msg("network cache hit")
			return p, nil
		}
	}
	resp, err := f.transport.Fetch(ctx, url)
	if err != nil {
		metrics.FetchTotal.WithLabelValues("error").Inc()
		return "", &FetchError{URL: url, Err: err}
	}
	defer func() {
		if resp.Body != nil {
			if cerr := resp.Body.Close(); cerr != nil {
				f.log.Warn().Err(cerr).Str("url", url).Msg("close response body")
			}
		}
	}()
	if !resp.OK {
		metrics.FetchTotal.WithLabelValues("error").Inc()
		return "", &FetchError{URL: url, Msg: resp.Error}
	}
	path, err := f.formats.Parse(f.cache, resp.Body, resp.ContentType, key, cache.Network)
	if err != nil {
		metrics.FetchTotal.WithLabelValues("error").Inc()
		return "", &FetchError{URL: url, Msg: "parse", Err: err}
	}
	metrics.FetchTotal.WithLabelValues("ok").Inc()
	f.log.Info().Str("url", url).Str("path", path).Msg("fetched")
	return path, nil
}

// Fetch returns the shared task for url.
func (f *Fetcher) Fetch(url string, useCache bool) *taskcache.Task {
	if strings.TrimSpace(url) == "" {
		return taskcache.Failed(ErrEmptyURL, nil)
	}
	return f.tasks.Resolve(Key(url), useCache, func(ctx context.Context) (string, error) {
		return f.FetchSync(ctx, url, useCache)
	})
}

// PrefetchResult is the outcome for one URL of a batch.
type PrefetchResult struct {
	URL  string `json:"url"`
	Path string `json:"path,omitempty"`
	Err  error  `json:"-"`
}

// Prefetch warms the cache for urls with at most limit concurrent
// transfers. Every URL gets a result; failures are also aggregated in the
// returned error.
func (f *Fetcher) Prefetch(ctx context.Context, urls []string, limit int) ([]PrefetchResult, error) {
	if limit <= 0 {
		limit = defaultPrefetchLimit
	}
	results := make([]PrefetchResult, len(urls))
	var (
		mu   sync.Mutex
		errs *multierror.Error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			p, err := f.Fetch(u, true).Wait(gctx)
			results[i] = PrefetchResult{URL: u, Path: p, Err: err}
			if err != nil {
				mu.Lock()
				errs = multierror.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, errs.ErrorOrNil()
}
