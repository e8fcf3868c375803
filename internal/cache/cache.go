// Package cache maps logical resource keys to files under two roots, one for
// network-fetched sources and one for locally supplied ones. Writes land in a
// ".temp" file first and only become visible to Lookup once promoted.
package cache

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

const (
	filePrefix = "lottie_cache_"
	tempInfix  = ".temp"

	NetworkDir = "network"
	LocalDir   = "local"
)

// Scope selects one of the two cache roots.
type Scope int

const (
	Local Scope = iota
	Network
)

func (s Scope) String() string {
	if s == Network {
		return NetworkDir
	}
	return LocalDir
}

var nonWord = regexp.MustCompile(`\W+`)

// Sanitize strips every non-word character from key.
func Sanitize(key string) string { return nonWord.ReplaceAllString(key, "") }

// FileName is the base name of the entry for key. ext includes its leading dot.
func FileName(key, ext string, temp bool) string {
	name := filePrefix + Sanitize(key)
	if temp {
		return name + tempInfix + ext
	}
	return name + ext
}

type Config struct {
	Fs   afero.Fs // defaults to the OS filesystem
	Root string
	Log  zerolog.Logger
}

// Cache is safe for concurrent use. Only directory (re)creation is
// serialized; file I/O runs unlocked.
type Cache struct {
	fs   afero.Fs
	root string
	log  zerolog.Logger
	mu   sync.Mutex
}

func New(cfg Config) (*Cache, error) {
	if cfg.Root == "" {
		return nil, errors.New("cache: root directory is required")
	}
	fsys := cfg.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Cache{fs: fsys, root: filepath.Clean(cfg.Root), log: cfg.Log}, nil
}

// Fs exposes the filesystem entries live on.
func (c *Cache) Fs() afero.Fs { return c.fs }

func (c *Cache) Root() string { return c.root }

// Dir returns the root for scope, creating it when missing. A plain file
// sitting where the directory belongs is removed first.
func (c *Cache) Dir(scope Scope) (string, error) {
	dir := filepath.Join(c.root, scope.String())
	c.mu.Lock()
	defer c.mu.Unlock()
	fi, err := c.fs.Stat(dir)
	switch {
	case err == nil && fi.IsDir():
		return dir, nil
	case err == nil:
		c.log.Warn().Str("dir", dir).Msg("file occupies cache directory slot; removing")
		if err := c.fs.Remove(dir); err != nil {
			return "", fmt.Errorf("cache: clear %s: %w", dir, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("cache: stat %s: %w", dir, err)
	}
	if err := c.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cache: mkdir %s: %w", dir, err)
	}
	return dir, nil
}

// Path computes where the entry for key lives without touching it.
func (c *Cache) Path(key, ext string, scope Scope, temp bool) (string, error) {
	dir, err := c.Dir(scope)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName(key, ext, temp)), nil
}

// Write streams r into the entry for key. A failed write leaves no partial
// file behind.
func (c *Cache) Write(key string, r io.Reader, ext string, scope Scope, temp bool) (string, error) {
	path, err := c.Path(key, ext, scope, temp)
	if err != nil {
		return "", err
	}
	f, err := c.fs.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("cache: create %s: %w", path, err)
	}
	_, werr := io.Copy(f, r)
	cerr := f.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = c.fs.Remove(path)
		return "", fmt.Errorf("cache: write %s: %w", path, werr)
	}
	c.log.Debug().Str("key", key).Str("path", path).Msg("cache entry written")
	return path, nil
}

// Promote renames the temp entry for key to its final name.
func (c *Cache) Promote(key, ext string, scope Scope) (string, error) {
	tmp, err := c.Path(key, ext, scope, true)
	if err != nil {
		return "", err
	}
	final, err := c.Path(key, ext, scope, false)
	if err != nil {
		return "", err
	}
	if err := c.fs.Rename(tmp, final); err != nil {
		return "", fmt.Errorf("cache: promote %s: %w", tmp, err)
	}
	c.log.Debug().Str("key", key).Str("path", final).Msg("cache entry promoted")
	return final, nil
}

// Store writes r as a temp entry and promotes it.
func (c *Cache) Store(key string, r io.Reader, ext string, scope Scope) (string, error) {
	if _, err := c.Write(key, r, ext, scope, true); err != nil {
		return "", err
	}
	return c.Promote(key, ext, scope)
}

// Lookup reports the entry's path if it exists as a regular file.
func (c *Cache) Lookup(key, ext string, scope Scope, temp bool) (string, bool) {
	path, err := c.Path(key, ext, scope, temp)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache lookup failed")
		return "", false
	}
	fi, err := c.fs.Stat(path)
	if err != nil || fi.IsDir() {
		return "", false
	}
	return path, true
}

// LookupNetwork returns the promoted canonical entry for key. When it is
// missing, promoted leftovers with any of the stale extensions are deleted
// so the next fetch starts clean.
func (c *Cache) LookupNetwork(key, canonicalExt string, staleExts ...string) (string, bool) {
	if path, ok := c.Lookup(key, canonicalExt, Network, false); ok {
		return path, true
	}
	for _, ext := range staleExts {
		if ext == canonicalExt {
			continue
		}
		if path, ok := c.Lookup(key, ext, Network, false); ok {
			if err := c.fs.Remove(path); err != nil {
				c.log.Warn().Err(err).Str("path", path).Msg("remove stale cache entry")
			}
		}
	}
	return "", false
}

// Remove deletes one entry. Missing entries are not an error.
func (c *Cache) Remove(key, ext string, scope Scope, temp bool) error {
	path, err := c.Path(key, ext, scope, temp)
	if err != nil {
		return err
	}
	if err := c.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("cache: remove %s: %w", path, err)
	}
	return nil
}

func (c *Cache) Open(path string) (afero.File, error) { return c.fs.Open(path) }

// Clear empties both roots. Directories are recreated on next use.
func (c *Cache) Clear() error {
	var result *multierror.Error
	c.mu.Lock()
	for _, s := range []Scope{Network, Local} {
		dir := filepath.Join(c.root, s.String())
		if err := c.fs.RemoveAll(dir); err != nil {
			result = multierror.Append(result, fmt.Errorf("cache: clear %s: %w", dir, err))
		}
	}
	c.mu.Unlock()
	c.log.Info().Str("root", c.root).Msg("cache cleared")
	return result.ErrorOrNil()
}

// Usage sums file sizes across both roots.
func (c *Cache) Usage() (files int, bytes int64, err error) {
	for _, s := range []Scope{Network, Local} {
		dir := filepath.Join(c.root, s.String())
		werr := afero.Walk(c.fs, dir, func(_ string, fi fs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !fi.IsDir() {
				files++
				bytes += fi.Size()
			}
			return nil
		})
		if werr != nil && !errors.Is(werr, fs.ErrNotExist) {
			return files, bytes, werr
		}
	}
	return files, bytes, nil
}
