package format

import (
	"compress/gzip"
	"fmt"
	"path/filepath"
	"strings"

	"lottied/internal/cache"
)

// GZip inflates gzip-compressed JSON, including Telegram .tgs stickers.
type GZip struct{}

func (GZip) Extension() string { return ".gz" }

func (GZip) CanHandle(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "application/octet-stream") ||
		strings.Contains(ct, "binary/octet-stream") ||
		strings.Contains(ct, "application/x-gzip")
}

func (GZip) MatchesName(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".gz" || ext == ".tgs"
}

func (GZip) Normalize(c *cache.Cache, key, src string, scope cache.Scope) error {
	f, err := c.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("gzip: %w", err)
	}
	defer zr.Close()
	if _, err := c.Write(key, zr, CanonicalExt, scope, true); err != nil {
		return err
	}
	dst, err := c.Path(key, CanonicalExt, scope, true)
	if err != nil {
		return err
	}
	return sniffJSON(c, dst)
}
