package format

import (
	"archive/zip"
	"fmt"
	"path/filepath"
	"strings"

	"lottied/internal/cache"
)

// Zip extracts the first JSON document from a zip archive.
type Zip struct{}

func (Zip) Extension() string { return ".zip" }

func (Zip) CanHandle(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "application/zip") ||
		strings.Contains(ct, "application/x-zip") ||
		strings.Contains(ct, "application/x-zip-compressed")
}

func (z Zip) MatchesName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), z.Extension())
}

func (Zip) Normalize(c *cache.Cache, key, src string, scope cache.Scope) error {
	f, err := c.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	zr, err := zip.NewReader(f, fi.Size())
	if err != nil {
		return fmt.Errorf("zip: %w", err)
	}
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() || strings.Contains(entry.Name, "__MACOSX") || !strings.Contains(entry.Name, ".json") {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return fmt.Errorf("zip entry %s: %w", entry.Name, err)
		}
		_, err = c.Write(key, rc, CanonicalExt, scope, true)
		_ = rc.Close()
		return err
	}
	return fmt.Errorf("zip: no json entry: %w", ErrUnparsable)
}
