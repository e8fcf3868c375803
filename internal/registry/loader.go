package registry

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"lottied/internal/common/fsutil"
	"lottied/pkg/types"
)

// ErrNotFound is returned by Find for an unknown entry id.
var ErrNotFound = errors.New("registry: library entry not found")

// DefaultExtensions are the animation containers the library recognizes.
var DefaultExtensions = []string{".json", ".zip", ".gz", ".tgs"}

// Scanner lists animation files in a library directory.
type Scanner struct {
	Fs         afero.Fs
	Extensions []string
}

// NewScanner returns a scanner over fsys (the OS filesystem when nil).
func NewScanner(fsys afero.Fs) *Scanner {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Scanner{Fs: fsys, Extensions: DefaultExtensions}
}

// Scan reads dir non-recursively. ID is the full filename (including
// extension); Path is the absolute file path. Entries come back sorted by
// filename.
func (s *Scanner) Scan(dir string) ([]types.LibraryEntry, error) {
	abs, err := fsutil.ResolveDir(dir)
	if err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(s.Fs, abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var out []types.LibraryEntry
	for _, fi := range infos {
		if fi.IsDir() {
			continue
		}
		name := fi.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if !s.accepts(ext) {
			continue
		}
		size := fi.Size()
		out = append(out, types.LibraryEntry{
			ID:        name,
			Name:      strings.TrimSuffix(name, filepath.Ext(name)),
			Path:      filepath.Join(abs, name),
			Format:    strings.TrimPrefix(ext, "."),
			SizeBytes: size,
			Size:      humanize.Bytes(uint64(size)),
		})
	}
	return out, nil
}

// Find returns the entry named id.
func (s *Scanner) Find(dir, id string) (types.LibraryEntry, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return types.LibraryEntry{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	entries, err := s.Scan(dir)
	if err != nil {
		return types.LibraryEntry{}, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
	}
	return types.LibraryEntry{}, fmt.Errorf("%w: %q", ErrNotFound, id)
}

func (s *Scanner) accepts(ext string) bool {
	for _, e := range s.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// LoadDir scans dir on the OS filesystem.
func LoadDir(dir string) ([]types.LibraryEntry, error) {
	return NewScanner(nil).Scan(dir)
}
