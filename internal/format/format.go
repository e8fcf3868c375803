// Package format turns fetched or supplied bytes into the canonical JSON
// source the renderer decodes. Handlers are matched by content type or file
// name and tried in registration order.
package format

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"lottied/internal/cache"
)

// CanonicalExt is the extension of every normalized cache entry.
const CanonicalExt = ".json"

const defaultContentType = "application/json"

// ErrUnparsable is returned when no handler could produce a canonical source.
var ErrUnparsable = errors.New("format: unparsable source")

// Handler normalizes one container format.
type Handler interface {
	// Extension is the handler's own file extension including the dot.
	Extension() string
	CanHandle(contentType string) bool
	MatchesName(name string) bool
	// Normalize reads the raw entry at src and writes the canonical temp
	// entry for key. It must not promote.
	Normalize(c *cache.Cache, key, src string, scope cache.Scope) error
}

type Registry struct {
	handlers []Handler
	log      zerolog.Logger
}

// NewRegistry builds a registry over handlers, in priority order.
func NewRegistry(log zerolog.Logger, handlers ...Handler) *Registry {
	return &Registry{handlers: handlers, log: log}
}

// Default returns the JSON, ZIP and GZIP handlers.
func Default(log zerolog.Logger) *Registry {
	return NewRegistry(log, JSON{}, Zip{}, GZip{})
}

func (r *Registry) Handlers() []Handler { return append([]Handler(nil), r.handlers...) }

// Extensions lists every handler extension.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.handlers))
	for _, h := range r.handlers {
		out = append(out, h.Extension())
	}
	return out
}

// ForName returns the first handler claiming the file name.
func (r *Registry) ForName(name string) (Handler, bool) {
	for _, h := range r.handlers {
		if h.MatchesName(name) {
			return h, true
		}
	}
	return nil, false
}

// Parse normalizes body, labelled with contentType, into the promoted
// canonical entry for key and returns its path.
func (r *Registry) Parse(c *cache.Cache, body io.Reader, contentType, key string, scope cache.Scope) (string, error) {
	if strings.TrimSpace(contentType) == "" {
		contentType = defaultContentType
	}
	return r.parse(c, body, key, scope, func(h Handler) bool { return h.CanHandle(contentType) })
}

// ParseNamed is Parse for sources identified by file name rather than
// content type.
func (r *Registry) ParseNamed(c *cache.Cache, body io.Reader, name, key string, scope cache.Scope) (string, error) {
	return r.parse(c, body, key, scope, func(h Handler) bool { return h.MatchesName(name) })
}

func (r *Registry) parse(c *cache.Cache, body io.Reader, key string, scope cache.Scope, claims func(Handler) bool) (string, error) {
	var candidates []Handler
	spoolExt := CanonicalExt
	for _, h := range r.handlers {
		if !claims(h) {
			continue
		}
		candidates = append(candidates, h)
		if spoolExt == CanonicalExt && h.Extension() != CanonicalExt {
			spoolExt = h.Extension()
		}
	}

	// The body is read exactly once; every candidate works from the spool.
	src, err := c.Write(key, body, spoolExt, scope, true)
	if err != nil {
		return "", err
	}
	defer func() {
		if spoolExt != CanonicalExt {
			_ = c.Remove(key, spoolExt, scope, true)
		}
	}()

	parsed := false
	triedJSON := false
	for _, h := range candidates {
		if h.Extension() == CanonicalExt {
			triedJSON = true
		}
		if err := h.Normalize(c, key, src, scope); err != nil {
			r.log.Debug().Err(err).Str("key", key).Str("handler", h.Extension()).Msg("handler could not normalize source")
			if spoolExt != CanonicalExt {
				_ = c.Remove(key, CanonicalExt, scope, true)
			}
			continue
		}
		parsed = true
		break
	}
	if !parsed && !triedJSON {
		if err := (JSON{}).Normalize(c, key, src, scope); err == nil {
			parsed = true
		}
	}
	if !parsed {
		_ = c.Remove(key, CanonicalExt, scope, true)
		return "", fmt.Errorf("%w: %s", ErrUnparsable, key)
	}
	return c.Promote(key, CanonicalExt, scope)
}

// JSON accepts sources that already are Lottie JSON.
type JSON struct{}

func (JSON) Extension() string { return CanonicalExt }

func (JSON) CanHandle(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "json") || strings.Contains(ct, "text/plain")
}

func (JSON) MatchesName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), CanonicalExt)
}

func (JSON) Normalize(c *cache.Cache, key, src string, scope cache.Scope) error {
	dst, err := c.Path(key, CanonicalExt, scope, true)
	if err != nil {
		return err
	}
	if src != dst {
		f, err := c.Open(src)
		if err != nil {
			return err
		}
		_, err = c.Write(key, f, CanonicalExt, scope, true)
		_ = f.Close()
		if err != nil {
			return err
		}
	}
	return sniffJSON(c, dst)
}

// sniffJSON checks that the document starts like a JSON object or array.
func sniffJSON(c *cache.Cache, path string) error {
	f, err := c.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	br := bufio.NewReader(f)
	for {
		b, err := br.ReadByte()
		if err != nil {
			return fmt.Errorf("empty document: %w", ErrUnparsable)
		}
		switch b {
		case ' ', '\t', '\r', '\n', 0xEF, 0xBB, 0xBF:
			continue
		case '{', '[':
			return nil
		default:
			return fmt.Errorf("not a json document: %w", ErrUnparsable)
		}
	}
}
