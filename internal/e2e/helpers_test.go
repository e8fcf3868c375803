package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"lottied/internal/httpapi"
	"lottied/internal/manager"
	"lottied/internal/renderer"
)

func docJSON(frames int) string {
	return fmt.Sprintf(`{"v":"5.7.4","nm":"e2e","fr":30,"ip":0,"op":%d,"w":64,"h":64,`+
		`"layers":[{"nm":"bg","ty":1,"ip":0,"op":%d}],"markers":[{"cm":"intro","tm":1,"dr":2}]}`, frames, frames)
}

// cdn serves canned documents and counts hits per path.
type cdn struct {
	*httptest.Server
	mu   sync.Mutex
	hits map[string]int
	docs map[string]string
}

func newCDN(t *testing.T, docs map[string]string) *cdn {
	t.Helper()
	c := &cdn{hits: make(map[string]int), docs: docs}
	c.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		c.hits[r.URL.Path]++
		body, ok := c.docs[r.URL.Path]
		c.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(c.Close)
	return c
}

func (c *cdn) hitsFor(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits[path]
}

// newServer starts the API over a real manager rooted in temp dirs. The
// fake renderer stands in for the native one.
func newServer(t *testing.T, mod func(*manager.ManagerConfig)) (*httptest.Server, *manager.Manager) {
	t.Helper()
	fs := afero.NewOsFs()
	cfg := manager.ManagerConfig{
		CacheDir:       t.TempDir(),
		Fs:             fs,
		Renderer:       renderer.NewFake(fs),
		ConnectTimeout: 2 * time.Second,
		ReadTimeout:    2 * time.Second,
		DrainTimeout:   2 * time.Second,
	}
	if mod != nil {
		mod(&cfg)
	}
	mgr, err := manager.NewWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	srv := httptest.NewServer(httpapi.NewMux(mgr))
	t.Cleanup(func() {
		srv.Close()
		_ = mgr.Close()
	})
	return srv, mgr
}

func httpDo(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, b
}

func decode[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("decode %s: %v", b, err)
	}
	return v
}
