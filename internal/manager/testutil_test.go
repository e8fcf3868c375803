package manager

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"lottied/internal/fetch"
	"lottied/internal/renderer"
)

func docJSON(fps float64, frames int) string {
	return fmt.Sprintf(`{"v":"5.7.4","nm":"test","fr":%v,"ip":0,"op":%d,"w":64,"h":64,`+
		`"layers":[{"nm":"bg","ty":1,"ip":0,"op":%d},{"nm":"dot","ty":4,"ip":0,"op":%d}],`+
		`"markers":[{"cm":"intro","tm":1,"dr":2}]}`, fps, frames, frames, frames)
}

func writeDoc(t *testing.T, fs afero.Fs, path string, fps float64, frames int) {
	t.Helper()
	if err := afero.WriteFile(fs, path, []byte(docJSON(fps, frames)), 0o644); err != nil {
		t.Fatalf("write doc: %v", err)
	}
}

// stubTransport serves canned bodies; unknown URLs get a 404.
type stubTransport struct {
	mu     sync.Mutex
	bodies map[string]string
	calls  map[string]int
}

func newStubTransport(bodies map[string]string) *stubTransport {
	return &stubTransport{bodies: bodies, calls: make(map[string]int)}
}

func (s *stubTransport) Fetch(_ context.Context, url string) (*fetch.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[url]++
	body, ok := s.bodies[url]
	if !ok {
		return &fetch.Response{OK: false, Error: "HTTP 404"}, nil
	}
	return &fetch.Response{OK: true, ContentType: "application/json", Body: io.NopCloser(strings.NewReader(body))}, nil
}

func (s *stubTransport) callsFor(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[url]
}

type harness struct {
	m    *Manager
	fs   afero.Fs
	rnd  *renderer.Fake
	pub  *MemoryPublisher
	http *stubTransport
}

func newHarness(t *testing.T, mod func(*ManagerConfig)) *harness {
	t.Helper()
	h := &harness{
		fs:   afero.NewMemMapFs(),
		pub:  NewMemoryPublisher(),
		http: newStubTransport(map[string]string{"https://cdn.test/a.json": docJSON(30, 30)}),
	}
	h.rnd = renderer.NewFake(h.fs)
	cfg := ManagerConfig{
		CacheDir:     "/cache",
		Fs:           h.fs,
		Renderer:     h.rnd,
		Publisher:    h.pub,
		Transport:    h.http,
		DrainTimeout: time.Second,
	}
	if mod != nil {
		mod(&cfg)
	}
	m, err := NewWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	h.m = m
	t.Cleanup(func() { _ = m.Close() })
	return h
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
