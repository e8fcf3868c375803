package httpapi

import (
	"bytes"
	"image/gif"
	"image/png"
	"net/http"
	"testing"
	"time"

	"github.com/spf13/afero"

	"lottied/internal/manager"
	"lottied/internal/renderer"
	"lottied/pkg/types"
)

const inlineDoc = `{"v":"5.7.4","nm":"dot","fr":30,"ip":0,"op":30,"w":64,"h":64,` +
	`"layers":[{"nm":"bg","ty":1,"ip":0,"op":30}],"markers":[{"cm":"intro","tm":1,"dr":2}]}`

func TestIntegration_InlineLoadFrameRecycle(t *testing.T) {
	fs := afero.NewMemMapFs()
	m, err := manager.NewWithConfig(manager.ManagerConfig{
		CacheDir:     "/cache",
		Fs:           fs,
		Renderer:     renderer.NewFake(fs),
		DrainTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	mux := NewMux(m)

	if w := do(t, mux, http.MethodGet, "/readyz", ""); w.Code != http.StatusOK {
		t.Fatalf("readyz=%d", w.Code)
	}

	w := do(t, mux, http.MethodPost, "/animations", `{"json":`+inlineDoc+`,"cache_name":"dot","width":16,"height":8}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("load status=%d body=%s", w.Code, w.Body.String())
	}
	st := decodeBody[types.AnimationStatus](t, w)
	if st.ID == "" || st.TotalFrames != 30 || st.Width != 16 || st.Height != 8 {
		t.Fatalf("unexpected status: %+v", st)
	}

	w = do(t, mux, http.MethodGet, "/animations/"+st.ID+"/markers", "")
	markers := decodeBody[types.MarkersResponse](t, w).Markers
	if len(markers) != 1 || markers[0].Name != "intro" {
		t.Fatalf("markers: %+v", markers)
	}

	w = do(t, mux, http.MethodGet, "/animations/"+st.ID+"/frames/7.png", "")
	if w.Code != http.StatusOK {
		t.Fatalf("frame status=%d body=%s", w.Code, w.Body.String())
	}
	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 8 {
		t.Fatalf("frame bounds %v", b)
	}

	if w := do(t, mux, http.MethodGet, "/animations/"+st.ID+"/frames/999.png", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("out of range frame status=%d", w.Code)
	}

	w = do(t, mux, http.MethodGet, "/animations/"+st.ID+"/export.gif?end=9&step=3", "")
	if w.Code != http.StatusOK {
		t.Fatalf("export status=%d body=%s", w.Code, w.Body.String())
	}
	anim, err := gif.DecodeAll(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("gif: %v", err)
	}
	if len(anim.Image) != 4 || anim.Image[0].Bounds().Dx() != 16 {
		t.Fatalf("export: %d frames, bounds %v", len(anim.Image), anim.Image[0].Bounds())
	}
	if w := do(t, mux, http.MethodGet, "/animations/"+st.ID+"/export.gif?end=99", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("out of range export status=%d", w.Code)
	}

	if w := do(t, mux, http.MethodDelete, "/animations/"+st.ID, ""); w.Code != http.StatusNoContent {
		t.Fatalf("recycle status=%d", w.Code)
	}
	if w := do(t, mux, http.MethodGet, "/animations/"+st.ID, ""); w.Code != http.StatusNotFound {
		t.Fatalf("get after recycle status=%d", w.Code)
	}
}
