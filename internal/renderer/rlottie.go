//go:build rlottie

package renderer

/*
#cgo pkg-config: rlottie
#include <stdlib.h>
#include <rlottie_capi.h>

static void lottied_override1(Lottie_Animation *a, Lottie_Animation_Property p, const char *kp, double v) {
	lottie_animation_property_override(a, p, kp, v);
}
static void lottied_override2(Lottie_Animation *a, Lottie_Animation_Property p, const char *kp, double x, double y) {
	lottie_animation_property_override(a, p, kp, x, y);
}
static void lottied_override3(Lottie_Animation *a, Lottie_Animation_Property p, const char *kp, double r, double g, double b) {
	lottie_animation_property_override(a, p, kp, r, g, b);
}
*/
import "C"

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"unsafe"
)

// NativeAvailable reports whether this binary links the native renderer.
const NativeAvailable = true

var nativeProperty = map[PropertyKind]C.Lottie_Animation_Property{
	FillColor:     C.LOTTIE_ANIMATION_PROPERTY_FILLCOLOR,
	FillOpacity:   C.LOTTIE_ANIMATION_PROPERTY_FILLOPACITY,
	StrokeColor:   C.LOTTIE_ANIMATION_PROPERTY_STROKECOLOR,
	StrokeOpacity: C.LOTTIE_ANIMATION_PROPERTY_STROKEOPACITY,
	StrokeWidth:   C.LOTTIE_ANIMATION_PROPERTY_STROKEWIDTH,
	TrAnchor:      C.LOTTIE_ANIMATION_PROPERTY_TR_ANCHOR,
	TrPosition:    C.LOTTIE_ANIMATION_PROPERTY_TR_POSITION,
	TrScale:       C.LOTTIE_ANIMATION_PROPERTY_TR_SCALE,
	TrRotation:    C.LOTTIE_ANIMATION_PROPERTY_TR_ROTATION,
	TrOpacity:     C.LOTTIE_ANIMATION_PROPERTY_TR_OPACITY,
}

type native struct {
	anim  *C.Lottie_Animation
	total int
	doc   *Document
}

// rlottie is the cgo-backed Renderer.
type rlottie struct {
	mu    sync.Mutex
	next  Handle
	anims map[Handle]*native
	seen  map[string]bool
}

// NewNative returns the rlottie renderer.
func NewNative() (Renderer, error) {
	return &rlottie{anims: make(map[Handle]*native), seen: make(map[string]bool)}, nil
}

func (r *rlottie) Create(path string, width, height int, precache bool) (Handle, Metadata, error) {
	if strings.TrimSpace(path) == "" {
		return 0, Metadata{}, fmt.Errorf("renderer: empty path")
	}
	if width <= 0 || height <= 0 {
		return 0, Metadata{}, fmt.Errorf("renderer: invalid size %dx%d", width, height)
	}
	// Layers and shape colors come from the document itself; the C API
	// exposes neither.
	doc := &Document{}
	if f, err := os.Open(path); err == nil {
		if d, err := ParseDocument(f); err == nil {
			doc = d
		}
		_ = f.Close()
	}

	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	a := C.lottie_animation_from_file(cpath)
	if a == nil {
		return 0, Metadata{}, fmt.Errorf("renderer: rlottie could not load %s", path)
	}
	meta := Metadata{
		TotalFrames: int(C.lottie_animation_get_totalframe(a)),
		FrameRate:   float64(C.lottie_animation_get_framerate(a)),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	h := r.next
	r.anims[h] = &native{anim: a, total: meta.TotalFrames, doc: doc}
	meta.LoadedFromCache = precache && r.seen[path]
	if precache {
		r.seen[path] = true
	}
	return h, meta, nil
}

func (r *rlottie) lookup(h Handle) (*native, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.anims[h]
	if !ok {
		return nil, ErrUnknownHandle
	}
	return n, nil
}

func (r *rlottie) DecodeFrame(h Handle, frame int, buf *Buffer) error {
	n, err := r.lookup(h)
	if err != nil {
		return err
	}
	if frame < 0 || frame > n.total || buf == nil || len(buf.Pix) < buf.Stride*buf.Height || len(buf.Pix) == 0 {
		return ErrDecodeFailed
	}
	C.lottie_animation_render(n.anim, C.size_t(frame),
		(*C.uint32_t)(unsafe.Pointer(&buf.Pix[0])),
		C.size_t(buf.Width), C.size_t(buf.Height), C.size_t(buf.Stride))
	return nil
}

func (r *rlottie) Destroy(h Handle) {
	r.mu.Lock()
	n, ok := r.anims[h]
	delete(r.anims, h)
	r.mu.Unlock()
	if ok {
		C.lottie_animation_destroy(n.anim)
	}
}

func (r *rlottie) Markers(h Handle) ([]Marker, error) {
	n, err := r.lookup(h)
	if err != nil {
		return nil, err
	}
	list := C.lottie_animation_get_markerlist(n.anim)
	if list == nil || list.size == 0 {
		return nil, nil
	}
	marks := unsafe.Slice(list.ptr, int(list.size))
	out := make([]Marker, 0, len(marks))
	for _, m := range marks {
		out = append(out, Marker{
			Name:     C.GoString(m.name),
			InFrame:  int(m.startframe),
			OutFrame: int(m.endframe),
		})
	}
	return out, nil
}

func (r *rlottie) Layers(h Handle) ([]LayerInfo, error) {
	n, err := r.lookup(h)
	if err != nil {
		return nil, err
	}
	return n.doc.Layers(), nil
}

func (r *rlottie) ApplyProperty(h Handle, p PropertyUpdate) error {
	if err := p.Validate(); err != nil {
		return err
	}
	n, err := r.lookup(h)
	if err != nil {
		return err
	}
	kind := nativeProperty[p.Kind]
	kp := C.CString(p.KeyPath)
	defer C.free(unsafe.Pointer(kp))
	v := p.Values
	switch len(v) {
	case 1:
		C.lottied_override1(n.anim, kind, kp, C.double(v[0]))
	case 2:
		C.lottied_override2(n.anim, kind, kp, C.double(v[0]), C.double(v[1]))
	case 3:
		C.lottied_override3(n.anim, kind, kp, C.double(v[0]), C.double(v[1]), C.double(v[2]))
	}
	return nil
}

// ReplaceColors maps each replacement onto key-path color overrides; the
// C API has no color substitution of its own.
func (r *rlottie) ReplaceColors(h Handle, reps []ColorReplacement) error {
	n, err := r.lookup(h)
	if err != nil {
		return err
	}
	for _, p := range n.doc.ColorOverrides(reps) {
		if err := r.ApplyProperty(h, p); err != nil {
			return err
		}
	}
	return nil
}
