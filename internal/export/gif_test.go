package export

import (
	"bytes"
	"errors"
	"image/gif"
	"testing"

	"lottied/internal/renderer"
)

// solid returns a w x h frame filled with premultiplied BGRA.
func solid(t *testing.T, w, h int, b, g, r, a byte) *renderer.Buffer {
	t.Helper()
	buf, err := renderer.NewBuffer(w, h)
	if err != nil {
		t.Fatalf("buffer: %v", err)
	}
	for i := 0; i < len(buf.Pix); i += 4 {
		buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2], buf.Pix[i+3] = b, g, r, a
	}
	return buf
}

func decode(t *testing.T, g *GIF) *gif.GIF {
	t.Helper()
	var out bytes.Buffer
	if err := g.Encode(&out); err != nil {
		t.Fatalf("encode: %v", err)
	}
	anim, err := gif.DecodeAll(&out)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return anim
}

func TestGIFFramesAndBackground(t *testing.T) {
	g := NewGIF(GIFOptions{Background: 0xffffff, Delay: 4})
	if err := g.Add(solid(t, 6, 4, 0, 0, 0xff, 0xff)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := g.Add(solid(t, 6, 4, 0, 0, 0, 0)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if g.Len() != 2 {
		t.Fatalf("len = %d", g.Len())
	}
	anim := decode(t, g)
	if len(anim.Image) != 2 || anim.Delay[0] != 4 || anim.LoopCount != 0 {
		t.Fatalf("unexpected gif: %d frames, delays %v, loop %d", len(anim.Image), anim.Delay, anim.LoopCount)
	}
	if sz := anim.Image[0].Bounds().Size(); sz.X != 6 || sz.Y != 4 {
		t.Fatalf("size = %v", sz)
	}
	if r, gr, b, _ := anim.Image[0].At(0, 0).RGBA(); r>>8 != 0xff || gr != 0 || b != 0 {
		t.Fatalf("opaque red frame became %x %x %x", r>>8, gr>>8, b>>8)
	}
	if r, gr, b, _ := anim.Image[1].At(2, 2).RGBA(); r>>8 != 0xff || gr>>8 != 0xff || b>>8 != 0xff {
		t.Fatalf("transparent frame should show the background, got %x %x %x", r>>8, gr>>8, b>>8)
	}
}

func TestGIFScalesAndRejectsMixedSizes(t *testing.T) {
	g := NewGIF(GIFOptions{Width: 3, Height: 2, Dither: true, LoopCount: -1})
	for _, sz := range [][2]int{{12, 8}, {6, 4}} {
		if err := g.Add(solid(t, sz[0], sz[1], 0xff, 0, 0, 0xff)); err != nil {
			t.Fatalf("add %v: %v", sz, err)
		}
	}
	anim := decode(t, g)
	for i, img := range anim.Image {
		if sz := img.Bounds().Size(); sz.X != 3 || sz.Y != 2 {
			t.Fatalf("frame %d size = %v", i, sz)
		}
	}
	if anim.Delay[0] != MinDelay {
		t.Fatalf("zero delay should clamp to %d, got %d", MinDelay, anim.Delay[0])
	}

	fixed := NewGIF(GIFOptions{})
	if err := fixed.Add(solid(t, 4, 4, 0, 0, 0, 0xff)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := fixed.Add(solid(t, 5, 4, 0, 0, 0, 0xff)); err == nil {
		t.Fatalf("expected error for a differently sized frame")
	}
	if err := fixed.Add(nil); err == nil {
		t.Fatalf("expected error for a nil frame")
	}
}

func TestGIFWithoutFrames(t *testing.T) {
	var out bytes.Buffer
	if err := NewGIF(GIFOptions{}).Encode(&out); !errors.Is(err, ErrNoFrames) {
		t.Fatalf("expected ErrNoFrames, got %v", err)
	}
}

func TestDelayFor(t *testing.T) {
	cases := []struct {
		fps  float64
		step int
		want int
	}{
		{30, 1, 3},
		{25, 1, 4},
		{60, 1, MinDelay},
		{30, 3, 10},
		{0, 1, MinDelay},
	}
	for _, c := range cases {
		if got := DelayFor(c.fps, c.step); got != c.want {
			t.Fatalf("DelayFor(%v, %d) = %d, want %d", c.fps, c.step, got, c.want)
		}
	}
}
