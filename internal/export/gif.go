// Package export assembles decoded frames into animated GIFs.
package export

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"io"

	xdraw "golang.org/x/image/draw"

	"lottied/internal/renderer"
)

// MinDelay is the smallest inter-frame delay, in hundredths of a second,
// that common GIF viewers honor.
const MinDelay = 2

var ErrNoFrames = errors.New("export: no frames added")

type GIFOptions struct {
	// Width and Height size the output; zero keeps the frame size.
	Width, Height int
	// Background is 0xRRGGBB, painted under translucent pixels.
	Background uint32
	// Delay between frames in hundredths of a second.
	Delay  int
	Dither bool
	// LoopCount follows image/gif: 0 loops forever, -1 plays once.
	LoopCount int
}

// GIF collects frames in order. It is not safe for concurrent use.
type GIF struct {
	opts   GIFOptions
	bounds image.Rectangle
	bg     *image.Uniform
	anim   gif.GIF
}

func NewGIF(opts GIFOptions) *GIF {
	if opts.Delay < MinDelay {
		opts.Delay = MinDelay
	}
	bg := color.RGBA{R: uint8(opts.Background >> 16), G: uint8(opts.Background >> 8), B: uint8(opts.Background), A: 0xff}
	return &GIF{opts: opts, bg: image.NewUniform(bg), anim: gif.GIF{LoopCount: opts.LoopCount}}
}

// Add quantizes buf onto the web palette, scaling it to the output size.
// Every frame must share the first frame's dimensions.
func (g *GIF) Add(buf *renderer.Buffer) error {
	if buf == nil || buf.Width <= 0 || buf.Height <= 0 {
		return fmt.Errorf("export: empty frame")
	}
	src := buf.ToImage()
	if len(g.anim.Image) == 0 {
		w, h := g.opts.Width, g.opts.Height
		if w <= 0 || h <= 0 {
			w, h = buf.Width, buf.Height
		}
		g.bounds = image.Rect(0, 0, w, h)
	} else if (g.opts.Width <= 0 || g.opts.Height <= 0) && !src.Bounds().Eq(g.bounds) {
		return fmt.Errorf("export: frame is %v, want %v", src.Bounds().Size(), g.bounds.Size())
	}

	flat := image.NewRGBA(g.bounds)
	xdraw.Draw(flat, g.bounds, g.bg, image.Point{}, xdraw.Src)
	if src.Bounds().Eq(g.bounds) {
		xdraw.Draw(flat, g.bounds, src, image.Point{}, xdraw.Over)
	} else {
		xdraw.ApproxBiLinear.Scale(flat, g.bounds, src, src.Bounds(), xdraw.Over, nil)
	}

	pal := image.NewPaletted(g.bounds, palette.WebSafe)
	if g.opts.Dither {
		xdraw.FloydSteinberg.Draw(pal, g.bounds, flat, image.Point{})
	} else {
		xdraw.Draw(pal, g.bounds, flat, image.Point{}, xdraw.Src)
	}
	g.anim.Image = append(g.anim.Image, pal)
	g.anim.Delay = append(g.anim.Delay, g.opts.Delay)
	return nil
}

func (g *GIF) Len() int { return len(g.anim.Image) }

func (g *GIF) Encode(w io.Writer) error {
	if len(g.anim.Image) == 0 {
		return ErrNoFrames
	}
	return gif.EncodeAll(w, &g.anim)
}

// DelayFor converts a frame step at fps into a GIF delay.
func DelayFor(fps float64, step int) int {
	if fps <= 0 || step <= 0 {
		return MinDelay
	}
	d := int(100*float64(step)/fps + 0.5)
	if d < MinDelay {
		return MinDelay
	}
	return d
}
