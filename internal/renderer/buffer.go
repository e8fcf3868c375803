package renderer

import (
	"fmt"
	"image"
)

// Buffer holds premultiplied 32-bit pixels in the renderer's native byte
// order (B, G, R, A in memory).
type Buffer struct {
	Pix    []byte
	Width  int
	Height int
	Stride int
}

func NewBuffer(width, height int) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("renderer: invalid buffer size %dx%d", width, height)
	}
	return &Buffer{
		Pix:    make([]byte, width*height*4),
		Width:  width,
		Height: height,
		Stride: width * 4,
	}, nil
}

// Clear zeroes every pixel.
func (b *Buffer) Clear() {
	for i := range b.Pix {
		b.Pix[i] = 0
	}
}

// ToImage copies the buffer into a new image.
func (b *Buffer) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, b.Width, b.Height))
	for y := 0; y < b.Height; y++ {
		src := b.Pix[y*b.Stride : y*b.Stride+b.Width*4]
		dst := img.Pix[y*img.Stride : y*img.Stride+b.Width*4]
		for x := 0; x < len(src); x += 4 {
			dst[x+0] = src[x+2]
			dst[x+1] = src[x+1]
			dst[x+2] = src[x+0]
			dst[x+3] = src[x+3]
		}
	}
	return img
}
