package segstore

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
)

// PixelBuffer is an owned, exactly-sized byte buffer in 32-bit BGRA
// layout, passed to the encoder by reference. It replaces the raw
// pointers into growable byte containers the source used for its bitmap
// contexts: a PixelBuffer's length is always width*height*4 and it never
// escapes the lifetime of its owner.
type PixelBuffer struct {
	Width       int
	Height      int
	BytesPerRow int
	Pix         []byte // BGRA, row-major, length == BytesPerRow*Height
}

// NewPixelBuffer allocates a zeroed buffer of the given dimensions.
func NewPixelBuffer(width, height int) PixelBuffer {
	bpr := width * 4
	return PixelBuffer{Width: width, Height: height, BytesPerRow: bpr, Pix: make([]byte, bpr*height)}
}

// ToImage converts the buffer to a standard library image, for use by
// callers (such as the capture resize path) that need to hand it to an
// image/draw-compatible API.
func (p PixelBuffer) ToImage() *image.RGBA {
	return p.toImage()
}

// FromImage builds a PixelBuffer from any image.Image, used to bring the
// output of a resize or decode operation back into segstore's owned
// buffer representation.
func FromImage(img image.Image) PixelBuffer {
	return fromImage(img)
}

func (p PixelBuffer) toImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	for y := 0; y < p.Height; y++ {
		srcRow := p.Pix[y*p.BytesPerRow : y*p.BytesPerRow+p.Width*4]
		for x := 0; x < p.Width; x++ {
			b, g, r, a := srcRow[x*4], srcRow[x*4+1], srcRow[x*4+2], srcRow[x*4+3]
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: a})
		}
	}
	return img
}

func fromImage(img image.Image) PixelBuffer {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	buf := NewPixelBuffer(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			off := y*buf.BytesPerRow + x*4
			buf.Pix[off] = byte(b >> 8)
			buf.Pix[off+1] = byte(g >> 8)
			buf.Pix[off+2] = byte(r >> 8)
			buf.Pix[off+3] = byte(a >> 8)
		}
	}
	return buf
}

// encodePNG compresses a pixel buffer into a PNG payload, the per-frame
// compression unit inside a segment container.
func encodePNG(p PixelBuffer) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, p.toImage()); err != nil {
		return nil, fmt.Errorf("segstore: encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// decodePNG restores a pixel buffer from a PNG payload.
func decodePNG(payload []byte) (PixelBuffer, error) {
	img, err := png.Decode(bytes.NewReader(payload))
	if err != nil {
		return PixelBuffer{}, fmt.Errorf("segstore: decode frame: %w", err)
	}
	return fromImage(img), nil
}
