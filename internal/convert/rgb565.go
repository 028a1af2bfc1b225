package convert

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// BytesPerPixel of the 16-bit 5-6-5 format selected by COLMOD 0x55.
const BytesPerPixel = 2

// RGB565 is a packed 5-6-5 pixel.
type RGB565 uint16

func (c RGB565) RGBA() (r, g, b, a uint32) {
	r5 := uint32(c>>11) & 0x1F
	g6 := uint32(c>>5) & 0x3F
	b5 := uint32(c) & 0x1F
	// Expand by bit replication so full scale maps to 0xFFFF.
	r = (r5<<11 | r5<<6 | r5<<1 | r5>>4)
	g = (g6<<10 | g6<<4 | g6>>2)
	b = (b5<<11 | b5<<6 | b5<<1 | b5>>4)
	return r, g, b, 0xFFFF
}

// RGB565Model converts any color to RGB565, dropping alpha.
var RGB565Model = color.ModelFunc(func(c color.Color) color.Color {
	if v, ok := c.(RGB565); ok {
		return v
	}
	return ToRGB565(c)
})

// ToRGB565 keeps the top 5, 6 and 5 bits of red, green and blue.
func ToRGB565(c color.Color) RGB565 {
	r, g, b, _ := c.RGBA()
	return RGB565((r>>11)<<11 | (g>>10)<<5 | b>>11)
}

// PackRGB565 renders the part of img inside r as big-endian RGB565, row
// major. r must lie inside img.Bounds().
func PackRGB565(img image.Image, r image.Rectangle) ([]byte, error) {
	if !r.In(img.Bounds()) {
		return nil, fmt.Errorf("convert: rect %v outside image bounds %v", r, img.Bounds())
	}
	out := make([]byte, r.Dx()*r.Dy()*BytesPerPixel)

	// Fast path: read the stride directly instead of calling At().
	if rgba, ok := img.(*image.RGBA); ok {
		i := 0
		for y := r.Min.Y; y < r.Max.Y; y++ {
			off := rgba.PixOffset(r.Min.X, y)
			for x := 0; x < r.Dx(); x++ {
				p := rgba.Pix[off+x*4 : off+x*4+3 : off+x*4+3]
				v := uint16(p[0]>>3)<<11 | uint16(p[1]>>2)<<5 | uint16(p[2]>>3)
				out[i] = byte(v >> 8)
				out[i+1] = byte(v)
				i += 2
			}
		}
		return out, nil
	}

	i := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			v := ToRGB565(img.At(x, y))
			out[i] = byte(v >> 8)
			out[i+1] = byte(v)
			i += 2
		}
	}
	return out, nil
}

// Fit draws src onto a black canvas of the given size, anchored at the top
// left. Whatever does not fit is cropped; nothing is scaled.
func Fit(src image.Image, size image.Point) *image.RGBA {
	dst := image.NewRGBA(image.Rectangle{Max: size})
	draw.Draw(dst, dst.Bounds(), image.Black, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Over)
	return dst
}
