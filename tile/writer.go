package tile

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"io"

	"github.com/ericpauley/go-quantize/quantize"
)

// ErrImageSize is returned by Encode for images whose dimensions are not
// non-zero multiples of the tile size.
var ErrImageSize = errors.New("tile: image dimensions must be non-zero multiples of 8")

type encoder struct {
	w io.Writer
}

func (e *encoder) encode(m *image.Paletted) error {
	b := m.Bounds()
	tilesX := b.Dx() / Width
	tilesY := b.Dy() / Height

	pixels := make([]uint8, Pixels)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			for y := 0; y < Height; y++ {
				for x := 0; x < Width; x++ {
					// Masking off any bits leaving a 0-15 value
					pixels[y*Width+x] = m.ColorIndexAt(tx*Width+x, ty*Height+y) & maxIndex
				}
			}

			t, err := EncodeTile(pixels)
			if err != nil {
				return err
			}
			if _, err := e.w.Write(t); err != nil {
				return err
			}
		}
	}

	return nil
}

// Encode writes the Image m to w as SNES 4bpp tile data, 8x8 tiles taken
// left to right, top to bottom. Images that are not already paletted, or
// that use more than 16 colors, are quantized to a 16 color palette
// first.
func Encode(w io.Writer, m image.Image) error {
	b := m.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 || b.Dx()%Width != 0 || b.Dy()%Height != 0 {
		return ErrImageSize
	}

	pm, _ := m.(*image.Paletted)
	if pm == nil {
		if cp, ok := m.ColorModel().(color.Palette); ok && len(cp) <= numColors {
			pm = image.NewPaletted(b, cp)
			draw.Draw(pm, b, m, b.Min, draw.Src)
		}
	}
	if pm == nil || len(pm.Palette) > numColors {
		q := quantize.MedianCutQuantizer{}
		pm = image.NewPaletted(b, q.Quantize(make(color.Palette, 0, numColors), m))
		draw.Draw(pm, b, m, b.Min, draw.Src)
	}

	// Adjust image so that top-left corner is at (0, 0)
	if pm.Rect.Min != (image.Point{}) {
		dup := *pm
		dup.Rect = dup.Rect.Sub(dup.Rect.Min)
		pm = &dup
	}

	e := encoder{w: w}

	return e.encode(pm)
}
