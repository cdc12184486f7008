/*
Package tile implements an SNES 4bpp planar tile codec.

A tile is 8 by 8 pixels, each pixel a 4-bit palette index. The serialized
form is 32 bytes: bitplanes 0 and 1 are interleaved per row in the first
16 bytes, bitplanes 2 and 3 in the second 16. Within a plane byte, pixel
x of the row maps to bit 7-x.
*/
package tile

import "image/color"

const (
	// Width and Height are the pixel dimensions of a single tile.
	Width  = 8
	Height = Width

	// Pixels is the number of pixels in a tile.
	Pixels = Width * Height

	// Bytes is the serialized size of a tile: 4 bitplanes, 8 rows,
	// 2 bytes per row pair.
	Bytes = 32

	// DefaultTilesPerRow is the layout used for preview sheets.
	DefaultTilesPerRow = 16

	planeSize = Bytes >> 1
	maxIndex  = 15
	numColors = maxIndex + 1
)

// GrayscalePalette returns the 16 color ramp used when no palette has
// been associated with decoded tile data.
func GrayscalePalette() color.Palette {
	p := make(color.Palette, numColors)
	for i := range p {
		v := uint8(i * 0x11)
		p[i] = color.RGBA{v, v, v, 0xff}
	}
	return p
}
