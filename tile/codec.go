package tile

import (
	"errors"
	"fmt"
)

var (
	// ErrPixelCount is returned when tile pixel data is not exactly 64
	// values long.
	ErrPixelCount = errors.New("tile: pixel data must be 64 values")

	// ErrPixelRange is returned when a pixel value does not fit in 4
	// bits.
	ErrPixelRange = errors.New("tile: pixel index out of range")

	// ErrBounds is returned when tile data is shorter than 32 bytes
	// past the requested offset.
	ErrBounds = errors.New("tile: tile data out of bounds")
)

// EncodeTile packs 64 palette indices, row by row, into the 32 byte
// planar form.
func EncodeTile(pixels []uint8) ([]byte, error) {
	if len(pixels) != Pixels {
		return nil, fmt.Errorf("%w, got %d", ErrPixelCount, len(pixels))
	}

	out := make([]byte, Bytes)
	for y := 0; y < Height; y++ {
		var p0, p1, p2, p3 byte
		for x := 0; x < Width; x++ {
			c := pixels[y*Width+x]
			if c > maxIndex {
				return nil, fmt.Errorf("%w: %d at (%d,%d)", ErrPixelRange, c, x, y)
			}
			bit := byte(1) << (Width - 1 - x)
			if c&1 != 0 {
				p0 |= bit
			}
			if c&2 != 0 {
				p1 |= bit
			}
			if c&4 != 0 {
				p2 |= bit
			}
			if c&8 != 0 {
				p3 |= bit
			}
		}
		out[y<<1] = p0
		out[y<<1+1] = p1
		out[planeSize+y<<1] = p2
		out[planeSize+y<<1+1] = p3
	}

	return out, nil
}

// DecodeTile unpacks the 32 byte tile at offset back into 64 palette
// indices.
func DecodeTile(data []byte, offset int) ([]uint8, error) {
	if offset < 0 || offset+Bytes > len(data) {
		return nil, fmt.Errorf("%w at offset %d", ErrBounds, offset)
	}

	pixels := make([]uint8, Pixels)
	for y := 0; y < Height; y++ {
		p0 := data[offset+y<<1]
		p1 := data[offset+y<<1+1]
		p2 := data[offset+planeSize+y<<1]
		p3 := data[offset+planeSize+y<<1+1]
		for x := 0; x < Width; x++ {
			shift := uint(Width - 1 - x)
			pixels[y*Width+x] = p0>>shift&1 |
				p1>>shift&1<<1 |
				p2>>shift&1<<2 |
				p3>>shift&1<<3
		}
	}

	return pixels, nil
}
