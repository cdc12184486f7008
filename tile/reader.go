package tile

import (
	"errors"
	"image"
	"io"
)

var (
	errNoData    = errors.New("tile: no tile data")
	errShortTile = errors.New("tile: trailing partial tile")
)

type decoder struct {
	tilesPerRow int
	image       *image.Paletted
}

func (d *decoder) decode(data []byte) error {
	if len(data) == 0 {
		return errNoData
	}
	if len(data)%Bytes != 0 {
		return errShortTile
	}

	numTiles := len(data) / Bytes
	if d.tilesPerRow <= 0 {
		d.tilesPerRow = DefaultTilesPerRow
	}
	if d.tilesPerRow > numTiles {
		d.tilesPerRow = numTiles
	}
	rows := (numTiles + d.tilesPerRow - 1) / d.tilesPerRow

	d.image = image.NewPaletted(image.Rect(0, 0, d.tilesPerRow*Width, rows*Height), GrayscalePalette())

	for i := 0; i < numTiles; i++ {
		pixels, err := DecodeTile(data, i*Bytes)
		if err != nil {
			return err
		}

		dx := i % d.tilesPerRow * Width
		dy := i / d.tilesPerRow * Height
		for y := 0; y < Height; y++ {
			for x := 0; x < Width; x++ {
				d.image.SetColorIndex(dx+x, dy+y, pixels[y*Width+x])
			}
		}
	}

	return nil
}

// Decode reads SNES 4bpp tile data from r and lays the tiles out
// tilesPerRow to a row (16 when tilesPerRow is zero) on a grayscale
// palette.
func Decode(r io.Reader, tilesPerRow int) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	d := decoder{tilesPerRow: tilesPerRow}
	if err := d.decode(data); err != nil {
		return nil, err
	}
	return d.image, nil
}
