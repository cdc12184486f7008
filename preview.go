package spritepal

import (
	"bytes"
	"image"
	"image/png"
	"os"

	"github.com/disintegration/gift"

	"github.com/spritepal/spritepal/tile"
)

// WritePreview renders tileData as a palette-mode PNG sheet, 16 tiles
// per row on the grayscale palette, scaled up zoom times with
// nearest-neighbor resampling (1 or less for no scaling).
func (s *SpritePal) WritePreview(tileData []byte, path string, zoom int) error {
	m, err := tile.Decode(bytes.NewReader(tileData), tile.DefaultTilesPerRow)
	if err != nil {
		return err
	}

	if zoom > 1 {
		b := m.Bounds()
		g := gift.New(gift.Resize(b.Dx()*zoom, b.Dy()*zoom, gift.NearestNeighborResampling))
		dst := image.NewPaletted(g.Bounds(b), tile.GrayscalePalette())
		g.Draw(dst, m)
		m = dst
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return png.Encode(f, m)
}
