package spritepal

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/spritepal/spritepal/tile"
)

// ConvertPNG decodes the image at path and encodes it as SNES 4bpp tile
// data, returning the bytes and the tile count. Images that are not
// indexed color are quantized with a warning; dimensions are padded up
// to the next tile boundary with a warning.
func (s *SpritePal) ConvertPNG(path string) ([]byte, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	m, _, err := image.Decode(f)
	if err != nil {
		return nil, 0, fmt.Errorf("decoding %s: %w", path, err)
	}

	if _, ok := m.(*image.Paletted); !ok {
		s.logger.Printf("image %q is not indexed color, quantizing to a 16 color palette", path)
	}

	b := m.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, 0, tile.ErrImageSize
	}
	pw := (w + tile.Width - 1) / tile.Width * tile.Width
	ph := (h + tile.Height - 1) / tile.Height * tile.Height
	if pw != w || ph != h {
		s.logger.Printf("image %q is %dx%d, padding to %dx%d", path, w, h, pw, ph)
		m = pad(m, pw, ph)
	}

	buf := new(bytes.Buffer)
	if err := tile.Encode(buf, m); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), buf.Len() / tile.Bytes, nil
}

func pad(m image.Image, w, h int) image.Image {
	r := image.Rect(0, 0, w, h)
	if pm, ok := m.(*image.Paletted); ok {
		dst := image.NewPaletted(r, pm.Palette)
		draw.Draw(dst, m.Bounds().Sub(m.Bounds().Min), m, m.Bounds().Min, draw.Src)
		return dst
	}
	dst := image.NewRGBA(r)
	draw.Draw(dst, m.Bounds().Sub(m.Bounds().Min), m, m.Bounds().Min, draw.Src)
	return dst
}
