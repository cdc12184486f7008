package spritepal_test

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/spritepal/spritepal"
	"github.com/spritepal/spritepal/hal"
	"github.com/spritepal/spritepal/similarity"
	"github.com/spritepal/spritepal/tile"
	"github.com/spritepal/spritepal/vram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, m image.Image) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sprite.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, png.Encode(f, m))
	return path
}

func indexedImage(w, h int) *image.Paletted {
	m := image.NewPaletted(image.Rect(0, 0, w, h), tile.GrayscalePalette())
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.SetColorIndex(x, y, uint8(x+y)&15)
		}
	}
	return m
}

func spriteTiles(n int) []byte {
	data := make([]byte, 0, n*32)
	for i := 0; i < n; i++ {
		var t [32]byte
		for y := 0; y < 8; y++ {
			t[y*2] = 0x3c ^ byte(y)
			t[y*2+1] = 0x5a
			t[16+y*2] = 0x3c
			t[16+y*2+1] = 0x18 + byte(i&7)
		}
		data = append(data, t[:]...)
	}
	return data
}

func TestConvertAndInject(t *testing.T) {
	t.Parallel()

	m := indexedImage(16, 16)
	pngPath := writePNG(t, m)

	s := spritepal.New(nil, nil)
	tileData, numTiles, err := s.ConvertPNG(pngPath)
	require.NoError(t, err)
	assert.Equal(t, 4, numTiles)
	require.Len(t, tileData, 4*tile.Bytes)

	want := new(bytes.Buffer)
	require.NoError(t, tile.Encode(want, m))
	assert.Equal(t, want.Bytes(), tileData)

	dir := t.TempDir()
	vramPath := filepath.Join(dir, "vram.bin")
	require.NoError(t, os.WriteFile(vramPath, make([]byte, 0x10000), 0o644))
	outPath := filepath.Join(dir, "out.bin")

	require.NoError(t, vram.Inject(tileData, vramPath, 0x1000, outPath))

	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Len(t, out, 0x10000)
	assert.Equal(t, tileData, out[0x1000:0x1000+len(tileData)])
	assert.Equal(t, make([]byte, 0x1000), out[:0x1000])
	assert.Equal(t, make([]byte, 0x10000-0x1080), out[0x1080:])
}

func TestConvertPNGPads(t *testing.T) {
	t.Parallel()

	pngPath := writePNG(t, indexedImage(12, 10))

	s := spritepal.New(nil, nil)
	tileData, numTiles, err := s.ConvertPNG(pngPath)
	require.NoError(t, err)

	// 12x10 pads up to 16x16.
	assert.Equal(t, 4, numTiles)
	assert.Len(t, tileData, 4*tile.Bytes)
}

func TestConvertPNGErrors(t *testing.T) {
	t.Parallel()

	s := spritepal.New(nil, nil)

	_, _, err := s.ConvertPNG(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not a png"), 0o644))
	_, _, err = s.ConvertPNG(bad)
	assert.Error(t, err)
}

func TestWritePreview(t *testing.T) {
	t.Parallel()

	s := spritepal.New(nil, nil)
	data := spriteTiles(4)

	path := filepath.Join(t.TempDir(), "preview.png")
	require.NoError(t, s.WritePreview(data, path, 1))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	m, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 32, m.Bounds().Dx())
	assert.Equal(t, 8, m.Bounds().Dy())
}

func TestWritePreviewZoom(t *testing.T) {
	t.Parallel()

	s := spritepal.New(nil, nil)

	path := filepath.Join(t.TempDir(), "preview.png")
	require.NoError(t, s.WritePreview(spriteTiles(4), path, 4))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	m, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 128, m.Bounds().Dx())
	assert.Equal(t, 32, m.Bounds().Dy())
}

func TestIndexROMAndFindSimilar(t *testing.T) {
	t.Parallel()

	sprite := spriteTiles(64)
	rom := bytes.Repeat([]byte{0xff}, 64<<10)
	copy(rom[0x200:], hal.Compress(sprite))

	dir := t.TempDir()
	romPath := filepath.Join(dir, "test.sfc")
	require.NoError(t, os.WriteFile(romPath, rom, 0o644))

	db, err := similarity.OpenDB(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	defer db.Close()

	s := spritepal.New(db, nil)

	count, err := s.IndexROM(context.Background(), romPath, 0, 0, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, s.Engine().Len())

	// Query with a rendering of the same sprite: a fresh session backed
	// by the same database finds it.
	sheet, err := tile.Decode(bytes.NewReader(sprite), tile.DefaultTilesPerRow)
	require.NoError(t, err)
	queryPath := writePNG(t, sheet)

	fresh := spritepal.New(db, nil)
	matches, err := fresh.FindSimilarImage(queryPath, 10, 0.8)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 0x200, matches[0].Offset)
	assert.Equal(t, "test.sfc", matches[0].Meta["rom"])
	assert.Equal(t, "64", matches[0].Meta["tiles"])
}

func TestIndexROMMissing(t *testing.T) {
	t.Parallel()

	s := spritepal.New(nil, nil)
	_, err := s.IndexROM(context.Background(), filepath.Join(t.TempDir(), "missing.sfc"), 0, 0, 1, nil)
	assert.Error(t, err)
}
