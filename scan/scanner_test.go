package scan_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spritepal/spritepal/hal"
	"github.com/spritepal/spritepal/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeROM writes a ROM of 0xFF filler with compressed sprites embedded
// at the given offsets. Filler decodes as an immediate terminator, so
// nothing outside the sprites produces output.
func writeROM(t *testing.T, size int, sprites map[int][]byte) string {
	t.Helper()

	rom := bytes.Repeat([]byte{0xff}, size)
	for offset, data := range sprites {
		copy(rom[offset:], hal.Compress(data))
	}

	path := filepath.Join(t.TempDir(), "test.sfc")
	require.NoError(t, os.WriteFile(path, rom, 0o644))
	return path
}

func TestScanForSprites(t *testing.T) {
	t.Parallel()

	path := writeROM(t, 64<<10, map[int][]byte{0x200: spriteTiles(64)})

	s := scan.NewScanner(nil)
	found := s.ScanForSprites(path, 0, 64<<10, 0x100)

	require.Len(t, found, 1)
	assert.Equal(t, 0x200, found[0].Offset)
	assert.Equal(t, 64, found[0].TileCount)
	assert.Equal(t, 2048, found[0].DecompressedSize)
	assert.GreaterOrEqual(t, found[0].Quality, scan.QualityThreshold)
}

func TestScanForSpritesOrdering(t *testing.T) {
	t.Parallel()

	// A second sprite too small to score well: the better one sorts
	// first regardless of offset order.
	path := writeROM(t, 64<<10, map[int][]byte{
		0x100: make([]byte, 16*32),
		0x800: spriteTiles(64),
	})

	s := scan.NewScanner(nil)
	found := s.ScanForSprites(path, 0, 64<<10, 0x100)

	require.Len(t, found, 2)
	assert.Equal(t, 0x800, found[0].Offset)
	assert.GreaterOrEqual(t, found[0].Quality, found[1].Quality)
}

func TestScanForSpritesMissingROM(t *testing.T) {
	t.Parallel()

	s := scan.NewScanner(nil)
	assert.Empty(t, s.ScanForSprites(filepath.Join(t.TempDir(), "missing.sfc"), 0, 0x1000, 0))
}

func TestScanForSpritesEmptyROM(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.sfc")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	s := scan.NewScanner(nil)
	assert.Empty(t, s.ScanForSprites(path, 0, 0x1000, 0))
}

func TestScanForSpritesClampsEnd(t *testing.T) {
	t.Parallel()

	path := writeROM(t, 0x1000, map[int][]byte{0x200: spriteTiles(64)})

	s := scan.NewScanner(nil)
	found := s.ScanForSprites(path, 0, 1<<30, 0x100)
	require.Len(t, found, 1)
	assert.Equal(t, 0x200, found[0].Offset)
}

func TestFindBestOffsets(t *testing.T) {
	t.Parallel()

	path := writeROM(t, 64<<10, map[int][]byte{0x200: spriteTiles(64)})

	s := scan.NewScanner(nil)
	best := s.FindBestOffsets(path, 0x280, 0x100)
	require.NotEmpty(t, best)
	assert.Equal(t, 0x200, best[0])
	assert.LessOrEqual(t, len(best), 5)
}

func TestFindBestOffsetsNone(t *testing.T) {
	t.Parallel()

	path := writeROM(t, 64<<10, nil)

	s := scan.NewScanner(nil)
	assert.Empty(t, s.FindBestOffsets(path, 0x8000, 0))
}
