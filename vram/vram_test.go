package vram_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/spritepal/spritepal/tile"
	"github.com/spritepal/spritepal/vram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDump(t *testing.T, size int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "vram.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func TestInject(t *testing.T) {
	t.Parallel()

	dump := writeDump(t, 0x10000)
	output := filepath.Join(t.TempDir(), "out.bin")

	tileData := make([]byte, tile.Bytes*4)
	for i := range tileData {
		tileData[i] = byte(i)
	}

	require.NoError(t, vram.Inject(tileData, dump, 0x1000, output))

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	require.Len(t, got, 0x10000)

	assert.Equal(t, tileData, got[0x1000:0x1000+len(tileData)])
	for _, i := range []int{0, 0xfff, 0x1000 + len(tileData), 0xffff} {
		assert.Equal(t, byte(0), got[i], "byte at 0x%X", i)
	}
}

func TestInjectOutOfRange(t *testing.T) {
	t.Parallel()

	dump := writeDump(t, 0x100)
	output := filepath.Join(t.TempDir(), "out.bin")

	err := vram.Inject(make([]byte, tile.Bytes), dump, 0xf0, output)
	assert.ErrorIs(t, err, vram.ErrOffsetRange)
	assert.NoFileExists(t, output)

	err = vram.Inject(make([]byte, tile.Bytes), dump, -1, output)
	assert.ErrorIs(t, err, vram.ErrOffsetRange)
	assert.NoFileExists(t, output)

	// An offset near MaxInt64 must fail cleanly, not wrap around.
	err = vram.Inject(make([]byte, tile.Bytes*4), dump, math.MaxInt64-64, output)
	assert.ErrorIs(t, err, vram.ErrOffsetRange)
	assert.NoFileExists(t, output)
}

func TestInjectDumpTooLarge(t *testing.T) {
	t.Parallel()

	dump := writeDump(t, vram.MaxDumpSize+1)
	output := filepath.Join(t.TempDir(), "out.bin")

	err := vram.Inject(make([]byte, tile.Bytes), dump, 0, output)
	assert.ErrorIs(t, err, vram.ErrDumpTooLarge)
	assert.NoFileExists(t, output)
}

func TestInjectMissingDump(t *testing.T) {
	t.Parallel()

	output := filepath.Join(t.TempDir(), "out.bin")

	err := vram.Inject(make([]byte, tile.Bytes), filepath.Join(t.TempDir(), "missing.bin"), 0, output)
	assert.Error(t, err)
	assert.NoFileExists(t, output)
}

func TestReadTiles(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vram.bin")
	buf := make([]byte, 0x1000)
	for i := range buf {
		buf[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	// Request is trimmed to whole tiles.
	data, numTiles, err := vram.ReadTiles(path, 0x100, tile.Bytes*2+7)
	require.NoError(t, err)
	assert.Equal(t, 2, numTiles)
	assert.Equal(t, buf[0x100:0x100+tile.Bytes*2], data)

	// Reads past the end clamp to the dump size.
	_, numTiles, err = vram.ReadTiles(path, 0x1000-tile.Bytes, 0x10000)
	require.NoError(t, err)
	assert.Equal(t, 1, numTiles)
}

func TestReadTilesErrors(t *testing.T) {
	t.Parallel()

	dump := writeDump(t, 0x100)

	_, _, err := vram.ReadTiles(dump, 0x100, tile.Bytes)
	assert.ErrorIs(t, err, vram.ErrOffsetRange)

	_, _, err = vram.ReadTiles(dump, 0xf0, tile.Bytes)
	assert.ErrorIs(t, err, vram.ErrNoTiles)

	_, _, err = vram.ReadTiles(dump, 0, -1)
	assert.ErrorIs(t, err, vram.ErrNoTiles)

	// A size near MaxInt must clamp to the dump, not wrap around.
	data, numTiles, err := vram.ReadTiles(dump, 0x20, math.MaxInt)
	require.NoError(t, err)
	assert.Equal(t, 7, numTiles)
	assert.Len(t, data, 7*tile.Bytes)
}

func TestExtract(t *testing.T) {
	t.Parallel()

	pixels := make([]uint8, tile.Pixels)
	for i := range pixels {
		pixels[i] = uint8(i) & 15
	}
	tileData, err := tile.EncodeTile(pixels)
	require.NoError(t, err)

	buf := make([]byte, 0x1000)
	copy(buf[0x200:], tileData)
	path := filepath.Join(t.TempDir(), "vram.bin")
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	m, numTiles, err := vram.Extract(path, 0x200, tile.Bytes, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, numTiles)
	assert.Equal(t, 8, m.Bounds().Dx())
	assert.Equal(t, 8, m.Bounds().Dy())
}
