package rom_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spritepal/spritepal/rom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildROM assembles a minimal image with a consistent checksum pair at
// the requested header location.
func buildROM(t *testing.T, size, headerOffset int, title string, checksum uint16) []byte {
	t.Helper()

	buf := make([]byte, size)
	copy(buf[headerOffset:], title)
	for i := len(title); i < 21; i++ {
		buf[headerOffset+i] = ' '
	}

	complement := checksum ^ 0xffff
	buf[headerOffset+0x1c] = byte(complement)
	buf[headerOffset+0x1d] = byte(complement >> 8)
	buf[headerOffset+0x1e] = byte(checksum)
	buf[headerOffset+0x1f] = byte(checksum >> 8)

	return buf
}

func writeFile(t *testing.T, buf []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.sfc")
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

func TestReadHeaderLoROM(t *testing.T) {
	t.Parallel()

	path := writeFile(t, buildROM(t, 1<<19, 0x7fc0, "SUPER TEST", 0x1234))

	h, err := rom.ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, "SUPER TEST", h.Title)
	assert.Equal(t, rom.LoROM, h.Mapping)
	assert.Equal(t, uint16(0x1234), h.Checksum)
	assert.Equal(t, uint16(0xedcb), h.Complement)
}

func TestReadHeaderHiROM(t *testing.T) {
	t.Parallel()

	path := writeFile(t, buildROM(t, 1<<20, 0xffc0, "HIROM GAME", 0xbeef))

	h, err := rom.ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, "HIROM GAME", h.Title)
	assert.Equal(t, rom.HiROM, h.Mapping)
}

func TestReadHeaderCopierHeader(t *testing.T) {
	t.Parallel()

	buf := buildROM(t, 1<<19, 0x7fc0, "COPIED", 0x00ff)
	path := writeFile(t, append(make([]byte, 512), buf...))

	h, err := rom.ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, "COPIED", h.Title)
}

func TestReadHeaderInvalid(t *testing.T) {
	t.Parallel()

	path := writeFile(t, make([]byte, 1<<19))

	_, err := rom.ReadHeader(path)
	assert.ErrorIs(t, err, rom.ErrNoHeader)
}

func TestReadHeaderTooSmall(t *testing.T) {
	t.Parallel()

	path := writeFile(t, make([]byte, 0x1000))

	_, err := rom.ReadHeader(path)
	assert.ErrorIs(t, err, rom.ErrNoHeader)
}

func TestMappingString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "LoROM", rom.LoROM.String())
	assert.Equal(t, "HiROM", rom.HiROM.String())
}

func TestCRC32(t *testing.T) {
	t.Parallel()

	path := writeFile(t, []byte("123456789"))

	crc, err := rom.CRC32(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xcbf43926), crc)
}

func TestCRC32SkipsCopierHeader(t *testing.T) {
	t.Parallel()

	body := make([]byte, 1<<19)
	for i := range body {
		body[i] = byte(i)
	}

	bare := writeFile(t, body)
	copied := writeFile(t, append(make([]byte, 512), body...))

	a, err := rom.CRC32(bare)
	require.NoError(t, err)
	b, err := rom.CRC32(copied)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
