/*
Package vram applies encoded tile data to raw VRAM and ROM dumps.

Dumps are flat byte buffers with no header; offsets are plain byte
indices. Injection never modifies the input file: the patched buffer is
always written whole to a separate output path, and no output file is
created when validation fails.
*/
package vram

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/spritepal/spritepal/tile"
)

// MaxDumpSize is the largest dump Inject will touch. SNES VRAM is 64KiB;
// anything past this is not a VRAM dump.
const MaxDumpSize = 512 << 10

var (
	// ErrOffsetRange is returned when the write would fall outside the
	// dump.
	ErrOffsetRange = errors.New("vram: offset out of range")

	// ErrDumpTooLarge is returned for input files above MaxDumpSize.
	ErrDumpTooLarge = errors.New("vram: dump too large")

	// ErrNoTiles is returned by Extract when the requested range holds
	// no complete tile.
	ErrNoTiles = errors.New("vram: no complete tiles in range")
)

// Inject overwrites the dump at vramPath with tileData at the byte
// offset and writes the result to outputPath. The output is the same
// length as the input with only the target range replaced.
func Inject(tileData []byte, vramPath string, offset int64, outputPath string) error {
	if offset < 0 {
		return fmt.Errorf("%w: negative offset %d", ErrOffsetRange, offset)
	}

	buf, err := os.ReadFile(vramPath)
	if err != nil {
		return err
	}
	if len(buf) > MaxDumpSize {
		return fmt.Errorf("%w: %d bytes", ErrDumpTooLarge, len(buf))
	}
	// Compare by subtraction so huge offsets cannot overflow the sum.
	if offset > int64(len(buf))-int64(len(tileData)) {
		return fmt.Errorf("%w: %d bytes at 0x%X exceed dump size 0x%X",
			ErrOffsetRange, len(tileData), offset, len(buf))
	}

	out := make([]byte, len(buf))
	copy(out, buf)
	copy(out[offset:], tileData)

	return os.WriteFile(outputPath, out, 0o644)
}

// ReadTiles returns up to size bytes of tile data at offset, trimmed to
// whole tiles, and the number of whole tiles covered.
func ReadTiles(vramPath string, offset int64, size int) ([]byte, int, error) {
	if offset < 0 {
		return nil, 0, fmt.Errorf("%w: negative offset %d", ErrOffsetRange, offset)
	}

	buf, err := os.ReadFile(vramPath)
	if err != nil {
		return nil, 0, err
	}
	if offset >= int64(len(buf)) {
		return nil, 0, fmt.Errorf("%w: 0x%X past end of dump 0x%X", ErrOffsetRange, offset, len(buf))
	}

	n := int64(size)
	if n < 0 {
		n = 0
	}
	if rem := int64(len(buf)) - offset; n > rem {
		n = rem
	}

	numTiles := int(n) / tile.Bytes
	if numTiles == 0 {
		return nil, 0, ErrNoTiles
	}
	return buf[offset : offset+int64(numTiles*tile.Bytes)], numTiles, nil
}

// Extract decodes up to size bytes of tile data at offset into a
// preview image, returning the image and the number of whole tiles
// decoded.
func Extract(vramPath string, offset int64, size, tilesPerRow int) (image.Image, int, error) {
	data, numTiles, err := ReadTiles(vramPath, offset, size)
	if err != nil {
		return nil, 0, err
	}

	m, err := tile.Decode(bytes.NewReader(data), tilesPerRow)
	if err != nil {
		return nil, 0, err
	}
	return m, numTiles, nil
}
