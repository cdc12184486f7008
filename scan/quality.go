/*
Package scan locates sprite data in ROM dumps.

Candidate offsets are tried with the HAL decompressor and the resulting
buffers scored with a composite heuristic: size and tile alignment,
Shannon entropy, per-tile bitplane structure, and repetition patterns
typical of tiled graphics. Absence of a sprite at an offset is an
expected outcome, never an error.
*/
package scan

import (
	"bytes"
	"math"

	"github.com/spritepal/spritepal/tile"
)

const (
	// QualityThreshold separates candidates worth surfacing from
	// noise.
	QualityThreshold = 0.5

	maxSpriteBytes  = 64 << 10
	minSpriteBytes  = minTiles * tile.Bytes
	maxMisalignment = tile.Bytes / 4

	minTiles   = 16
	typicalMin = 64
	typicalMax = 512
	largeMax   = 1024

	entropySample = 1 << 10
	tileSample    = 16
	patternSample = 1 << 10

	embeddedMin    = 16 << 10
	embeddedWindow = 8 << 10
)

var embeddedOffsets = []int{512, 1024, 2048, 4096}

// AssessQuality estimates how likely data is to be decompressed 4bpp
// sprite graphics, from 0 (certainly not) to 1. Empty input, input past
// 64KiB and input that is not a whole number of tiles score exactly 0;
// callers with a ragged tail trim it first.
func AssessQuality(data []byte) float64 {
	return assess(data, true)
}

func assess(data []byte, checkEmbedded bool) float64 {
	size := len(data)
	if size == 0 || size > maxSpriteBytes || size%tile.Bytes != 0 {
		return 0
	}

	score := 0.2

	numTiles := size / tile.Bytes
	switch {
	case numTiles >= typicalMin && numTiles <= typicalMax:
		score += 0.2
	case numTiles >= minTiles && numTiles < typicalMin,
		numTiles > typicalMax && numTiles <= largeMax:
		score += 0.1
	case numTiles < minTiles:
		score *= 0.5
	default:
		return 0
	}

	sample := size
	if sample > entropySample {
		sample = entropySample
	}
	switch e := entropy(data[:sample]); {
	case e >= 2 && e <= 6:
		// Graphics sit between constant fill and random noise.
		score += 0.2
	case e < 1 || e > 7:
		score *= 0.5
	}

	checked := numTiles
	if checked > tileSample {
		checked = tileSample
	}
	if checked > 0 {
		valid := 0
		for i := 0; i < checked; i++ {
			if validTile(data[i*tile.Bytes : (i+1)*tile.Bytes]) {
				valid++
			}
		}
		switch ratio := float64(valid) / float64(checked); {
		case ratio >= 0.8:
			score += 0.3
		case ratio >= 0.5:
			score += 0.15
		case ratio < 0.3:
			score *= 0.5
		}
	}

	if hasGraphicsPatterns(data) {
		score += 0.1
	}

	// PAL releases pad sprite banks; a weak direct score can hide a
	// good sprite a few hundred bytes in.
	if checkEmbedded && score < QualityThreshold && size > embeddedMin {
		for _, off := range embeddedOffsets {
			if off+embeddedWindow <= size {
				if s := assess(data[off:off+embeddedWindow], false); s > score {
					return s
				}
			}
		}
	}

	return math.Min(score, 1)
}

// entropy returns the Shannon entropy of data in bits per byte: 0 for
// constant fill, approaching 8 for uniform noise.
func entropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}

	var counts [256]int
	for _, b := range data {
		counts[b]++
	}

	var e float64
	n := float64(len(data))
	for _, c := range counts {
		if c > 0 {
			p := float64(c) / n
			e -= p * math.Log2(p)
		}
	}
	return e
}

// validTile reports whether a 32 byte tile looks like real 4bpp
// graphics rather than flat fill or unstructured bytes.
func validTile(t []byte) bool {
	if len(t) != tile.Bytes {
		return false
	}
	if bytes.Equal(t, bytes.Repeat([]byte{0x00}, tile.Bytes)) ||
		bytes.Equal(t, bytes.Repeat([]byte{0xff}, tile.Bytes)) {
		return false
	}

	planeValidity := 0
	if zeros, ones := countFill(t[:16]); zeros < 15 && ones < 15 {
		planeValidity++
	}
	if zeros, ones := countFill(t[16:]); zeros < 15 && ones < 15 {
		planeValidity++
	}

	// Bitplanes of real sprites correlate row to row.
	correlation := 0
	for y := 0; y < tile.Height; y++ {
		p0, p1 := t[y*2], t[y*2+1]
		p2, p3 := t[16+y*2], t[16+y*2+1]
		if p0&p2 != 0 || p1&p3 != 0 {
			correlation++
		}
	}

	return planeValidity >= 1 && correlation >= 2
}

func countFill(plane []byte) (zeros, ones int) {
	for _, b := range plane {
		switch b {
		case 0x00:
			zeros++
		case 0xff:
			ones++
		}
	}
	return
}

// hasGraphicsPatterns looks for the partial similarity between adjacent
// tiles that tiled sprite sheets show.
func hasGraphicsPatterns(data []byte) bool {
	if len(data) < 2*tile.Bytes {
		return false
	}

	end := len(data) - 2*tile.Bytes
	if end > patternSample {
		end = patternSample
	}

	matches := 0
	for i := 0; i <= end; i += tile.Bytes {
		similar := 0
		for j := 0; j < tile.Bytes; j++ {
			if data[i+j] == data[i+tile.Bytes+j] {
				similar++
			}
		}
		// Similar but not identical
		if similar >= 4 && similar <= 28 {
			matches++
		}
	}

	return matches >= 2
}
