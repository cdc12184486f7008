package scan

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"github.com/spritepal/spritepal/hal"
	"github.com/spritepal/spritepal/tile"
)

const (
	// DefaultStep is the offset stride for coarse scans.
	DefaultStep = 0x100

	// FineStep is the stride used when refining around a known offset.
	FineStep = 0x10

	// DefaultSearchRange bounds refinement scans around a center
	// offset.
	DefaultSearchRange = 0x1000

	maxBestOffsets = 5
)

// Candidate describes a location where decompression produced plausible
// sprite data.
type Candidate struct {
	Offset           int
	CompressedSize   int
	DecompressedSize int
	TileCount        int
	Quality          float64
}

func (c Candidate) String() string {
	return fmt.Sprintf("0x%06X: %d tiles, %d bytes, quality %.2f",
		c.Offset, c.TileCount, c.DecompressedSize, c.Quality)
}

// Scanner performs linear sprite scans over ROM dumps.
type Scanner struct {
	logger *log.Logger
}

// NewScanner returns a Scanner logging to logger, or silent when logger
// is nil.
func NewScanner(logger *log.Logger) *Scanner {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Scanner{logger: logger}
}

// ScanForSprites tries every step'th offset in [start, end), clamped to
// the ROM size, and returns candidates sorted by quality, best first and
// ties in scan order. Whole-file problems (missing or empty ROM) yield
// an empty result, not an error.
func (s *Scanner) ScanForSprites(romPath string, start, end, step int) []Candidate {
	rom, err := os.ReadFile(romPath)
	if err != nil {
		s.logger.Printf("cannot read ROM %q: %v", romPath, err)
		return nil
	}
	if len(rom) == 0 {
		return nil
	}

	if step <= 0 {
		step = DefaultStep
	}
	if start < 0 {
		start = 0
	}
	if end > len(rom) {
		s.logger.Printf("end offset 0x%X past ROM size, clamping to 0x%X", end, len(rom))
		end = len(rom)
	}

	var found []Candidate
	for offset := start; offset < end; offset += step {
		if c, ok := tryOffset(rom, offset); ok {
			s.logger.Printf("sprite candidate at 0x%X: %d tiles, %d bytes compressed, quality %.2f",
				c.Offset, c.TileCount, c.CompressedSize, c.Quality)
			found = append(found, c)
		}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].Quality > found[j].Quality })
	return found
}

// tryOffset attempts decompression at offset. Failure just means there
// is no sprite here.
func tryOffset(rom []byte, offset int) (Candidate, bool) {
	out, compressed, err := hal.Decompress(rom, offset)
	if err != nil || len(out) == 0 {
		return Candidate{}, false
	}

	numTiles := len(out) / tile.Bytes
	if len(out)%tile.Bytes > maxMisalignment || numTiles < minTiles {
		return Candidate{}, false
	}

	return Candidate{
		Offset:           offset,
		CompressedSize:   compressed,
		DecompressedSize: len(out),
		TileCount:        numTiles,
		// Ragged tails within the tolerance are trimmed for scoring.
		Quality: AssessQuality(out[:numTiles*tile.Bytes]),
	}, true
}

// FindBestOffsets scans around center at fine step and returns at most
// five offsets whose quality reaches QualityThreshold, best first.
func (s *Scanner) FindBestOffsets(romPath string, center, searchRange int) []int {
	if searchRange <= 0 {
		searchRange = DefaultSearchRange
	}

	start := center - searchRange
	if start < 0 {
		start = 0
	}

	var best []int
	for _, c := range s.ScanForSprites(romPath, start, center+searchRange, FineStep) {
		if c.Quality >= QualityThreshold {
			best = append(best, c.Offset)
		}
		if len(best) == maxBestOffsets {
			break
		}
	}
	return best
}
