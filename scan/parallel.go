package scan

import (
	"context"
	"io"
	"log"
	"math"
	"os"
	"sort"
	"sync"
	"sync/atomic"
)

const (
	// DefaultWorkers is the worker count used when none is configured.
	DefaultWorkers = 4

	// DefaultChunkSize is the span of ROM handed to one worker at a
	// time.
	DefaultChunkSize = 0x40000

	quickWindow   = 16
	densitySample = 0x4000
	densityStride = 0x100
)

// Result describes a sprite found by a parallel search.
type Result struct {
	Offset         int
	Size           int
	TileCount      int
	CompressedSize int
	Confidence     float64
}

// ParallelFinder searches chunks of a ROM concurrently. The ROM buffer
// is shared read-only between workers; each chunk is assigned to exactly
// one worker.
type ParallelFinder struct {
	Workers   int
	ChunkSize int
	Step      int

	// stepHint, when set, adjusts the chosen step for a chunk. Used by
	// AdaptiveFinder to bias toward learned alignments.
	stepHint func(start, step int) int

	logger *log.Logger
}

// NewParallelFinder returns a finder with the given worker count (0 for
// the default of 4).
func NewParallelFinder(workers int, logger *log.Logger) *ParallelFinder {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &ParallelFinder{
		Workers:   workers,
		ChunkSize: DefaultChunkSize,
		Step:      DefaultStep,
		logger:    logger,
	}
}

type chunk struct {
	start, end int
}

func makeChunks(start, end, size int) []chunk {
	var chunks []chunk
	for offset := start; offset < end; offset += size {
		chunkEnd := offset + size
		if chunkEnd > end {
			chunkEnd = end
		}
		chunks = append(chunks, chunk{start: offset, end: chunkEnd})
	}
	return chunks
}

// Search scans [start, end) of the ROM, 0 for end meaning the whole
// file. Cancellation through ctx is cooperative, checked between
// candidate offsets; a cancelled search returns whatever results were
// committed, with no error. progress, when non-nil, is called from
// worker goroutines with (completed·100/total, 100) after each chunk.
func (f *ParallelFinder) Search(ctx context.Context, romPath string, start, end int, progress func(current, total int)) ([]Result, error) {
	rom, err := os.ReadFile(romPath)
	if err != nil {
		return nil, err
	}

	if end <= 0 || end > len(rom) {
		end = len(rom)
	}
	if start < 0 {
		start = 0
	}

	chunkSize := f.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	chunks := makeChunks(start, end, chunkSize)
	total := len(chunks)
	if total == 0 {
		return nil, nil
	}

	f.logger.Printf("parallel search: 0x%X-0x%X, %d chunks, %d workers", start, end, total, f.Workers)

	in := make(chan chunk)
	out := make(chan []Result, total)

	go func() {
		defer close(in)
		for _, c := range chunks {
			select {
			case in <- c:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	var completed int32
	for i := 0; i < f.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range in {
				out <- f.searchChunk(ctx, rom, c)
				if progress != nil {
					n := atomic.AddInt32(&completed, 1)
					progress(int(n)*100/total, 100)
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	var all []Result
	for results := range out {
		all = append(all, results...)
	}

	// Chunk completion order says nothing about offsets.
	sort.Slice(all, func(i, j int) bool { return all[i].Offset < all[j].Offset })

	return all, nil
}

func (f *ParallelFinder) searchChunk(ctx context.Context, rom []byte, c chunk) []Result {
	step := adaptiveStep(rom, c, f.step())
	if f.stepHint != nil {
		step = f.stepHint(c.start, step)
	}

	var results []Result
	for offset := c.start; offset < c.end; {
		select {
		case <-ctx.Done():
			return results
		default:
		}

		if offset+minSpriteBytes > len(rom) {
			break
		}
		if !quickCheck(rom, offset) {
			offset += step
			continue
		}

		candidate, ok := tryOffset(rom, offset)
		if !ok {
			offset += step
			continue
		}

		results = append(results, Result{
			Offset:         candidate.Offset,
			Size:           candidate.DecompressedSize,
			TileCount:      candidate.TileCount,
			CompressedSize: candidate.CompressedSize,
			Confidence:     confidence(candidate),
		})

		// Skip past the sprite rather than rescanning its interior.
		skip := candidate.CompressedSize
		if skip < f.step() {
			skip = f.step()
		}
		offset += skip
	}

	return results
}

func (f *ParallelFinder) step() int {
	if f.Step <= 0 {
		return DefaultStep
	}
	return f.Step
}

// quickCheck rejects windows that cannot open sprite data, avoiding the
// expensive decompression attempt: constant fill and near-constant byte
// mixes.
func quickCheck(rom []byte, offset int) bool {
	if offset+quickWindow > len(rom) {
		return false
	}
	window := rom[offset : offset+quickWindow]

	var seen [256]bool
	distinct := 0
	for _, b := range window {
		if !seen[b] {
			seen[b] = true
			distinct++
		}
	}
	if distinct < 3 {
		return false
	}
	return true
}

// adaptiveStep shrinks the stride in chunks dense with sprite-like
// windows and grows it across sparse ones.
func adaptiveStep(rom []byte, c chunk, step int) int {
	sample := c.end - c.start
	if sample > densitySample {
		sample = densitySample
	}

	hits := 0
	for i := 0; i+quickWindow < sample; i += densityStride {
		if quickCheck(rom, c.start+i) {
			hits++
		}
	}

	density := float64(hits) / (float64(sample) / 1024)
	switch {
	case density > 0.5:
		return maxInt(0x40, step/4)
	case density > 0.1:
		return maxInt(0x80, step/2)
	case density < 0.01:
		return minInt(0x1000, step*4)
	}
	return step
}

func confidence(c Candidate) float64 {
	var score float64

	if c.DecompressedSize >= minSpriteBytes && c.DecompressedSize <= maxSpriteBytes {
		score += 0.3
	}
	if c.DecompressedSize > 0 {
		ratio := float64(c.CompressedSize) / float64(c.DecompressedSize)
		if ratio >= 0.1 && ratio <= 0.7 {
			score += 0.2
		}
	}
	if c.TileCount >= 4 && c.TileCount <= typicalMax {
		score += 0.2
	}
	if c.Quality >= QualityThreshold {
		score += 0.3
	}

	return math.Min(score, 1)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
