package scan

import (
	"context"
	"log"
	"sync"
)

const (
	alignmentMask = 0xff00

	adaptiveMinStep = 0x10
	adaptiveMaxStep = 0x2000

	learnConfidence = 0.8
)

type signature struct {
	size       int
	tiles      int
	confidence float64
}

// AdaptiveFinder extends ParallelFinder with pattern learning: the
// alignment regions of confident finds bias the step size of later
// searches toward finer scanning.
type AdaptiveFinder struct {
	*ParallelFinder

	// LearningEnabled turns Learn into a no-op when false.
	LearningEnabled bool

	mu         sync.Mutex
	alignments map[int]struct{}
	patterns   map[int]signature
}

// NewAdaptiveFinder returns an AdaptiveFinder with learning enabled.
func NewAdaptiveFinder(workers int, logger *log.Logger) *AdaptiveFinder {
	f := &AdaptiveFinder{
		ParallelFinder:  NewParallelFinder(workers, logger),
		LearningEnabled: true,
		alignments:      make(map[int]struct{}),
		patterns:        make(map[int]signature),
	}
	f.stepHint = f.biasStep
	return f
}

// Search runs the parallel search and feeds the results back into the
// learned patterns.
func (f *AdaptiveFinder) Search(ctx context.Context, romPath string, start, end int, progress func(current, total int)) ([]Result, error) {
	results, err := f.ParallelFinder.Search(ctx, romPath, start, end, progress)
	if err == nil {
		f.Learn(results)
	}
	return results, err
}

// Learn records alignment patterns and signatures from results. Only
// finds with confidence above 0.8 contribute signatures.
func (f *AdaptiveFinder) Learn(results []Result) {
	if !f.LearningEnabled {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, r := range results {
		f.alignments[r.Offset&alignmentMask] = struct{}{}
		if r.Confidence > learnConfidence {
			f.patterns[r.Offset] = signature{
				size:       r.Size,
				tiles:      r.TileCount,
				confidence: r.Confidence,
			}
		}
	}

	f.logger.Printf("learned from %d results, %d patterns total", len(results), len(f.patterns))
}

// KnownAlignment reports whether the alignment region of offset has
// produced sprites before.
func (f *AdaptiveFinder) KnownAlignment(offset int) bool {
	if !f.LearningEnabled {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.alignments[offset&alignmentMask]
	return ok
}

// PatternCount returns the number of learned high-confidence
// signatures.
func (f *AdaptiveFinder) PatternCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.patterns)
}

// biasStep tightens the step inside alignment regions that held sprites
// before and keeps it within the adaptive bounds otherwise.
func (f *AdaptiveFinder) biasStep(start, step int) int {
	if f.KnownAlignment(start) {
		step /= 2
	}
	if step < adaptiveMinStep {
		step = adaptiveMinStep
	}
	if step > adaptiveMaxStep {
		step = adaptiveMaxStep
	}
	return step
}
