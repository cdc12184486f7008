/*
Package similarity finds visually similar sprites with perceptual
hashing.

Each indexed sprite gets a perceptual hash (structure bits, stable under
recoloring), a difference hash (horizontal gradient bits, stable under
small distortions) and a normalized color histogram. Scores combine
Hamming distance over the bit vectors with histogram intersection.
*/
package similarity

import (
	"image"
	"image/color"
	"sort"

	"github.com/nfnt/resize"
)

const (
	// DefaultHashSize produces 64-bit-equivalent hash vectors.
	DefaultHashSize = 8

	histogramBins     = 16
	histogramChannels = 4 // R, G, B, luminance

	phashWeight = 0.45
	dhashWeight = 0.25
	histWeight  = 0.30
)

// SpriteHash holds the fingerprints of one indexed sprite. It is
// immutable after creation.
type SpriteHash struct {
	Offset    int
	PHash     []uint8
	DHash     []uint8
	Histogram []float64
	Meta      map[string]string
}

// Match is the result of comparing a query against one indexed sprite.
type Match struct {
	Offset       int
	Score        float64
	HashDistance int
	Meta         map[string]string
}

// Engine indexes sprites and answers similarity queries. Sources of any
// size normalize to the same hash resolution, so vector lengths are
// constant.
type Engine struct {
	HashSize int

	sprites map[int]*SpriteHash
}

// NewEngine returns an Engine with the given hash size (0 for the
// default of 8).
func NewEngine(hashSize int) *Engine {
	if hashSize <= 0 {
		hashSize = DefaultHashSize
	}
	return &Engine{
		HashSize: hashSize,
		sprites:  make(map[int]*SpriteHash),
	}
}

// Len returns the number of indexed sprites.
func (e *Engine) Len() int {
	return len(e.sprites)
}

// Index fingerprints m and stores it under the given ROM offset.
func (e *Engine) Index(offset int, m image.Image, meta map[string]string) *SpriteHash {
	h := e.Hash(m)
	h.Offset = offset
	h.Meta = meta
	e.sprites[offset] = h
	return h
}

// Hash fingerprints m without storing it, for use as a query.
func (e *Engine) Hash(m image.Image) *SpriteHash {
	return &SpriteHash{
		Offset:    -1,
		PHash:     e.phash(m),
		DHash:     e.dhash(m),
		Histogram: histogram(m),
	}
}

// Add stores a previously computed hash, e.g. one loaded from the
// database.
func (e *Engine) Add(h *SpriteHash) {
	e.sprites[h.Offset] = h
}

// Hashes returns the stored hashes in offset order.
func (e *Engine) Hashes() []*SpriteHash {
	out := make([]*SpriteHash, 0, len(e.sprites))
	for _, h := range e.sprites {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// FindSimilar returns every indexed sprite scoring at least threshold
// against target, best first, capped at maxResults. Self-comparison by
// offset is skipped. An empty index yields an empty result.
func (e *Engine) FindSimilar(target *SpriteHash, maxResults int, threshold float64) []Match {
	var matches []Match
	for offset, h := range e.sprites {
		if offset == target.Offset {
			continue
		}
		if score := Score(target, h); score >= threshold {
			matches = append(matches, Match{
				Offset:       offset,
				Score:        score,
				HashDistance: hamming(target.PHash, h.PHash),
				Meta:         h.Meta,
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if maxResults > 0 && len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches
}

// FindSimilarTo queries by the offset of an already indexed sprite.
func (e *Engine) FindSimilarTo(offset, maxResults int, threshold float64) ([]Match, bool) {
	h, ok := e.sprites[offset]
	if !ok {
		return nil, false
	}
	return e.FindSimilar(h, maxResults, threshold), true
}

// Score combines the hash and histogram similarities of two sprites
// into a value in [0, 1]. Bit-identical sprites score 1. Two flat
// images carry no structure for the bit vectors to measure, so solid
// fills are scored on color distribution alone.
func Score(a, b *SpriteHash) float64 {
	if flat(a.PHash) && flat(b.PHash) {
		return intersection(a.Histogram, b.Histogram)
	}

	phashSim := 1 - float64(hamming(a.PHash, b.PHash))/float64(len(a.PHash))
	dhashSim := 1 - float64(hamming(a.DHash, b.DHash))/float64(len(a.DHash))
	histSim := intersection(a.Histogram, b.Histogram)

	score := phashWeight*phashSim + dhashWeight*dhashSim + histWeight*histSim
	if score > 1 {
		score = 1
	}
	return score
}

// flat reports whether every hash bit agrees. After resampling against
// the per-image mean this happens only for single-valued images.
func flat(bits []uint8) bool {
	for _, v := range bits {
		if v != bits[0] {
			return false
		}
	}
	return len(bits) > 0
}

func hamming(a, b []uint8) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	d := 0
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			d++
		}
	}
	if len(a) != len(b) {
		d += len(a) + len(b) - 2*n
	}
	return d
}

func intersection(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		if a[i] < b[i] {
			sum += a[i]
		} else {
			sum += b[i]
		}
	}
	if sum > 1 {
		sum = 1
	}
	return sum
}

// phash resamples the grayscale image to HashSize² and emits one bit
// per pixel against the mean. A flat image falls back to an absolute
// mid-level threshold so dark and light fills land on opposite hashes.
func (e *Engine) phash(m image.Image) []uint8 {
	px := grayPixels(resize.Resize(uint(e.HashSize), uint(e.HashSize), grayscale(m), resize.Lanczos3))

	var sum int
	lo, hi := px[0], px[0]
	for _, v := range px {
		sum += int(v)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	mean := float64(sum) / float64(len(px))

	bits := make([]uint8, len(px))
	for i, v := range px {
		if lo == hi {
			if v >= 0x80 {
				bits[i] = 1
			}
		} else if float64(v) > mean {
			bits[i] = 1
		}
	}
	return bits
}

// dhash resamples to (HashSize+1)×HashSize and emits horizontal
// gradient bits.
func (e *Engine) dhash(m image.Image) []uint8 {
	w, h := e.HashSize+1, e.HashSize
	px := grayPixels(resize.Resize(uint(w), uint(h), grayscale(m), resize.Lanczos3))

	bits := make([]uint8, e.HashSize*e.HashSize)
	for y := 0; y < h; y++ {
		for x := 0; x < w-1; x++ {
			if px[y*w+x+1] > px[y*w+x] {
				bits[y*e.HashSize+x] = 1
			}
		}
	}
	return bits
}

func grayscale(m image.Image) *image.Gray {
	b := m.Bounds()
	g := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g.Set(x, y, m.At(x, y))
		}
	}
	return g
}

func grayPixels(m image.Image) []uint8 {
	b := m.Bounds()
	px := make([]uint8, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			px = append(px, color.GrayModel.Convert(m.At(x, y)).(color.Gray).Y)
		}
	}
	return px
}

// histogram bins R, G, B and luminance into 16 bins each, normalized so
// the whole vector sums to 1.
func histogram(m image.Image) []float64 {
	hist := make([]float64, histogramBins*histogramChannels)

	b := m.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := m.At(x, y)
			r, g, bl, _ := c.RGBA()
			hist[bin(r)]++
			hist[histogramBins+bin(g)]++
			hist[2*histogramBins+bin(bl)]++
			lum := color.GrayModel.Convert(c).(color.Gray).Y
			hist[3*histogramBins+int(lum)>>4]++
		}
	}

	var sum float64
	for _, v := range hist {
		sum += v
	}
	if sum > 0 {
		for i := range hist {
			hist[i] /= sum
		}
	}
	return hist
}

func bin(v uint32) int {
	return int(v >> 8 >> 4)
}
