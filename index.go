package spritepal

import (
	"bytes"
	"context"
	"image"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spritepal/spritepal/hal"
	"github.com/spritepal/spritepal/scan"
	"github.com/spritepal/spritepal/similarity"
	"github.com/spritepal/spritepal/tile"
)

// IndexROM scans the ROM for sprites and fingerprints each find into
// the similarity index (and the backing database when one is
// configured). It returns the number of sprites indexed.
func (s *SpritePal) IndexROM(ctx context.Context, romPath string, start, end, workers int, progress func(current, total int)) (int, error) {
	finder := scan.NewParallelFinder(workers, s.logger)
	results, err := finder.Search(ctx, romPath, start, end, progress)
	if err != nil {
		return 0, err
	}

	rom, err := os.ReadFile(romPath)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, r := range results {
		data, _, err := hal.Decompress(rom, r.Offset)
		if err != nil {
			continue
		}
		numTiles := len(data) / tile.Bytes
		if numTiles == 0 {
			continue
		}

		m, err := tile.Decode(bytes.NewReader(data[:numTiles*tile.Bytes]), tile.DefaultTilesPerRow)
		if err != nil {
			continue
		}

		h := s.engine.Index(r.Offset, m, map[string]string{
			"rom":   filepath.Base(romPath),
			"tiles": strconv.Itoa(r.TileCount),
		})
		if s.db != nil {
			if err := s.db.Put(h, s.engine.HashSize); err != nil {
				return count, err
			}
		}
		count++
	}

	s.logger.Printf("indexed %d sprites from %q", count, romPath)
	return count, nil
}

// FindSimilarImage fingerprints the image at path and queries the
// index, loading it from the database first when one is configured.
func (s *SpritePal) FindSimilarImage(path string, maxResults int, threshold float64) ([]similarity.Match, error) {
	if s.db != nil {
		if err := s.engine.LoadFrom(s.db); err != nil {
			return nil, err
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}

	return s.engine.FindSimilar(s.engine.Hash(m), maxResults, threshold), nil
}
