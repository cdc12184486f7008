/*
Package spritepal is a library for extracting, editing and re-injecting
SNES 4bpp sprite graphics in ROM and VRAM dumps.
*/
package spritepal

import (
	"io"
	"log"

	"github.com/spritepal/spritepal/similarity"
)

// SpritePal ties together the similarity index and its backing
// database.
type SpritePal struct {
	engine *similarity.Engine
	db     *similarity.DB
	logger *log.Logger
}

// New returns a SpritePal backed by db, which may be nil when no
// persistent index is needed. A nil logger silences logging.
func New(db *similarity.DB, logger *log.Logger) *SpritePal {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &SpritePal{
		engine: similarity.NewEngine(similarity.DefaultHashSize),
		db:     db,
		logger: logger,
	}
}

// Engine exposes the similarity index.
func (s *SpritePal) Engine() *similarity.Engine {
	return s.engine
}
