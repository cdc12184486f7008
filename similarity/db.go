package similarity

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB persists sprite hashes between sessions.
type DB struct {
	db *sql.DB
}

// OpenDB opens (creating if necessary) the hash database at file.
func OpenDB(file string) (*DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_foreign_keys=on", file))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS sprite_hash (offset INTEGER PRIMARY KEY NOT NULL, hash_size INTEGER NOT NULL, phash BLOB NOT NULL, dhash BLOB NOT NULL, histogram BLOB NOT NULL, metadata TEXT)"); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db: db}, nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Put stores or replaces the hash for its offset.
func (d *DB) Put(h *SpriteHash, hashSize int) error {
	hist := new(bytes.Buffer)
	if err := binary.Write(hist, binary.LittleEndian, h.Histogram); err != nil {
		return err
	}

	meta, err := json.Marshal(h.Meta)
	if err != nil {
		return err
	}

	_, err = d.db.Exec("INSERT OR REPLACE INTO sprite_hash (offset, hash_size, phash, dhash, histogram, metadata) VALUES (?, ?, ?, ?, ?, ?)",
		h.Offset, hashSize, h.PHash, h.DHash, hist.Bytes(), string(meta))
	return err
}

// Load returns every stored hash whose hash size matches.
func (d *DB) Load(hashSize int) ([]*SpriteHash, error) {
	rows, err := d.db.Query("SELECT offset, phash, dhash, histogram, metadata FROM sprite_hash WHERE hash_size = ? ORDER BY offset", hashSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hashes []*SpriteHash
	for rows.Next() {
		var (
			h          SpriteHash
			histogram  []byte
			metaString sql.NullString
		)
		if err := rows.Scan(&h.Offset, &h.PHash, &h.DHash, &histogram, &metaString); err != nil {
			return nil, err
		}

		h.Histogram = make([]float64, len(histogram)/8)
		if err := binary.Read(bytes.NewReader(histogram), binary.LittleEndian, &h.Histogram); err != nil {
			return nil, err
		}

		if metaString.Valid && metaString.String != "" {
			if err := json.Unmarshal([]byte(metaString.String), &h.Meta); err != nil {
				return nil, err
			}
		}

		hashes = append(hashes, &h)
	}
	return hashes, rows.Err()
}

// SaveTo writes the engine's index into db.
func (e *Engine) SaveTo(db *DB) error {
	for _, h := range e.Hashes() {
		if err := db.Put(h, e.HashSize); err != nil {
			return err
		}
	}
	return nil
}

// LoadFrom replaces the engine's index with the contents of db.
func (e *Engine) LoadFrom(db *DB) error {
	hashes, err := db.Load(e.HashSize)
	if err != nil {
		return err
	}
	e.sprites = make(map[int]*SpriteHash, len(hashes))
	for _, h := range hashes {
		e.sprites[h.Offset] = h
	}
	return nil
}
