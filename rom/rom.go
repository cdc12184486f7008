/*
Package rom identifies SNES ROM dumps from their internal header.
*/
package rom

import (
	"errors"
	"hash/crc32"
	"io"
	"os"
	"strings"
)

// Mapping is the cartridge memory mapping mode.
type Mapping int

const (
	LoROM Mapping = iota
	HiROM
)

func (m Mapping) String() string {
	if m == HiROM {
		return "HiROM"
	}
	return "LoROM"
}

const (
	loROMHeader = 0x7fc0
	hiROMHeader = 0xffc0

	titleLength  = 21
	headerLength = 32

	// Dumps from copier devices carry a 512 byte header before the
	// ROM proper.
	copierHeader = 512
)

// ErrNoHeader is returned when neither header location holds a
// consistent checksum pair.
var ErrNoHeader = errors.New("rom: no valid SNES header")

// Header is the internal cartridge header.
type Header struct {
	Title      string
	Mapping    Mapping
	Checksum   uint16
	Complement uint16
}

func parseHeader(buf []byte, offset int, mapping Mapping) (*Header, bool) {
	if offset+headerLength > len(buf) {
		return nil, false
	}
	h := buf[offset : offset+headerLength]

	complement := uint16(h[0x1c]) | uint16(h[0x1d])<<8
	checksum := uint16(h[0x1e]) | uint16(h[0x1f])<<8
	if checksum^complement != 0xffff {
		return nil, false
	}

	title := strings.TrimRight(string(h[:titleLength]), " \x00")
	for _, r := range title {
		if r < 0x20 || r > 0x7e {
			return nil, false
		}
	}

	return &Header{
		Title:      title,
		Mapping:    mapping,
		Checksum:   checksum,
		Complement: complement,
	}, true
}

// ReadHeader locates and parses the internal header of the ROM at path,
// skipping any copier header and probing both the LoROM and HiROM
// locations.
func ReadHeader(path string) (*Header, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if len(buf)%1024 == copierHeader {
		buf = buf[copierHeader:]
	}

	// HiROM first; its header location does not exist in small LoROM
	// images, and a LoROM image rarely has a consistent checksum pair
	// at the HiROM location.
	if h, ok := parseHeader(buf, hiROMHeader, HiROM); ok {
		return h, nil
	}
	if h, ok := parseHeader(buf, loROMHeader, LoROM); ok {
		return h, nil
	}

	return nil, ErrNoHeader
}

// CRC32 returns the IEEE CRC-32 of the ROM at path, skipping any copier
// header so dumps of the same cartridge hash alike.
func CRC32(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	if info.Size()%1024 == copierHeader {
		if _, err = f.Seek(copierHeader, io.SeekStart); err != nil {
			return 0, err
		}
	}

	h := crc32.NewIEEE()
	if _, err = io.Copy(h, f); err != nil {
		return 0, err
	}

	return h.Sum32(), nil
}
