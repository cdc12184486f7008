/*
Package hal implements the HAL Laboratory LZ compression format used for
sprite graphics in several SNES titles.

A stream is a sequence of chunks, each introduced by a command byte. The
byte 0xFF terminates the stream. Otherwise the top three bits select the
command and the low five bits hold the chunk length minus one; command 7
is the long form, where bits 4-2 carry the real command and the length is
ten bits built from the low two bits and the following byte. Commands 0-3
consume input (literal run, byte RLE, word RLE, incrementing fill) while
commands 4-6 copy length bytes from an absolute big-endian position in
the output produced so far (forwards, with bit-reversed bytes, or walking
backwards).
*/
package hal

import "errors"

// MaxOutput caps decompressed output. Nothing on the SNES decompresses
// past the 64KiB VRAM.
const MaxOutput = 64 << 10

const (
	cmdLiteral = iota
	cmdRLE8
	cmdRLE16
	cmdIncrement
	cmdCopy
	cmdCopyReversed
	cmdCopyBackwards
	cmdLong
)

const (
	terminator  = 0xff
	maxChunkLen = 1 << 10
)

var (
	// ErrTruncated is returned when the stream ends without a
	// terminator or a chunk runs off the input.
	ErrTruncated = errors.New("hal: truncated stream")

	// ErrBadCommand is returned for a long-form chunk nesting another
	// long form.
	ErrBadCommand = errors.New("hal: invalid command")

	// ErrBadReference is returned when a copy command references
	// output that does not exist yet.
	ErrBadReference = errors.New("hal: reference outside produced output")

	// ErrTooLarge is returned when decompression exceeds MaxOutput.
	ErrTooLarge = errors.New("hal: output exceeds 64KiB")

	// ErrOffsetRange is returned when the starting offset is outside
	// the input.
	ErrOffsetRange = errors.New("hal: offset out of range")
)

var bitReverse [256]byte

func init() {
	for i := range bitReverse {
		b := byte(i)
		b = b&0xf0>>4 | b&0x0f<<4
		b = b&0xcc>>2 | b&0x33<<2
		b = b&0xaa>>1 | b&0x55<<1
		bitReverse[i] = b
	}
}

// Decompress decodes the stream starting at offset within data and
// returns the output along with the number of input bytes consumed,
// terminator included.
func Decompress(data []byte, offset int) ([]byte, int, error) {
	if offset < 0 || offset >= len(data) {
		return nil, 0, ErrOffsetRange
	}

	out := make([]byte, 0, 1<<10)
	pos := offset

	for {
		if pos >= len(data) {
			return nil, 0, ErrTruncated
		}
		c := data[pos]
		pos++

		if c == terminator {
			return out, pos - offset, nil
		}

		cmd := int(c >> 5)
		length := int(c&0x1f) + 1
		if cmd == cmdLong {
			if pos >= len(data) {
				return nil, 0, ErrTruncated
			}
			cmd = int(c >> 2 & 0x07)
			if cmd == cmdLong {
				return nil, 0, ErrBadCommand
			}
			length = int(c&0x03)<<8 | int(data[pos])
			length++
			pos++
		}

		switch cmd {
		case cmdLiteral:
			if pos+length > len(data) {
				return nil, 0, ErrTruncated
			}
			out = append(out, data[pos:pos+length]...)
			pos += length

		case cmdRLE8:
			if pos >= len(data) {
				return nil, 0, ErrTruncated
			}
			b := data[pos]
			pos++
			for i := 0; i < length; i++ {
				out = append(out, b)
			}

		case cmdRLE16:
			if pos+2 > len(data) {
				return nil, 0, ErrTruncated
			}
			lo, hi := data[pos], data[pos+1]
			pos += 2
			for i := 0; i < length; i++ {
				out = append(out, lo, hi)
			}

		case cmdIncrement:
			if pos >= len(data) {
				return nil, 0, ErrTruncated
			}
			b := data[pos]
			pos++
			for i := 0; i < length; i++ {
				out = append(out, b+byte(i))
			}

		case cmdCopy, cmdCopyReversed, cmdCopyBackwards:
			if pos+2 > len(data) {
				return nil, 0, ErrTruncated
			}
			src := int(data[pos])<<8 | int(data[pos+1])
			pos += 2
			if src >= len(out) {
				return nil, 0, ErrBadReference
			}
			switch cmd {
			case cmdCopy:
				// Overlapping forward copies read bytes written
				// earlier in the same chunk.
				for i := 0; i < length; i++ {
					out = append(out, out[src+i])
				}
			case cmdCopyReversed:
				for i := 0; i < length; i++ {
					out = append(out, bitReverse[out[src+i]])
				}
			case cmdCopyBackwards:
				if src-length+1 < 0 {
					return nil, 0, ErrBadReference
				}
				for i := 0; i < length; i++ {
					out = append(out, out[src-i])
				}
			}
		}

		if len(out) > MaxOutput {
			return nil, 0, ErrTooLarge
		}
	}
}
