package hal

import "bytes"

const (
	minRunLen   = 3
	minPairLen  = 2 // repetitions of the word, covering 4 bytes
	minMatchLen = 4
	matchWindow = 8 << 10
)

// appendChunk writes a command header for a 1-based length, using the
// long form when the length does not fit in five bits.
func appendChunk(out []byte, cmd, length int) []byte {
	if length <= 32 {
		return append(out, byte(cmd<<5|length-1))
	}
	return append(out, byte(cmdLong<<5|cmd<<2|(length-1)>>8), byte(length-1))
}

func runLength(data []byte, i int) int {
	b := data[i]
	n := 1
	for i+n < len(data) && data[i+n] == b && n < maxChunkLen {
		n++
	}
	return n
}

func incRunLength(data []byte, i int) int {
	n := 1
	for i+n < len(data) && data[i+n] == data[i]+byte(n) && n < maxChunkLen {
		n++
	}
	return n
}

// pairRunLength returns the number of repetitions of the two byte word
// at i, including the first.
func pairRunLength(data []byte, i int) int {
	if i+2 > len(data) {
		return 0
	}
	lo, hi := data[i], data[i+1]
	n := 1
	for i+n*2+2 <= len(data) && data[i+n*2] == lo && data[i+n*2+1] == hi && n < maxChunkLen {
		n++
	}
	return n
}

// findMatch looks for the longest earlier occurrence of the data at i
// within the search window, returning its absolute position and length.
func findMatch(data []byte, i int) (int, int) {
	if i+minMatchLen > len(data) {
		return 0, 0
	}

	start := 0
	if i > matchWindow {
		start = i - matchWindow
	}
	seed := data[i : i+minMatchLen]

	bestPos, bestLen := 0, 0
	for from := start; from < i; {
		j := bytes.Index(data[from:i], seed)
		if j < 0 {
			break
		}
		pos := from + j

		n := minMatchLen
		for i+n < len(data) && pos+n < i && data[pos+n] == data[i+n] && n < maxChunkLen {
			n++
		}
		if n > bestLen {
			bestPos, bestLen = pos, n
		}
		from = pos + 1
	}

	return bestPos, bestLen
}

// Compress encodes data as a HAL LZ stream. The encoder is greedy:
// whichever of RLE, incrementing fill, word fill or back reference saves
// the most bytes at the current position wins, and anything else is
// carried as a literal run. Output always round-trips through
// Decompress.
func Compress(data []byte) []byte {
	var out []byte
	lit := 0

	flush := func(end int) {
		for s := lit; s < end; {
			n := end - s
			if n > maxChunkLen {
				n = maxChunkLen
			}
			out = appendChunk(out, cmdLiteral, n)
			out = append(out, data[s:s+n]...)
			s += n
		}
	}

	headerCost := func(length int) int {
		if length <= 32 {
			return 1
		}
		return 2
	}

	i := 0
	for i < len(data) {
		bestCmd, bestLen, bestCovered, bestSaving := -1, 0, 0, 0

		if n := runLength(data, i); n >= minRunLen {
			if s := n - headerCost(n) - 1; s > bestSaving {
				bestCmd, bestLen, bestCovered, bestSaving = cmdRLE8, n, n, s
			}
		}
		if n := incRunLength(data, i); n >= minRunLen {
			if s := n - headerCost(n) - 1; s > bestSaving {
				bestCmd, bestLen, bestCovered, bestSaving = cmdIncrement, n, n, s
			}
		}
		if n := pairRunLength(data, i); n >= minPairLen {
			if s := n*2 - headerCost(n) - 2; s > bestSaving {
				bestCmd, bestLen, bestCovered, bestSaving = cmdRLE16, n, n * 2, s
			}
		}
		var matchPos int
		if pos, n := findMatch(data, i); n >= minMatchLen && pos <= 0xffff {
			if s := n - headerCost(n) - 2; s > bestSaving {
				bestCmd, bestLen, bestCovered, bestSaving = cmdCopy, n, n, s
				matchPos = pos
			}
		}

		if bestCmd < 0 {
			i++
			continue
		}

		flush(i)
		out = appendChunk(out, bestCmd, bestLen)
		switch bestCmd {
		case cmdRLE8, cmdIncrement:
			out = append(out, data[i])
		case cmdRLE16:
			out = append(out, data[i], data[i+1])
		case cmdCopy:
			out = append(out, byte(matchPos>>8), byte(matchPos))
		}
		i += bestCovered
		lit = i
	}

	flush(len(data))
	return append(out, terminator)
}
