package linker

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// minInt returns the smaller of two ints.
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// WriteHexImage emits the §6 hex-image grammar: one line per 8-byte
// group, `AAAA: BB BB BB BB BB BB BB BB`, addresses increasing by 8
// across a block's bytes. When a block's tail is shorter than 8 bytes,
// the line is completed with the immediately following block's leading
// bytes if it starts exactly where this one ends, otherwise with zero
// bytes — reproducing the line-padding rule in §4.2.
func WriteHexImage(w io.Writer, blocks []Block) error {
	sorted := append([]Block(nil), blocks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Base < sorted[j].Base })

	queue := make([]Block, len(sorted))
	copy(queue, sorted)

	bw := bufio.NewWriter(w)
	defer bw.Flush()

	for len(queue) > 0 {
		if len(queue[0].Bytes) == 0 {
			queue = queue[1:]
			continue
		}

		lineAddr := queue[0].Base
		take := minInt(8, len(queue[0].Bytes))
		line := append([]byte(nil), queue[0].Bytes[:take]...)
		queue[0].Bytes = queue[0].Bytes[take:]
		queue[0].Base += uint32(take)

		if len(queue[0].Bytes) == 0 {
			queue = queue[1:]

			if len(line) < 8 && len(queue) > 0 && queue[0].Base == lineAddr+uint32(len(line)) {
				need := 8 - len(line)
				take2 := minInt(need, len(queue[0].Bytes))
				line = append(line, queue[0].Bytes[:take2]...)
				queue[0].Bytes = queue[0].Bytes[take2:]
				queue[0].Base += uint32(take2)
				if len(queue[0].Bytes) == 0 {
					queue = queue[1:]
				}
			}
		}

		for len(line) < 8 {
			line = append(line, 0)
		}

		if err := writeHexLine(bw, lineAddr, line); err != nil {
			return err
		}
	}

	return nil
}

func writeHexLine(w io.Writer, addr uint32, line []byte) error {
	parts := make([]string, len(line))
	for i, b := range line {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	_, err := fmt.Fprintf(w, "%04x: %s\n", addr, strings.Join(parts, " "))
	return err
}

// ReadHexImage parses the §6 hex-image grammar back into a flat sparse
// byte map, the form the emulator core consumes.
func ReadHexImage(r io.Reader) (map[uint32]byte, error) {
	mem := make(map[uint32]byte)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			return nil, fmt.Errorf("malformed hex-image line %q", line)
		}

		addr, err := strconv.ParseUint(line[:colon], 16, 32)
		if err != nil {
			return nil, fmt.Errorf("malformed address in %q: %w", line, err)
		}

		for i, tok := range strings.Fields(line[colon+1:]) {
			b, err := strconv.ParseUint(tok, 16, 8)
			if err != nil {
				return nil, fmt.Errorf("malformed byte %q: %w", tok, err)
			}
			mem[uint32(addr)+uint32(i)] = byte(b)
		}
	}

	return mem, scanner.Err()
}
