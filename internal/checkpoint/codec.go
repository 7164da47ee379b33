package checkpoint

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ligustah/pfetch/internal/partition"
)

// ErrMalformed is returned by Decode for records that cannot be parsed.
var ErrMalformed = errors.New("checkpoint: malformed record")

// Encode writes cp in the sidecar text format.
func Encode(w io.Writer, cp *partition.Checkpoint) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "[%d]\n", cp.Count)
	for _, c := range cp.Cursors {
		fmt.Fprintf(bw, "%s\n", c)
	}
	return bw.Flush()
}

// Decode reads a checkpoint in the sidecar text format. Blank lines and
// carriage returns are ignored.
func Decode(r io.Reader) (*partition.Checkpoint, error) {
	scanner := bufio.NewScanner(r)

	var (
		cp     *partition.Checkpoint
		lineNo int
	)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if cp == nil {
			var count int
			if _, err := fmt.Sscanf(line, "[%d]", &count); err != nil || line != fmt.Sprintf("[%d]", count) {
				return nil, fmt.Errorf("%w: line %d: bad header %q", ErrMalformed, lineNo, line)
			}
			if count <= 0 {
				return nil, fmt.Errorf("%w: line %d: partition count %d", ErrMalformed, lineNo, count)
			}
			cp = &partition.Checkpoint{Count: count}
			continue
		}

		c, err := parseCursor(line)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, lineNo, err)
		}
		cp.Cursors = append(cp.Cursors, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("checkpoint: read: %w", err)
	}

	if cp == nil {
		return nil, fmt.Errorf("%w: empty record", ErrMalformed)
	}
	if len(cp.Cursors) != cp.Count {
		return nil, fmt.Errorf("%w: header says %d partitions, found %d", ErrMalformed, cp.Count, len(cp.Cursors))
	}

	return cp, nil
}

// parseCursor parses "start-offset-end". End may be negative for an empty
// partition ("0-0--1").
func parseCursor(s string) (partition.Cursor, error) {
	var c partition.Cursor
	if _, err := fmt.Sscanf(s, "%d-%d-%d", &c.Start, &c.Offset, &c.End); err != nil {
		return c, fmt.Errorf("bad cursor %q: %v", s, err)
	}
	if c.String() != s {
		return c, fmt.Errorf("bad cursor %q", s)
	}
	return c, nil
}
