package blocklist

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"blocklist/internal/apperror"
	"blocklist/internal/domain"
)

const maxLineBytes = 64 * 1024

// LineError reports a line that does not hold a network.
type LineError struct {
	Line int
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e LineError) Unwrap() error { return e.Err }

// ParseList reads one network per line. Blank lines and everything after '#' or ';' are
// ignored, as are trailing fields separated by whitespace. Repeated networks are kept
// once. Lines that fail to parse are returned separately so callers can decide whether
// a partial list is acceptable.
func ParseList(r io.Reader) ([]domain.NewEntry, []LineError, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024), maxLineBytes)

	var (
		entries []domain.NewEntry
		invalid []LineError
		seen    = make(map[string]struct{})
		lineNo  int
	)

	for scanner.Scan() {
		lineNo++
		field := firstField(scanner.Text())
		if field == "" {
			continue
		}

		prefix, err := domain.ParseNetwork(field)
		if err != nil {
			invalid = append(invalid, LineError{Line: lineNo, Err: err})
			continue
		}

		key := prefix.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		entries = append(entries, domain.NewEntry{IP: prefix})
	}

	if err := scanner.Err(); err != nil {
		return nil, nil, apperror.FromParse(err, fmt.Sprintf("read list after line %d", lineNo))
	}
	return entries, invalid, nil
}

func firstField(line string) string {
	if i := strings.IndexAny(line, "#;"); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
