package blocklist

import (
	"strings"
	"testing"

	"blocklist/internal/apperror"
)

func TestParseList(t *testing.T) {
	input := strings.Join([]string{
		"# Spamhaus style header",
		"",
		"203.0.113.0/24 ; SBL123",
		"198.51.100.7",
		"  2001:db8::/32   # documentation",
		"203.0.113.0/24",
		"10.0.0.1/8",
		"not-an-ip",
		"192.0.2.1\tsome trailing field",
	}, "\n")

	entries, invalid, err := ParseList(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseList returned error: %v", err)
	}

	want := []string{"203.0.113.0/24", "198.51.100.7/32", "2001:db8::/32", "192.0.2.1/32"}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(entries), len(want), entries)
	}
	for i, w := range want {
		if got := entries[i].IP.String(); got != w {
			t.Fatalf("entry %d = %s, want %s", i, got, w)
		}
	}

	if len(invalid) != 2 {
		t.Fatalf("got %d invalid lines, want 2: %v", len(invalid), invalid)
	}
	if invalid[0].Line != 7 || invalid[1].Line != 8 {
		t.Fatalf("invalid lines = %d, %d; want 7, 8", invalid[0].Line, invalid[1].Line)
	}
	if !apperror.Is(invalid[0], apperror.KindParse) {
		t.Fatalf("line error kind = %s, want parse", apperror.KindOf(invalid[0]))
	}
}

func TestParseListEmpty(t *testing.T) {
	entries, invalid, err := ParseList(strings.NewReader("\n# nothing here\n\n"))
	if err != nil || len(entries) != 0 || len(invalid) != 0 {
		t.Fatalf("ParseList(empty) = %v, %v, %v", entries, invalid, err)
	}
}

func TestParseListLineTooLong(t *testing.T) {
	_, _, err := ParseList(strings.NewReader(strings.Repeat("a", maxLineBytes+1)))
	if !apperror.Is(err, apperror.KindParse) {
		t.Fatalf("oversized line error = %v, want parse error", err)
	}
}
