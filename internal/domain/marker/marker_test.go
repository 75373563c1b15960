package marker

import (
	"testing"
	"time"
)

func TestFormatDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		date     time.Time
		expected string
	}{
		{date: time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), expected: "5 Mar 2024"},
		{date: time.Date(2019, time.January, 26, 23, 59, 0, 0, time.UTC), expected: "26 Jan 2019"},
		{date: time.Date(2025, time.December, 31, 12, 0, 0, 0, time.UTC), expected: "31 Dec 2025"},
		{date: time.Date(2023, time.September, 1, 0, 0, 0, 0, time.UTC), expected: "1 Sep 2023"},
	}

	for _, tt := range tests {
		if got := FormatDate(tt.date); got != tt.expected {
			t.Fatalf("format %s: want %q got %q", tt.date, tt.expected, got)
		}
	}
}

func TestRewriterRewrite(t *testing.T) {
	t.Parallel()

	rw := NewRewriter(time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), "4.2")

	tests := []struct {
		name         string
		line         string
		expectedLine string
		expectedKind Kind
	}{
		{
			name:         "date line",
			line:         `__date__ = "old"`,
			expectedLine: `__date__ = "5 Mar 2024"`,
			expectedKind: KindDate,
		},
		{
			name:         "version line",
			line:         `__version__ = "old"`,
			expectedLine: `__version__ = "4.2"`,
			expectedKind: KindVersion,
		},
		{
			name:         "token prefix without assignment",
			line:         `__date__`,
			expectedLine: `__date__ = "5 Mar 2024"`,
			expectedKind: KindDate,
		},
		{
			name:         "indented marker is not stamped",
			line:         `    __version__ = "old"`,
			expectedLine: `    __version__ = "old"`,
			expectedKind: KindNone,
		},
		{
			name:         "other dunder untouched",
			line:         `__author__ = "Nutti"`,
			expectedLine: `__author__ = "Nutti"`,
			expectedKind: KindNone,
		},
		{
			name:         "empty line",
			line:         "",
			expectedLine: "",
			expectedKind: KindNone,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			line, kind := rw.Rewrite(tt.line)
			if line != tt.expectedLine {
				t.Fatalf("line: want %q got %q", tt.expectedLine, line)
			}
			if kind != tt.expectedKind {
				t.Fatalf("kind: want %q got %q", tt.expectedKind, kind)
			}
		})
	}
}

func TestRewriteIsStable(t *testing.T) {
	t.Parallel()

	rw := NewRewriter(time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), "4.2")
	for _, line := range []string{`__date__ = "x"`, `__version__ = "y"`} {
		once, _ := rw.Rewrite(line)
		twice, _ := rw.Rewrite(once)
		if once != twice {
			t.Fatalf("rewrite not stable: %q then %q", once, twice)
		}
	}
}
