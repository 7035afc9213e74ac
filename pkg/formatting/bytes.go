// Package formatting converts byte sizes between configuration text such
// as "20MB" and counts, and back for messages.
package formatting

import (
	"fmt"
	"strconv"
	"strings"
)

// units are base-1024 regardless of spelling: "MB" and "MiB" both mean 2^20.
var units = []string{"B", "KB", "MB", "GB", "TB"}

// FormatBytes renders n with the largest unit that keeps the value at or
// above one. Trailing zero decimals are dropped.
func FormatBytes(n int64, precision int) string {
	size := float64(n)
	unit := 0
	for size >= 1024 && unit < len(units)-1 {
		size /= 1024
		unit++
	}

	s := strconv.FormatFloat(size, 'f', max(precision, 0), 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s + " " + units[unit]
}

// ParseBytes reads a size like "20MB", "1.5 GiB" or "4096". A bare
// number is bytes. Units are case-insensitive.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size")
	}

	split := strings.IndexFunc(s, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	number, unit := s, ""
	if split >= 0 {
		number, unit = s[:split], strings.TrimSpace(s[split:])
	}
	if number == "" {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	value, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}

	mult, ok := multiplier(unit)
	if !ok {
		return 0, fmt.Errorf("unknown byte size unit: %q", unit)
	}
	return int64(value * float64(mult)), nil
}

func multiplier(unit string) (int64, bool) {
	if unit == "" {
		return 1, true
	}
	unit = strings.ToUpper(unit)
	if len(unit) == 3 && unit[1] == 'I' {
		unit = unit[:1] + unit[2:]
	}
	for i, u := range units {
		if u == unit {
			return 1 << (10 * i), true
		}
	}
	return 0, false
}
