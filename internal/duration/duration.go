// Package duration parses and renders jobman's compact duration syntax,
// `NwNdNhNmNs`: each unit segment optional, each unit appearing at most
// once, in descending order, with non-negative integer values.
package duration

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// unit pairs a suffix letter with its time.Duration multiple, in the
// mandatory descending order Parse requires.
var units = []struct {
	suffix byte
	scale  time.Duration
}{
	{'w', 7 * 24 * time.Hour},
	{'d', 24 * time.Hour},
	{'h', time.Hour},
	{'m', time.Minute},
	{'s', time.Second},
}

// Parse converts s into a time.Duration. An empty string parses to zero
// duration. Each unit letter may appear at most once, and segments must
// appear in w/d/h/m/s order; anything else (repeated unit, out-of-order
// unit, negative value, stray characters) is a usage error.
func Parse(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	var total time.Duration
	seen := make(map[byte]bool, len(units))
	unitIdx := 0
	i := 0

	for i < len(s) {
		start := i
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == start {
			return 0, fmt.Errorf("invalid duration %q: expected digits at position %d", s, start)
		}
		numStr := s[start:i]
		if i >= len(s) {
			return 0, fmt.Errorf("invalid duration %q: missing unit after %q", s, numStr)
		}
		suffix := s[i]
		i++

		n, err := strconv.ParseInt(numStr, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		if n < 0 {
			return 0, fmt.Errorf("invalid duration %q: negative value", s)
		}

		if seen[suffix] {
			return 0, fmt.Errorf("invalid duration %q: unit %q repeated", s, string(suffix))
		}

		found := false
		for unitIdx < len(units) {
			u := units[unitIdx]
			unitIdx++
			if u.suffix == suffix {
				total += time.Duration(n) * u.scale
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("invalid duration %q: unrecognized or out-of-order unit %q", s, string(suffix))
		}
		seen[suffix] = true
	}

	return total, nil
}

// Format renders d back into jobman's compact syntax, omitting zero-valued
// unit segments. A zero duration renders as "0s".
func Format(d time.Duration) string {
	if d == 0 {
		return "0s"
	}

	var b strings.Builder
	remaining := d
	for _, u := range units {
		n := remaining / u.scale
		if n > 0 {
			fmt.Fprintf(&b, "%d%c", n, u.suffix)
			remaining -= n * u.scale
		}
	}
	return b.String()
}
