package timer

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatTime renders d as H:MM:SS when it spans at least an hour, else M:SS.
// Sub-second remainders are truncated and negative values render as 0:00.
func FormatTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// ParseTimeString parses MM:SS or HH:MM:SS. The leading field may have any
// number of digits; every following field must be exactly two digits below 60.
func ParseTimeString(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q (want MM:SS or HH:MM:SS)", ErrInvalidTimeFormat, s)
	}

	fields := make([]int64, len(parts))
	for i, p := range parts {
		if p == "" || !isDigits(p) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
		}
		if i > 0 && len(p) != 2 {
			return 0, fmt.Errorf("%w: %q (minutes and seconds need two digits)", ErrInvalidTimeFormat, s)
		}
		if i == 0 && len(p) > 6 {
			return 0, fmt.Errorf("%w: %q (leading field too large)", ErrInvalidTimeFormat, s)
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
		}
		if i > 0 && n >= 60 {
			return 0, fmt.Errorf("%w: %q (field out of range)", ErrInvalidTimeFormat, s)
		}
		fields[i] = n
	}

	var total time.Duration
	if len(fields) == 3 {
		total = time.Duration(fields[0])*time.Hour +
			time.Duration(fields[1])*time.Minute +
			time.Duration(fields[2])*time.Second
	} else {
		total = time.Duration(fields[0])*time.Minute +
			time.Duration(fields[1])*time.Second
	}
	return total, nil
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}
