package meter

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidUsageDelta is returned for negative, non-finite, fractional
	// or overflowing token counts.
	ErrInvalidUsageDelta = errors.New("meter: invalid usage delta")
	// ErrUnknownModel is returned when a model has no rate table entry.
	ErrUnknownModel = errors.New("meter: unknown model")
)

// Delta is one increment of token usage. Missing fields are zero.
type Delta struct {
	InputTokens         int64 `json:"input_tokens"`
	CacheCreationTokens int64 `json:"cache_creation_tokens"`
	CacheReadTokens     int64 `json:"cache_read_tokens"`
	OutputTokens        int64 `json:"output_tokens"`
}

// Validate rejects negative counts.
func (d Delta) Validate() error {
	fields := []struct {
		name string
		v    int64
	}{
		{"input_tokens", d.InputTokens},
		{"cache_creation_tokens", d.CacheCreationTokens},
		{"cache_read_tokens", d.CacheReadTokens},
		{"output_tokens", d.OutputTokens},
	}
	for _, f := range fields {
		if f.v < 0 {
			return fmt.Errorf("%w: %s is negative (%d)", ErrInvalidUsageDelta, f.name, f.v)
		}
	}
	return nil
}

// Total is the sum of all four categories.
func (d Delta) Total() int64 {
	return d.InputTokens + d.CacheCreationTokens + d.CacheReadTokens + d.OutputTokens
}

// IsZero reports whether d carries no tokens.
func (d Delta) IsZero() bool {
	return d == Delta{}
}

// Add returns the field-wise sum of d and o.
func (d Delta) Add(o Delta) Delta {
	return Delta{
		InputTokens:         d.InputTokens + o.InputTokens,
		CacheCreationTokens: d.CacheCreationTokens + o.CacheCreationTokens,
		CacheReadTokens:     d.CacheReadTokens + o.CacheReadTokens,
		OutputTokens:        d.OutputTokens + o.OutputTokens,
	}
}

// DeltaFromNumbers builds a Delta from JSON-style numbers, rejecting values
// that are negative, non-finite, fractional or too large for int64.
func DeltaFromNumbers(input, cacheCreation, cacheRead, output float64) (Delta, error) {
	var d Delta
	vals := []struct {
		name string
		v    float64
		dst  *int64
	}{
		{"input_tokens", input, &d.InputTokens},
		{"cache_creation_tokens", cacheCreation, &d.CacheCreationTokens},
		{"cache_read_tokens", cacheRead, &d.CacheReadTokens},
		{"output_tokens", output, &d.OutputTokens},
	}
	for _, f := range vals {
		switch {
		case math.IsNaN(f.v) || math.IsInf(f.v, 0):
			return Delta{}, fmt.Errorf("%w: %s is not finite", ErrInvalidUsageDelta, f.name)
		case f.v < 0:
			return Delta{}, fmt.Errorf("%w: %s is negative (%v)", ErrInvalidUsageDelta, f.name, f.v)
		case f.v != math.Trunc(f.v):
			return Delta{}, fmt.Errorf("%w: %s is not an integer (%v)", ErrInvalidUsageDelta, f.name, f.v)
		case f.v >= math.MaxInt64:
			return Delta{}, fmt.Errorf("%w: %s overflows (%v)", ErrInvalidUsageDelta, f.name, f.v)
		}
		*f.dst = int64(f.v)
	}
	return d, nil
}
