package meter

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCacheReadDiscount is the fraction of the input rate charged for
// cache-read tokens.
var DefaultCacheReadDiscount = decimal.RequireFromString("0.1")

// Rate holds per-million-token prices in USD for one model.
type Rate struct {
	InputPerMTok  decimal.Decimal
	OutputPerMTok decimal.Decimal
	// CacheWritePerMTok is only consulted with CacheWriteAtCacheRate.
	// Zero falls back to InputPerMTok.
	CacheWritePerMTok decimal.Decimal
}

// NewRate builds a Rate from float prices, as read from config files.
func NewRate(inputPerMTok, outputPerMTok float64) Rate {
	return Rate{
		InputPerMTok:  decimal.NewFromFloat(inputPerMTok),
		OutputPerMTok: decimal.NewFromFloat(outputPerMTok),
	}
}

// RateTable maps model identifiers to rates.
type RateTable map[string]Rate

// Lookup resolves model against the table, falling back to the base name when
// the identifier carries a date suffix ("claude-opus-4-1-20250805").
// It returns the matched key.
func (t RateTable) Lookup(model string) (Rate, string, bool) {
	name := NormalizeModelName(model, func(m string) bool {
		_, ok := t[m]
		return ok
	})
	r, ok := t[name]
	return r, name, ok
}

// NormalizeModelName strips a trailing date segment (8+ digits) from raw when
// the shortened name is known. Otherwise raw is returned unchanged.
func NormalizeModelName(raw string, known func(string) bool) string {
	if known(raw) {
		return raw
	}
	parts := strings.Split(raw, "-")
	if len(parts) >= 2 {
		last := parts[len(parts)-1]
		if isAllDigits(last) && len(last) >= 8 {
			candidate := strings.Join(parts[:len(parts)-1], "-")
			if known(candidate) {
				return candidate
			}
		}
	}
	return raw
}

func isAllDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// CacheWriteBilling selects how cache-creation tokens are priced.
type CacheWriteBilling int

const (
	// CacheWriteAtInputRate bills cache creation exactly like plain input.
	CacheWriteAtInputRate CacheWriteBilling = iota
	// CacheWriteAtCacheRate bills cache creation at Rate.CacheWritePerMTok.
	CacheWriteAtCacheRate
)

// String returns the config spelling of b.
func (b CacheWriteBilling) String() string {
	if b == CacheWriteAtCacheRate {
		return "cache_write"
	}
	return "input"
}

// ParseCacheWriteBilling parses "input" or "cache_write". Empty means input.
func ParseCacheWriteBilling(s string) (CacheWriteBilling, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "input":
		return CacheWriteAtInputRate, nil
	case "cache_write", "cache-write":
		return CacheWriteAtCacheRate, nil
	default:
		return CacheWriteAtInputRate, fmt.Errorf("unknown cache write billing %q (want input or cache_write)", s)
	}
}

// Billing combines a rate with the cache pricing rules.
type Billing struct {
	CacheReadDiscount decimal.Decimal
	CacheWrite        CacheWriteBilling
}

// DefaultBilling bills cache reads at 10% of input and cache writes at the
// input rate.
func DefaultBilling() Billing {
	return Billing{CacheReadDiscount: DefaultCacheReadDiscount}
}

// Breakdown is the cost of a delta split by token category.
type Breakdown struct {
	Input      decimal.Decimal
	CacheWrite decimal.Decimal
	CacheRead  decimal.Decimal
	Output     decimal.Decimal
	Total      decimal.Decimal
}

// Cost prices d under r.
func (b Billing) Cost(r Rate, d Delta) Breakdown {
	writeRate := r.InputPerMTok
	if b.CacheWrite == CacheWriteAtCacheRate && !r.CacheWritePerMTok.IsZero() {
		writeRate = r.CacheWritePerMTok
	}
	readRate := r.InputPerMTok.Mul(b.CacheReadDiscount)

	out := Breakdown{
		Input:      perMTok(d.InputTokens, r.InputPerMTok),
		CacheWrite: perMTok(d.CacheCreationTokens, writeRate),
		CacheRead:  perMTok(d.CacheReadTokens, readRate),
		Output:     perMTok(d.OutputTokens, r.OutputPerMTok),
	}
	out.Total = out.Input.Add(out.CacheWrite).Add(out.CacheRead).Add(out.Output)
	return out
}

// CacheSavings is what cacheReadTokens would have cost at the full input
// rate minus what they cost.
func (b Billing) CacheSavings(r Rate, cacheReadTokens int64) decimal.Decimal {
	full := perMTok(cacheReadTokens, r.InputPerMTok)
	return full.Sub(full.Mul(b.CacheReadDiscount))
}

func perMTok(tokens int64, rate decimal.Decimal) decimal.Decimal {
	if tokens == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(tokens).Mul(rate).Shift(-6)
}
