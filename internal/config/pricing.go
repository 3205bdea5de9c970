package config

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/burnclock/internal/meter"
)

// ModelPricing holds per-million-token prices for a model.
type ModelPricing struct {
	InputPerMTok      float64
	OutputPerMTok     float64
	CacheWritePerMTok float64
}

// DefaultPricing maps model base names to their pricing.
var DefaultPricing = map[string]ModelPricing{
	"claude-opus-4-6":   {InputPerMTok: 5.00, OutputPerMTok: 25.00, CacheWritePerMTok: 6.25},
	"claude-opus-4-5":   {InputPerMTok: 5.00, OutputPerMTok: 25.00, CacheWritePerMTok: 6.25},
	"claude-opus-4-1":   {InputPerMTok: 15.00, OutputPerMTok: 75.00, CacheWritePerMTok: 18.75},
	"claude-opus-4":     {InputPerMTok: 15.00, OutputPerMTok: 75.00, CacheWritePerMTok: 18.75},
	"claude-sonnet-4-6": {InputPerMTok: 3.00, OutputPerMTok: 15.00, CacheWritePerMTok: 3.75},
	"claude-sonnet-4-5": {InputPerMTok: 3.00, OutputPerMTok: 15.00, CacheWritePerMTok: 3.75},
	"claude-sonnet-4":   {InputPerMTok: 3.00, OutputPerMTok: 15.00, CacheWritePerMTok: 3.75},
	"claude-haiku-4-5":  {InputPerMTok: 1.00, OutputPerMTok: 5.00, CacheWritePerMTok: 1.25},
	"claude-haiku-3-5":  {InputPerMTok: 0.80, OutputPerMTok: 4.00, CacheWritePerMTok: 1.00},
}

// RateTable builds the meter's rate table from the built-in prices with the
// config's overrides applied. Overrides for unknown models add new entries.
func RateTable(cfg Config) meter.RateTable {
	table := make(meter.RateTable, len(DefaultPricing)+len(cfg.Pricing.Overrides))
	for name, p := range DefaultPricing {
		table[name] = toRate(p)
	}

	for name, o := range cfg.Pricing.Overrides {
		r, ok := table[name]
		if !ok {
			r = meter.Rate{InputPerMTok: decimal.Zero, OutputPerMTok: decimal.Zero}
		}
		if o.InputPerMTok != nil {
			r.InputPerMTok = decimal.NewFromFloat(*o.InputPerMTok)
		}
		if o.OutputPerMTok != nil {
			r.OutputPerMTok = decimal.NewFromFloat(*o.OutputPerMTok)
		}
		if o.CacheWritePerMTok != nil {
			r.CacheWritePerMTok = decimal.NewFromFloat(*o.CacheWritePerMTok)
		}
		table[name] = r
	}
	return table
}

// KnownModels lists the model names in the merged rate table, sorted.
func KnownModels(cfg Config) []string {
	table := RateTable(cfg)
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func toRate(p ModelPricing) meter.Rate {
	r := meter.NewRate(p.InputPerMTok, p.OutputPerMTok)
	r.CacheWritePerMTok = decimal.NewFromFloat(p.CacheWritePerMTok)
	return r
}
