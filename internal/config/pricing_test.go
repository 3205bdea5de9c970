package config

import (
	"testing"

	"github.com/shopspring/decimal"
)

func ptr(v float64) *float64 { return &v }

func TestRateTableDefaults(t *testing.T) {
	table := RateTable(DefaultConfig())

	r, name, ok := table.Lookup("claude-sonnet-4-5-20250929")
	if !ok {
		t.Fatal("dated sonnet id did not resolve")
	}
	if name != "claude-sonnet-4-5" {
		t.Fatalf("name = %q", name)
	}
	if !r.InputPerMTok.Equal(decimal.NewFromInt(3)) || !r.OutputPerMTok.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("sonnet rate = %+v", r)
	}
}

func TestRateTableOverrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pricing.Overrides = map[string]ModelPricingOverride{
		"claude-opus-4-1": {OutputPerMTok: ptr(80)},
		"local-model":     {InputPerMTok: ptr(0.5), OutputPerMTok: ptr(1)},
	}
	table := RateTable(cfg)

	opus := table["claude-opus-4-1"]
	if !opus.InputPerMTok.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("override clobbered input rate: %s", opus.InputPerMTok)
	}
	if !opus.OutputPerMTok.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("output override = %s, want 80", opus.OutputPerMTok)
	}

	local, ok := table["local-model"]
	if !ok {
		t.Fatal("override for new model not added")
	}
	if !local.InputPerMTok.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("local input = %s", local.InputPerMTok)
	}
	if _, ok := DefaultPricing["local-model"]; ok {
		t.Fatal("RateTable mutated DefaultPricing")
	}
}

func TestKnownModelsSorted(t *testing.T) {
	names := KnownModels(DefaultConfig())
	if len(names) != len(DefaultPricing) {
		t.Fatalf("got %d names, want %d", len(names), len(DefaultPricing))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("not sorted at %d: %q > %q", i, names[i-1], names[i])
		}
	}
}
