package pipeline

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/burnclock/internal/meter"
	"github.com/theirongolddev/burnclock/internal/model"
)

// TokenTypeCosts holds aggregate costs split by token type.
type TokenTypeCosts struct {
	InputCost      decimal.Decimal
	OutputCost     decimal.Decimal
	CacheWriteCost decimal.Decimal
	CacheReadCost  decimal.Decimal
	CacheSavings   decimal.Decimal
	TotalCost      decimal.Decimal
}

// ModelCostBreakdown holds cost components for one model.
type ModelCostBreakdown struct {
	Model          string
	InputCost      decimal.Decimal
	OutputCost     decimal.Decimal
	CacheWriteCost decimal.Decimal
	CacheReadCost  decimal.Decimal
	TotalCost      decimal.Decimal
}

// AggregateCostBreakdown reprices archived sessions under the current rate
// table and billing rules. Sessions whose model is not in the table are
// counted in unpriced and otherwise skipped.
func AggregateCostBreakdown(
	records []model.SessionRecord,
	table meter.RateTable,
	billing meter.Billing,
	since time.Time,
	until time.Time,
) (totals TokenTypeCosts, models []ModelCostBreakdown, unpriced int) {
	filtered := FilterByTime(records, since, until)
	byModel := make(map[string]*ModelCostBreakdown)

	for _, r := range filtered {
		rate, name, ok := table.Lookup(r.Model)
		if !ok {
			unpriced++
			continue
		}
		b := billing.Cost(rate, meter.Delta{
			InputTokens:         r.InputTokens,
			OutputTokens:        r.OutputTokens,
			CacheCreationTokens: r.CacheCreationTokens,
			CacheReadTokens:     r.CacheReadTokens,
		})

		totals.InputCost = totals.InputCost.Add(b.Input)
		totals.OutputCost = totals.OutputCost.Add(b.Output)
		totals.CacheWriteCost = totals.CacheWriteCost.Add(b.CacheWrite)
		totals.CacheReadCost = totals.CacheReadCost.Add(b.CacheRead)
		totals.CacheSavings = totals.CacheSavings.Add(billing.CacheSavings(rate, r.CacheReadTokens))

		row, exists := byModel[name]
		if !exists {
			row = &ModelCostBreakdown{Model: name}
			byModel[name] = row
		}
		row.InputCost = row.InputCost.Add(b.Input)
		row.OutputCost = row.OutputCost.Add(b.Output)
		row.CacheWriteCost = row.CacheWriteCost.Add(b.CacheWrite)
		row.CacheReadCost = row.CacheReadCost.Add(b.CacheRead)
		row.TotalCost = row.TotalCost.Add(b.Total)
	}

	totals.TotalCost = totals.InputCost.Add(totals.OutputCost).
		Add(totals.CacheWriteCost).Add(totals.CacheReadCost)

	models = make([]ModelCostBreakdown, 0, len(byModel))
	for _, row := range byModel {
		models = append(models, *row)
	}
	sort.Slice(models, func(i, j int) bool {
		if c := models[i].TotalCost.Cmp(models[j].TotalCost); c != 0 {
			return c > 0
		}
		return models[i].Model < models[j].Model
	})
	return totals, models, unpriced
}
