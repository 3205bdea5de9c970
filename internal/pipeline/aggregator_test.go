package pipeline

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/burnclock/internal/meter"
	"github.com/theirongolddev/burnclock/internal/model"
)

var day0 = time.Date(2026, 3, 2, 12, 0, 0, 0, time.Local)

func rec(id, modelName string, start time.Time, reason model.EndReason, in, out, cacheRead int64, cost string) model.SessionRecord {
	return model.SessionRecord{
		Session: model.Session{
			ID:        id,
			Model:     modelName,
			Project:   "burnclock",
			StartTime: start,
			Status:    model.StatusCompleted,
			EndReason: reason,
		},
		Elapsed:         30 * time.Minute,
		InputTokens:     in,
		OutputTokens:    out,
		CacheReadTokens: cacheRead,
		EstimatedCost:   decimal.RequireFromString(cost),
		ToolCalls:       2,
	}
}

func sampleRecords() []model.SessionRecord {
	return []model.SessionRecord{
		rec("a", "claude-sonnet-4-5", day0, model.EndExpired, 1000, 500, 3000, "0.0114"),
		rec("b", "claude-sonnet-4-5", day0.Add(2*time.Hour), model.EndStopped, 2000, 0, 0, "0.006"),
		rec("c", "claude-opus-4-1", day0.AddDate(0, 0, 1), model.EndImported, 1000, 1000, 0, "0.09"),
	}
}

func TestAggregate(t *testing.T) {
	stats := Aggregate(sampleRecords(), time.Time{}, time.Time{})

	if stats.TotalSessions != 3 || stats.CompletedSessions != 1 || stats.StoppedEarly != 1 {
		t.Fatalf("session counts = %+v", stats)
	}
	if stats.ActiveDays != 2 {
		t.Fatalf("active days = %d, want 2", stats.ActiveDays)
	}
	if stats.TotalTokens != 8500 {
		t.Fatalf("total tokens = %d, want 8500", stats.TotalTokens)
	}
	if !stats.EstimatedCost.Equal(decimal.RequireFromString("0.1074")) {
		t.Fatalf("cost = %s", stats.EstimatedCost)
	}
	if !stats.CostPerDay.Equal(decimal.RequireFromString("0.0537")) {
		t.Fatalf("cost per day = %s", stats.CostPerDay)
	}
	if stats.CacheHitRate != 3000.0/7000.0 {
		t.Fatalf("cache hit rate = %v", stats.CacheHitRate)
	}
	if stats.TotalElapsed != 90*time.Minute || stats.ToolCalls != 6 {
		t.Fatalf("elapsed/tools = %v/%d", stats.TotalElapsed, stats.ToolCalls)
	}
}

func TestAggregateEmpty(t *testing.T) {
	stats := Aggregate(nil, time.Time{}, time.Time{})
	if stats.TotalSessions != 0 || !stats.EstimatedCost.IsZero() || stats.CacheHitRate != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestFilterByTime(t *testing.T) {
	recs := sampleRecords()
	got := FilterByTime(recs, day0.Add(time.Hour), day0.AddDate(0, 0, 1))
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("filtered = %v", got)
	}
	if len(FilterByTime(recs, time.Time{}, time.Time{})) != 3 {
		t.Fatal("open range should keep everything")
	}
}

func TestFilterByModelAndProject(t *testing.T) {
	recs := sampleRecords()
	if got := FilterByModel(recs, "OPUS"); len(got) != 1 || got[0].ID != "c" {
		t.Fatalf("model filter = %v", got)
	}
	if got := FilterByProject(recs, "burn"); len(got) != 3 {
		t.Fatalf("project filter = %d", len(got))
	}
	if got := FilterByProject(recs, "other"); len(got) != 0 {
		t.Fatalf("project filter = %d", len(got))
	}
	if got := FilterTimed(recs); len(got) != 2 || got[1].ID != "b" {
		t.Fatalf("timed filter = %v", got)
	}
}

func TestAggregateDays(t *testing.T) {
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local)
	until := time.Date(2026, 3, 4, 0, 0, 0, 0, time.Local)
	days := AggregateDays(sampleRecords(), since, until)

	if len(days) != 3 {
		t.Fatalf("days = %d, want 3", len(days))
	}
	if days[0].Date.Day() != 3 || days[2].Date.Day() != 1 {
		t.Fatalf("order = %v .. %v", days[0].Date, days[2].Date)
	}
	if days[1].Sessions != 2 || !days[1].EstimatedCost.Equal(decimal.RequireFromString("0.0174")) {
		t.Fatalf("march 2 = %+v", days[1])
	}
	if days[2].Sessions != 0 {
		t.Fatalf("march 1 should be an empty day: %+v", days[2])
	}
}

func TestAggregateModels(t *testing.T) {
	models := AggregateModels(sampleRecords(), time.Time{}, time.Time{})
	if len(models) != 2 {
		t.Fatalf("models = %d", len(models))
	}
	if models[0].Model != "claude-opus-4-1" {
		t.Fatalf("most expensive = %s", models[0].Model)
	}
	if models[1].Sessions != 2 || models[1].InputTokens != 3000 {
		t.Fatalf("sonnet = %+v", models[1])
	}
	share := models[0].SharePercent + models[1].SharePercent
	if share < 99.999 || share > 100.001 {
		t.Fatalf("shares sum to %v", share)
	}
}

func TestAggregateCostBreakdown(t *testing.T) {
	table := meter.RateTable{
		"claude-sonnet-4-5": meter.NewRate(3, 15),
	}
	recs := sampleRecords()
	totals, models, unpriced := AggregateCostBreakdown(recs, table, meter.DefaultBilling(), time.Time{}, time.Time{})

	if unpriced != 1 {
		t.Fatalf("unpriced = %d, want 1", unpriced)
	}
	// a: 1000*3 + 500*15 + 3000*0.3 = 0.0114; b: 2000*3 = 0.006
	if !totals.TotalCost.Equal(decimal.RequireFromString("0.0174")) {
		t.Fatalf("total = %s", totals.TotalCost)
	}
	if !totals.CacheReadCost.Equal(decimal.RequireFromString("0.0009")) {
		t.Fatalf("cache read = %s", totals.CacheReadCost)
	}
	if !totals.CacheSavings.Equal(decimal.RequireFromString("0.0081")) {
		t.Fatalf("savings = %s", totals.CacheSavings)
	}
	if len(models) != 1 || !models[0].TotalCost.Equal(totals.TotalCost) {
		t.Fatalf("models = %+v", models)
	}
}
