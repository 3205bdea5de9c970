// Package pipeline aggregates archived sessions and imports historical
// transcripts into the archive.
package pipeline

import (
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/theirongolddev/burnclock/internal/model"
)

// Aggregate computes summary statistics over records that started within
// [since, until). Zero bounds are open.
func Aggregate(records []model.SessionRecord, since, until time.Time) model.SummaryStats {
	filtered := FilterByTime(records, since, until)

	stats := model.SummaryStats{EstimatedCost: decimal.Zero}
	activeDays := make(map[string]struct{})

	for _, r := range filtered {
		stats.TotalSessions++
		switch r.EndReason {
		case model.EndExpired:
			stats.CompletedSessions++
		case model.EndStopped:
			stats.StoppedEarly++
		}
		stats.TotalElapsed += r.Elapsed

		stats.InputTokens += r.InputTokens
		stats.OutputTokens += r.OutputTokens
		stats.CacheCreationTokens += r.CacheCreationTokens
		stats.CacheReadTokens += r.CacheReadTokens
		stats.ToolCalls += r.ToolCalls
		stats.Messages += r.Messages
		stats.Objectives += r.Objectives
		stats.EstimatedCost = stats.EstimatedCost.Add(r.EstimatedCost)

		if !r.StartTime.IsZero() {
			activeDays[r.StartTime.Local().Format("2006-01-02")] = struct{}{}
		}
	}

	stats.ActiveDays = len(activeDays)
	stats.TotalTokens = stats.InputTokens + stats.OutputTokens +
		stats.CacheCreationTokens + stats.CacheReadTokens

	totalInput := stats.InputTokens + stats.CacheCreationTokens + stats.CacheReadTokens
	if totalInput > 0 {
		stats.CacheHitRate = float64(stats.CacheReadTokens) / float64(totalInput)
	}
	if stats.TotalSessions > 0 {
		stats.CostPerSession = stats.EstimatedCost.Div(decimal.NewFromInt(int64(stats.TotalSessions)))
	}
	if stats.ActiveDays > 0 {
		stats.CostPerDay = stats.EstimatedCost.Div(decimal.NewFromInt(int64(stats.ActiveDays)))
	}
	if mins := stats.TotalElapsed.Minutes(); mins > 0 {
		stats.TokensPerMinute = float64(stats.TotalTokens) / mins
	}
	return stats
}

// AggregateDays computes per-day statistics, most recent first. Days in the
// range with no sessions are included as zeros when both bounds are set.
func AggregateDays(records []model.SessionRecord, since, until time.Time) []model.DailyStats {
	filtered := FilterByTime(records, since, until)

	dayMap := make(map[string]*model.DailyStats)
	for _, r := range filtered {
		if r.StartTime.IsZero() {
			continue
		}
		key := r.StartTime.Local().Format("2006-01-02")
		ds, ok := dayMap[key]
		if !ok {
			t, _ := time.ParseInLocation("2006-01-02", key, time.Local)
			ds = &model.DailyStats{Date: t, EstimatedCost: decimal.Zero}
			dayMap[key] = ds
		}
		ds.Sessions++
		ds.TotalTokens += r.TotalTokens()
		ds.Elapsed += r.Elapsed
		ds.EstimatedCost = ds.EstimatedCost.Add(r.EstimatedCost)
	}

	if !since.IsZero() && !until.IsZero() {
		day := startOfDay(since)
		for day.Before(until) {
			key := day.Format("2006-01-02")
			if _, ok := dayMap[key]; !ok {
				dayMap[key] = &model.DailyStats{Date: day, EstimatedCost: decimal.Zero}
			}
			day = day.AddDate(0, 0, 1)
		}
	}

	days := lo.Map(lo.Values(dayMap), func(ds *model.DailyStats, _ int) model.DailyStats { return *ds })
	sort.Slice(days, func(i, j int) bool { return days[i].Date.After(days[j].Date) })
	return days
}

// AggregateModels computes per-model statistics, most expensive first.
func AggregateModels(records []model.SessionRecord, since, until time.Time) []model.ModelStats {
	filtered := FilterByTime(records, since, until)
	groups := lo.GroupBy(filtered, func(r model.SessionRecord) string { return r.Model })

	var totalTokens int64
	models := make([]model.ModelStats, 0, len(groups))
	for name, recs := range groups {
		ms := model.ModelStats{Model: name, EstimatedCost: decimal.Zero}
		for _, r := range recs {
			ms.Sessions++
			ms.InputTokens += r.InputTokens
			ms.OutputTokens += r.OutputTokens
			ms.CacheCreationTokens += r.CacheCreationTokens
			ms.CacheReadTokens += r.CacheReadTokens
			ms.EstimatedCost = ms.EstimatedCost.Add(r.EstimatedCost)
			totalTokens += r.TotalTokens()
		}
		models = append(models, ms)
	}

	for i := range models {
		if totalTokens > 0 {
			m := models[i]
			used := m.InputTokens + m.OutputTokens + m.CacheCreationTokens + m.CacheReadTokens
			models[i].SharePercent = float64(used) / float64(totalTokens) * 100
		}
	}
	sort.Slice(models, func(i, j int) bool {
		if c := models[i].EstimatedCost.Cmp(models[j].EstimatedCost); c != 0 {
			return c > 0
		}
		return models[i].Model < models[j].Model
	})
	return models
}

// FilterByTime returns records whose start time falls within [since, until).
func FilterByTime(records []model.SessionRecord, since, until time.Time) []model.SessionRecord {
	if since.IsZero() && until.IsZero() {
		return records
	}
	return lo.Filter(records, func(r model.SessionRecord, _ int) bool {
		if r.StartTime.IsZero() {
			return false
		}
		if !since.IsZero() && r.StartTime.Before(since) {
			return false
		}
		return until.IsZero() || r.StartTime.Before(until)
	})
}

// FilterByModel returns records whose model contains the filter text.
func FilterByModel(records []model.SessionRecord, modelFilter string) []model.SessionRecord {
	if modelFilter == "" {
		return records
	}
	return lo.Filter(records, func(r model.SessionRecord, _ int) bool {
		return containsIgnoreCase(r.Model, modelFilter)
	})
}

// FilterByProject returns records whose project contains the filter text.
func FilterByProject(records []model.SessionRecord, project string) []model.SessionRecord {
	if project == "" {
		return records
	}
	return lo.Filter(records, func(r model.SessionRecord, _ int) bool {
		return containsIgnoreCase(r.Project, project)
	})
}

// FilterTimed drops records imported from transcripts, keeping sessions that
// ran under a countdown.
func FilterTimed(records []model.SessionRecord) []model.SessionRecord {
	return lo.Reject(records, func(r model.SessionRecord, _ int) bool {
		return r.EndReason == model.EndImported
	})
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func startOfDay(t time.Time) time.Time {
	l := t.Local()
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, time.Local)
}
