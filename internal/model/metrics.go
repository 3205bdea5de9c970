package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SummaryStats holds the top-level aggregate across archived sessions.
type SummaryStats struct {
	TotalSessions     int
	CompletedSessions int
	StoppedEarly      int
	TotalElapsed      time.Duration
	ActiveDays        int

	InputTokens         int64
	OutputTokens        int64
	CacheCreationTokens int64
	CacheReadTokens     int64
	TotalTokens         int64

	ToolCalls  int64
	Messages   int64
	Objectives int64

	EstimatedCost  decimal.Decimal
	CostPerSession decimal.Decimal
	CostPerDay     decimal.Decimal
	CacheHitRate   float64

	TokensPerMinute float64
}

// ModelStats holds aggregated metrics for a single model.
type ModelStats struct {
	Model               string
	Sessions            int
	InputTokens         int64
	OutputTokens        int64
	CacheCreationTokens int64
	CacheReadTokens     int64
	EstimatedCost       decimal.Decimal
	SharePercent        float64
}

// DailyStats holds metrics for a single calendar day.
type DailyStats struct {
	Date          time.Time
	Sessions      int
	TotalTokens   int64
	Elapsed       time.Duration
	EstimatedCost decimal.Decimal
}
