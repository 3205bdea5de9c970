// Package model defines domain types for burnclock sessions and reports.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a tracked session.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Closed reports whether the session can no longer change.
func (s Status) Closed() bool {
	return s == StatusCompleted || s == StatusError
}

// EndReason records why a session closed.
type EndReason string

const (
	EndExpired  EndReason = "expired"
	EndStopped  EndReason = "stopped"
	EndImported EndReason = "imported"
)

// Session is one timed, metered working window.
type Session struct {
	ID        string        `json:"id"`
	Model     string        `json:"model"`
	Project   string        `json:"project,omitempty"`
	Label     string        `json:"label,omitempty"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
	Status    Status        `json:"status"`
	EndReason EndReason     `json:"end_reason,omitempty"`
}

// SessionRecord is the archived final state of a session.
type SessionRecord struct {
	Session

	Elapsed time.Duration `json:"elapsed_ns"`

	InputTokens         int64 `json:"input_tokens"`
	OutputTokens        int64 `json:"output_tokens"`
	CacheCreationTokens int64 `json:"cache_creation_tokens"`
	CacheReadTokens     int64 `json:"cache_read_tokens"`

	EstimatedCost decimal.Decimal `json:"estimated_cost_usd"`

	ToolCalls  int64 `json:"tool_calls"`
	Messages   int64 `json:"messages"`
	Objectives int64 `json:"objectives"`
}

// TotalTokens sums all token categories.
func (r SessionRecord) TotalTokens() int64 {
	return r.InputTokens + r.OutputTokens + r.CacheCreationTokens + r.CacheReadTokens
}
