package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/burnclock/internal/model"
)

func openTemp(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "nested", "sessions.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func sampleRecord(id string, start time.Time) model.SessionRecord {
	return model.SessionRecord{
		Session: model.Session{
			ID:        id,
			Model:     "claude-sonnet-4-5",
			Project:   "burnclock",
			StartTime: start,
			EndTime:   start.Add(90 * time.Minute),
			Duration:  5 * time.Hour,
			Status:    model.StatusCompleted,
			EndReason: model.EndStopped,
		},
		Elapsed:             90*time.Minute + 1500*time.Millisecond,
		InputTokens:         10000,
		OutputTokens:        5000,
		CacheCreationTokens: 200,
		CacheReadTokens:     12345,
		EstimatedCost:       decimal.RequireFromString("0.1093035"),
		ToolCalls:           4,
		Messages:            3,
		Objectives:          1,
	}
}

func TestSaveAndLoadSession(t *testing.T) {
	a := openTemp(t)
	start := time.Date(2026, 3, 1, 9, 0, 0, 123456789, time.UTC)
	want := sampleRecord("s1", start)

	if err := a.SaveSession(want); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	got, err := a.GetSession("s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}

	if !got.EstimatedCost.Equal(want.EstimatedCost) {
		t.Fatalf("cost = %s, want %s (exact)", got.EstimatedCost, want.EstimatedCost)
	}
	if !got.StartTime.Equal(want.StartTime) || !got.EndTime.Equal(want.EndTime) {
		t.Fatalf("times = %v/%v", got.StartTime, got.EndTime)
	}
	if got.Elapsed != want.Elapsed || got.Duration != want.Duration {
		t.Fatalf("durations = %v/%v", got.Elapsed, got.Duration)
	}
	if got.TotalTokens() != want.TotalTokens() || got.ToolCalls != 4 || got.Objectives != 1 {
		t.Fatalf("counters = %+v", got)
	}
	if got.Status != model.StatusCompleted || got.EndReason != model.EndStopped || got.Project != "burnclock" {
		t.Fatalf("metadata = %+v", got.Session)
	}
}

func TestLoadSessionsOrdered(t *testing.T) {
	a := openTemp(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"c", "a", "b"} {
		if err := a.SaveSession(sampleRecord(id, base.Add(time.Duration(2-i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}
	recs, err := a.LoadSessions()
	if err != nil {
		t.Fatalf("LoadSessions: %v", err)
	}
	if len(recs) != 3 || recs[0].ID != "b" || recs[2].ID != "c" {
		t.Fatalf("order = %v", []string{recs[0].ID, recs[1].ID, recs[2].ID})
	}
	n, err := a.SessionCount()
	if err != nil || n != 3 {
		t.Fatalf("SessionCount = %d, %v", n, err)
	}
}

func TestSaveReplacesExisting(t *testing.T) {
	a := openTemp(t)
	r := sampleRecord("s1", time.Now())
	if err := a.SaveSession(r); err != nil {
		t.Fatal(err)
	}
	r.Status = model.StatusError
	if err := a.SaveSession(r); err != nil {
		t.Fatal(err)
	}
	got, _ := a.GetSession("s1")
	if got.Status != model.StatusError {
		t.Fatalf("status = %s", got.Status)
	}
	if n, _ := a.SessionCount(); n != 1 {
		t.Fatalf("count = %d", n)
	}
}

func TestDeleteSession(t *testing.T) {
	a := openTemp(t)
	if err := a.SaveSession(sampleRecord("s1", time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := a.DeleteSession("s1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if err := a.DeleteSession("s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v", err)
	}
	if _, err := a.GetSession("s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetSession err = %v", err)
	}
}

func TestOffsets(t *testing.T) {
	a := openTemp(t)
	fo, err := a.GetOffset("/tmp/x.jsonl")
	if err != nil || fo.Offset != 0 {
		t.Fatalf("missing offset = %+v, %v", fo, err)
	}
	if err := a.SaveOffset("/tmp/x.jsonl", FileOffset{Offset: 4096, MtimeNs: 77}); err != nil {
		t.Fatal(err)
	}
	fo, err = a.GetOffset("/tmp/x.jsonl")
	if err != nil || fo.Offset != 4096 || fo.MtimeNs != 77 {
		t.Fatalf("offset = %+v, %v", fo, err)
	}
}
