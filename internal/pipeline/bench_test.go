package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/burnclock/internal/model"
	"github.com/theirongolddev/burnclock/internal/source"
)

func BenchmarkLoadTranscripts(b *testing.B) {
	homeDir, _ := os.UserHomeDir()
	claudeDir := filepath.Join(homeDir, ".claude")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		result, err := LoadTranscripts(claudeDir, true, nil)
		if err != nil {
			b.Fatal(err)
		}
		_ = result
	}
}

func BenchmarkSummarizeFile(b *testing.B) {
	var lines []string
	for i := 0; i < 2000; i++ {
		lines = append(lines, fmt.Sprintf(
			`{"type":"assistant","timestamp":"2026-03-01T09:00:00Z","message":{"id":"m%d","model":"claude-sonnet-4-5","usage":{"input_tokens":%d,"output_tokens":40,"cache_read_input_tokens":9000},"content":[{"type":"tool_use","id":"t%d"}]}}`,
			i, 100+i, i))
	}
	path := filepath.Join(b.TempDir(), "big.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := source.SummarizeFile(path); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAggregate(b *testing.B) {
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	records := make([]model.SessionRecord, 5000)
	for i := range records {
		records[i] = model.SessionRecord{
			Session: model.Session{
				ID:        fmt.Sprintf("s%d", i),
				Model:     "claude-sonnet-4-5",
				StartTime: base.Add(time.Duration(i) * time.Hour),
				EndReason: model.EndExpired,
			},
			Elapsed:       time.Hour,
			InputTokens:   int64(i),
			OutputTokens:  10,
			EstimatedCost: decimal.New(int64(i), -4),
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Aggregate(records, time.Time{}, time.Time{})
	}
}
