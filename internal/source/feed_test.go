package source

import (
	"errors"
	"testing"

	"github.com/theirongolddev/burnclock/internal/meter"
)

type fakeRecorder struct {
	usage    meter.Delta
	tools    int64
	messages int
	models   []string
	closed   bool
}

func (f *fakeRecorder) Record(_ string, d meter.Delta) (meter.Update, error) {
	if f.closed {
		return meter.Update{}, errors.New("closed")
	}
	f.usage = f.usage.Add(d)
	return meter.Update{}, nil
}

func (f *fakeRecorder) RecordToolCall(_ string, n int64) error {
	f.tools += n
	return nil
}

func (f *fakeRecorder) RecordMessage(string) error {
	f.messages++
	return nil
}

func (f *fakeRecorder) SetModel(_, model string) error {
	f.models = append(f.models, model)
	return nil
}

func TestFeedAppliesIncrements(t *testing.T) {
	table := meter.RateTable{"claude-sonnet-4-5": meter.NewRate(3, 15)}
	rec := &fakeRecorder{}
	feed := Feed(rec, "s1", table)

	for _, line := range []string{
		`{"type":"user","message":{"content":"go"}}`,
		`{"type":"assistant","message":{"id":"m1","model":"claude-sonnet-4-5-20250929","usage":{"input_tokens":10,"output_tokens":1}}}`,
		`{"type":"assistant","message":{"id":"m1","model":"claude-sonnet-4-5-20250929","usage":{"input_tokens":10,"output_tokens":9},"content":[{"type":"tool_use","id":"t1"}]}}`,
		`{"type":"assistant","message":{"id":"m2","model":"gpt-9","usage":{"input_tokens":5,"output_tokens":5}}}`,
	} {
		e, ok := ParseLine([]byte(line))
		if !ok {
			t.Fatalf("rejected %s", line)
		}
		feed(e)
	}

	want := meter.Delta{InputTokens: 15, OutputTokens: 14}
	if rec.usage != want {
		t.Fatalf("usage = %+v, want %+v", rec.usage, want)
	}
	if rec.messages != 2 || rec.tools != 1 {
		t.Fatalf("messages = %d tools = %d", rec.messages, rec.tools)
	}
	if len(rec.models) != 1 || rec.models[0] != "claude-sonnet-4-5" {
		t.Fatalf("models = %v", rec.models)
	}
}

func TestFeedStopsCountingAfterRecordFails(t *testing.T) {
	rec := &fakeRecorder{closed: true}
	feed := Feed(rec, "s1", meter.RateTable{})
	e, _ := ParseLine([]byte(`{"type":"assistant","message":{"id":"m1","usage":{"input_tokens":1,"output_tokens":1},"content":[{"type":"tool_use","id":"t1"}]}}`))
	feed(e)
	if rec.messages != 0 || rec.tools != 0 {
		t.Fatalf("counters moved after a failed record: %+v", rec)
	}
}
