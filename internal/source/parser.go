// Package source discovers, parses and follows Claude Code JSONL transcripts.
package source

import (
	"bufio"
	"io"
	"os"
	"time"

	"github.com/tidwall/gjson"

	"github.com/theirongolddev/burnclock/internal/meter"
)

const (
	initialBufSize = 256 * 1024
	maxLineSize    = 4 * 1024 * 1024
)

// ParseLine extracts an Entry from one transcript line. It reports false for
// invalid JSON and for line types burnclock ignores.
func ParseLine(line []byte) (Entry, bool) {
	if len(line) == 0 || !gjson.ValidBytes(line) {
		return Entry{}, false
	}
	res := gjson.ParseBytes(line)

	e := Entry{
		Kind:      Kind(res.Get("type").String()),
		SessionID: res.Get("sessionId").String(),
		Cwd:       res.Get("cwd").String(),
	}
	if ts := res.Get("timestamp").String(); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			e.Timestamp = t
		}
	}

	switch e.Kind {
	case KindAssistant:
		msg := res.Get("message")
		e.MessageID = msg.Get("id").String()
		e.Model = msg.Get("model").String()
		if u := msg.Get("usage"); u.Exists() {
			d, err := meter.DeltaFromNumbers(
				u.Get("input_tokens").Float(),
				cacheCreation(u),
				u.Get("cache_read_input_tokens").Float(),
				u.Get("output_tokens").Float(),
			)
			if err == nil {
				e.Usage = d
				e.HasUsage = true
			}
		}
		msg.Get("content").ForEach(func(_, block gjson.Result) bool {
			if block.Get("type").String() == "tool_use" {
				e.ToolUseIDs = append(e.ToolUseIDs, block.Get("id").String())
			}
			return true
		})
	case KindUser:
		e.IsPrompt = isPrompt(res.Get("message.content"))
	case KindSystem:
	default:
		return Entry{}, false
	}
	return e, true
}

// cacheCreation prefers the flat counter and falls back to the per-TTL
// breakdown when only that is present.
func cacheCreation(u gjson.Result) float64 {
	if v := u.Get("cache_creation_input_tokens"); v.Exists() {
		return v.Float()
	}
	cc := u.Get("cache_creation")
	return cc.Get("ephemeral_5m_input_tokens").Float() + cc.Get("ephemeral_1h_input_tokens").Float()
}

func isPrompt(content gjson.Result) bool {
	switch {
	case content.Type == gjson.String:
		return content.String() != ""
	case content.IsArray():
		prompt := false
		for _, block := range content.Array() {
			switch block.Get("type").String() {
			case "tool_result":
				return false
			case "text":
				prompt = true
			}
		}
		return prompt
	default:
		return false
	}
}

// ReadEntries parses every line of r and calls fn for each recognized entry.
// It returns the number of lines that were not valid JSON.
func ReadEntries(r io.Reader, fn func(Entry)) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialBufSize), maxLineSize)

	bad := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		e, ok := ParseLine(line)
		if !ok {
			if !gjson.ValidBytes(line) {
				bad++
			}
			continue
		}
		fn(e)
	}
	return bad, scanner.Err()
}

// FileSummary is the total a transcript contributes.
type FileSummary struct {
	Model      string
	Usage      meter.Delta
	ByModel    map[string]meter.Delta
	ToolCalls  int64
	Prompts    int64
	Messages   int
	Start, End time.Time
	BadLines   int
}

// SummarizeFile reads a whole transcript through a Tracker.
func SummarizeFile(path string) (FileSummary, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from ScanDir or the user
	if err != nil {
		return FileSummary{}, err
	}
	defer func() { _ = f.Close() }()

	s := FileSummary{ByModel: make(map[string]meter.Delta)}
	tr := NewTracker()
	s.BadLines, err = ReadEntries(f, func(e Entry) {
		if !e.Timestamp.IsZero() {
			if s.Start.IsZero() || e.Timestamp.Before(s.Start) {
				s.Start = e.Timestamp
			}
			if e.Timestamp.After(s.End) {
				s.End = e.Timestamp
			}
		}
		obs := tr.Observe(e)
		if obs.Model != "" {
			s.Model = obs.Model
		}
		s.Usage = s.Usage.Add(obs.Usage)
		if !obs.Usage.IsZero() {
			s.ByModel[obs.Model] = s.ByModel[obs.Model].Add(obs.Usage)
		}
		s.ToolCalls += obs.ToolCalls
		if obs.Prompt {
			s.Prompts++
		}
	})
	s.Messages = tr.Messages()
	return s, err
}
