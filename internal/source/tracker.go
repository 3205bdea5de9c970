package source

import "github.com/theirongolddev/burnclock/internal/meter"

// Observation is what one entry adds to a session.
type Observation struct {
	Model     string
	Usage     meter.Delta
	ToolCalls int64
	Prompt    bool
	// NewMessage is set on the first usage line of a message id.
	NewMessage bool
}

// IsZero reports whether the observation adds nothing.
func (o Observation) IsZero() bool {
	return o.Usage.IsZero() && o.ToolCalls == 0 && !o.Prompt
}

// Tracker turns transcript entries into increments. Claude Code writes one
// line per content block and repeats the message id with cumulative usage,
// so only the growth since the last line for that id is new.
type Tracker struct {
	seen  map[string]meter.Delta
	tools map[string]struct{}
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		seen:  make(map[string]meter.Delta),
		tools: make(map[string]struct{}),
	}
}

// Observe returns the increment carried by e.
func (t *Tracker) Observe(e Entry) Observation {
	switch e.Kind {
	case KindUser:
		return Observation{Prompt: e.IsPrompt}
	case KindAssistant:
	default:
		return Observation{}
	}

	obs := Observation{Model: e.Model}
	for _, id := range e.ToolUseIDs {
		if id == "" {
			obs.ToolCalls++
			continue
		}
		if _, dup := t.tools[id]; dup {
			continue
		}
		t.tools[id] = struct{}{}
		obs.ToolCalls++
	}

	if !e.HasUsage {
		return obs
	}
	if e.MessageID == "" {
		obs.Usage = e.Usage
		return obs
	}

	prev, known := t.seen[e.MessageID]
	obs.NewMessage = !known
	obs.Usage = meter.Delta{
		InputTokens:         growth(prev.InputTokens, e.Usage.InputTokens),
		CacheCreationTokens: growth(prev.CacheCreationTokens, e.Usage.CacheCreationTokens),
		CacheReadTokens:     growth(prev.CacheReadTokens, e.Usage.CacheReadTokens),
		OutputTokens:        growth(prev.OutputTokens, e.Usage.OutputTokens),
	}
	t.seen[e.MessageID] = meter.Delta{
		InputTokens:         max(prev.InputTokens, e.Usage.InputTokens),
		CacheCreationTokens: max(prev.CacheCreationTokens, e.Usage.CacheCreationTokens),
		CacheReadTokens:     max(prev.CacheReadTokens, e.Usage.CacheReadTokens),
		OutputTokens:        max(prev.OutputTokens, e.Usage.OutputTokens),
	}
	return obs
}

// Messages returns how many distinct message ids have reported usage.
func (t *Tracker) Messages() int {
	return len(t.seen)
}

func growth(prev, cur int64) int64 {
	return max(0, cur-prev)
}
