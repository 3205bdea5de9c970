package source

import (
	"time"

	"github.com/theirongolddev/burnclock/internal/meter"
)

// Kind classifies a transcript line.
type Kind string

const (
	KindAssistant Kind = "assistant"
	KindUser      Kind = "user"
	KindSystem    Kind = "system"
)

// Entry is the part of a Claude Code JSONL line that burnclock consumes.
type Entry struct {
	Kind      Kind
	Timestamp time.Time
	SessionID string
	Cwd       string

	// Assistant lines.
	MessageID  string
	Model      string
	Usage      meter.Delta
	HasUsage   bool
	ToolUseIDs []string

	// User lines: true for typed prompts, false for tool results.
	IsPrompt bool
}

// DiscoveredFile represents a JSONL file found during directory scanning.
type DiscoveredFile struct {
	Path          string
	Project       string // decoded display name (e.g., "gitlore")
	ProjectDir    string // raw directory name
	SessionID     string // extracted from filename
	IsSubagent    bool
	ParentSession string // for subagents: parent session UUID
	ModTime       time.Time
}
