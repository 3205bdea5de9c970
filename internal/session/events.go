package session

import (
	"time"

	"github.com/theirongolddev/burnclock/internal/meter"
	"github.com/theirongolddev/burnclock/internal/model"
)

// EventType names a session notification.
type EventType string

const (
	EventStarted   EventType = "session_started"
	EventTick      EventType = "tick"
	EventPaused    EventType = "session_paused"
	EventResumed   EventType = "session_resumed"
	EventUsage     EventType = "usage"
	EventAlert     EventType = "alert"
	EventCompleted EventType = "session_completed"
	EventDeleted   EventType = "session_deleted"
)

// Event is published for every timer tick, usage update and lifecycle change.
type Event struct {
	Type        EventType     `json:"type"`
	SessionID   string        `json:"session_id"`
	At          time.Time     `json:"at"`
	Status      model.Status  `json:"status,omitempty"`
	ElapsedMS   int64         `json:"elapsed_ms"`
	RemainingMS int64         `json:"remaining_ms"`
	Usage       *meter.Update `json:"usage,omitempty"`
	Alert       *meter.Alert  `json:"alert,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// EventSink receives events. Publish is called without manager locks held and
// must not block for long.
type EventSink interface {
	Publish(Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(Event)

// Publish implements EventSink.
func (f SinkFunc) Publish(ev Event) { f(ev) }

// Archiver persists sessions once they close.
type Archiver interface {
	SaveSession(model.SessionRecord) error
}

type multiSink []EventSink

func (m multiSink) Publish(ev Event) {
	for _, s := range m {
		s.Publish(ev)
	}
}
