package source

import (
	"log"

	"github.com/theirongolddev/burnclock/internal/meter"
)

// Recorder is the part of a session manager a live transcript feeds.
type Recorder interface {
	Record(id string, d meter.Delta) (meter.Update, error)
	RecordToolCall(id string, n int64) error
	RecordMessage(id string) error
	SetModel(id, model string) error
}

// Feed returns a Follower callback that applies each transcript entry to
// session id. Models are resolved through table; a model the table does not
// price is reported once and usage keeps the session's current rate.
func Feed(r Recorder, id string, table meter.RateTable) func(Entry) {
	tracker := NewTracker()
	var current string
	unknown := make(map[string]bool)

	return func(e Entry) {
		obs := tracker.Observe(e)
		if obs.IsZero() {
			return
		}

		if obs.Model != "" && obs.Model != current {
			if _, key, ok := table.Lookup(obs.Model); ok {
				if err := r.SetModel(id, key); err != nil {
					log.Printf("feed level=warn event=set_model id=%s model=%s err=%v", id, key, err)
				} else {
					current = obs.Model
				}
			} else if !unknown[obs.Model] {
				unknown[obs.Model] = true
				log.Printf("feed level=warn event=unpriced_model id=%s model=%s", id, obs.Model)
			}
		}

		if !obs.Usage.IsZero() {
			if _, err := r.Record(id, obs.Usage); err != nil {
				log.Printf("feed level=warn event=record id=%s err=%v", id, err)
				return
			}
		}
		if obs.NewMessage {
			_ = r.RecordMessage(id)
		}
		if obs.ToolCalls > 0 {
			_ = r.RecordToolCall(id, obs.ToolCalls)
		}
	}
}
