// Package daemon serves live sessions over HTTP, SSE and WebSocket.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/burnclock/internal/meter"
	"github.com/theirongolddev/burnclock/internal/model"
	"github.com/theirongolddev/burnclock/internal/pipeline"
	"github.com/theirongolddev/burnclock/internal/session"
)

// Config controls the daemon runtime behavior.
type Config struct {
	Addr         string
	EventsBuffer int
	DataDir      string
	// History, when set, feeds the archived totals in /v1/status.
	History HistorySource
}

// HistorySource reads archived sessions.
type HistorySource interface {
	LoadSessions() ([]model.SessionRecord, error)
}

// Event is a session event with a daemon-assigned sequence number.
type Event struct {
	ID int64 `json:"id"`
	session.Event
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time           `json:"started_at"`
	Addr            string              `json:"addr"`
	DataDir         string              `json:"data_dir,omitempty"`
	Sessions        int                 `json:"sessions"`
	ActiveSessions  int                 `json:"active_sessions"`
	LiveTokens      int64               `json:"live_tokens"`
	LiveCostUSD     decimal.Decimal     `json:"live_cost_usd"`
	Today           *model.SummaryStats `json:"today,omitempty"`
	LastError       string              `json:"last_error,omitempty"`
	EventCount      int                 `json:"event_count"`
	SubscriberCount int                 `json:"subscriber_count"`
}

// Service owns a session manager and fans its events out to HTTP clients.
type Service struct {
	cfg Config
	mgr *session.Manager

	mu          sync.RWMutex
	startedAt   time.Time
	lastError   string
	nextEventID int64
	events      []Event

	nextSubID int
	subs      map[int]chan Event
}

// New returns a daemon service. The session manager is built from table and
// opts with the service registered as an event sink.
func New(cfg Config, table meter.RateTable, opts ...session.Option) *Service {
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8787"
	}

	s := &Service{
		cfg:       cfg,
		startedAt: time.Now(),
		subs:      make(map[int]chan Event),
	}
	opts = append(opts, session.WithSink(s))
	s.mgr = session.NewManager(table, opts...)
	return s
}

// Manager returns the underlying session manager.
func (s *Service) Manager() *session.Manager { return s.mgr }

// Run serves HTTP until ctx is canceled, then stops every open session.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Printf("daemon level=info event=listen addr=%s", s.cfg.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		s.mgr.Close()
		return err
	case err := <-errCh:
		s.mgr.Close()
		return fmt.Errorf("daemon http server: %w", err)
	}
}

// Publish implements session.EventSink. Tick events are streamed but not kept
// in the replay buffer.
func (s *Service) Publish(ev session.Event) {
	s.mu.Lock()
	s.nextEventID++
	out := Event{ID: s.nextEventID, Event: ev}

	if ev.Type != session.EventTick {
		s.events = append(s.events, out)
		if len(s.events) > s.cfg.EventsBuffer {
			s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
		}
	}
	if ev.Error != "" {
		s.lastError = ev.Error
	}

	for _, ch := range s.subs {
		select {
		case ch <- out:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Service) snapshotStatus() Status {
	snaps := s.mgr.List()

	st := Status{
		StartedAt:   s.startedAt,
		Addr:        s.cfg.Addr,
		DataDir:     s.cfg.DataDir,
		Sessions:    len(snaps),
		LiveCostUSD: decimal.Zero,
	}
	for _, snap := range snaps {
		if !snap.Session.Status.Closed() {
			st.ActiveSessions++
		}
		st.LiveTokens += snap.Usage.TotalTokens()
		st.LiveCostUSD = st.LiveCostUSD.Add(snap.Usage.EstimatedCost)
	}

	if s.cfg.History != nil {
		records, err := s.cfg.History.LoadSessions()
		if err != nil {
			s.mu.Lock()
			s.lastError = err.Error()
			s.mu.Unlock()
		} else {
			now := time.Now()
			midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
			today := pipeline.Aggregate(records, midnight, time.Time{})
			st.Today = &today
		}
	}

	s.mu.RLock()
	st.LastError = s.lastError
	st.EventCount = len(s.events)
	st.SubscriberCount = len(s.subs)
	s.mu.RUnlock()
	return st
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshotStatus())
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, events)
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
