package daemon

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/theirongolddev/burnclock/internal/meter"
	"github.com/theirongolddev/burnclock/internal/session"
	"github.com/theirongolddev/burnclock/internal/timer"
)

// Handler returns the daemon's HTTP routes.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
	mux.HandleFunc("GET /v1/stream", s.handleStream)
	mux.HandleFunc("GET /v1/ws", s.handleWebSocket)

	mux.HandleFunc("GET /v1/sessions", s.handleListSessions)
	mux.HandleFunc("POST /v1/sessions", s.handleStartSession)
	mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /v1/sessions/{id}/pause", s.control(s.mgr.Pause))
	mux.HandleFunc("POST /v1/sessions/{id}/resume", s.control(s.mgr.Resume))
	mux.HandleFunc("POST /v1/sessions/{id}/stop", s.control(s.mgr.Stop))
	mux.HandleFunc("POST /v1/sessions/{id}/usage", s.handleUsage)
	mux.HandleFunc("POST /v1/sessions/{id}/model", s.handleSetModel)
	return mux
}

// StartRequest is the body of POST /v1/sessions. Duration is MM:SS or
// HH:MM:SS; DurationMS wins when both are set.
type StartRequest struct {
	Model      string  `json:"model"`
	Duration   string  `json:"duration"`
	DurationMS float64 `json:"duration_ms"`
	Project    string  `json:"project"`
	Label      string  `json:"label"`
}

// UsageRequest is the body of POST /v1/sessions/{id}/usage.
type UsageRequest struct {
	InputTokens         float64 `json:"input_tokens"`
	OutputTokens        float64 `json:"output_tokens"`
	CacheCreationTokens float64 `json:"cache_creation_tokens"`
	CacheReadTokens     float64 `json:"cache_read_tokens"`
	ToolCalls           int64   `json:"tool_calls"`
	Messages            int64   `json:"messages"`
	Objectives          int64   `json:"objectives"`
}

func (s *Service) handleListSessions(w http.ResponseWriter, r *http.Request) {
	snaps := s.mgr.List()
	if r.URL.Query().Get("active") == "true" {
		snaps = s.mgr.Active()
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (s *Service) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var d time.Duration
	var err error
	switch {
	case req.DurationMS != 0:
		d, err = timer.MillisToDuration(req.DurationMS)
	case req.Duration != "":
		d, err = timer.ParseTimeString(req.Duration)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	snap, err := s.mgr.Start(session.StartOptions{
		Model:    req.Model,
		Duration: d,
		Project:  req.Project,
		Label:    req.Label,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Service) handleGetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.mgr.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Service) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.Delete(r.PathValue("id")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) control(op func(string) (session.Snapshot, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := op(r.PathValue("id"))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func (s *Service) handleUsage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req UsageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	d, err := meter.DeltaFromNumbers(req.InputTokens, req.CacheCreationTokens, req.CacheReadTokens, req.OutputTokens)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ToolCalls < 0 || req.Messages < 0 || req.Objectives < 0 {
		writeError(w, http.StatusBadRequest, errors.New("counters must not be negative"))
		return
	}

	u, err := s.mgr.Record(id, d)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if req.ToolCalls > 0 {
		_ = s.mgr.RecordToolCall(id, req.ToolCalls)
	}
	for range req.Messages {
		_ = s.mgr.RecordMessage(id)
	}
	for range req.Objectives {
		_ = s.mgr.RecordObjective(id)
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Service) handleSetModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model string `json:"model"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id := r.PathValue("id")
	if err := s.mgr.SetModel(id, req.Model); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	snap, err := s.mgr.Get(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrSessionClosed):
		return http.StatusConflict
	case errors.Is(err, meter.ErrInvalidUsageDelta),
		errors.Is(err, meter.ErrUnknownModel),
		errors.Is(err, timer.ErrInvalidDuration),
		errors.Is(err, timer.ErrInvalidTimeFormat):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
