package daemon

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/theirongolddev/burnclock/internal/clock"
	"github.com/theirongolddev/burnclock/internal/meter"
	"github.com/theirongolddev/burnclock/internal/model"
	"github.com/theirongolddev/burnclock/internal/session"
)

func testService(t *testing.T, buffer int) (*Service, *httptest.Server) {
	t.Helper()
	s := New(Config{EventsBuffer: buffer},
		meter.RateTable{"claude-sonnet-4-5": meter.NewRate(3, 15)},
		session.WithClock(clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))),
	)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		s.Manager().Close()
	})
	return s, srv
}

func do(t *testing.T, method, url, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func TestPublishEventRingBuffer(t *testing.T) {
	s := New(Config{EventsBuffer: 2}, meter.RateTable{})

	s.Publish(session.Event{Type: session.EventStarted})
	s.Publish(session.Event{Type: session.EventUsage})
	s.Publish(session.Event{Type: session.EventTick})
	s.Publish(session.Event{Type: session.EventCompleted})

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.events) != 2 {
		t.Fatalf("events len = %d, want 2", len(s.events))
	}
	if s.events[0].ID != 2 || s.events[1].ID != 4 {
		t.Fatalf("events ring contains IDs [%d, %d], want [2, 4]", s.events[0].ID, s.events[1].ID)
	}
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	_, srv := testService(t, 50)
	base := srv.URL + "/v1/sessions"

	var started session.Snapshot
	if code := do(t, "POST", base, `{"duration":"1:00:00","label":"refactor"}`, &started); code != http.StatusCreated {
		t.Fatalf("start = %d", code)
	}
	id := started.Session.ID
	if id == "" || started.Session.Duration != time.Hour || started.Session.Label != "refactor" {
		t.Fatalf("started = %+v", started.Session)
	}

	var u meter.Update
	if code := do(t, "POST", base+"/"+id+"/usage", `{"input_tokens":1000,"output_tokens":1000,"tool_calls":2,"messages":1}`, &u); code != http.StatusOK {
		t.Fatalf("usage = %d", code)
	}
	if !u.CostTotal.Equal(decimal.RequireFromString("0.018")) {
		t.Fatalf("cost = %s", u.CostTotal)
	}

	var snap session.Snapshot
	if code := do(t, "POST", base+"/"+id+"/pause", "", &snap); code != http.StatusOK || snap.Session.Status != model.StatusPaused {
		t.Fatalf("pause = %d %s", code, snap.Session.Status)
	}
	if code := do(t, "POST", base+"/"+id+"/resume", "", &snap); code != http.StatusOK || snap.Session.Status != model.StatusActive {
		t.Fatalf("resume = %d %s", code, snap.Session.Status)
	}
	if code := do(t, "POST", base+"/"+id+"/stop", "", &snap); code != http.StatusOK || snap.Session.Status != model.StatusCompleted {
		t.Fatalf("stop = %d %s", code, snap.Session.Status)
	}
	if snap.Usage.ToolCalls != 2 || snap.Usage.MessageCount != 1 {
		t.Fatalf("counters = %+v", snap.Usage)
	}

	if code := do(t, "POST", base+"/"+id+"/usage", `{"input_tokens":1}`, nil); code != http.StatusConflict {
		t.Fatalf("usage after stop = %d, want 409", code)
	}
	if code := do(t, "DELETE", base+"/"+id, "", nil); code != http.StatusNoContent {
		t.Fatalf("delete = %d", code)
	}
	if code := do(t, "GET", base+"/"+id, "", nil); code != http.StatusNotFound {
		t.Fatalf("get after delete = %d, want 404", code)
	}

	var events []Event
	do(t, "GET", srv.URL+"/v1/events", "", &events)
	var types []string
	for _, ev := range events {
		types = append(types, string(ev.Type))
	}
	want := "session_started,usage,session_paused,session_resumed,session_completed,session_deleted"
	if strings.Join(types, ",") != want {
		t.Fatalf("events = %v", types)
	}
}

func TestErrorMapping(t *testing.T) {
	_, srv := testService(t, 10)
	base := srv.URL + "/v1/sessions"

	tests := []struct {
		name, method, url, body string
		want                    int
	}{
		{"unknown model", "POST", base, `{"model":"gpt-9"}`, http.StatusBadRequest},
		{"bad duration", "POST", base, `{"duration":"1:75"}`, http.StatusBadRequest},
		{"negative duration", "POST", base, `{"duration_ms":-5}`, http.StatusBadRequest},
		{"unknown field", "POST", base, `{"minutes":5}`, http.StatusBadRequest},
		{"missing session", "GET", base + "/nope", "", http.StatusNotFound},
		{"missing session stop", "POST", base + "/nope/stop", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		if code := do(t, tt.method, tt.url, tt.body, nil); code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, code, tt.want)
		}
	}

	var snap session.Snapshot
	do(t, "POST", base, "", &snap)
	for _, body := range []string{`{"input_tokens":-1}`, `{"output_tokens":1.5}`} {
		if code := do(t, "POST", base+"/"+snap.Session.ID+"/usage", body, nil); code != http.StatusBadRequest {
			t.Errorf("usage %s = %d, want 400", body, code)
		}
	}
}

func TestStatus(t *testing.T) {
	_, srv := testService(t, 10)
	var snap session.Snapshot
	do(t, "POST", srv.URL+"/v1/sessions", "", &snap)
	do(t, "POST", srv.URL+"/v1/sessions/"+snap.Session.ID+"/usage", `{"output_tokens":1000000}`, nil)

	var st Status
	if code := do(t, "GET", srv.URL+"/v1/status", "", &st); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if st.Sessions != 1 || st.ActiveSessions != 1 || st.LiveTokens != 1_000_000 {
		t.Fatalf("status = %+v", st)
	}
	if !st.LiveCostUSD.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("live cost = %s", st.LiveCostUSD)
	}
}

func TestStreamSendsSnapshotThenEvents(t *testing.T) {
	s, srv := testService(t, 10)

	resp, err := http.Get(srv.URL + "/v1/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	r := bufio.NewReader(resp.Body)

	readEvent := func() string {
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				t.Fatalf("reading stream: %v", err)
			}
			if strings.HasPrefix(line, "event: ") {
				return strings.TrimSpace(strings.TrimPrefix(line, "event: "))
			}
		}
	}

	if typ := readEvent(); typ != "snapshot" {
		t.Fatalf("first event = %q", typ)
	}
	if _, err := s.Manager().Start(session.StartOptions{}); err != nil {
		t.Fatal(err)
	}
	if typ := readEvent(); typ != string(session.EventStarted) {
		t.Fatalf("second event = %q", typ)
	}
}

func TestWebSocketStream(t *testing.T) {
	s, srv := testService(t, 10)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var h hello
	if err := conn.ReadJSON(&h); err != nil || h.Type != "snapshot" {
		t.Fatalf("hello = %+v, %v", h, err)
	}

	snap, err := s.Manager().Start(session.StartOptions{})
	if err != nil {
		t.Fatal(err)
	}
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Type != session.EventStarted || ev.SessionID != snap.Session.ID {
		t.Fatalf("event = %+v", ev)
	}
}

func TestHealth(t *testing.T) {
	_, srv := testService(t, 10)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok\n" {
		t.Fatalf("body = %q", body)
	}
}
