package claudeai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

const testKey = "sk-ant-sid01-test"

func fakeAPI(t *testing.T, usage string, status int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /organizations", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cookie") != "sessionKey="+testKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		_, _ = w.Write([]byte(`[{"uuid":"org-a","name":"A"},{"uuid":"org-b","name":"B"}]`))
	})
	mux.HandleFunc("GET /organizations/{id}/usage", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(usage))
	})
	mux.HandleFunc("GET /organizations/{id}/overage_spend_limit", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"isEnabled":true,"usedCredits":12.5,"monthlyCreditLimit":100,"currency":"USD"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClientRejectsBadKey(t *testing.T) {
	for _, k := range []string{"", "  ", "sk-ant-api-123"} {
		if _, err := NewClient(k); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("NewClient(%q) err = %v", k, err)
		}
	}
}

func TestFetchAll(t *testing.T) {
	usage := `{
		"five_hour": {"utilization": 42, "resets_at": "2026-03-01T12:00:00Z"},
		"seven_day": {"utilization": "0.5"},
		"seven_day_opus": {"utilization": "80%"},
		"seven_day_sonnet": {"utilization": null}
	}`
	srv := fakeAPI(t, usage, 0)
	c, err := NewClient(testKey, WithBaseURL(srv.URL+"/"))
	if err != nil {
		t.Fatal(err)
	}

	data := c.FetchAll(context.Background(), "org-b")
	if data.Error != nil {
		t.Fatalf("FetchAll: %v", data.Error)
	}
	if data.Org.UUID != "org-b" {
		t.Fatalf("org = %+v", data.Org)
	}
	u := data.Usage
	if u.FiveHour == nil || u.FiveHour.Pct != 0.42 {
		t.Fatalf("five hour = %+v", u.FiveHour)
	}
	if u.SevenDay.Pct != 0.5 || u.SevenDayOpus.Pct != 0.8 {
		t.Fatalf("seven day = %+v / %+v", u.SevenDay, u.SevenDayOpus)
	}
	if u.SevenDaySonnet != nil {
		t.Fatalf("null utilization parsed: %+v", u.SevenDaySonnet)
	}
	if data.Overage == nil || data.Overage.UsedCredits != 12.5 {
		t.Fatalf("overage = %+v", data.Overage)
	}

	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	if r, ok := data.SessionWindow(now); !ok || r != 150*time.Minute {
		t.Fatalf("SessionWindow = %v, %v", r, ok)
	}
	if _, ok := data.SessionWindow(now.Add(3 * time.Hour)); ok {
		t.Fatal("expired window reported")
	}
}

func TestFetchAllUnknownOrg(t *testing.T) {
	srv := fakeAPI(t, `{}`, 0)
	c, _ := NewClient(testKey, WithBaseURL(srv.URL))
	if data := c.FetchAll(context.Background(), "org-z"); !errors.Is(data.Error, ErrNoOrganization) {
		t.Fatalf("err = %v", data.Error)
	}
}

func TestErrorStatuses(t *testing.T) {
	tests := map[int]error{
		http.StatusForbidden:       ErrUnauthorized,
		http.StatusTooManyRequests: ErrRateLimited,
	}
	for code, want := range tests {
		srv := fakeAPI(t, `{}`, code)
		c, _ := NewClient(testKey, WithBaseURL(srv.URL))
		if _, err := c.FetchOrganizations(context.Background()); !errors.Is(err, want) {
			t.Errorf("status %d: err = %v, want %v", code, err, want)
		}
	}

	srv := fakeAPI(t, `{}`, 0)
	c, _ := NewClient("sk-ant-sid-other", WithBaseURL(srv.URL))
	if _, err := c.FetchOrganizations(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("wrong key err = %v", err)
	}
}

func TestParseUtilization(t *testing.T) {
	if _, ok := parseUtilization(gjson.Parse(`"n/a"`)); ok {
		t.Fatal("non-numeric string accepted")
	}
	if _, ok := parseUtilization(gjson.Parse(`true`)); ok {
		t.Fatal("bool accepted")
	}
	if v, ok := parseUtilization(gjson.Parse(`0.75`)); !ok || v != 0.75 {
		t.Fatalf("0.75 = %v, %v", v, ok)
	}
	if v, ok := parseUtilization(gjson.Parse(`" 75%"`)); !ok || v != 0.75 {
		t.Fatalf("string percent = %v, %v", v, ok)
	}
}
