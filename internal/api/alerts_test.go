package api

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/griffin1995/my-private-tutor-online-sub019/internal/alert"
	"github.com/griffin1995/my-private-tutor-online-sub019/internal/store"
)

func newTestAlertsAPI(t *testing.T) *alertsAPI {
	t.Helper()
	db, err := store.New(filepath.Join(t.TempDir(), "alerts.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	limiter := alert.NewMemoryLimiter()
	t.Cleanup(func() { limiter.Close() })

	dispatcher := alert.NewDispatcher(time.Second, db, nil)
	return newAlertsAPI(db, limiter, dispatcher)
}

func postAlert(aa *alertsAPI, body, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/performance/alerts", strings.NewReader(body))
	if ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}
	rec := httptest.NewRecorder()
	aa.intake(rec, req)
	return rec
}

const poorLCP = `{"metric":"LCP","value":5200,"threshold":2500,"rating":"poor","url":"https://example.com/","timestamp":1700000000000,"sessionId":"sess-1","userAgent":"ua"}`

func TestAlertIntakeRejectsMissingFields(t *testing.T) {
	aa := newTestAlertsAPI(t)

	cases := []string{
		`{"value":5200,"sessionId":"s"}`,              // no metric
		`{"metric":"LCP","sessionId":"s"}`,            // no value
		`{"metric":"LCP","value":0,"sessionId":"s"}`,  // zero value
		`{"metric":"LCP","value":5200}`,               // no session
	}
	for _, body := range cases {
		rec := postAlert(aa, body, "203.0.113.7")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestAlertIntakeClassifiesAndResponds(t *testing.T) {
	aa := newTestAlertsAPI(t)

	rec := postAlert(aa, poorLCP, "203.0.113.7")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != true || body["processed"] != true {
		t.Fatalf("unexpected response %v", body)
	}
	// LCP 5200 poor is over the 4000 critical bound.
	if body["severity"] != "critical" {
		t.Fatalf("expected critical severity, got %v", body["severity"])
	}
	id, _ := body["alertId"].(string)
	if !strings.HasPrefix(id, "alert_") {
		t.Fatalf("unexpected alert id %q", id)
	}
}

func TestAlertIntakeRateLimited(t *testing.T) {
	aa := newTestAlertsAPI(t)

	for i := 0; i < 5; i++ {
		rec := postAlert(aa, poorLCP, "203.0.113.7")
		body := decodeBody(t, rec)
		if body["success"] != true {
			t.Fatalf("alert %d should pass, got %v", i+1, body)
		}
	}

	rec := postAlert(aa, poorLCP, "203.0.113.7")
	if rec.Code != http.StatusOK {
		t.Fatalf("rate-limited response is still 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["success"] != false || body["error"] != "Rate limit exceeded" {
		t.Fatalf("expected rate limit rejection, got %v", body)
	}
	if body["retryAfter"] != float64(60) {
		t.Fatalf("expected retryAfter 60, got %v", body["retryAfter"])
	}

	// A different metric has its own budget.
	inp := strings.Replace(poorLCP, `"metric":"LCP"`, `"metric":"INP"`, 1)
	if b := decodeBody(t, postAlert(aa, inp, "203.0.113.7")); b["success"] != true {
		t.Fatalf("different metric must not share the counter: %v", b)
	}
}

func TestAlertListReturnsHistory(t *testing.T) {
	aa := newTestAlertsAPI(t)

	// The fixture's client timestamp is years stale; the 24h window
	// must still match because it filters on detection time.
	postAlert(aa, poorLCP, "203.0.113.7")
	postAlert(aa, strings.Replace(poorLCP, `"metric":"LCP"`, `"metric":"INP"`, 1), "203.0.113.7")

	req := httptest.NewRequest("GET", "/api/performance/alerts?timeRange=24h", nil)
	rec := httptest.NewRecorder()
	aa.list(rec, req)

	body := decodeBody(t, rec)
	if body["total"] != float64(2) {
		t.Fatalf("expected 2 alerts in history, got %v", body)
	}

	req = httptest.NewRequest("GET", "/api/performance/alerts?severity=critical&limit=1", nil)
	rec = httptest.NewRecorder()
	aa.list(rec, req)
	body = decodeBody(t, rec)
	if body["total"] != float64(1) || body["severity"] != "critical" {
		t.Fatalf("severity filter failed: %v", body)
	}
}
