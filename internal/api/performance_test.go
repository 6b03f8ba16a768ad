package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/griffin1995/my-private-tutor-online-sub019/internal/ingest"
	"github.com/griffin1995/my-private-tutor-online-sub019/internal/model"
)

func newTestPerformanceAPI() *performanceAPI {
	pa := newPerformanceAPI(ingest.NewStore(0, 0), nil)
	pa.env = func(string) string { return "" }
	return pa
}

func ingestBody(tier model.UserTier, metrics ...model.MetricRecord) string {
	payload := model.IngestPayload{
		SessionID: "sess-1",
		UserTier:  tier,
		Timestamp: 1700000000000,
		Metrics:   metrics,
		Metadata: model.PayloadMetadata{
			URL:       "https://example.com/faq",
			UserAgent: "test-agent",
		},
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

func metric(name string, value float64, rating model.Rating) model.MetricRecord {
	return model.MetricRecord{
		ID:        "m-" + name,
		Name:      name,
		Value:     value,
		Rating:    rating,
		Timestamp: 1700000000000,
		URL:       "https://example.com/faq",
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response not JSON: %v (%s)", err, rec.Body.String())
	}
	return body
}

func TestIngestValidPayload(t *testing.T) {
	pa := newTestPerformanceAPI()

	req := httptest.NewRequest("POST", "/api/analytics/performance",
		strings.NewReader(ingestBody(model.TierStandard,
			metric("LCP", 1200, model.RatingGood),
			metric("CLS", 0.02, model.RatingGood))))
	req.Header.Set(correlationHeader, "corr-1")
	rec := httptest.NewRecorder()
	pa.ingest(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != true || body["processed"] != float64(2) {
		t.Fatalf("unexpected response %v", body)
	}
	if body["alerts"] != float64(0) {
		t.Fatalf("standard tier must not raise SLA alerts, got %v", body["alerts"])
	}
	if body["correlationId"] != "corr-1" {
		t.Fatalf("correlation id not echoed: %v", body)
	}
}

func TestIngestRejectsBadPayload(t *testing.T) {
	pa := newTestPerformanceAPI()

	req := httptest.NewRequest("POST", "/api/analytics/performance",
		strings.NewReader(`{"sessionId":"","userType":"royal","metrics":[{"name":"LCP","value":100,"rating":"excellent"}]}`))
	rec := httptest.NewRecorder()
	pa.ingest(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["success"] != false || body["error"] != "Invalid performance data format" {
		t.Fatalf("unexpected error body %v", body)
	}
	details, ok := body["details"].([]any)
	if !ok || len(details) != 3 {
		t.Fatalf("expected sessionId, rating and url problems, got %v", body["details"])
	}
}

func TestIngestRoyalSLAViolationPostsWebhook(t *testing.T) {
	var hits atomic.Int64
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var v map[string]any
		if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
			t.Errorf("webhook body not JSON: %v", err)
		}
		if v["alert_type"] != "royal_client_sla_violation" {
			t.Errorf("unexpected webhook payload %v", v)
		}
	}))
	defer hook.Close()

	pa := newTestPerformanceAPI()
	pa.env = func(key string) string {
		if key == EnvMonitoringWebhook {
			return hook.URL
		}
		return ""
	}

	// FCP 2000 is over the royal budget of 1000.
	req := httptest.NewRequest("POST", "/api/analytics/performance",
		strings.NewReader(ingestBody(model.TierRoyal, metric("FCP", 2000, model.RatingPoor))))
	rec := httptest.NewRecorder()
	pa.ingest(rec, req)

	body := decodeBody(t, rec)
	if body["alerts"] != float64(1) {
		t.Fatalf("expected 1 SLA alert, got %v", body["alerts"])
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one webhook hit, got %d", hits.Load())
	}
}

func TestIngestEnrichesRecords(t *testing.T) {
	pa := newTestPerformanceAPI()

	m := metric("LCP", 1200, model.RatingGood)
	m.UserAgent = "client-agent"
	req := httptest.NewRequest("POST", "/api/analytics/performance",
		strings.NewReader(ingestBody(model.TierStandard, m)))
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("User-Agent", "enrich-test")
	rec := httptest.NewRecorder()
	pa.ingest(rec, req)

	stored := pa.metrics.Metrics("sess-1")
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored record, got %d", len(stored))
	}
	got := stored[0]
	if got.SessionID != "sess-1" || got.UserTier != model.TierStandard {
		t.Fatalf("enrichment missing: %+v", got)
	}
	if got.Origin != "https://example.com" || got.RequestUserAgent != "enrich-test" {
		t.Fatalf("request context not applied: %+v", got)
	}
	if got.UserAgent != "client-agent" {
		t.Fatalf("client userAgent must survive enrichment: %+v", got)
	}
	if got.ServerTimestamp == 0 {
		t.Fatalf("serverTimestamp not set")
	}
}

func TestGetSessionMetrics(t *testing.T) {
	pa := newTestPerformanceAPI()
	pa.metrics.Append("sess-1", []model.MetricRecord{metric("LCP", 1200, model.RatingGood)})

	req := httptest.NewRequest("GET", "/api/analytics/performance?sessionId=sess-1", nil)
	rec := httptest.NewRecorder()
	pa.get(rec, req)

	body := decodeBody(t, rec)
	if body["sessionId"] != "sess-1" || body["count"] != float64(1) {
		t.Fatalf("unexpected session response %v", body)
	}

	// Unknown sessions return an empty list, not an error.
	req = httptest.NewRequest("GET", "/api/analytics/performance?sessionId=nope", nil)
	rec = httptest.NewRecorder()
	pa.get(rec, req)
	body = decodeBody(t, rec)
	if rec.Code != http.StatusOK || body["count"] != float64(0) {
		t.Fatalf("unknown session should be empty 200, got %d %v", rec.Code, body)
	}
}

func TestGetAggregatedRoyalIncludesSLABlock(t *testing.T) {
	pa := newTestPerformanceAPI()
	now := time.Now().UnixMilli()
	records := []model.MetricRecord{
		{Name: "LCP", Value: 1200, Rating: model.RatingGood, Timestamp: now, UserTier: model.TierRoyal},
		{Name: "LCP", Value: 1400, Rating: model.RatingGood, Timestamp: now, UserTier: model.TierRoyal},
	}
	pa.metrics.Append("sess-r", records)

	req := httptest.NewRequest("GET", "/api/analytics/performance?aggregated=true&userType=royal", nil)
	rec := httptest.NewRecorder()
	pa.get(rec, req)

	body := decodeBody(t, rec)
	if _, ok := body["royal_client_performance"]; !ok {
		t.Fatalf("royal aggregation must include the SLA block: %v", body)
	}
	agg, ok := body["aggregated"].(map[string]any)
	if !ok || agg["count"] != float64(2) {
		t.Fatalf("unexpected aggregate %v", body["aggregated"])
	}

	req = httptest.NewRequest("GET", "/api/analytics/performance?aggregated=true&userType=standard", nil)
	rec = httptest.NewRecorder()
	pa.get(rec, req)
	body = decodeBody(t, rec)
	if _, ok := body["royal_client_performance"]; ok {
		t.Fatalf("standard tier must not include the SLA block")
	}
}

func TestGetAggregatedAppliesTimeRange(t *testing.T) {
	pa := newTestPerformanceAPI()
	now := time.Now()
	pa.metrics.Append("sess-r", []model.MetricRecord{
		{Name: "LCP", Value: 1200, Rating: model.RatingGood, Timestamp: now.UnixMilli(), UserTier: model.TierRoyal},
		{Name: "LCP", Value: 9000, Rating: model.RatingPoor, Timestamp: now.Add(-48 * time.Hour).UnixMilli(), UserTier: model.TierRoyal},
	})

	req := httptest.NewRequest("GET", "/api/analytics/performance?aggregated=true&userType=royal&timeRange=24h", nil)
	rec := httptest.NewRecorder()
	pa.get(rec, req)

	body := decodeBody(t, rec)
	agg := body["aggregated"].(map[string]any)
	if agg["count"] != float64(1) {
		t.Fatalf("48h-old record must fall outside the 24h window, got %v", agg["count"])
	}
}

func TestGetDiscoveryDocument(t *testing.T) {
	pa := newTestPerformanceAPI()

	req := httptest.NewRequest("GET", "/api/analytics/performance", nil)
	rec := httptest.NewRecorder()
	pa.get(rec, req)

	body := decodeBody(t, rec)
	if body["status"] != "active" {
		t.Fatalf("unexpected discovery doc %v", body)
	}
	if _, ok := body["endpoints"]; !ok {
		t.Fatalf("discovery doc missing endpoints: %v", body)
	}
	metrics, ok := body["supported_metrics"].([]any)
	if !ok || len(metrics) != len(supportedMetrics) {
		t.Fatalf("unexpected supported metrics %v", body["supported_metrics"])
	}
}

func TestParseTimeRange(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"1h", time.Hour},
		{"15m", 15 * time.Minute},
		{"7d", 7 * 24 * time.Hour},
		{"24h", 24 * time.Hour},
		{"garbage", 24 * time.Hour},
		{"", 24 * time.Hour},
	}
	for _, c := range cases {
		if got := parseTimeRange(c.in); got != c.want {
			t.Fatalf("parseTimeRange(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
