package api

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/griffin1995/my-private-tutor-online-sub019/internal/ingest"
	"github.com/griffin1995/my-private-tutor-online-sub019/internal/model"
)

// EnvMonitoringWebhook receives royal SLA violations raised on the
// ingestion path. Read at call time like the dispatcher's channels.
const EnvMonitoringWebhook = "MONITORING_WEBHOOK_URL"

var supportedMetrics = []string{
	"FCP", "LCP", "FID", "CLS", "TTFB", "INP",
	"SEARCH_RESPONSE", "THEME_TOGGLE", "VOICE_SEARCH",
	"OFFLINE_SYNC", "ACCESSIBILITY_NAVIGATION",
}

type performanceAPI struct {
	metrics *ingest.Store
	hub     *Hub
	client  *http.Client
	env     func(string) string
	now     func() time.Time
}

func newPerformanceAPI(metrics *ingest.Store, hub *Hub) *performanceAPI {
	return &performanceAPI{
		metrics: metrics,
		hub:     hub,
		client:  &http.Client{Timeout: 5 * time.Second},
		env:     os.Getenv,
		now:     time.Now,
	}
}

// validatePayload checks the ingestion body field by field and returns
// human-readable problems, one per offending field.
func validatePayload(p *model.IngestPayload) []string {
	var details []string
	if p.SessionID == "" {
		details = append(details, "sessionId: required")
	}
	if !p.UserTier.Valid() {
		details = append(details, fmt.Sprintf("userType: %q is not one of royal, standard, accessibility", p.UserTier))
	}
	for i, m := range p.Metrics {
		if m.Name == "" {
			details = append(details, fmt.Sprintf("metrics[%d].name: required", i))
		}
		if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
			details = append(details, fmt.Sprintf("metrics[%d].value: must be a finite number", i))
		}
		if !m.Rating.Valid() {
			details = append(details, fmt.Sprintf("metrics[%d].rating: %q is not one of good, needs-improvement, poor", i, m.Rating))
		}
		if m.URL == "" {
			details = append(details, fmt.Sprintf("metrics[%d].url: required", i))
		}
	}
	return details
}

// ingest handles POST /api/analytics/performance.
func (a *performanceAPI) ingest(w http.ResponseWriter, r *http.Request) {
	var payload model.IngestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "Invalid performance data format",
			"details": []string{err.Error()},
		})
		return
	}
	if details := validatePayload(&payload); len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "Invalid performance data format",
			"details": details,
		})
		return
	}

	// Server-side enrichment: never trust client copies of these fields.
	nowMs := a.now().UnixMilli()
	enriched := make([]model.MetricRecord, len(payload.Metrics))
	for i, m := range payload.Metrics {
		m.SessionID = payload.SessionID
		m.UserTier = payload.UserTier
		m.ServerTimestamp = nowMs
		m.Origin = r.Header.Get("Origin")
		m.Referer = r.Header.Get("Referer")
		m.RequestUserAgent = r.Header.Get("User-Agent")
		enriched[i] = m
	}

	a.metrics.Append(payload.SessionID, enriched)

	violations := ingest.EvaluateSLA(enriched, payload.UserTier)
	if len(violations) > 0 {
		a.sendSLAAlerts(r, violations)
	}

	log.Info().Str("sessionId", payload.SessionID).Str("userType", string(payload.UserTier)).
		Int("metrics", len(payload.Metrics)).Int("slaViolations", len(violations)).
		Msg("[analytics] metrics processed")

	poor := 0
	for _, m := range enriched {
		if m.Rating == model.RatingPoor {
			poor++
		}
	}
	if poor > 0 {
		log.Warn().Str("sessionId", payload.SessionID).Str("userType", string(payload.UserTier)).
			Int("poor", poor).Msg("[analytics] poor performance metrics detected")
	}

	if a.hub != nil {
		a.hub.BroadcastIngest(payload.SessionID, len(enriched))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"processed":     len(payload.Metrics),
		"alerts":        len(violations),
		"sessionId":     payload.SessionID,
		"timestamp":     a.now().UnixMilli(),
		"correlationId": correlationID(r),
	})
}

// sendSLAAlerts forwards each violation to the monitoring webhook.
// Best-effort: failures are logged and never affect the response.
func (a *performanceAPI) sendSLAAlerts(r *http.Request, violations []model.SLAViolation) {
	url := a.env(EnvMonitoringWebhook)
	for _, v := range violations {
		log.Warn().Str("metric", v.Metric).Float64("threshold", v.Threshold).
			Float64("actual", v.Actual).Str("severity", string(v.Severity)).
			Msg("[analytics] royal SLA violation")
		if url == "" {
			continue
		}
		body, err := json.Marshal(map[string]any{
			"alert_type": "royal_client_sla_violation",
			"service":    "performance_analytics",
			"metric":     v.Metric,
			"threshold":  v.Threshold,
			"actual":     v.Actual,
			"userType":   v.UserTier,
			"timestamp":  v.Timestamp,
			"url":        v.URL,
			"severity":   v.Severity,
		})
		if err != nil {
			continue
		}
		req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := a.client.Do(req)
		if err != nil {
			log.Error().Err(err).Msg("[analytics] failed to send monitoring alert")
			continue
		}
		resp.Body.Close()
	}
}

// get handles GET /api/analytics/performance. Three shapes: raw session
// metrics, tier aggregation, or the discovery document.
func (a *performanceAPI) get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID := q.Get("sessionId")
	tier := model.UserTier(q.Get("userType"))
	timeRange := q.Get("timeRange")
	if timeRange == "" {
		timeRange = "24h"
	}
	aggregated := q.Get("aggregated") == "true"

	if sessionID != "" && !aggregated {
		records := a.metrics.Metrics(sessionID)
		writeJSON(w, http.StatusOK, map[string]any{
			"sessionId": sessionID,
			"metrics":   records,
			"count":     len(records),
			"timestamp": a.now().UnixMilli(),
		})
		return
	}

	if aggregated && tier != "" {
		if !tier.Valid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown userType %q", tier))
			return
		}
		sinceMs := a.now().Add(-parseTimeRange(timeRange)).UnixMilli()
		agg := a.metrics.AggregatedSince(tier, sinceMs)

		resp := map[string]any{
			"userType":   tier,
			"timeRange":  timeRange,
			"aggregated": agg,
			"timestamp":  a.now().UnixMilli(),
		}
		if tier == model.TierRoyal {
			resp["royal_client_performance"] = map[string]any{
				"sla_compliance":  ingest.SLACompliance(agg),
				"critical_issues": ingest.CriticalIssues(agg),
			}
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	// Discovery document.
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "active",
		"monitoring": "web_vitals_performance",
		"endpoints": map[string]string{
			"store_metrics":  "POST /api/analytics/performance",
			"get_session":    "GET /api/analytics/performance?sessionId=<id>",
			"get_aggregated": "GET /api/analytics/performance?aggregated=true&userType=<type>",
		},
		"supported_user_types": []string{"royal", "standard", "accessibility"},
		"supported_metrics":    supportedMetrics,
		"timestamp":            a.now().UnixMilli(),
	})
}

// parseTimeRange converts "15m", "6h", "7d" style windows into a
// duration. Unparseable input falls back to 24 hours.
func parseTimeRange(s string) time.Duration {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "d") {
		if days, err := strconv.Atoi(strings.TrimSuffix(s, "d")); err == nil && days > 0 {
			return time.Duration(days) * 24 * time.Hour
		}
		return 24 * time.Hour
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return 24 * time.Hour
}
