package api

import (
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/griffin1995/my-private-tutor-online-sub019/internal/alert"
	"github.com/griffin1995/my-private-tutor-online-sub019/internal/model"
	"github.com/griffin1995/my-private-tutor-online-sub019/internal/store"
)

// alertPayload is the body of POST /api/performance/alerts, reported by
// the browser when a Web-Vitals observation crosses its budget.
type alertPayload struct {
	Metric    string       `json:"metric"`
	Value     float64      `json:"value"`
	Threshold float64      `json:"threshold"`
	Rating    model.Rating `json:"rating"`
	URL       string       `json:"url"`
	Timestamp int64        `json:"timestamp"`
	SessionID string       `json:"sessionId"`
	UserAgent string       `json:"userAgent"`
}

type alertsAPI struct {
	history    *store.Store
	limiter    alert.Limiter
	dispatcher *alert.Dispatcher
	now        func() time.Time
}

func newAlertsAPI(history *store.Store, limiter alert.Limiter, dispatcher *alert.Dispatcher) *alertsAPI {
	return &alertsAPI{
		history:    history,
		limiter:    limiter,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// intake handles POST /api/performance/alerts.
func (a *alertsAPI) intake(w http.ResponseWriter, r *http.Request) {
	var p alertPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "Missing required alert fields")
		return
	}
	// A zero value is rejected alongside missing fields: a metric that
	// measured nothing is not an alertable observation.
	if p.Metric == "" || p.Value == 0 || p.SessionID == "" {
		writeError(w, http.StatusBadRequest, "Missing required alert fields")
		return
	}

	ip := clientIP(r)
	country := r.Header.Get("X-Vercel-IP-Country")
	if country == "" {
		country = "unknown"
	}

	severity := alert.Classify(p.Metric, p.Value, p.Rating)

	key := ip + "-" + p.Metric
	if d := a.limiter.Allow(r.Context(), key); !d.Allowed {
		// Rate-limited submissions still answer 200: the reporter has
		// nothing to correct, it just needs to back off.
		writeJSON(w, http.StatusOK, map[string]any{
			"success":    false,
			"error":      "Rate limit exceeded",
			"retryAfter": d.RetryAfter,
		})
		return
	}

	now := a.now()
	ev := model.AlertEvent{
		ID:         model.NewAlertID(p.SessionID, p.Metric, now.UnixMilli()),
		Metric:     p.Metric,
		Value:      p.Value,
		Threshold:  p.Threshold,
		Rating:     p.Rating,
		Severity:   severity,
		SessionID:  p.SessionID,
		URL:        p.URL,
		UserAgent:  p.UserAgent,
		ClientIP:   ip,
		Country:    country,
		Timestamp:  p.Timestamp,
		DetectedAt: now.UTC().Format(time.RFC3339),
	}

	a.dispatcher.Dispatch(r.Context(), ev, correlationID(r))

	log.Info().Str("alertId", ev.ID).Str("metric", ev.Metric).
		Float64("value", ev.Value).Str("severity", string(severity)).
		Str("url", ev.URL).Msg("[alerts] alert received")

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"alertId":   ev.ID,
		"severity":  severity,
		"processed": true,
		"timestamp": now.UnixMilli(),
	})
}

// list handles GET /api/performance/alerts: the dispatched-alert
// history, filtered by severity and time window.
func (a *alertsAPI) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	severity := q.Get("severity")
	timeRange := q.Get("timeRange")
	if timeRange == "" {
		timeRange = "24h"
	}
	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	sinceMs := a.now().Add(-parseTimeRange(timeRange)).UnixMilli()
	alerts, err := a.history.ListAlerts(severity, sinceMs, limit)
	if err != nil {
		log.Error().Err(err).Msg("[alerts] history query failed")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve alerts")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts":    alerts,
		"total":     len(alerts),
		"timeRange": timeRange,
		"severity":  severity,
		"timestamp": a.now().UnixMilli(),
	})
}
