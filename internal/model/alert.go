package model

import (
	"encoding/base64"
	"fmt"
	"time"
)

// Severity is the four-level alert classification.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// AlertEvent is a detected threshold violation, enriched with request
// context before dispatch.
type AlertEvent struct {
	ID        string   `json:"alertId"`
	Metric    string   `json:"metric"`
	Value     float64  `json:"value"`
	Threshold float64  `json:"threshold,omitempty"`
	Rating    Rating   `json:"rating,omitempty"`
	Severity  Severity `json:"severity"`
	SessionID string   `json:"sessionId"`
	URL       string   `json:"url,omitempty"`
	UserAgent string   `json:"userAgent,omitempty"`
	ClientIP  string   `json:"clientIP,omitempty"`
	Country   string   `json:"country,omitempty"`
	Timestamp int64    `json:"timestamp"` // epoch milliseconds, client clock
	DetectedAt string  `json:"detectedAt"` // RFC3339, server clock
}

// NewAlertID derives the alert identifier from session, metric and the
// detection time: "alert_<ms>_<first 8 chars of base64(session-metric-ms)>".
func NewAlertID(sessionID, metric string, detectedMs int64) string {
	h := base64.StdEncoding.EncodeToString(fmt.Appendf(nil, "%s-%s-%d", sessionID, metric, detectedMs))
	if len(h) > 8 {
		h = h[:8]
	}
	return fmt.Sprintf("alert_%d_%s", detectedMs, h)
}

// SLAViolation is produced by the royal-tier SLA evaluation path on
// metric ingestion. It is distinct from AlertEvent: the two evaluator
// paths are triggered from different endpoints and stay separate.
type SLAViolation struct {
	Type      string   `json:"type"` // always "sla_violation"
	Metric    string   `json:"metric"`
	Threshold float64  `json:"threshold"`
	Actual    float64  `json:"actual"`
	UserTier  UserTier `json:"userType"`
	Timestamp int64    `json:"timestamp"`
	URL       string   `json:"url,omitempty"`
	Severity  Severity `json:"severity"`
}

// ChannelResult records the outcome of one notification channel
// delivery attempt. Failures are collected, not propagated.
type ChannelResult struct {
	Channel string        `json:"channel"`
	OK      bool          `json:"ok"`
	Err     string        `json:"error,omitempty"`
	Elapsed time.Duration `json:"-"`
}
