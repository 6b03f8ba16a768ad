package ingest

import (
	"github.com/griffin1995/my-private-tutor-online-sub019/internal/model"
)

// royalSLAThresholds are the contractual latency budgets for the royal
// tier. Values above the budget raise an SLA violation on ingestion.
var royalSLAThresholds = map[string]float64{
	"FCP":             1000, // ms
	"LCP":             1500,
	"FID":             50,
	"CLS":             0.05, // unitless score
	"SEARCH_RESPONSE": 100,
	"THEME_TOGGLE":    200,
}

// slaComplianceMetrics are the metrics counted toward the royal
// compliance summary.
var slaComplianceMetrics = []string{"FCP", "LCP", "FID", "CLS", "SEARCH_RESPONSE"}

// p95Thresholds bound the 95th percentile per metric for the
// critical-issue scan. Unknown metrics fall back to 1000.
var p95Thresholds = map[string]float64{
	"FCP":                      1800,
	"LCP":                      2500,
	"FID":                      100,
	"CLS":                      0.1,
	"SEARCH_RESPONSE":          200,
	"THEME_TOGGLE":             400,
	"VOICE_SEARCH":             3000,
	"OFFLINE_SYNC":             5000,
	"ACCESSIBILITY_NAVIGATION": 300,
}

func p95Threshold(metric string) float64 {
	if t, ok := p95Thresholds[metric]; ok {
		return t
	}
	return 1000
}

// EvaluateSLA checks records against the royal SLA budgets. Every tier
// other than royal produces zero violations from this path.
func EvaluateSLA(records []model.MetricRecord, tier model.UserTier) []model.SLAViolation {
	if tier != model.TierRoyal {
		return nil
	}
	var violations []model.SLAViolation
	for _, r := range records {
		threshold, ok := royalSLAThresholds[r.Name]
		if !ok || r.Value <= threshold {
			continue
		}
		violations = append(violations, model.SLAViolation{
			Type:      "sla_violation",
			Metric:    r.Name,
			Threshold: threshold,
			Actual:    r.Value,
			UserTier:  tier,
			Timestamp: r.Timestamp,
			URL:       r.URL,
			Severity:  slaSeverity(r.Value, threshold),
		})
	}
	return violations
}

// slaSeverity derives severity purely from the actual/threshold ratio:
// above 3x critical, above 2x high, otherwise medium.
func slaSeverity(actual, threshold float64) model.Severity {
	ratio := actual / threshold
	switch {
	case ratio > 3:
		return model.SeverityCritical
	case ratio > 2:
		return model.SeverityHigh
	default:
		return model.SeverityMedium
	}
}

// Compliance summarizes royal SLA adherence over an aggregate.
type Compliance struct {
	Overall  float64            `json:"overall"`
	ByMetric map[string]float64 `json:"by_metric"`
	MeetsSLA bool               `json:"meets_royal_sla"`
}

// SLACompliance computes per-metric good ratios over the compliance
// metrics present in the aggregate, their mean, and whether the mean
// clears the 95% royal bar.
func SLACompliance(agg AggregateResult) Compliance {
	c := Compliance{ByMetric: map[string]float64{}}
	for _, name := range slaComplianceMetrics {
		s, ok := agg.Summary[name]
		if !ok {
			continue
		}
		c.ByMetric[name] = s.GoodRatio
	}
	if len(c.ByMetric) == 0 {
		return c
	}
	var sum float64
	for _, v := range c.ByMetric {
		sum += v
	}
	c.Overall = sum / float64(len(c.ByMetric))
	c.MeetsSLA = c.Overall >= 0.95
	return c
}

// Issue flags an aggregate-level problem needing attention.
type Issue struct {
	Metric    string         `json:"metric"`
	Problem   string         `json:"issue"`
	PoorRatio float64        `json:"poor_ratio,omitempty"`
	P95       float64        `json:"p95_value,omitempty"`
	Threshold float64        `json:"threshold,omitempty"`
	Severity  model.Severity `json:"severity"`
}

// CriticalIssues scans an aggregate for metrics with a poor ratio over
// 5% (critical above 20%) or a p95 over the per-metric bound.
func CriticalIssues(agg AggregateResult) []Issue {
	var issues []Issue
	for name, s := range agg.Summary {
		if s.PoorRatio > 0.05 {
			sev := model.SeverityHigh
			if s.PoorRatio > 0.2 {
				sev = model.SeverityCritical
			}
			issues = append(issues, Issue{
				Metric:    name,
				Problem:   "high_poor_performance_ratio",
				PoorRatio: s.PoorRatio,
				Severity:  sev,
			})
		}
		if t := p95Threshold(name); s.P95 > t {
			issues = append(issues, Issue{
				Metric:    name,
				Problem:   "p95_threshold_exceeded",
				P95:       s.P95,
				Threshold: t,
				Severity:  model.SeverityMedium,
			})
		}
	}
	return issues
}
