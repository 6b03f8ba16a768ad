// Package alert classifies incoming performance alerts, rate-limits
// them per client, and dispatches them to notification channels.
package alert

import (
	"github.com/griffin1995/my-private-tutor-online-sub019/internal/model"
)

// criticalThresholds mark the point where a poor observation becomes a
// critical alert. Comparison is strict: a value exactly at the
// threshold stays high.
var criticalThresholds = map[string]float64{
	"LCP":  4000, // ms
	"INP":  500,
	"CLS":  0.25, // unitless score
	"FCP":  3000,
	"TTFB": 1000,
}

// Classify maps an observation to a severity. This is the rating-based
// evaluation path, independent of the royal SLA path on ingestion.
func Classify(metric string, value float64, rating model.Rating) model.Severity {
	switch rating {
	case model.RatingPoor:
		if threshold, ok := criticalThresholds[metric]; ok && value > threshold {
			return model.SeverityCritical
		}
		return model.SeverityHigh
	case model.RatingNeedsImprovement:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}
