package ingest

import (
	"testing"

	"github.com/griffin1995/my-private-tutor-online-sub019/internal/model"
)

func TestEvaluateSLARoyalOnly(t *testing.T) {
	records := []model.MetricRecord{rec("LCP", 2000, model.RatingPoor)}

	if v := EvaluateSLA(records, model.TierStandard); len(v) != 0 {
		t.Fatalf("standard tier must not raise SLA violations, got %d", len(v))
	}
	if v := EvaluateSLA(records, model.TierAccessibility); len(v) != 0 {
		t.Fatalf("accessibility tier must not raise SLA violations, got %d", len(v))
	}

	v := EvaluateSLA(records, model.TierRoyal)
	if len(v) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(v))
	}
	if v[0].Threshold != 1500 || v[0].Actual != 2000 {
		t.Fatalf("unexpected violation %+v", v[0])
	}
}

func TestEvaluateSLAUnknownMetricIgnored(t *testing.T) {
	records := []model.MetricRecord{rec("TTFB", 99999, model.RatingPoor)}
	if v := EvaluateSLA(records, model.TierRoyal); len(v) != 0 {
		t.Fatalf("metrics without an SLA budget must not alert, got %d", len(v))
	}
}

func TestSLASeverityRatios(t *testing.T) {
	cases := []struct {
		actual, threshold float64
		want              model.Severity
	}{
		{1600, 1500, model.SeverityMedium}, // 1.07x
		{3000, 1500, model.SeverityMedium}, // exactly 2x, not strictly above
		{3100, 1500, model.SeverityHigh},   // just above 2x
		{4600, 1500, model.SeverityCritical}, // just above 3x
	}

	for _, c := range cases {
		if got := slaSeverity(c.actual, c.threshold); got != c.want {
			t.Fatalf("slaSeverity(%v, %v) = %s, want %s", c.actual, c.threshold, got, c.want)
		}
	}
}

func TestSLACompliance(t *testing.T) {
	agg := Aggregate([]model.MetricRecord{
		rec("LCP", 1200, model.RatingGood),
		rec("LCP", 1300, model.RatingGood),
		rec("FCP", 800, model.RatingGood),
		rec("FCP", 2900, model.RatingPoor),
	})
	c := SLACompliance(agg)
	if c.ByMetric["LCP"] != 1.0 {
		t.Fatalf("expected LCP compliance 1.0, got %v", c.ByMetric["LCP"])
	}
	if c.ByMetric["FCP"] != 0.5 {
		t.Fatalf("expected FCP compliance 0.5, got %v", c.ByMetric["FCP"])
	}
	if c.Overall != 0.75 {
		t.Fatalf("expected overall 0.75, got %v", c.Overall)
	}
	if c.MeetsSLA {
		t.Fatalf("0.75 must not meet the 95%% bar")
	}
}

func TestCriticalIssues(t *testing.T) {
	// 1 poor of 4 = 25% poor ratio → critical; p95 well over the LCP bound.
	agg := Aggregate([]model.MetricRecord{
		rec("LCP", 1000, model.RatingGood),
		rec("LCP", 1100, model.RatingGood),
		rec("LCP", 1200, model.RatingGood),
		rec("LCP", 9000, model.RatingPoor),
	})
	issues := CriticalIssues(agg)

	var poor, p95 *Issue
	for i := range issues {
		switch issues[i].Problem {
		case "high_poor_performance_ratio":
			poor = &issues[i]
		case "p95_threshold_exceeded":
			p95 = &issues[i]
		}
	}
	if poor == nil || poor.Severity != model.SeverityCritical {
		t.Fatalf("expected critical poor-ratio issue, got %+v", issues)
	}
	if p95 == nil || p95.Severity != model.SeverityMedium || p95.Threshold != 2500 {
		t.Fatalf("expected medium p95 issue at threshold 2500, got %+v", issues)
	}
}
