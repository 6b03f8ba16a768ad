package ingest

import (
	"testing"

	"github.com/griffin1995/my-private-tutor-online-sub019/internal/model"
)

func rec(name string, value float64, rating model.Rating) model.MetricRecord {
	return model.MetricRecord{Name: name, Value: value, Rating: rating, Timestamp: 1}
}

func TestAggregateEmpty(t *testing.T) {
	agg := Aggregate(nil)
	if agg.Count != 0 {
		t.Fatalf("expected count 0, got %d", agg.Count)
	}
	if agg.Averages == nil || len(agg.Averages) != 0 {
		t.Fatalf("expected empty averages map, got %v", agg.Averages)
	}
	if agg.Ratings == nil || len(agg.Ratings) != 0 {
		t.Fatalf("expected empty ratings map, got %v", agg.Ratings)
	}
	if agg.Summary != nil {
		t.Fatalf("expected no summary for empty input, got %v", agg.Summary)
	}
}

func TestAggregateSummary(t *testing.T) {
	agg := Aggregate([]model.MetricRecord{
		rec("LCP", 1200, model.RatingGood),
		rec("LCP", 2600, model.RatingNeedsImprovement),
		rec("LCP", 4400, model.RatingPoor),
		rec("CLS", 0.02, model.RatingGood),
	})

	if agg.Count != 4 {
		t.Fatalf("expected count 4, got %d", agg.Count)
	}

	s, ok := agg.Summary["LCP"]
	if !ok {
		t.Fatalf("missing LCP summary")
	}
	if s.Count != 3 {
		t.Fatalf("expected LCP count 3, got %d", s.Count)
	}
	wantAvg := (1200.0 + 2600.0 + 4400.0) / 3
	if s.Average != wantAvg {
		t.Fatalf("expected average %.2f, got %.2f", wantAvg, s.Average)
	}
	if s.Min != 1200 || s.Max != 4400 {
		t.Fatalf("unexpected min/max %v/%v", s.Min, s.Max)
	}
	if s.P95 != 4400 {
		t.Fatalf("expected p95 4400, got %v", s.P95)
	}
	third := 1.0 / 3.0
	if s.GoodRatio != third || s.PoorRatio != third {
		t.Fatalf("unexpected ratios good=%v poor=%v", s.GoodRatio, s.PoorRatio)
	}
	if agg.Ratings["LCP"][model.RatingNeedsImprovement] != 1 {
		t.Fatalf("unexpected rating distribution %v", agg.Ratings["LCP"])
	}
}

func TestPercentileNearestRank(t *testing.T) {
	// 20 samples: p95 lands on index ceil(0.95*20)-1 = 18, i.e. the
	// second largest value.
	values := make([]float64, 0, 20)
	for i := 1; i <= 20; i++ {
		values = append(values, float64(i*100))
	}
	if got := percentile(values, 95); got != 1900 {
		t.Fatalf("expected p95 1900, got %v", got)
	}
	// Single sample clamps to index 0.
	if got := percentile([]float64{42}, 95); got != 42 {
		t.Fatalf("expected 42, got %v", got)
	}
}

func TestPercentileOrderInsensitive(t *testing.T) {
	asc := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	shuffled := []float64{70, 10, 100, 40, 90, 20, 60, 30, 80, 50}
	a := percentile(asc, 95)
	b := percentile(shuffled, 95)
	if a != b {
		t.Fatalf("p95 differs by input order: %v vs %v", a, b)
	}
	// Input slices must not be reordered in place.
	if shuffled[0] != 70 {
		t.Fatalf("percentile mutated its input: %v", shuffled)
	}
}

func TestAggregatePoorRatioPositive(t *testing.T) {
	records := []model.MetricRecord{
		rec("LCP", 1000, model.RatingGood),
		rec("LCP", 5000, model.RatingPoor),
	}
	for i := range records {
		records[i].UserTier = model.TierRoyal
	}
	agg := Aggregate(records)
	if agg.Summary["LCP"].PoorRatio <= 0 {
		t.Fatalf("expected poor_ratio > 0, got %v", agg.Summary["LCP"].PoorRatio)
	}
}
