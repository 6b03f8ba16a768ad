// Package ingest holds the in-memory session store for client-reported
// performance metrics and the aggregation/SLA logic that runs over it.
package ingest

import (
	"sync"
	"time"

	"github.com/griffin1995/my-private-tutor-online-sub019/internal/model"
)

// EvictFunc receives the records of a session bucket that is being
// dropped, either because the store is over its session cap or because
// the bucket's TTL expired.
type EvictFunc func(sessionID string, records []model.MetricRecord)

type bucket struct {
	records []model.MetricRecord
	touched time.Time
}

// Store maps session identifiers to ordered metric buckets. Buckets are
// append-only between evictions; access is mutex-serialized because the
// HTTP server handles requests on independent goroutines.
type Store struct {
	mu          sync.Mutex
	buckets     map[string]*bucket
	maxSessions int           // 0 = unbounded
	ttl         time.Duration // 0 = no expiry
	onEvict     EvictFunc
	now         func() time.Time
}

// NewStore creates a session store. maxSessions and ttl of zero keep
// the reference behavior of unbounded process-lifetime growth.
func NewStore(maxSessions int, ttl time.Duration) *Store {
	return &Store{
		buckets:     make(map[string]*bucket),
		maxSessions: maxSessions,
		ttl:         ttl,
		now:         time.Now,
	}
}

// SetEvictHook registers fn to receive evicted buckets. Call before the
// store starts taking traffic.
func (s *Store) SetEvictHook(fn EvictFunc) { s.onEvict = fn }

// Append adds records to the session's bucket, creating it if absent.
// No validation is performed here; callers validate at the boundary.
func (s *Store) Append(sessionID string, records []model.MetricRecord) {
	s.mu.Lock()
	b, ok := s.buckets[sessionID]
	if !ok {
		b = &bucket{}
		s.buckets[sessionID] = b
	}
	b.records = append(b.records, records...)
	b.touched = s.now()

	evicted := s.evictOverCapLocked(sessionID)
	s.mu.Unlock()

	s.notifyEvicted(evicted)
}

// evictOverCapLocked drops least-recently-touched buckets until the
// store is within maxSessions, never dropping the session just written.
func (s *Store) evictOverCapLocked(keep string) map[string][]model.MetricRecord {
	if s.maxSessions <= 0 || len(s.buckets) <= s.maxSessions {
		return nil
	}
	evicted := make(map[string][]model.MetricRecord)
	for len(s.buckets) > s.maxSessions {
		oldest := ""
		var oldestAt time.Time
		for id, b := range s.buckets {
			if id == keep {
				continue
			}
			if oldest == "" || b.touched.Before(oldestAt) {
				oldest = id
				oldestAt = b.touched
			}
		}
		if oldest == "" {
			break
		}
		evicted[oldest] = s.buckets[oldest].records
		delete(s.buckets, oldest)
	}
	return evicted
}

// Sweep drops buckets untouched for longer than the TTL. Intended to be
// called from a background ticker; a zero TTL makes it a no-op.
func (s *Store) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)
	evicted := make(map[string][]model.MetricRecord)

	s.mu.Lock()
	for id, b := range s.buckets {
		if b.touched.Before(cutoff) {
			evicted[id] = b.records
			delete(s.buckets, id)
		}
	}
	s.mu.Unlock()

	s.notifyEvicted(evicted)
	return len(evicted)
}

func (s *Store) notifyEvicted(evicted map[string][]model.MetricRecord) {
	if s.onEvict == nil {
		return
	}
	for id, records := range evicted {
		s.onEvict(id, records)
	}
}

// Metrics returns a copy of the stored records for a session. Unknown
// sessions yield an empty slice, not an error.
func (s *Store) Metrics(sessionID string) []model.MetricRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[sessionID]
	if !ok {
		return []model.MetricRecord{}
	}
	out := make([]model.MetricRecord, len(b.records))
	copy(out, b.records)
	return out
}

// AggregatedSince scans every bucket, keeps records matching the tier
// with a timestamp at or after sinceMs (0 = no time bound), and reduces
// them to per-metric statistics.
func (s *Store) AggregatedSince(tier model.UserTier, sinceMs int64) AggregateResult {
	var matched []model.MetricRecord
	s.mu.Lock()
	for _, b := range s.buckets {
		for _, r := range b.records {
			if r.UserTier != tier {
				continue
			}
			if sinceMs > 0 && r.Timestamp < sinceMs {
				continue
			}
			matched = append(matched, r)
		}
	}
	s.mu.Unlock()
	return Aggregate(matched)
}

// Stats reports the current bucket and record counts.
func (s *Store) Stats() (sessions, records int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.buckets {
		records += len(b.records)
	}
	return len(s.buckets), records
}

// All returns every stored record, optionally filtered by tier
// ("" = all tiers). Used by the export endpoint.
func (s *Store) All(tier model.UserTier) []model.MetricRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.MetricRecord
	for _, b := range s.buckets {
		for _, r := range b.records {
			if tier != "" && r.UserTier != tier {
				continue
			}
			out = append(out, r)
		}
	}
	return out
}
