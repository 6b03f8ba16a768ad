package archive

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/griffin1995/my-private-tutor-online-sub019/internal/model"
)

// job is one evicted session waiting to be archived.
type job struct {
	sessionID string
	records   []model.MetricRecord
}

// Archiver drains evicted session buckets to an object sink in the
// background. Enqueue never blocks the ingestion path: when the queue
// is full the session is dropped and counted.
type Archiver struct {
	sink   ObjectSink
	prefix string
	jobs   chan job
	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu      sync.Mutex
	dropped int64
	stored  int64
}

// NewArchiver creates an archiver with a bounded queue.
func NewArchiver(sink ObjectSink, prefix string) *Archiver {
	return &Archiver{
		sink:   sink,
		prefix: prefix,
		jobs:   make(chan job, 256),
	}
}

// Start launches the background drain loop.
func (a *Archiver) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.wg.Add(1)
	go a.run(ctx)
}

// Shutdown stops accepting work, drains the queue, and waits for the
// in-flight upload to finish.
func (a *Archiver) Shutdown() {
	close(a.jobs)
	a.wg.Wait()
	if a.cancel != nil {
		a.cancel()
	}
}

// Enqueue hands off an evicted session for archival. Safe to call from
// the store's eviction hook.
func (a *Archiver) Enqueue(sessionID string, records []model.MetricRecord) {
	if len(records) == 0 {
		return
	}
	select {
	case a.jobs <- job{sessionID: sessionID, records: records}:
	default:
		a.mu.Lock()
		a.dropped++
		a.mu.Unlock()
		log.Warn().Str("sessionId", sessionID).Msg("[archive] queue full, session dropped")
	}
}

// Stats returns stored and dropped session counts.
func (a *Archiver) Stats() (stored, dropped int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stored, a.dropped
}

func (a *Archiver) run(ctx context.Context) {
	defer a.wg.Done()
	for j := range a.jobs {
		a.archive(ctx, j)
	}
}

func (a *Archiver) archive(ctx context.Context, j job) {
	data, err := EncodeJSONLGZ(j.records)
	if err != nil {
		log.Error().Err(err).Str("sessionId", j.sessionID).Msg("[archive] encode failed")
		return
	}
	key := a.objectKey(j.sessionID, time.Now().UTC())
	if err := a.sink.Put(ctx, key, data); err != nil {
		log.Error().Err(err).Str("key", key).Msg("[archive] upload failed")
		a.mu.Lock()
		a.dropped++
		a.mu.Unlock()
		return
	}
	a.mu.Lock()
	a.stored++
	a.mu.Unlock()
	log.Debug().Str("key", key).Int("records", len(j.records)).Msg("[archive] session stored")
}

// objectKey builds a date-partitioned key so downstream queries can
// prune by day.
func (a *Archiver) objectKey(sessionID string, now time.Time) string {
	return fmt.Sprintf("%s/%s/%s-%d.jsonl.gz",
		a.prefix, now.Format("2006-01-02"), sessionID, now.UnixNano())
}
