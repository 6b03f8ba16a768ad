package archive

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/griffin1995/my-private-tutor-online-sub019/internal/model"
)

func sampleRecords(n int) []model.MetricRecord {
	records := make([]model.MetricRecord, n)
	for i := range records {
		records[i] = model.MetricRecord{
			ID:        "m1",
			Name:      "LCP",
			Value:     float64(1000 + i),
			Rating:    model.RatingGood,
			SessionID: "sess",
			Timestamp: 1700000000000 + int64(i),
		}
	}
	return records
}

func TestEncodeJSONLGZRoundTrip(t *testing.T) {
	data, err := EncodeJSONLGZ(sampleRecords(3))
	if err != nil {
		t.Fatalf("EncodeJSONLGZ: %v", err)
	}

	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	defer gz.Close()

	var lines int
	sc := bufio.NewScanner(gz)
	for sc.Scan() {
		var rec model.MetricRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("line %d not valid JSON: %v", lines, err)
		}
		if rec.Name != "LCP" {
			t.Fatalf("unexpected record %+v", rec)
		}
		lines++
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if lines != 3 {
		t.Fatalf("expected 3 JSONL lines, got %d", lines)
	}
}

func TestDirSinkWritesNestedKey(t *testing.T) {
	root := t.TempDir()
	sink := NewDirSink(root)

	if err := sink.Put(context.Background(), "web-vitals/2026-08-28/sess-1.jsonl.gz", []byte("payload")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(root, "web-vitals", "2026-08-28", "sess-1.jsonl.gz"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("unexpected file content %q", got)
	}
}

type memSink struct {
	mu   sync.Mutex
	keys []string
}

func (m *memSink) Put(_ context.Context, key string, _ []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return nil
}

func (m *memSink) snapshot() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.keys...)
}

func TestArchiverDrainsOnShutdown(t *testing.T) {
	sink := &memSink{}
	a := NewArchiver(sink, "web-vitals")
	a.Start()

	a.Enqueue("sess-1", sampleRecords(2))
	a.Enqueue("sess-2", sampleRecords(1))
	a.Enqueue("empty", nil) // ignored
	a.Shutdown()

	keys := sink.snapshot()
	if len(keys) != 2 {
		t.Fatalf("expected 2 archived sessions, got %v", keys)
	}
	for _, k := range keys {
		if !strings.HasPrefix(k, "web-vitals/") || !strings.HasSuffix(k, ".jsonl.gz") {
			t.Fatalf("unexpected key %q", k)
		}
	}
	stored, dropped := a.Stats()
	if stored != 2 || dropped != 0 {
		t.Fatalf("expected stored=2 dropped=0, got %d/%d", stored, dropped)
	}
}

func TestObjectKeyDatePartitioned(t *testing.T) {
	a := NewArchiver(&memSink{}, "web-vitals")
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	key := a.objectKey("sess-9", now)
	if !strings.HasPrefix(key, "web-vitals/2026-08-28/sess-9-") {
		t.Fatalf("unexpected key %q", key)
	}
}
