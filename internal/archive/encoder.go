package archive

import (
	"bytes"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/griffin1995/my-private-tutor-online-sub019/internal/model"
)

// EncodeJSONLGZ serializes a session's metric records as gzip-compressed
// JSONL, one record per line. The returned slice is owned by the caller.
func EncodeJSONLGZ(records []model.MetricRecord) ([]byte, error) {
	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, err
	}

	enc := json.NewEncoder(gz)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			gz.Close()
			return nil, err
		}
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
