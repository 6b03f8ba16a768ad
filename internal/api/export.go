package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/griffin1995/my-private-tutor-online-sub019/internal/archive"
	"github.com/griffin1995/my-private-tutor-online-sub019/internal/ingest"
	"github.com/griffin1995/my-private-tutor-online-sub019/internal/model"
)

type exportAPI struct {
	metrics *ingest.Store
}

// export handles GET /api/analytics/export: stored metrics as a gzip
// JSONL attachment, scoped to a session or a tier.
func (a *exportAPI) export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID := q.Get("sessionId")
	tier := model.UserTier(q.Get("userType"))

	var records []model.MetricRecord
	switch {
	case sessionID != "":
		records = a.metrics.Metrics(sessionID)
	case tier != "":
		if !tier.Valid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown userType %q", tier))
			return
		}
		records = a.metrics.All(tier)
	default:
		records = a.metrics.All("")
	}

	data, err := archive.EncodeJSONLGZ(records)
	if err != nil {
		log.Error().Err(err).Msg("[export] encode failed")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	name := fmt.Sprintf("web-vitals-%s.jsonl.gz", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
