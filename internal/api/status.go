package api

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/griffin1995/my-private-tutor-online-sub019/internal/ingest"
	"github.com/griffin1995/my-private-tutor-online-sub019/internal/store"
)

type statusAPI struct {
	metrics   *ingest.Store
	history   *store.Store
	startedAt time.Time
}

// status handles GET /api/status: daemon uptime, buffer occupancy,
// alert counts for the last day, and host pressure.
func (a *statusAPI) status(w http.ResponseWriter, r *http.Request) {
	sessions, records := a.metrics.Stats()

	resp := map[string]any{
		"status":    "ok",
		"uptimeSec": int64(time.Since(a.startedAt).Seconds()),
		"sessions":  sessions,
		"records":   records,
		"timestamp": time.Now().UnixMilli(),
	}

	if a.history != nil {
		since := time.Now().Add(-24 * time.Hour).UnixMilli()
		if counts, err := a.history.CountAlerts(since); err == nil {
			resp["alerts_24h"] = counts
		}
	}

	// Host metrics are advisory; a collection failure does not fail
	// the status endpoint.
	if avg, err := load.Avg(); err == nil {
		resp["load"] = map[string]float64{
			"1m": avg.Load1, "5m": avg.Load5, "15m": avg.Load15,
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		resp["memory"] = map[string]any{
			"total":        vm.Total,
			"used":         vm.Used,
			"used_percent": vm.UsedPercent,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
