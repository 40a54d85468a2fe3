package analytics

import (
	"strings"
	"time"

	"github.com/August26/proxychk/internal/model"
)

// Compute summarizes one batch. Endpoints are counted as unique by host and
// port; entries that never parsed are keyed by their trimmed input.
func Compute(entries []model.BatchEntry, duration time.Duration) model.BatchStats {
	stats := model.BatchStats{
		TotalProxies:          len(entries),
		TotalProcessingTimeMs: duration.Milliseconds(),
		WorkingByProtocol:     make(map[model.Protocol]int, len(model.AllProtocols)),
	}

	seen := make(map[string]struct{})

	var aliveCount int
	var connectSum time.Duration
	var connectCount int64

	for _, e := range entries {
		key := strings.TrimSpace(e.Input)
		if e.Report != nil {
			key = e.Report.Endpoint.Address()
		}
		seen[key] = struct{}{}

		if e.Kind != model.KindOK {
			if stats.Errors == nil {
				stats.Errors = make(map[model.EntryKind]int)
			}
			stats.Errors[e.Kind]++
			continue
		}

		if e.Report.Socket.Elapsed > 0 {
			connectSum += e.Report.Socket.Elapsed
			connectCount++
		}
		if e.Report.OverallWorking {
			aliveCount++
			for _, p := range e.Report.WorkingProtocols {
				stats.WorkingByProtocol[p]++
			}
		}
	}

	stats.UniqueProxies = len(seen)
	stats.AliveProxies = aliveCount

	if connectCount > 0 {
		stats.AvgConnectMs = float64(connectSum.Microseconds()) / 1000.0 / float64(connectCount)
	}
	if stats.TotalProxies > 0 {
		stats.SuccessRatePct = float64(aliveCount) / float64(stats.TotalProxies) * 100.0
	}

	return stats
}
