// Package report assembles per-endpoint check reports.
package report

import (
	"fmt"
	"time"

	"github.com/August26/proxychk/internal/model"
)

// Build derives the working protocol list and the overall verdict from the
// four protocol results, which must be in model.AllProtocols order.
func Build(ep model.Endpoint, sock model.SocketResult, results [4]model.ProtocolResult, requester string, at time.Time) *model.CheckReport {
	working := make([]model.Protocol, 0, len(results))
	for i, r := range results {
		if r.Protocol != model.AllProtocols[i] {
			panic(fmt.Sprintf("report: result %d is %q, want %q", i, r.Protocol, model.AllProtocols[i]))
		}
		if r.Working {
			working = append(working, r.Protocol)
		}
	}

	return &model.CheckReport{
		Endpoint:         ep,
		Socket:           sock,
		Protocols:        results,
		WorkingProtocols: working,
		OverallWorking:   len(working) > 0,
		Requester:        requester,
		CheckedAt:        at,
	}
}
