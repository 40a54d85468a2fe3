package analytics

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/August26/proxychk/internal/model"
	"github.com/August26/proxychk/internal/report"
)

func okEntry(host string, port int, connect time.Duration, working ...model.Protocol) model.BatchEntry {
	var results [4]model.ProtocolResult
	for i, p := range model.AllProtocols {
		results[i] = model.ProtocolResult{Protocol: p}
		for _, w := range working {
			if w == p {
				results[i].Working = true
			}
		}
	}
	ep := model.NewEndpoint(host, port, nil)
	r := report.Build(ep, model.SocketResult{Connected: true, Elapsed: connect}, results, "", time.Time{})
	return model.BatchEntry{Input: ep.String(), Kind: model.KindOK, Report: r}
}

func TestCompute(t *testing.T) {
	t.Parallel()

	entries := []model.BatchEntry{
		okEntry("10.0.0.1", 80, 10*time.Millisecond, model.ProtocolHTTP, model.ProtocolHTTPS),
		okEntry("10.0.0.1", 80, 30*time.Millisecond, model.ProtocolHTTP),
		okEntry("10.0.0.2", 1080, 20*time.Millisecond),
		{Input: "bad", Kind: model.KindFormat, Err: errors.New("invalid proxy format")},
	}

	stats := Compute(entries, 1500*time.Millisecond)

	if stats.TotalProxies != 4 {
		t.Errorf("TotalProxies = %d, want 4", stats.TotalProxies)
	}
	if stats.UniqueProxies != 3 {
		t.Errorf("UniqueProxies = %d, want 3", stats.UniqueProxies)
	}
	if stats.AliveProxies != 2 {
		t.Errorf("AliveProxies = %d, want 2", stats.AliveProxies)
	}
	if stats.WorkingByProtocol[model.ProtocolHTTP] != 2 || stats.WorkingByProtocol[model.ProtocolHTTPS] != 1 {
		t.Errorf("WorkingByProtocol = %v", stats.WorkingByProtocol)
	}
	if stats.Errors[model.KindFormat] != 1 {
		t.Errorf("Errors = %v", stats.Errors)
	}
	if math.Abs(stats.AvgConnectMs-20) > 0.001 {
		t.Errorf("AvgConnectMs = %v, want 20", stats.AvgConnectMs)
	}
	if stats.SuccessRatePct != 50 {
		t.Errorf("SuccessRatePct = %v, want 50", stats.SuccessRatePct)
	}
	if stats.TotalProcessingTimeMs != 1500 {
		t.Errorf("TotalProcessingTimeMs = %d", stats.TotalProcessingTimeMs)
	}
}

func TestComputeEmpty(t *testing.T) {
	t.Parallel()

	stats := Compute(nil, 0)
	if stats.TotalProxies != 0 || stats.SuccessRatePct != 0 || stats.AvgConnectMs != 0 {
		t.Errorf("unexpected stats for empty batch: %+v", stats)
	}
}
