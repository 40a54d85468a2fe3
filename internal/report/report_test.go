package report

import (
	"slices"
	"testing"
	"time"

	"github.com/August26/proxychk/internal/model"
)

func results(working ...model.Protocol) [4]model.ProtocolResult {
	var out [4]model.ProtocolResult
	for i, p := range model.AllProtocols {
		out[i] = model.ProtocolResult{Protocol: p, StatusText: "Failed"}
		if slices.Contains(working, p) {
			out[i].Working = true
			out[i].StatusText = "Working"
		}
	}
	return out
}

func TestBuild(t *testing.T) {
	t.Parallel()

	ep := model.NewEndpoint("203.0.113.5", 3128, nil)
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name    string
		working []model.Protocol
		overall bool
	}{
		{name: "none", working: nil, overall: false},
		{name: "http only", working: []model.Protocol{model.ProtocolHTTP}, overall: true},
		{name: "socks", working: []model.Protocol{model.ProtocolSOCKS4, model.ProtocolSOCKS5}, overall: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := Build(ep, model.SocketResult{Connected: true}, results(tt.working...), "alice", at)
			if r.OverallWorking != tt.overall {
				t.Errorf("OverallWorking = %v, want %v", r.OverallWorking, tt.overall)
			}
			if len(r.WorkingProtocols) != len(tt.working) {
				t.Fatalf("WorkingProtocols = %v, want %v", r.WorkingProtocols, tt.working)
			}
			for i, p := range tt.working {
				if r.WorkingProtocols[i] != p {
					t.Errorf("WorkingProtocols[%d] = %s, want %s", i, r.WorkingProtocols[i], p)
				}
			}
			if r.Requester != "alice" || !r.CheckedAt.Equal(at) || !r.Endpoint.Equal(ep) {
				t.Errorf("unexpected report metadata: %+v", r)
			}
		})
	}
}

func TestBuildPanicsOnMisorderedResults(t *testing.T) {
	t.Parallel()

	res := results()
	res[0], res[1] = res[1], res[0]

	defer func() {
		if recover() == nil {
			t.Error("expected panic for misordered results")
		}
	}()
	Build(model.NewEndpoint("h", 1, nil), model.SocketResult{}, res, "", time.Time{})
}
