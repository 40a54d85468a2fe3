package analytics

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/August26/proxychk/internal/model"
)

func TestStatsRecordBatch(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewStats(func() time.Time { return at })

	s.Touch("alice")
	s.RecordBatch("alice", []model.BatchEntry{
		okEntry("10.0.0.1", 80, time.Millisecond, model.ProtocolHTTP),
		okEntry("10.0.0.2", 80, time.Millisecond),
		{Input: "x", Kind: model.KindFormat, Err: errors.New("bad")},
	})
	s.RecordBatch("bob", []model.BatchEntry{okEntry("10.0.0.3", 80, time.Millisecond, model.ProtocolSOCKS5)})

	snap := s.Snapshot()
	if snap.TotalChecks != 4 {
		t.Errorf("TotalChecks = %d, want 4", snap.TotalChecks)
	}
	if snap.SuccessfulChecks != 2 {
		t.Errorf("SuccessfulChecks = %d, want 2", snap.SuccessfulChecks)
	}
	if snap.ActiveUsers != 2 {
		t.Errorf("ActiveUsers = %d, want 2", snap.ActiveUsers)
	}
	if got := snap.Requesters["alice"]; got.Checks != 3 || !got.LastActive.Equal(at) {
		t.Errorf("alice = %+v", got)
	}
}

func TestStatsSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	s := NewStats(nil)
	s.Touch("alice")
	snap := s.Snapshot()
	snap.Requesters["alice"] = RequesterStats{Checks: 99}

	if s.Snapshot().Requesters["alice"].Checks != 0 {
		t.Error("mutating a snapshot changed the stats")
	}
}

func TestStatsConcurrentUpdates(t *testing.T) {
	t.Parallel()

	s := NewStats(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RecordBatch(fmt.Sprintf("user%d", i%5), []model.BatchEntry{
				okEntry("10.0.0.1", 80, time.Millisecond, model.ProtocolHTTP),
			})
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	if snap.TotalChecks != 50 || snap.SuccessfulChecks != 50 {
		t.Errorf("counters = %d/%d, want 50/50", snap.TotalChecks, snap.SuccessfulChecks)
	}
	if snap.ActiveUsers != 5 {
		t.Errorf("ActiveUsers = %d, want 5", snap.ActiveUsers)
	}
}
