// Package analytics keeps process-wide check counters and summarizes
// batches.
package analytics

import (
	"sync"
	"time"

	"github.com/August26/proxychk/internal/model"
)

// RequesterStats are the counters of one caller.
type RequesterStats struct {
	Checks     int       `json:"checks" yaml:"checks"`
	LastActive time.Time `json:"last_active" yaml:"last_active"`
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	TotalChecks      int                       `json:"total_checks" yaml:"total_checks"`
	SuccessfulChecks int                       `json:"successful_checks" yaml:"successful_checks"`
	ActiveUsers      int                       `json:"active_users" yaml:"active_users"`
	Requesters       map[string]RequesterStats `json:"requesters,omitempty" yaml:"requesters,omitempty"`
}

// Stats holds aggregate counters. It is owned by whoever composes the
// checker and shared by pointer; all methods are safe for concurrent use.
type Stats struct {
	mu               sync.Mutex
	totalChecks      int
	successfulChecks int
	requesters       map[string]*RequesterStats
	now              func() time.Time
}

// NewStats returns empty counters. now may be nil.
func NewStats(now func() time.Time) *Stats {
	if now == nil {
		now = time.Now
	}
	return &Stats{
		requesters: make(map[string]*RequesterStats),
		now:        now,
	}
}

// Touch marks requester as active. A requester is counted as an active
// user on first sight.
func (s *Stats) Touch(requester string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked(requester)
}

func (s *Stats) touchLocked(requester string) *RequesterStats {
	r, ok := s.requesters[requester]
	if !ok {
		r = &RequesterStats{}
		s.requesters[requester] = r
	}
	r.LastActive = s.now()
	return r
}

// RecordBatch adds the entries of one batch to the counters. Every entry
// counts as a check; working reports count as successful.
func (s *Stats) RecordBatch(requester string, entries []model.BatchEntry) {
	successful := 0
	for _, e := range entries {
		if e.Working() {
			successful++
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalChecks += len(entries)
	s.successfulChecks += successful
	r := s.touchLocked(requester)
	r.Checks += len(entries)
}

// Snapshot returns a copy of the counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	reqs := make(map[string]RequesterStats, len(s.requesters))
	for k, v := range s.requesters {
		reqs[k] = *v
	}
	return Snapshot{
		TotalChecks:      s.totalChecks,
		SuccessfulChecks: s.successfulChecks,
		ActiveUsers:      len(s.requesters),
		Requesters:       reqs,
	}
}
