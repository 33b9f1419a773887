package crawler

import (
	"sync"
	"time"
)

// Summary counts what a crawl did with each candidate file.
type Summary struct {
	Seen         int           `json:"seen"`
	Written      int           `json:"written"`
	Filtered     int           `json:"filtered"`
	Duplicates   int           `json:"duplicates"`
	Failed       int           `json:"failed"`
	Placeholders int           `json:"placeholder_extents"`
	Elapsed      time.Duration `json:"elapsed_ns"`
}

const (
	PhaseIdle     = "idle"
	PhaseCrawling = "crawling"
	PhaseDone     = "done"
	PhaseAborted  = "aborted"
)

type Snapshot struct {
	Phase   string    `json:"phase"`
	Variant string    `json:"variant"`
	Root    string    `json:"root"`
	Started time.Time `json:"started,omitzero"`
	Current string    `json:"current,omitempty"`
	Summary Summary   `json:"summary"`
}

// Status is the live view of a run, safe to read from the status server
// while the crawl goroutine updates it.
type Status struct {
	mu   sync.RWMutex
	snap Snapshot
}

func newStatus(variant, root string) *Status {
	return &Status{snap: Snapshot{Phase: PhaseIdle, Variant: variant, Root: root}}
}

func (s *Status) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.snap
	if out.Phase == PhaseCrawling {
		out.Summary.Elapsed = time.Since(out.Started)
	}
	return out
}

func (s *Status) Readiness() (bool, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Phase == PhaseDone, s.snap.Phase
}

func (s *Status) update(fn func(*Snapshot)) {
	s.mu.Lock()
	fn(&s.snap)
	s.mu.Unlock()
}
