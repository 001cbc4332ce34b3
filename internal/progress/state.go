// Package progress tracks and renders the status of a running bulk job.
package progress

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"bulkctl/cli/internal/bulk"
)

// State accumulates the snapshots the poller reports.
type State struct {
	mu      sync.Mutex
	label   string
	polls   int
	last    *bulk.JobInfo
	started time.Time
	now     func() time.Time
}

// NewState creates a State; label names the job in rendered lines
// (typically "<operation> <object>").
func NewState(label string) *State {
	return &State{label: label, started: time.Now(), now: time.Now}
}

// Observe records a snapshot. It is safe to call from the poller goroutine.
func (s *State) Observe(info *bulk.JobInfo) {
	if info == nil {
		return
	}
	cp := *info
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	s.last = &cp
}

// Polls returns how many snapshots were observed.
func (s *State) Polls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

// Last returns a copy of the most recent snapshot, or nil.
func (s *State) Last() *bulk.JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	cp := *s.last
	return &cp
}

// Elapsed is the time since the state was created.
func (s *State) Elapsed() time.Duration {
	return s.now().Sub(s.started)
}

// Line renders one status line prefixed by frame.
func (s *State) Line(frame string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	parts := []string{frame, s.label}
	if s.last == nil {
		parts = append(parts, "waiting for first status")
	} else {
		info := s.last
		parts = append(parts, info.ID, info.State,
			fmt.Sprintf("processed %d", info.RecordsProcessed),
			fmt.Sprintf("failed %d", info.RecordsFailed))
		if info.BatchesTotal > 0 {
			parts = append(parts, fmt.Sprintf("batches %d/%d", info.BatchesCompleted+info.BatchesFailed, info.BatchesTotal))
		}
		parts = append(parts, fmt.Sprintf("poll #%d", s.polls))
	}
	parts = append(parts, s.now().Sub(s.started).Round(time.Second).String())
	return strings.Join(nonEmpty(parts), "  ")
}

func nonEmpty(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
