// Package results records scenario outcomes and the attachments captured for them during a run.
package results

import (
	"sync"
	"time"
)

// Status is the outcome of a scenario.
type Status string

const (
	StatusPassed    Status = "passed"
	StatusFailed    Status = "failed"
	StatusPending   Status = "pending"
	StatusUndefined Status = "undefined"
	StatusSkipped   Status = "skipped"
)

// MediaTypePNG is the media type of screenshots.
const MediaTypePNG = "image/png"

// Scenario identifies a scenario the way godog and the cucumber JSON do.
type Scenario struct {
	ID   string
	URI  string
	Name string
}

// Attachment is binary data captured for a scenario.
type Attachment struct {
	MediaType string
	Data      []byte
}

// Record is everything known about one finished scenario.
type Record struct {
	Scenario    Scenario
	Status      Status
	Err         error
	Duration    time.Duration
	Attachments []Attachment
}

// Store collects records for the whole run. It is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	records []*Record
	byID    map[string]*Record
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{byID: make(map[string]*Record)}
}

// Add records a finished scenario. Adding the same scenario ID again updates its record.
func (s *Store) Add(sc Scenario, status Status, err error, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.byID[sc.ID]; ok {
		r.Status, r.Err, r.Duration = status, err, d
		return
	}
	r := &Record{Scenario: sc, Status: status, Err: err, Duration: d}
	s.records = append(s.records, r)
	s.byID[sc.ID] = r
}

// Attach adds an attachment to the scenario's record, creating it if needed.
func (s *Store) Attach(sc Scenario, a Attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[sc.ID]
	if !ok {
		r = &Record{Scenario: sc}
		s.records = append(s.records, r)
		s.byID[sc.ID] = r
	}
	r.Attachments = append(r.Attachments, a)
}

// Records returns a snapshot in insertion order.
func (s *Store) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		cp := *r
		cp.Attachments = append([]Attachment(nil), r.Attachments...)
		out = append(out, cp)
	}
	return out
}

// Counts tallies records by status.
func (s *Store) Counts() map[Status]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[Status]int)
	for _, r := range s.records {
		counts[r.Status]++
	}
	return counts
}

// Failed reports whether any scenario failed.
func (s *Store) Failed() bool {
	return s.Counts()[StatusFailed] > 0
}
