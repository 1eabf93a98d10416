package mailx

import (
	"maps"
	"sync"
	"time"
)

// Metrics is a point-in-time copy of a provider's delivery counters.
type Metrics struct {
	TotalSent      int64            `json:"total_sent"`
	TotalFailed    int64            `json:"total_failed"`
	LastSuccess    time.Time        `json:"last_success"`
	LastFailure    time.Time        `json:"last_failure"`
	FailuresByType map[string]int64 `json:"failures_by_type"`
	TemplatesSent  map[string]int64 `json:"templates_sent"`
}

// Recorder owns one provider's counters. Counters only grow.
type Recorder struct {
	mu  sync.RWMutex
	m   Metrics
	now func() time.Time
}

// NewRecorder creates a zeroed Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		m: Metrics{
			FailuresByType: make(map[string]int64),
			TemplatesSent:  make(map[string]int64),
		},
		now: time.Now,
	}
}

func (r *Recorder) RecordSuccess() {
	now := r.now()
	r.mu.Lock()
	r.m.TotalSent++
	r.m.LastSuccess = now
	r.mu.Unlock()
}

func (r *Recorder) RecordFailure(reason string) {
	now := r.now()
	r.mu.Lock()
	r.m.TotalFailed++
	r.m.LastFailure = now
	r.m.FailuresByType[reason]++
	r.mu.Unlock()
}

func (r *Recorder) RecordTemplate(name string) {
	r.mu.Lock()
	r.m.TemplatesSent[name]++
	r.mu.Unlock()
}

// Snapshot returns a deep copy of the counters.
func (r *Recorder) Snapshot() Metrics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.m
	s.FailuresByType = maps.Clone(r.m.FailuresByType)
	s.TemplatesSent = maps.Clone(r.m.TemplatesSent)
	return s
}
