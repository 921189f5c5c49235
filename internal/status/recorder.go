// Package status holds the in-memory run counters shown by the status page
// and the operator console.
package status

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cprmachine/cprd/internal/model"
)

// Recorder is the RunStatus collaborator. The sequencer mutates it through
// the increment and SetRunStart calls; everything else reads snapshots.
type Recorder struct {
	mu       sync.RWMutex
	counters model.Counters
	runStart *time.Time
	runID    string
	newID    func() string
}

// NewRecorder returns zeroed counters with no active run.
func NewRecorder() *Recorder {
	return &Recorder{newID: uuid.NewString}
}

func (r *Recorder) IncrementShocks(n int) {
	r.mu.Lock()
	r.counters.Shocks += int64(n)
	r.mu.Unlock()
}

func (r *Recorder) IncrementCprCycles(n int) {
	r.mu.Lock()
	r.counters.CprCycles += int64(n)
	r.mu.Unlock()
}

func (r *Recorder) IncrementVentilations(n int) {
	r.mu.Lock()
	r.counters.Ventilations += int64(n)
	r.mu.Unlock()
}

// SetRunStart marks a run as started at *t, or clears the start time when t
// is nil. Each new start gets a fresh run id; clearing keeps the last id so
// the finished run stays identifiable.
func (r *Recorder) SetRunStart(t *time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t == nil {
		r.runStart = nil
		return
	}
	ts := *t
	r.runStart = &ts
	r.runID = r.newID()
}

// Snapshot returns a copy of the current status.
func (r *Recorder) Snapshot() model.RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := model.RunStatus{Counters: r.counters, RunID: r.runID}
	if r.runStart != nil {
		ts := *r.runStart
		out.RunStart = &ts
	}
	return out
}
