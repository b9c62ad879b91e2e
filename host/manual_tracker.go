package host

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// ManualTracker only runs jobs when told to. It is used by tests and by one
// shot commands that must not leave timers behind.
type ManualTracker struct {
	mu        sync.Mutex
	nextID    int
	jobs      map[int]manualJob
	cancelled int
}

type manualJob struct {
	at  time.Time
	job func(now time.Time)
}

func NewManualTracker() *ManualTracker {
	return &ManualTracker{jobs: make(map[int]manualJob)}
}

func (t *ManualTracker) TrackPointInUTCTime(at time.Time, job func(now time.Time)) CancelFunc {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.jobs[id] = manualJob{at: at.UTC(), job: job}
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if _, ok := t.jobs[id]; ok {
			delete(t.jobs, id)
			t.cancelled++
		}
	}
}

// Pending returns the instants of jobs not yet fired or cancelled, sorted.
func (t *ManualTracker) Pending() []time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]time.Time, 0, len(t.jobs))
	for _, j := range t.jobs {
		out = append(out, j.at)
	}
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return out
}

// Cancelled returns how many jobs were cancelled before firing.
func (t *ManualTracker) Cancelled() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// FireUntil runs, in id order, every job due at or before now and returns
// how many ran.
func (t *ManualTracker) FireUntil(now time.Time) int {
	t.mu.Lock()
	var due []manualJob
	for _, id := range slices.Sorted(maps.Keys(t.jobs)) {
		if j := t.jobs[id]; !j.at.After(now) {
			due = append(due, j)
			delete(t.jobs, id)
		}
	}
	t.mu.Unlock()

	for _, j := range due {
		j.job(now.UTC())
	}
	return len(due)
}
