package host

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angas/entsoe-go/logging"
	"github.com/robfig/cron/v3"
)

type CancelFunc func()

// PointInTimeTracker runs a job once at an absolute instant.
type PointInTimeTracker interface {
	TrackPointInUTCTime(at time.Time, job func(now time.Time)) CancelFunc
}

// pointInTime is a cron schedule that fires exactly once. An instant in the
// past fires as soon as possible.
type pointInTime struct {
	at   time.Time
	used atomic.Bool
}

func (p *pointInTime) Next(t time.Time) time.Time {
	if !p.used.CompareAndSwap(false, true) {
		return time.Time{}
	}
	if t.Before(p.at) {
		return p.at
	}
	return t
}

// CronTracker implements PointInTimeTracker with one-shot cron entries.
type CronTracker struct {
	cron *cron.Cron
}

func NewCronTracker(logger *slog.Logger) *CronTracker {
	return &CronTracker{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(logging.NewCronLogger(logger.With(slog.String("component", "tracker")))),
			cron.WithChain(cron.Recover(logging.NewCronLogger(logger))),
		),
	}
}

func (t *CronTracker) Start() {
	t.cron.Start()
}

func (t *CronTracker) Stop() {
	<-t.cron.Stop().Done()
}

func (t *CronTracker) TrackPointInUTCTime(at time.Time, job func(now time.Time)) CancelFunc {
	var mu sync.Mutex
	var id cron.EntryID

	mu.Lock()
	defer mu.Unlock()
	id = t.cron.Schedule(&pointInTime{at: at.UTC()}, cron.FuncJob(func() {
		job(time.Now().UTC())
		mu.Lock()
		defer mu.Unlock()
		t.cron.Remove(id)
	}))

	return func() {
		mu.Lock()
		defer mu.Unlock()
		t.cron.Remove(id)
	}
}

// Entries returns the number of scheduled one-shot jobs.
func (t *CronTracker) Entries() int {
	return len(t.cron.Entries())
}
