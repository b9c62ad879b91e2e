// Package host is the runtime the price sensors plug into: it owns config
// entries, per-integration storage, the entity registry, the state machine
// and point in time scheduling. Entity work is serialized on a single job
// loop.
package host

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angas/entsoe-go/metrics"
)

type Option func(*Host)

func WithClock(now func() time.Time) Option {
	return func(h *Host) { h.now = now }
}

func WithTracker(t PointInTimeTracker) Option {
	return func(h *Host) { h.tracker = t }
}

func WithRegistry(r Registry) Option {
	return func(h *Host) { h.Registry = r }
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) { h.logger = logger }
}

type Host struct {
	logger   *slog.Logger
	Data     *DataStore
	States   *StateMachine
	Registry Registry
	tracker  PointInTimeTracker
	now      func() time.Time
	jobs     chan func(ctx context.Context)
	pending  atomic.Int64
	mu       sync.Mutex
	entities map[string]*entityHandle
}

func New(opts ...Option) *Host {
	h := &Host{
		logger:   slog.Default().With("module", "host"),
		Data:     NewDataStore(),
		States:   NewStateMachine(),
		Registry: NewMemoryRegistry(),
		now:      time.Now,
		jobs:     make(chan func(ctx context.Context), 1024),
		entities: make(map[string]*entityHandle),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.tracker == nil {
		ct := NewCronTracker(h.logger)
		ct.Start()
		h.tracker = ct
	}
	return h
}

// Now returns the current time in UTC.
func (h *Host) Now() time.Time {
	return h.now().UTC()
}

// Post queues fn to run on the job loop.
func (h *Host) Post(fn func(ctx context.Context)) {
	h.jobs <- fn
}

// Call runs fn on the job loop and waits for its result. It must not be
// called from the job loop itself.
func (h *Host) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	result := make(chan error, 1)
	h.Post(func(ctx context.Context) {
		result <- fn(ctx)
	})
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes posted jobs one at a time until ctx is done.
func (h *Host) Run(ctx context.Context) {
	h.logger.Debug("job loop started")
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("job loop stopped")
			return
		case job := <-h.jobs:
			job(ctx)
		}
	}
}

// Drain runs every job queued so far on the calling goroutine.
func (h *Host) Drain(ctx context.Context) {
	for {
		select {
		case job := <-h.jobs:
			job(ctx)
		default:
			return
		}
	}
}

// Close stops the default cron tracker, if that is what the host uses.
func (h *Host) Close() {
	if ct, ok := h.tracker.(*CronTracker); ok {
		ct.Stop()
	}
}

// TrackPointInUTCTime runs job on the job loop at the given instant. The
// returned function cancels the job if it has not fired yet.
func (h *Host) TrackPointInUTCTime(at time.Time, job func(ctx context.Context, now time.Time)) CancelFunc {
	var once sync.Once
	var cancelled atomic.Bool
	done := func() {
		once.Do(func() {
			metrics.SetPendingScheduledUpdates(h.pending.Add(-1))
		})
	}

	metrics.SetPendingScheduledUpdates(h.pending.Add(1))
	cancel := h.tracker.TrackPointInUTCTime(at.UTC(), func(now time.Time) {
		h.Post(func(ctx context.Context) {
			if cancelled.Load() {
				return
			}
			done()
			job(ctx, now)
		})
	})
	return func() {
		cancelled.Store(true)
		cancel()
		done()
	}
}

// PendingScheduled returns the number of tracked jobs that have neither
// fired nor been cancelled.
func (h *Host) PendingScheduled() int {
	return int(h.pending.Load())
}
