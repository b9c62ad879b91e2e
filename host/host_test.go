package host

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angas/entsoe-go/types/maybe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEntity struct {
	id      string
	name    string
	value   maybe.Maybe[any]
	attrs   map[string]any
	err     error
	updates int
	added   bool
	removed bool
}

func (f *fakeEntity) UniqueID() string                     { return "uid_" + f.id }
func (f *fakeEntity) EntityID() string                     { return f.id }
func (f *fakeEntity) Name() string                         { return f.name }
func (f *fakeEntity) Icon() string                         { return "mdi:flash" }
func (f *fakeEntity) Attribution() string                  { return "" }
func (f *fakeEntity) UnitOfMeasurement() string            { return "€/kWh" }
func (f *fakeEntity) DeviceClass() string                  { return "" }
func (f *fakeEntity) StateClass() string                   { return "measurement" }
func (f *fakeEntity) NativeValue() maybe.Maybe[any]        { return f.value }
func (f *fakeEntity) ExtraStateAttributes() map[string]any { return f.attrs }
func (f *fakeEntity) AddedToHost(*Host)                    { f.added = true }
func (f *fakeEntity) RemovedFromHost()                     { f.removed = true }

func (f *fakeEntity) Update(context.Context) error {
	f.updates++
	return f.err
}

var testNow = time.Date(2025, 3, 10, 12, 34, 56, 0, time.UTC)

func newTestHost(t *testing.T) (*Host, *ManualTracker) {
	t.Helper()
	tracker := NewManualTracker()
	h := New(
		WithClock(func() time.Time { return testNow }),
		WithTracker(tracker),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return h, tracker
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Current electricity market price", "current_electricity_market_price"},
		{"Average Price Today_Home", "average_price_today_home"},
		{"Prix élevé", "prix_eleve"},
		{"  --  ", "unknown"},
		{"Percentage of highest price", "percentage_of_highest_price"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestGenerateEntityIDAddsSuffixOnCollision(t *testing.T) {
	h, _ := newTestHost(t)

	assert.Equal(t, "sensor.lowest_price", h.GenerateEntityID(EntityIDFormat, "Lowest price"))

	h.States.Set("sensor.lowest_price", "1", nil, testNow)
	assert.Equal(t, "sensor.lowest_price_2", h.GenerateEntityID(EntityIDFormat, "Lowest price"))

	p := h.Platform(ConfigEntry{EntryID: "e1", Domain: "test"})
	require.NoError(t, p.AddEntities(context.Background(), []Entity{&fakeEntity{id: "sensor.lowest_price_2"}}, false))
	assert.Equal(t, "sensor.lowest_price_3", h.GenerateEntityID(EntityIDFormat, "Lowest price"))
}

func TestAddEntitiesWritesState(t *testing.T) {
	h, _ := newTestHost(t)
	e := &fakeEntity{
		id:    "sensor.current_price",
		name:  "Current price",
		value: maybe.Some[any](0.1234),
		attrs: map[string]any{"area": "NL"},
	}

	p := h.Platform(ConfigEntry{EntryID: "e1", Domain: "test"})
	require.NoError(t, p.AddEntities(context.Background(), []Entity{e}, true))

	assert.Equal(t, 1, e.updates)
	assert.True(t, e.added)

	s, ok := h.States.Get("sensor.current_price")
	require.True(t, ok)
	assert.Equal(t, "0.1234", s.State)
	assert.Equal(t, "NL", s.Attributes["area"])
	assert.Equal(t, "Current price", s.Attributes["friendly_name"])
	assert.Equal(t, "€/kWh", s.Attributes["unit_of_measurement"])
	assert.NotContains(t, s.Attributes, "attribution")
	assert.Equal(t, testNow, s.LastUpdated)

	reg, err := h.Registry.Get("uid_sensor.current_price")
	require.NoError(t, err)
	assert.Equal(t, "sensor.current_price", reg.EntityID)
	assert.Equal(t, "e1", reg.ConfigEntryID)
	assert.Equal(t, "test", reg.Platform)
}

func TestAddEntitiesSkipsFailedFirstUpdate(t *testing.T) {
	h, _ := newTestHost(t)
	good := &fakeEntity{id: "sensor.good", value: maybe.Some[any](1.0)}
	bad := &fakeEntity{id: "sensor.bad", err: errors.New("boom")}

	p := h.Platform(ConfigEntry{EntryID: "e1", Domain: "test"})
	err := p.AddEntities(context.Background(), []Entity{bad, good}, true)
	require.Error(t, err)
	assert.ErrorContains(t, err, "boom")

	assert.False(t, h.States.Has("sensor.bad"))
	assert.True(t, h.States.Has("sensor.good"))
	assert.Len(t, h.Entities("e1"), 1)
	assert.True(t, bad.removed, "rejected entity is released")
	assert.False(t, good.removed)
}

func TestAddEntitiesRejectsDuplicateID(t *testing.T) {
	h, _ := newTestHost(t)
	p := h.Platform(ConfigEntry{EntryID: "e1", Domain: "test"})
	require.NoError(t, p.AddEntities(context.Background(), []Entity{&fakeEntity{id: "sensor.x"}}, false))

	dup := &fakeEntity{id: "sensor.x"}
	err := p.AddEntities(context.Background(), []Entity{dup}, false)
	assert.ErrorIs(t, err, ErrEntityExists)
	assert.True(t, dup.removed, "rejected entity is released")
	assert.False(t, dup.added)
}

func TestUpdateEntityState(t *testing.T) {
	h, _ := newTestHost(t)
	e := &fakeEntity{id: "sensor.x", name: "X", value: maybe.None[any]()}
	p := h.Platform(ConfigEntry{EntryID: "e1", Domain: "test"})
	require.NoError(t, p.AddEntities(context.Background(), []Entity{e}, false))

	s, _ := h.States.Get("sensor.x")
	assert.Equal(t, StateUnknown, s.State)

	e.value = maybe.Some[any](time.Date(2025, 3, 10, 18, 0, 0, 0, time.FixedZone("CET", 3600)))
	require.NoError(t, h.UpdateEntityState(context.Background(), e))
	s, _ = h.States.Get("sensor.x")
	assert.Equal(t, "2025-03-10T17:00:00Z", s.State)

	e.err = errors.New("unexpected")
	err := h.UpdateEntityState(context.Background(), e)
	require.Error(t, err)
	s, _ = h.States.Get("sensor.x")
	assert.Equal(t, StateUnavailable, s.State)
	assert.Equal(t, "X", s.Attributes["friendly_name"])
}

func TestScheduleUpdateStateDropsRemovedEntity(t *testing.T) {
	h, _ := newTestHost(t)
	e := &fakeEntity{id: "sensor.x", value: maybe.Some[any](1.0)}
	p := h.Platform(ConfigEntry{EntryID: "e1", Domain: "test"})
	require.NoError(t, p.AddEntities(context.Background(), []Entity{e}, false))

	h.ScheduleUpdateState(e)
	h.Drain(context.Background())
	assert.Equal(t, 1, e.updates)

	h.ScheduleUpdateState(e)
	h.UnloadEntry("e1")
	h.Drain(context.Background())
	assert.Equal(t, 1, e.updates)
	assert.False(t, h.States.Has("sensor.x"))
}

func TestFormatState(t *testing.T) {
	assert.Equal(t, StateUnknown, FormatState(maybe.None[any]()))
	assert.Equal(t, StateUnknown, FormatState(maybe.Some[any](nil)))
	assert.Equal(t, "0.05", FormatState(maybe.Some[any](0.05)))
	assert.Equal(t, "42", FormatState(maybe.Some[any](42)))
	assert.Equal(t, "NL", FormatState(maybe.Some[any]("NL")))
}

func TestUnloadAndRemoveEntry(t *testing.T) {
	h, _ := newTestHost(t)
	a := &fakeEntity{id: "sensor.a"}
	b := &fakeEntity{id: "sensor.b"}
	other := &fakeEntity{id: "sensor.other"}
	require.NoError(t, h.Platform(ConfigEntry{EntryID: "e1", Domain: "test"}).AddEntities(context.Background(), []Entity{a, b}, false))
	require.NoError(t, h.Platform(ConfigEntry{EntryID: "e2", Domain: "test"}).AddEntities(context.Background(), []Entity{other}, false))

	assert.Equal(t, 2, h.UnloadEntry("e1"))
	assert.True(t, a.removed)
	assert.True(t, b.removed)
	assert.False(t, other.removed)
	assert.False(t, h.States.Has("sensor.a"))
	assert.True(t, h.States.Has("sensor.other"))

	_, err := h.Registry.Get("uid_sensor.a")
	require.NoError(t, err, "unload keeps the registry")

	require.NoError(t, h.RemoveEntry("e1"))
	_, err = h.Registry.Get("uid_sensor.a")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestTrackPointInUTCTime(t *testing.T) {
	h, tracker := newTestHost(t)
	at := testNow.Add(time.Hour).Truncate(time.Hour)

	var fired []time.Time
	cancel := h.TrackPointInUTCTime(at, func(_ context.Context, now time.Time) {
		fired = append(fired, now)
	})
	assert.Equal(t, 1, h.PendingScheduled())
	assert.Equal(t, []time.Time{at}, tracker.Pending())

	assert.Equal(t, 0, tracker.FireUntil(at.Add(-time.Second)))
	assert.Equal(t, 1, tracker.FireUntil(at))
	assert.Empty(t, fired, "job runs on the loop")

	h.Drain(context.Background())
	require.Len(t, fired, 1)
	assert.Equal(t, at, fired[0])
	assert.Equal(t, 0, h.PendingScheduled())

	cancel()
	assert.Equal(t, 0, h.PendingScheduled(), "cancel after firing is a no-op")
}

func TestTrackPointInUTCTimeCancelSuppressesQueuedJob(t *testing.T) {
	h, tracker := newTestHost(t)
	var runs int
	cancel := h.TrackPointInUTCTime(testNow, func(context.Context, time.Time) { runs++ })

	tracker.FireUntil(testNow)
	cancel()
	h.Drain(context.Background())

	assert.Equal(t, 0, runs)
	assert.Equal(t, 0, h.PendingScheduled())
}

func TestCronTrackerFiresOnce(t *testing.T) {
	tracker := NewCronTracker(slog.New(slog.NewTextHandler(io.Discard, nil)))
	tracker.Start()
	defer tracker.Stop()

	var fired, cancelledFired atomic.Int32
	tracker.TrackPointInUTCTime(time.Now().Add(50*time.Millisecond), func(time.Time) { fired.Add(1) })
	cancel := tracker.TrackPointInUTCTime(time.Now().Add(50*time.Millisecond), func(time.Time) { cancelledFired.Add(1) })
	cancel()

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return tracker.Entries() == 0 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
	assert.Equal(t, int32(0), cancelledFired.Load())
}

func TestCronTrackerPastInstantFiresImmediately(t *testing.T) {
	tracker := NewCronTracker(slog.New(slog.NewTextHandler(io.Discard, nil)))
	tracker.Start()
	defer tracker.Stop()

	var fired atomic.Int32
	tracker.TrackPointInUTCTime(time.Now().Add(-time.Hour), func(time.Time) { fired.Add(1) })
	assert.Eventually(t, func() bool { return fired.Load() == 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestBoltRegistry(t *testing.T) {
	r, err := OpenBoltRegistry(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	defer r.Close()

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = r.Register(RegistryEntry{UniqueID: "u1", EntityID: "sensor.a", ConfigEntryID: "e1", ModifiedAt: created})
	require.NoError(t, err)
	_, err = r.Register(RegistryEntry{UniqueID: "u2", EntityID: "sensor.b", ConfigEntryID: "e2", ModifiedAt: created})
	require.NoError(t, err)

	later := created.Add(24 * time.Hour)
	e, err := r.Register(RegistryEntry{UniqueID: "u1", EntityID: "sensor.a", ConfigEntryID: "e1", OriginalName: "A", ModifiedAt: later})
	require.NoError(t, err)
	assert.True(t, created.Equal(e.CreatedAt), "re-registering keeps the creation time")

	got, err := r.Get("u1")
	require.NoError(t, err)
	assert.Equal(t, "A", got.OriginalName)
	assert.True(t, later.Equal(got.ModifiedAt))

	all, err := r.List()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	n, err := r.RemoveConfigEntry("e1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = r.Get("u1")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestBoltRegistrySnapshot(t *testing.T) {
	dir := t.TempDir()
	r, err := OpenBoltRegistry(filepath.Join(dir, "registry.db"))
	require.NoError(t, err)
	defer r.Close()

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = r.Register(RegistryEntry{UniqueID: "sensor.current_price", EntityID: "sensor.current_price", ConfigEntryID: "e1", ModifiedAt: created})
	require.NoError(t, err)
	assert.Equal(t, "registry.db", r.BackupName())

	copyPath := filepath.Join(dir, "copy.db")
	f, err := os.Create(copyPath)
	require.NoError(t, err)
	n, err := r.WriteTo(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Positive(t, n)

	restored, err := OpenBoltRegistry(copyPath)
	require.NoError(t, err)
	defer restored.Close()
	e, err := restored.Get("sensor.current_price")
	require.NoError(t, err)
	assert.Equal(t, "e1", e.ConfigEntryID)
	assert.True(t, created.Equal(e.CreatedAt))
}

func TestCallRunsOnLoop(t *testing.T) {
	h, _ := newTestHost(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	boom := errors.New("boom")
	assert.ErrorIs(t, h.Call(ctx, func(context.Context) error { return boom }), boom)
	assert.NoError(t, h.Call(ctx, func(context.Context) error { return nil }))
}
