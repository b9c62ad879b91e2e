// Package integration owns the lifecycle of the ENTSO-e config entries: one
// coordinator per entry, stored in the host data store where the sensor
// platform picks it up.
package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/angas/entsoe-go/config"
	"github.com/angas/entsoe-go/coordinator"
	"github.com/angas/entsoe-go/host"
	"github.com/angas/entsoe-go/metrics"
	"github.com/angas/entsoe-go/sensor"
	"github.com/angas/entsoe-go/task"
)

var ErrUnknownEntry = errors.New("unknown config entry")

type Integration struct {
	logger       *slog.Logger
	host         *host.Host
	store        coordinator.PriceStore
	area         string
	loc          *time.Location
	mu           sync.Mutex
	entries      map[string]host.ConfigEntry
	coordinators map[string]*coordinator.Coordinator
}

func New(h *host.Host, store coordinator.PriceStore, area string, loc *time.Location) *Integration {
	return &Integration{
		logger:       slog.Default().With("module", "integration"),
		host:         h,
		store:        store,
		area:         area,
		loc:          loc,
		entries:      make(map[string]host.ConfigEntry),
		coordinators: make(map[string]*coordinator.Coordinator),
	}
}

// EntriesFromConfig converts configured entries to host config entries.
func EntriesFromConfig(entries []config.AppConfigEntry) []host.ConfigEntry {
	out := make([]host.ConfigEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, host.ConfigEntry{
			EntryID: e.EntryId,
			Domain:  sensor.Domain,
			Title:   e.Title,
			Options: maps.Clone(e.Options),
		})
	}
	return out
}

// SetupEntry creates and refreshes the entry's coordinator and adds its
// sensors. Must run on the host job loop.
func (i *Integration) SetupEntry(ctx context.Context, entry host.ConfigEntry) error {
	c := coordinator.New(i.store, i.area, i.loc, coordinator.WithLogger(
		i.logger.With(slog.String("entry_id", entry.EntryID), slog.String("area", i.area))))

	start := time.Now()
	err := c.Refresh(ctx)
	metrics.ObserveCoordinatorRefresh(i.area, err, time.Since(start))
	if err != nil {
		// Sensors start without values and recover on the next refresh.
		i.logger.Warn("initial coordinator refresh failed", slog.String("entry_id", entry.EntryID), slog.Any("error", err))
	}

	i.host.Data.Set(sensor.Domain, entry.EntryID, sensor.ConfCoordinator, c)

	i.mu.Lock()
	i.entries[entry.EntryID] = entry
	i.coordinators[entry.EntryID] = c
	i.mu.Unlock()

	if err := sensor.SetupEntry(ctx, i.host, entry, i.host.Platform(entry).AddEntities); err != nil {
		return fmt.Errorf("setup entry %s: %w", entry.EntryID, err)
	}
	i.logger.Info("config entry set up", slog.String("entry_id", entry.EntryID), slog.String("title", entry.Title))
	return nil
}

// UnloadEntry removes the entry's sensors and coordinator. Must run on the
// host job loop.
func (i *Integration) UnloadEntry(entryID string) {
	i.host.UnloadEntry(entryID)
	i.host.Data.DeleteEntry(sensor.Domain, entryID)

	i.mu.Lock()
	delete(i.entries, entryID)
	delete(i.coordinators, entryID)
	i.mu.Unlock()
}

// ReloadEntry unloads and sets up the entry again with its current options.
func (i *Integration) ReloadEntry(ctx context.Context, entryID string) error {
	i.mu.Lock()
	entry, ok := i.entries[entryID]
	i.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", entryID, ErrUnknownEntry)
	}

	i.UnloadEntry(entryID)
	return i.SetupEntry(ctx, entry)
}

// ApplyConfig brings the loaded entries in line with entries: removed
// entries are unloaded and forgotten, changed ones reloaded and new ones
// set up.
func (i *Integration) ApplyConfig(ctx context.Context, entries []host.ConfigEntry) error {
	wanted := make(map[string]host.ConfigEntry, len(entries))
	for _, e := range entries {
		wanted[e.EntryID] = e
	}

	i.mu.Lock()
	current := maps.Clone(i.entries)
	i.mu.Unlock()

	var errs []error
	for _, id := range slices.Sorted(maps.Keys(current)) {
		if _, ok := wanted[id]; !ok {
			i.UnloadEntry(id)
			if err := i.host.RemoveEntry(id); err != nil {
				errs = append(errs, err)
			}
		}
	}

	for _, e := range entries {
		old, loaded := current[e.EntryID]
		switch {
		case !loaded:
			errs = append(errs, i.SetupEntry(ctx, e))
		case old.Title != e.Title || !maps.Equal(old.Options, e.Options):
			i.UnloadEntry(e.EntryID)
			errs = append(errs, i.SetupEntry(ctx, e))
		}
	}

	return errors.Join(errs...)
}

// Coordinators returns the coordinators of all loaded entries.
func (i *Integration) Coordinators() []task.Refresher {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]task.Refresher, 0, len(i.coordinators))
	for _, id := range slices.Sorted(maps.Keys(i.coordinators)) {
		out = append(out, i.coordinators[id])
	}
	return out
}

// Coordinator returns the coordinator of a loaded entry.
func (i *Integration) Coordinator(entryID string) (*coordinator.Coordinator, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	c, ok := i.coordinators[entryID]
	return c, ok
}
