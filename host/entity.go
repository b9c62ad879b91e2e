package host

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/angas/entsoe-go/metrics"
	"github.com/angas/entsoe-go/types/maybe"
)

// Entity is what an integration hands to AddEntities.
type Entity interface {
	UniqueID() string
	EntityID() string
	Name() string
	Icon() string
	Attribution() string
	UnitOfMeasurement() string
	DeviceClass() string
	StateClass() string
	NativeValue() maybe.Maybe[any]
	ExtraStateAttributes() map[string]any
	// Update refreshes the cached value and attributes.
	Update(ctx context.Context) error
}

// AddedToHost is implemented by entities that need to subscribe to
// something once they are live.
type AddedToHost interface {
	AddedToHost(h *Host)
}

// RemovedFromHost is implemented by entities that need to release
// schedules or listeners. It is also called for entities AddEntities
// rejects, which never saw AddedToHost.
type RemovedFromHost interface {
	RemovedFromHost()
}

type entityHandle struct {
	mu       sync.Mutex
	entity   Entity
	entryID  string
	platform string
}

func (h *Host) handle(entityID string) (*entityHandle, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	eh, ok := h.entities[entityID]
	return eh, ok
}

// Entity returns the live entity with the given id.
func (h *Host) Entity(entityID string) (Entity, bool) {
	eh, ok := h.handle(entityID)
	if !ok {
		return nil, false
	}
	return eh.entity, true
}

// Entities returns the live entities of a config entry, every entity when
// entryID is empty, ordered by entity id.
func (h *Host) Entities(entryID string) []Entity {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Entity
	for _, id := range slices.Sorted(maps.Keys(h.entities)) {
		eh := h.entities[id]
		if entryID == "" || eh.entryID == entryID {
			out = append(out, eh.entity)
		}
	}
	return out
}

// UpdateEntityState runs the entity's update and writes the result to the
// state machine. A failed update is logged and leaves the entity
// unavailable.
func (h *Host) UpdateEntityState(ctx context.Context, e Entity) error {
	if eh, ok := h.handle(e.EntityID()); ok {
		eh.mu.Lock()
		defer eh.mu.Unlock()
	}

	if err := e.Update(ctx); err != nil {
		h.logger.Error("entity update failed", slog.String("entity_id", e.EntityID()), slog.Any("error", err))
		h.States.Set(e.EntityID(), StateUnavailable, baseAttributes(e), h.Now())
		metrics.SensorUpdate(metrics.ResultError)
		return fmt.Errorf("update %s: %w", e.EntityID(), err)
	}

	h.writeState(e)
	return nil
}

// ScheduleUpdateState queues an update of e on the job loop. The update is
// dropped if e has been removed by the time it runs.
func (h *Host) ScheduleUpdateState(e Entity) {
	h.Post(func(ctx context.Context) {
		if _, ok := h.handle(e.EntityID()); !ok {
			return
		}
		_ = h.UpdateEntityState(ctx, e)
	})
}

func (h *Host) writeState(e Entity) State {
	value := e.NativeValue()
	if value.IsValid() {
		metrics.SensorUpdate(metrics.ResultValue)
	} else {
		metrics.SensorUpdate(metrics.ResultAbsent)
	}

	attrs := maps.Clone(e.ExtraStateAttributes())
	if attrs == nil {
		attrs = make(map[string]any)
	}
	maps.Copy(attrs, baseAttributes(e))

	return h.States.Set(e.EntityID(), FormatState(value), attrs, h.Now())
}

func baseAttributes(e Entity) map[string]any {
	attrs := map[string]any{"friendly_name": e.Name()}
	for k, v := range map[string]string{
		"icon":                e.Icon(),
		"unit_of_measurement": e.UnitOfMeasurement(),
		"attribution":         e.Attribution(),
		"device_class":        e.DeviceClass(),
		"state_class":         e.StateClass(),
	} {
		if v != "" {
			attrs[k] = v
		}
	}
	return attrs
}

// FormatState renders a native value as a state string.
func FormatState(value maybe.Maybe[any]) string {
	if !value.IsValid() || value.Value() == nil {
		return StateUnknown
	}
	switch v := value.Value().(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}
