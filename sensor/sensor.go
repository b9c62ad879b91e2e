// Package sensor exposes the processed ENTSO-e prices of a coordinator as
// host entities, one per entry in SensorTypes.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angas/entsoe-go/coordinator"
	"github.com/angas/entsoe-go/host"
	"github.com/angas/entsoe-go/hours"
	"github.com/angas/entsoe-go/types/maybe"
)

var ErrNoCoordinator = errors.New("no coordinator for config entry")

// Coordinator is the part of coordinator.Coordinator the sensors read from.
type Coordinator interface {
	ProcessedData() coordinator.Snapshot
	AddListener(fn func()) (remove func())
}

// SetupEntry creates one sensor per SensorTypes entry for the config entry
// and hands them to addEntities. When the entry has a display name every
// key is scoped to the entry so several entries can coexist.
func SetupEntry(ctx context.Context, h *host.Host, entry host.ConfigEntry, addEntities host.AddEntitiesCallback) error {
	v, ok := h.Data.Get(Domain, entry.EntryID, ConfCoordinator)
	if !ok {
		return fmt.Errorf("%s: %w", entry.EntryID, ErrNoCoordinator)
	}
	coord, ok := v.(Coordinator)
	if !ok {
		return fmt.Errorf("%s: %T: %w", entry.EntryID, v, ErrNoCoordinator)
	}

	name := entry.Option(ConfEntityName)
	entities := make([]host.Entity, 0, len(SensorTypes))
	for _, description := range SensorTypes {
		if name != "" {
			description.Key = entry.EntryID + description.Key
		}
		entities = append(entities, New(h, coord, description, name))
	}

	return addEntities(ctx, entities, true)
}

// Sensor is a projection of the coordinator snapshot through its
// description's ValueFn. The host serializes calls to it.
type Sensor struct {
	host        *host.Host
	coordinator Coordinator
	description EntityDescription
	entityID    string

	value      maybe.Maybe[any]
	attributes map[string]any

	unsubUpdate   host.CancelFunc
	unsubListener func()
}

// New creates a sensor. A non-empty name is appended to the entity id.
func New(h *host.Host, coord Coordinator, description EntityDescription, name string) *Sensor {
	idName := description.Name
	if name != "" {
		idName = description.Name + "_" + name
	}
	return &Sensor{
		host:        h,
		coordinator: coord,
		description: description,
		entityID:    h.GenerateEntityID(host.EntityIDFormat, idName),
		value:       maybe.None[any](),
	}
}

func (s *Sensor) Description() EntityDescription { return s.description }

func (s *Sensor) UniqueID() string                     { return s.entityID }
func (s *Sensor) EntityID() string                     { return s.entityID }
func (s *Sensor) Name() string                         { return s.description.Name }
func (s *Sensor) Icon() string                         { return Icon }
func (s *Sensor) Attribution() string                  { return Attribution }
func (s *Sensor) UnitOfMeasurement() string            { return s.description.NativeUnitOfMeasurement }
func (s *Sensor) DeviceClass() string                  { return s.description.DeviceClass }
func (s *Sensor) StateClass() string                   { return s.description.StateClass }
func (s *Sensor) NativeValue() maybe.Maybe[any]        { return s.value }
func (s *Sensor) ExtraStateAttributes() map[string]any { return s.attributes }

// Update reads the snapshot once and derives both value and attributes from
// it. Missing data gives an absent value, any other extraction error is
// returned. Either way the next update is scheduled for the top of the next
// UTC hour.
func (s *Sensor) Update(ctx context.Context) error {
	defer s.scheduleNextUpdate()

	data := s.coordinator.ProcessedData()
	s.attributes = data.Without(coordinator.FieldTimeMin, coordinator.FieldTimeMax)

	v, err := s.description.ValueFn(data)
	switch {
	case err == nil:
		s.value = maybe.Some(v)
	case coordinator.IsNoData(err):
		s.value = maybe.None[any]()
	default:
		return fmt.Errorf("%s: %w", s.description.Key, err)
	}
	return nil
}

func (s *Sensor) scheduleNextUpdate() {
	if s.unsubUpdate != nil {
		s.unsubUpdate()
		s.unsubUpdate = nil
	}

	s.unsubUpdate = s.host.TrackPointInUTCTime(hours.TopOfNextHour(s.host.Now()), func(ctx context.Context, _ time.Time) {
		if e, ok := s.host.Entity(s.entityID); !ok || e != host.Entity(s) {
			return
		}
		_ = s.host.UpdateEntityState(ctx, s)
	})
}

// AddedToHost subscribes to coordinator refreshes.
func (s *Sensor) AddedToHost(h *host.Host) {
	s.unsubListener = s.coordinator.AddListener(func() {
		h.ScheduleUpdateState(s)
	})
}

// RemovedFromHost drops the pending update and the coordinator listener.
func (s *Sensor) RemovedFromHost() {
	if s.unsubUpdate != nil {
		s.unsubUpdate()
		s.unsubUpdate = nil
	}
	if s.unsubListener != nil {
		s.unsubListener()
		s.unsubListener = nil
	}
}
