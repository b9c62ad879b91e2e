package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var ErrEntityExists = errors.New("entity already exists")

// AddEntitiesCallback is handed to an integration's setup function.
type AddEntitiesCallback func(ctx context.Context, entities []Entity, updateBeforeAdd bool) error

// Platform adds the entities of one config entry.
type Platform struct {
	host  *Host
	Entry ConfigEntry
}

func (h *Host) Platform(entry ConfigEntry) *Platform {
	return &Platform{host: h, Entry: entry}
}

// AddEntities registers entities and writes their first state. With
// updateBeforeAdd an entity whose first update fails is not added.
// Rejected entities get RemovedFromHost so they can release whatever their
// update set up.
func (p *Platform) AddEntities(ctx context.Context, entities []Entity, updateBeforeAdd bool) error {
	h := p.host
	var errs []error

	for _, e := range entities {
		id := e.EntityID()
		if updateBeforeAdd {
			if err := e.Update(ctx); err != nil {
				h.logger.Error("entity not added, first update failed",
					slog.String("entity_id", id), slog.Any("error", err))
				errs = append(errs, fmt.Errorf("update %s: %w", id, err))
				release(e)
				continue
			}
		}

		h.mu.Lock()
		if _, ok := h.entities[id]; ok {
			h.mu.Unlock()
			errs = append(errs, fmt.Errorf("%s: %w", id, ErrEntityExists))
			release(e)
			continue
		}
		h.entities[id] = &entityHandle{entity: e, entryID: p.Entry.EntryID, platform: p.Entry.Domain}
		h.mu.Unlock()

		_, err := h.Registry.Register(RegistryEntry{
			UniqueID:      e.UniqueID(),
			EntityID:      id,
			Platform:      p.Entry.Domain,
			ConfigEntryID: p.Entry.EntryID,
			OriginalName:  e.Name(),
			Unit:          e.UnitOfMeasurement(),
			Icon:          e.Icon(),
			ModifiedAt:    h.Now(),
		})
		if err != nil {
			h.logger.Warn("failed to register entity", slog.String("entity_id", id), slog.Any("error", err))
		}

		if a, ok := e.(AddedToHost); ok {
			a.AddedToHost(h)
		}
		h.writeState(e)
		h.logger.Debug("entity added", slog.String("entity_id", id), slog.String("entry_id", p.Entry.EntryID))
	}

	return errors.Join(errs...)
}

func release(e Entity) {
	if r, ok := e.(RemovedFromHost); ok {
		r.RemovedFromHost()
	}
}

// UnloadEntry removes every live entity of the config entry and returns how
// many were removed. Registry entries are kept.
func (h *Host) UnloadEntry(entryID string) int {
	h.mu.Lock()
	var removed []*entityHandle
	for id, eh := range h.entities {
		if eh.entryID == entryID {
			removed = append(removed, eh)
			delete(h.entities, id)
		}
	}
	h.mu.Unlock()

	for _, eh := range removed {
		eh.mu.Lock()
		if r, ok := eh.entity.(RemovedFromHost); ok {
			r.RemovedFromHost()
		}
		h.States.Remove(eh.entity.EntityID())
		eh.mu.Unlock()
	}
	if len(removed) > 0 {
		h.logger.Info("config entry unloaded", slog.String("entry_id", entryID), slog.Int("entities", len(removed)))
	}
	return len(removed)
}

// RemoveEntry unloads the config entry and forgets its entities.
func (h *Host) RemoveEntry(entryID string) error {
	h.UnloadEntry(entryID)
	if _, err := h.Registry.RemoveConfigEntry(entryID); err != nil {
		return fmt.Errorf("remove config entry %s: %w", entryID, err)
	}
	return nil
}
