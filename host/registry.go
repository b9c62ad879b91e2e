package host

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

var ErrNotRegistered = errors.New("entity not registered")

const entitiesBucket = "entities"

// RegistryEntry is the persisted identity of an entity.
type RegistryEntry struct {
	UniqueID      string    `json:"unique_id"`
	EntityID      string    `json:"entity_id"`
	Platform      string    `json:"platform"`
	ConfigEntryID string    `json:"config_entry_id"`
	OriginalName  string    `json:"original_name"`
	Unit          string    `json:"unit_of_measurement,omitempty"`
	Icon          string    `json:"icon,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	ModifiedAt    time.Time `json:"modified_at"`
}

type Registry interface {
	// Register stores e, keeping the creation time of an existing entry.
	Register(e RegistryEntry) (RegistryEntry, error)
	Get(uniqueID string) (RegistryEntry, error)
	List() ([]RegistryEntry, error)
	// RemoveConfigEntry drops every entity belonging to the config entry.
	RemoveConfigEntry(entryID string) (int, error)
}

func mergeEntry(existing *RegistryEntry, e RegistryEntry) RegistryEntry {
	if existing != nil && !existing.CreatedAt.IsZero() {
		e.CreatedAt = existing.CreatedAt
	} else if e.CreatedAt.IsZero() {
		e.CreatedAt = e.ModifiedAt
	}
	return e
}

// MemoryRegistry keeps the registry for the lifetime of the process.
type MemoryRegistry struct {
	mu      sync.Mutex
	entries map[string]RegistryEntry
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{entries: make(map[string]RegistryEntry)}
}

func (r *MemoryRegistry) Register(e RegistryEntry) (RegistryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var existing *RegistryEntry
	if old, ok := r.entries[e.UniqueID]; ok {
		existing = &old
	}
	e = mergeEntry(existing, e)
	r.entries[e.UniqueID] = e
	return e, nil
}

func (r *MemoryRegistry) Get(uniqueID string) (RegistryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[uniqueID]
	if !ok {
		return RegistryEntry{}, fmt.Errorf("%s: %w", uniqueID, ErrNotRegistered)
	}
	return e, nil
}

func (r *MemoryRegistry) List() ([]RegistryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RegistryEntry, 0, len(r.entries))
	for _, k := range slices.Sorted(maps.Keys(r.entries)) {
		out = append(out, r.entries[k])
	}
	return out, nil
}

func (r *MemoryRegistry) RemoveConfigEntry(entryID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, e := range r.entries {
		if e.ConfigEntryID == entryID {
			delete(r.entries, k)
			n++
		}
	}
	return n, nil
}

// BoltRegistry persists the registry in a bbolt file so entity identities
// survive restarts.
type BoltRegistry struct {
	db *bbolt.DB
}

func OpenBoltRegistry(path string) (*BoltRegistry, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(entitiesBucket)); err != nil {
			return fmt.Errorf("failed to create entities bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltRegistry{db: db}, nil
}

func (r *BoltRegistry) Close() error {
	return r.db.Close()
}

// BackupName is the file name of the registry inside a backup archive.
func (r *BoltRegistry) BackupName() string {
	return filepath.Base(r.db.Path())
}

// WriteTo writes a consistent copy of the registry file from a read
// transaction.
func (r *BoltRegistry) WriteTo(w io.Writer) (int64, error) {
	var n int64
	err := r.db.View(func(tx *bbolt.Tx) error {
		var err error
		n, err = tx.WriteTo(w)
		return err
	})
	return n, err
}

func (r *BoltRegistry) Register(e RegistryEntry) (RegistryEntry, error) {
	err := r.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(entitiesBucket))

		var existing *RegistryEntry
		if data := bucket.Get([]byte(e.UniqueID)); data != nil {
			var old RegistryEntry
			if err := json.Unmarshal(data, &old); err != nil {
				return fmt.Errorf("failed to unmarshal registry entry: %w", err)
			}
			existing = &old
		}
		e = mergeEntry(existing, e)

		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal registry entry: %w", err)
		}
		return bucket.Put([]byte(e.UniqueID), data)
	})
	return e, err
}

func (r *BoltRegistry) Get(uniqueID string) (RegistryEntry, error) {
	var e RegistryEntry
	err := r.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(entitiesBucket)).Get([]byte(uniqueID))
		if data == nil {
			return fmt.Errorf("%s: %w", uniqueID, ErrNotRegistered)
		}
		return json.Unmarshal(data, &e)
	})
	return e, err
}

func (r *BoltRegistry) List() ([]RegistryEntry, error) {
	var out []RegistryEntry
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(entitiesBucket)).ForEach(func(k, v []byte) error {
			var e RegistryEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("failed to unmarshal registry entry %s: %w", k, err)
			}
			out = append(out, e)
			return nil
		})
	})
	return out, err
}

func (r *BoltRegistry) RemoveConfigEntry(entryID string) (int, error) {
	n := 0
	err := r.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(entitiesBucket))
		var doomed [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			var e RegistryEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("failed to unmarshal registry entry %s: %w", k, err)
			}
			if e.ConfigEntryID == entryID {
				doomed = append(doomed, slices.Clone(k))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range doomed {
			if err := bucket.Delete(k); err != nil {
				return fmt.Errorf("failed to delete registry entry %s: %w", k, err)
			}
		}
		n = len(doomed)
		return nil
	})
	return n, err
}
