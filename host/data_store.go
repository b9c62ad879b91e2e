package host

import "sync"

// DataStore is per-integration storage, keyed by domain, config entry id
// and field.
type DataStore struct {
	mu   sync.RWMutex
	data map[string]map[string]map[string]any
}

func NewDataStore() *DataStore {
	return &DataStore{data: make(map[string]map[string]map[string]any)}
}

func (d *DataStore) Set(domain, entryID, key string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entries, ok := d.data[domain]
	if !ok {
		entries = make(map[string]map[string]any)
		d.data[domain] = entries
	}
	fields, ok := entries[entryID]
	if !ok {
		fields = make(map[string]any)
		entries[entryID] = fields
	}
	fields[key] = value
}

func (d *DataStore) Get(domain, entryID, key string) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.data[domain][entryID][key]
	return v, ok
}

func (d *DataStore) DeleteEntry(domain, entryID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.data[domain], entryID)
}
