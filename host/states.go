package host

import (
	"maps"
	"slices"
	"sync"
	"time"
)

const (
	StateUnknown     = "unknown"
	StateUnavailable = "unavailable"
)

// State is the published state of one entity.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
}

// StateChangedEvent carries the old and new state, New is nil on removal.
type StateChangedEvent struct {
	EntityID string
	Old      *State
	New      *State
}

type StateMachine struct {
	mu          sync.RWMutex
	states      map[string]State
	subscribers map[int]func(StateChangedEvent)
	nextID      int
}

func NewStateMachine() *StateMachine {
	return &StateMachine{
		states:      make(map[string]State),
		subscribers: make(map[int]func(StateChangedEvent)),
	}
}

// Set stores the state and notifies subscribers. LastChanged only moves when
// the state string changes.
func (m *StateMachine) Set(entityID, state string, attributes map[string]any, now time.Time) State {
	m.mu.Lock()
	old, existed := m.states[entityID]
	s := State{
		EntityID:    entityID,
		State:       state,
		Attributes:  attributes,
		LastChanged: now,
		LastUpdated: now,
	}
	if existed && old.State == state {
		s.LastChanged = old.LastChanged
	}
	m.states[entityID] = s
	subs := m.subscriberList()
	m.mu.Unlock()

	ev := StateChangedEvent{EntityID: entityID, New: &s}
	if existed {
		ev.Old = &old
	}
	for _, fn := range subs {
		fn(ev)
	}
	return s
}

func (m *StateMachine) Remove(entityID string) bool {
	m.mu.Lock()
	old, existed := m.states[entityID]
	delete(m.states, entityID)
	subs := m.subscriberList()
	m.mu.Unlock()

	if !existed {
		return false
	}
	for _, fn := range subs {
		fn(StateChangedEvent{EntityID: entityID, Old: &old})
	}
	return true
}

func (m *StateMachine) Get(entityID string) (State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[entityID]
	return s, ok
}

// All returns every state ordered by entity id.
func (m *StateMachine) All() []State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]State, 0, len(m.states))
	for _, id := range slices.Sorted(maps.Keys(m.states)) {
		out = append(out, m.states[id])
	}
	return out
}

func (m *StateMachine) Has(entityID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.states[entityID]
	return ok
}

// Subscribe registers fn for every state change. fn runs on the goroutine
// that changed the state and must not block.
func (m *StateMachine) Subscribe(fn func(StateChangedEvent)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subscribers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

// must be called with m.mu held
func (m *StateMachine) subscriberList() []func(StateChangedEvent) {
	ids := slices.Sorted(maps.Keys(m.subscribers))
	subs := make([]func(StateChangedEvent), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, m.subscribers[id])
	}
	return subs
}
