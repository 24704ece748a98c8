package state

import (
	"encoding/json"
	"sync"
)

// Category is one of the four kinds of display state tracked per room.
type Category string

const (
	CategoryScene      Category = "scene"
	CategoryCountdown  Category = "countdown"
	CategoryClocks     Category = "clocks"
	CategoryInitiative Category = "initiative"
)

// categories in replay and persistence order.
var categories = []Category{CategoryScene, CategoryCountdown, CategoryClocks, CategoryInitiative}

// Store holds the last-known payload of each category per room. Payloads
// are opaque raw messages; a new publish fully replaces the prior value.
type Store struct {
	mu    sync.Mutex
	rooms map[string]map[Category]json.RawMessage
	dirty bool
}

func NewStore() *Store {
	return &Store{rooms: make(map[string]map[Category]json.RawMessage)}
}

func known(cat Category) bool {
	switch cat {
	case CategoryScene, CategoryCountdown, CategoryClocks, CategoryInitiative:
		return true
	}
	return false
}

// Publish stores payload as the new value for the category in the room and
// marks the store dirty. Unknown categories are ignored and reported false.
func (s *Store) Publish(room string, cat Category, payload json.RawMessage) bool {
	if !known(cat) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[room]
	if !ok {
		r = make(map[Category]json.RawMessage)
		s.rooms[room] = r
	}
	r[cat] = payload
	s.dirty = true
	return true
}

// Get returns the stored payload for one category of a room.
func (s *Store) Get(room string, cat Category) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, ok := s.rooms[room][cat]
	return payload, ok
}

// Snapshot returns the non-empty payloads of a room in category order
// (scene, countdown, clocks, initiative), ready for replay to a joining
// connection. An unknown room yields an empty slice.
func (s *Store) Snapshot(room string) []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[room]
	if !ok {
		return nil
	}
	var out []json.RawMessage
	for _, cat := range categories {
		if payload, ok := r[cat]; ok {
			out = append(out, payload)
		}
	}
	return out
}

// Dirty reports whether the store has changed since the last flush.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// restore replaces the store contents wholesale, as loaded from disk.
func (s *Store) restore(rooms map[string]map[Category]json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms = rooms
	s.dirty = false
}
