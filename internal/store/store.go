// Package store implements a generic normalized collection: an id-keyed
// arena map plus an explicit ordered id list. All operations are pure and
// return a new store value, which lets callers roll an optimistic mutation
// back by simply restoring the previous value.
package store

import "fmt"

// Entity is anything addressable by a stable string id.
type Entity interface {
	EntityID() string
}

// Store holds entities by id together with an explicit ordering.
//
// Invariant: every id in order has an entry in byID and vice versa, and
// order contains no duplicates. The explicit list avoids relying on map
// iteration or key-insertion order.
type Store[T Entity] struct {
	byID  map[string]T
	order []string
}

// New returns an empty store.
func New[T Entity]() Store[T] {
	return Store[T]{byID: map[string]T{}, order: nil}
}

// FromSlice builds a store from an ordered slice. Later duplicates of an
// id overwrite earlier ones without repeating the id in the order list.
func FromSlice[T Entity](items []T) Store[T] {
	s := New[T]()
	for _, item := range items {
		s = s.Put(item)
	}
	return s
}

func (s Store[T]) clone() Store[T] {
	byID := make(map[string]T, len(s.byID))
	for id, v := range s.byID {
		byID[id] = v
	}
	order := make([]string, len(s.order))
	copy(order, s.order)
	return Store[T]{byID: byID, order: order}
}

// Add inserts item at the end of the order. It is a no-op if the id is
// already present; callers that want overwrite semantics use Put.
func (s Store[T]) Add(item T) Store[T] {
	if _, ok := s.byID[item.EntityID()]; ok {
		return s
	}
	return s.Put(item)
}

// Put inserts item, overwriting any existing entity with the same id.
// A new id is appended to the order; an existing id keeps its position.
func (s Store[T]) Put(item T) Store[T] {
	id := item.EntityID()
	out := s.clone()
	if _, ok := out.byID[id]; !ok {
		out.order = append(out.order, id)
	}
	out.byID[id] = item
	return out
}

// Update applies fn to the entity with the given id. It is a no-op if the
// id is absent. fn receives a copy and returns the replacement value; the
// entity's id must not change.
func (s Store[T]) Update(id string, fn func(T) T) Store[T] {
	cur, ok := s.byID[id]
	if !ok {
		return s
	}
	out := s.clone()
	out.byID[id] = fn(cur)
	return out
}

// Remove deletes the entity from both the arena and the order list.
// It is a no-op if the id is absent.
func (s Store[T]) Remove(id string) Store[T] {
	if _, ok := s.byID[id]; !ok {
		return s
	}
	out := s.clone()
	delete(out.byID, id)
	for i, oid := range out.order {
		if oid == id {
			out.order = append(out.order[:i], out.order[i+1:]...)
			break
		}
	}
	return out
}

// InsertAt inserts item at position pos in the order, clamping pos to the
// valid range. It is a no-op if the id is already present. Used to undo a
// removal without losing the entity's original position.
func (s Store[T]) InsertAt(item T, pos int) Store[T] {
	id := item.EntityID()
	if _, ok := s.byID[id]; ok {
		return s
	}
	if pos < 0 {
		pos = 0
	}
	if pos > len(s.order) {
		pos = len(s.order)
	}
	out := s.clone()
	out.byID[id] = item
	rest := append([]string{}, out.order[pos:]...)
	out.order = append(append(out.order[:pos:pos], id), rest...)
	return out
}

// Reorder moves the id at position from to position to.
func (s Store[T]) Reorder(from, to int) (Store[T], error) {
	n := len(s.order)
	if from < 0 || from >= n || to < 0 || to >= n {
		return s, fmt.Errorf("store: reorder out of range: from=%d to=%d len=%d", from, to, n)
	}
	if from == to {
		return s, nil
	}
	out := s.clone()
	id := out.order[from]
	out.order = append(out.order[:from], out.order[from+1:]...)
	rest := append([]string{}, out.order[to:]...)
	out.order = append(append(out.order[:to:to], id), rest...)
	return out, nil
}

// Get returns the entity with the given id.
func (s Store[T]) Get(id string) (T, bool) {
	v, ok := s.byID[id]
	return v, ok
}

// Has reports whether id is present.
func (s Store[T]) Has(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// Len returns the number of entities.
func (s Store[T]) Len() int { return len(s.order) }

// IDs returns the ordered id list.
func (s Store[T]) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Items returns the entities as an ordered slice, the denormalized view
// consumed by API responses.
func (s Store[T]) Items() []T {
	out := make([]T, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Filter returns the ordered entities for which keep returns true.
func (s Store[T]) Filter(keep func(T) bool) []T {
	var out []T
	for _, id := range s.order {
		if v := s.byID[id]; keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// Consistent reports whether the arena and the order list agree. It is
// used by tests to assert the store invariant after mutation sequences.
func (s Store[T]) Consistent() bool {
	if len(s.byID) != len(s.order) {
		return false
	}
	seen := make(map[string]struct{}, len(s.order))
	for _, id := range s.order {
		if _, dup := seen[id]; dup {
			return false
		}
		seen[id] = struct{}{}
		if _, ok := s.byID[id]; !ok {
			return false
		}
	}
	return true
}
