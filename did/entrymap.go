package did

import (
	"slices"
	"strings"
)

// Object is implemented by every document sub-object addressable through a
// DIDURL: public keys, embedded credentials, services.
type Object interface {
	// ID returns the object's unique DIDURL within its owning entity.
	ID() DIDURL

	// ObjectTypes returns the object's type tags. Single-typed objects
	// such as public keys report exactly one tag.
	ObjectTypes() []string
}

// EntryMap is a DIDURL-keyed collection with deterministic enumeration:
// entries are always visited in ascending lexicographic order of the key's
// canonical string, independent of insertion order. Canonical
// serialization depends on this contract; it is an invariant, not an
// implementation detail.
type EntryMap[T Object] struct {
	entries map[string]T
}

// NewEntryMap creates an empty map.
func NewEntryMap[T Object]() *EntryMap[T] {
	return &EntryMap[T]{entries: make(map[string]T)}
}

// Len returns the number of entries.
func (m *EntryMap[T]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Count returns the number of entries satisfying the predicate. A nil
// predicate counts every entry.
func (m *EntryMap[T]) Count(pred func(T) bool) int {
	if m == nil {
		return 0
	}
	if pred == nil {
		return len(m.entries)
	}
	n := 0
	for _, e := range m.entries {
		if pred(e) {
			n++
		}
	}
	return n
}

// Get returns the entry with the given id when present and satisfying
// the predicate, the zero value otherwise. Entry types are pointers, so
// the zero value reads as nil at the call site.
func (m *EntryMap[T]) Get(id DIDURL, pred func(T) bool) T {
	var zero T
	if m == nil {
		return zero
	}
	e, ok := m.entries[id.String()]
	if !ok {
		return zero
	}
	if pred != nil && !pred(e) {
		return zero
	}
	return e
}

// Contains reports whether an entry with the given id is present.
func (m *EntryMap[T]) Contains(id DIDURL) bool {
	if m == nil {
		return false
	}
	_, ok := m.entries[id.String()]
	return ok
}

// Values returns the entries satisfying the predicate in canonical order.
// A nil predicate returns every entry.
func (m *EntryMap[T]) Values(pred func(T) bool) []T {
	if m == nil {
		return nil
	}
	out := make([]T, 0, len(m.entries))
	for _, k := range m.sortedKeys() {
		e := m.entries[k]
		if pred == nil || pred(e) {
			out = append(out, e)
		}
	}
	return out
}

// Select returns the entries matching an id, a type tag, or both, in
// canonical order. At least one of id and typ must be supplied (a zero id
// counts as absent). The type filter matches membership in the entry's
// type tags, which degenerates to exact equality for single-typed entries.
func (m *EntryMap[T]) Select(id DIDURL, typ string, pred func(T) bool) ([]T, error) {
	if id.IsEmpty() && typ == "" {
		return nil, newError(CodeIllegalArgument, "select needs an id or a type")
	}
	match := func(e T) bool {
		if !id.IsEmpty() && e.ID() != id {
			return false
		}
		if typ != "" && !slices.Contains(e.ObjectTypes(), typ) {
			return false
		}
		return pred == nil || pred(e)
	}
	return m.Values(match), nil
}

// Append stores an entry, overwriting any existing entry with the same id.
func (m *EntryMap[T]) Append(e T) {
	if m.entries == nil {
		m.entries = make(map[string]T)
	}
	m.entries[e.ID().String()] = e
}

// Remove deletes the entry with the given id, reporting whether it existed.
func (m *EntryMap[T]) Remove(id DIDURL) bool {
	if m == nil {
		return false
	}
	k := id.String()
	if _, ok := m.entries[k]; !ok {
		return false
	}
	delete(m.entries, k)
	return true
}

func (m *EntryMap[T]) clone() *EntryMap[T] {
	c := NewEntryMap[T]()
	for k, v := range m.entries {
		c.entries[k] = v
	}
	return c
}

func (m *EntryMap[T]) sortedKeys() []string {
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, strings.Compare)
	return keys
}
