// Package presence tracks which live connections hold which display names.
package presence

import (
	"fmt"
	"sort"
	"sync"
)

// ConnectionID identifies one live transport session.
type ConnectionID string

// String returns the underlying identifier.
func (id ConnectionID) String() string {
	return string(id)
}

// NameAssigner picks a display name that is not in the provided live set.
type NameAssigner interface {
	Assign(live map[string]struct{}) string
}

type participant struct {
	name string
	seq  uint64
}

// Registry maps live connections to display names. Every operation runs in a single
// critical section, so name selection and insertion never interleave across connects.
type Registry struct {
	mu           sync.Mutex
	names        NameAssigner
	participants map[ConnectionID]participant
	owners       map[string]ConnectionID
	nextSeq      uint64
}

// NewRegistry constructs an empty registry backed by the given name assigner.
func NewRegistry(names NameAssigner) *Registry {
	return &Registry{
		names:        names,
		participants: make(map[ConnectionID]participant),
		owners:       make(map[string]ConnectionID),
	}
}

// Connect registers the connection and returns its display name. Connecting an
// already registered connection returns the name it already holds.
func (r *Registry) Connect(id ConnectionID) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.participants[id]; ok {
		return existing.name
	}

	live := make(map[string]struct{}, len(r.owners))
	for name := range r.owners {
		live[name] = struct{}{}
	}

	r.nextSeq++
	name := r.names.Assign(live)
	if _, taken := r.owners[name]; taken {
		// Guest fallback collided; the join sequence is unique.
		name = fmt.Sprintf("%s-%d", name, r.nextSeq)
	}
	if owner, taken := r.owners[name]; taken {
		panic(fmt.Sprintf("presence: display name %q already held by %s", name, owner))
	}

	r.participants[id] = participant{name: name, seq: r.nextSeq}
	r.owners[name] = id
	return name
}

// Disconnect removes the connection and returns the freed name. The boolean is false
// when the connection was not registered, which includes repeated disconnects.
func (r *Registry) Disconnect(id ConnectionID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.participants[id]
	if !ok {
		return "", false
	}
	if owner := r.owners[existing.name]; owner != id {
		panic(fmt.Sprintf("presence: name index maps %q to %s, expected %s", existing.name, owner, id))
	}
	delete(r.participants, id)
	delete(r.owners, existing.name)
	return existing.name, true
}

// Lookup returns the display name held by the connection.
func (r *Registry) Lookup(id ConnectionID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.participants[id]
	return existing.name, ok
}

// Roster returns the live display names in join order.
func (r *Registry) Roster() []string {
	r.mu.Lock()
	entries := make([]participant, 0, len(r.participants))
	for _, entry := range r.participants {
		entries = append(entries, entry)
	}
	r.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})
	roster := make([]string, len(entries))
	for index, entry := range entries {
		roster[index] = entry.name
	}
	return roster
}

// Len reports the number of live participants.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}
