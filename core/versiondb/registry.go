package versiondb

import (
	"slices"
	"sync"
	"sync/atomic"
)

// tableRegistry maps table ids to version tables. Readers load an immutable
// snapshot without locking; writers copy the map under mu and publish the
// copy.
type tableRegistry struct {
	mu     sync.Mutex
	tables atomic.Pointer[map[string]VersionTable]
}

func newTableRegistry() *tableRegistry {
	r := &tableRegistry{}
	empty := make(map[string]VersionTable)
	r.tables.Store(&empty)
	return r
}

func (r *tableRegistry) snapshot() map[string]VersionTable {
	return *r.tables.Load()
}

func (r *tableRegistry) get(tableID string) (VersionTable, bool) {
	t, ok := r.snapshot()[tableID]
	return t, ok
}

// getOrCreate returns the table registered under tableID, calling create
// only if none exists. create runs with mu held.
func (r *tableRegistry) getOrCreate(tableID string, create func() VersionTable) (VersionTable, bool) {
	if t, ok := r.get(tableID); ok {
		return t, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Double-check after acquiring the lock.
	current := r.snapshot()
	if t, ok := current[tableID]; ok {
		return t, false
	}
	t := create()
	next := copyTables(current, len(current)+1)
	next[tableID] = t
	r.tables.Store(&next)
	return t, true
}

// remove deletes tableID. Absence is reported as success; false means a
// concurrent remove got there between the unlocked check and the lock.
func (r *tableRegistry) remove(tableID string) bool {
	if _, ok := r.get(tableID); !ok {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.snapshot()
	if _, ok := current[tableID]; !ok {
		return false
	}
	next := copyTables(current, len(current))
	delete(next, tableID)
	r.tables.Store(&next)
	return true
}

// drain unregisters every table and returns them.
func (r *tableRegistry) drain() []VersionTable {
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.snapshot()
	empty := make(map[string]VersionTable)
	r.tables.Store(&empty)

	removed := make([]VersionTable, 0, len(current))
	for _, t := range current {
		removed = append(removed, t)
	}
	return removed
}

func (r *tableRegistry) ids() []string {
	current := r.snapshot()
	ids := make([]string, 0, len(current))
	for id := range current {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func copyTables(src map[string]VersionTable, capacity int) map[string]VersionTable {
	dst := make(map[string]VersionTable, capacity)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
