// Package sharedtable implements the Shared Table primitive (orig
// spec §4.6): a heap-allocated, mutex-guarded, string-keyed table that
// can be passed between sandboxes and between requests, the only
// supported cross-interpreter mutable state. Identity is a Go pointer
// — sharing a *SharedTable across sandboxes is itself the "reference
// count" the original Rust implementation tracks explicitly.
package sharedtable

import (
	"sync"

	"github.com/cuemby/hive/pkg/hiveerr"
)

// Value is the closed set of values a SharedTable may store.
type Value any

// SharedTable is a reference-counted (via Go pointer sharing),
// mutex-protected, string-keyed table with an array marker used by
// the JSON module to pick array vs. object encoding.
type SharedTable struct {
	mu    sync.RWMutex
	data  map[string]Value
	array bool
}

// New returns an empty SharedTable.
func New() *SharedTable {
	return &SharedTable{data: make(map[string]Value)}
}

// Get returns the value at key (nil, false if absent).
func (t *SharedTable) Get(key string) (Value, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.data[key]
	return v, ok
}

// Set stores value at key. Setting nil deletes the key, mirroring Lua
// table-assignment-to-nil semantics.
func (t *SharedTable) Set(key string, value Value) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if value == nil {
		delete(t.data, key)
		return
	}
	t.data[key] = value
}

// Len returns the number of populated keys.
func (t *SharedTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.data)
}

// IsArray reports the current array-encoding flag.
func (t *SharedTable) IsArray() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.array
}

// SetArray toggles the array-encoding flag. Table identity (pointer
// equality) is unaffected: the flag can change without affecting
// reference equality.
func (t *SharedTable) SetArray(array bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.array = array
}

// Snapshot returns a shallow copy of the table's keys and values,
// useful for JSON encoding and for DeepCopy's cycle walk below.
func (t *SharedTable) Snapshot() map[string]Value {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cp := make(map[string]Value, len(t.data))
	for k, v := range t.data {
		cp[k] = v
	}
	return cp
}

// DeepCopy produces a plain nested map/slice tree equivalent to this
// table's contents, recursively copying any nested *SharedTable.
// Cycles (a table reachable from itself through nested references)
// are broken rather than causing unbounded recursion: the second time
// a table is encountered, DeepCopy substitutes the sentinel
// CycleMarker instead of erroring, choosing "break the cycle" over
// "fail with CycleDetected" so a lossy deep-copy always succeeds.
// JSON encoding (pkg/jsonmod) takes the other choice: it rejects
// cycles outright with CycleDetected rather than substituting a
// marker into the encoded document.
func (t *SharedTable) DeepCopy() map[string]Value {
	seen := make(map[*SharedTable]bool)
	return deepCopyTable(t, seen)
}

// CycleMarker is substituted for a back-edge detected during DeepCopy.
type CycleMarker struct{}

func deepCopyTable(t *SharedTable, seen map[*SharedTable]bool) map[string]Value {
	if seen[t] {
		return nil
	}
	seen[t] = true
	defer delete(seen, t)

	src := t.Snapshot()
	out := make(map[string]Value, len(src))
	for k, v := range src {
		out[k] = deepCopyValue(v, seen)
	}
	return out
}

func deepCopyValue(v Value, seen map[*SharedTable]bool) Value {
	switch x := v.(type) {
	case *SharedTable:
		if seen[x] {
			return CycleMarker{}
		}
		return deepCopyTable(x, seen)
	default:
		return v
	}
}

// DeepCopyStrict is DeepCopy but returns hiveerr.CycleDetected instead
// of silently breaking the cycle, for callers that document the
// "error on cycle" choice instead.
func (t *SharedTable) DeepCopyStrict() (map[string]Value, error) {
	seen := make(map[*SharedTable]bool)
	return deepCopyTableStrict(t, seen)
}

func deepCopyTableStrict(t *SharedTable, seen map[*SharedTable]bool) (map[string]Value, error) {
	if seen[t] {
		return nil, hiveerr.New(hiveerr.CycleDetected, "cycle detected in shared table")
	}
	seen[t] = true
	defer delete(seen, t)

	src := t.Snapshot()
	out := make(map[string]Value, len(src))
	for k, v := range src {
		if st, ok := v.(*SharedTable); ok {
			cp, err := deepCopyTableStrict(st, seen)
			if err != nil {
				return nil, err
			}
			out[k] = cp
		} else {
			out[k] = v
		}
	}
	return out, nil
}
