// Package versionedmap implements the persistent, content-addressed ordered
// maps with attached changelogs used throughout the sphere data model
// (delegations, revocations, address-book, content map — spec.md §3, §4.E).
package versionedmap

import "sort"

// Op identifies a changelog entry's kind.
type Op int

const (
	OpAdd Op = iota
	OpRemove
)

func (o Op) String() string {
	if o == OpRemove {
		return "remove"
	}
	return "add"
}

// Change is a single changelog entry: Add(key, value) or Remove(key).
type Change[V any] struct {
	Op    Op
	Key   string
	Value V
}

// Entry is one (key, value) pair as yielded by Stream, in sorted key order.
type Entry[V any] struct {
	Key   string
	Value V
}

// Map is an immutable snapshot of a versioned map. The zero value is the
// canonical empty map (spec.md §3: "Empty map has a canonical empty-root
// address").
type Map[V any] struct {
	entries map[string]V
}

// Empty returns the canonical empty map.
func Empty[V any]() Map[V] {
	return Map[V]{entries: map[string]V{}}
}

// FromEntries rebuilds a snapshot directly from a stored entry list,
// without recording a changelog — used when reloading a persisted map.
func FromEntries[V any](entries []Entry[V]) Map[V] {
	m := make(map[string]V, len(entries))
	for _, e := range entries {
		m[e.Key] = e.Value
	}
	return Map[V]{entries: m}
}

// Get looks up key, returning ok=false if absent.
func (m Map[V]) Get(key string) (V, bool) {
	if m.entries == nil {
		var zero V
		return zero, false
	}
	v, ok := m.entries[key]
	return v, ok
}

// Len reports the number of live entries.
func (m Map[V]) Len() int { return len(m.entries) }

// Stream returns every (key, value) pair in sorted key order. The spec
// describes this as a lazy, non-restartable sequence per call; a finite
// slice satisfies the same contract for a process-local, in-memory map.
func (m Map[V]) Stream() []Entry[V] {
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Entry[V], 0, len(keys))
	for _, k := range keys {
		out = append(out, Entry[V]{Key: k, Value: m.entries[k]})
	}
	return out
}

// Draft accumulates writes against a base Map for a single revision. Set
// calls collapse per spec.md §4.E: "consecutive writes in one revision
// collapse to the final op per key, preserving order of first mention."
type Draft[V any] struct {
	base   Map[V]
	writes map[string]*Change[V]
	order  []string
}

// NewDraft starts a draft of changes against base.
func NewDraft[V any](base Map[V]) *Draft[V] {
	return &Draft[V]{base: base, writes: map[string]*Change[V]{}}
}

// Set appends an Add(key, value) to the draft. A later Set/Remove for the
// same key overwrites the recorded op but keeps its original position in
// the changelog, matching "order of first mention."
func (d *Draft[V]) Set(key string, value V) {
	d.record(key, Change[V]{Op: OpAdd, Key: key, Value: value})
}

// Remove appends a Remove(key) to the draft.
func (d *Draft[V]) Remove(key string) {
	var zero V
	d.record(key, Change[V]{Op: OpRemove, Key: key, Value: zero})
}

func (d *Draft[V]) record(key string, c Change[V]) {
	if _, seen := d.writes[key]; !seen {
		d.order = append(d.order, key)
	}
	cc := c
	d.writes[key] = &cc
}

// Changelog returns the collapsed, first-mention-ordered list of changes.
func (d *Draft[V]) Changelog() []Change[V] {
	out := make([]Change[V], 0, len(d.order))
	for _, k := range d.order {
		out = append(out, *d.writes[k])
	}
	return out
}

// Commit applies the draft's changelog to the base map and returns the new
// map. Invariant 3 (spec.md §3): applying the changelog to the previous
// root yields the current root — this is exactly what Commit computes.
func (d *Draft[V]) Commit() Map[V] {
	next := make(map[string]V, len(d.base.entries)+len(d.order))
	for k, v := range d.base.entries {
		next[k] = v
	}
	for _, c := range d.Changelog() {
		Apply(next, c)
	}
	return Map[V]{entries: next}
}

// Apply mutates entries in place according to a single changelog op.
func Apply[V any](entries map[string]V, c Change[V]) {
	switch c.Op {
	case OpAdd:
		entries[c.Key] = c.Value
	case OpRemove:
		delete(entries, c.Key)
	}
}

// ReduceSince folds a sequence of changelogs walked newest-first (i.e. the
// order produced by walking a sphere's history backward from HEAD toward
// `since`) into the single effective changelog an observer who only saw
// `since` and HEAD would need to apply.
//
// The rule (spec.md §4.E job `ResolveSince`, §9 design note): the first
// time a key is mentioned while walking newest-to-oldest wins outright —
// a newer Remove masks any older Add for that key, but a still-newer Add
// (seen earlier in the walk, since we go newest-first) is never masked by
// an older Remove.
func ReduceSince[V any](changelogsNewestFirst [][]Change[V]) []Change[V] {
	seen := map[string]bool{}
	out := make([]Change[V], 0)
	for _, changelog := range changelogsNewestFirst {
		for _, c := range changelog {
			if seen[c.Key] {
				continue
			}
			seen[c.Key] = true
			out = append(out, c)
		}
	}
	return out
}
