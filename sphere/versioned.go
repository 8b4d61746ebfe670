package sphere

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"

	"github.com/glyphgrid/sphere/block"
	"github.com/glyphgrid/sphere/versionedmap"
)

// storedMap is the content-addressed persistence envelope for a versioned
// map: its live entries (sorted, for deterministic encoding) plus the
// changelog since its parent revision (spec.md §4.E "load_changelog").
type storedMap[V any] struct {
	Entries   []versionedmap.Entry[V]  `cbor:"entries"`
	Changelog []versionedmap.Change[V] `cbor:"changelog"`
}

// PutVersionedMap stores m's current snapshot together with changelog and
// returns its content address — the canonical empty map always hashes to
// the same address regardless of caller (spec.md §3).
func PutVersionedMap[V any](ctx context.Context, s block.Store, m versionedmap.Map[V], changelog []versionedmap.Change[V]) (cid.Cid, error) {
	env := storedMap[V]{Entries: m.Stream(), Changelog: changelog}
	return block.PutValue(ctx, s, env)
}

// LoadVersionedMap fetches and reconstructs a versioned map and its
// changelog from addr.
func LoadVersionedMap[V any](ctx context.Context, s block.Store, addr cid.Cid) (versionedmap.Map[V], []versionedmap.Change[V], error) {
	var env storedMap[V]
	ok, err := block.GetValue(ctx, s, addr, &env)
	if err != nil {
		return versionedmap.Map[V]{}, nil, err
	}
	if !ok {
		return versionedmap.Map[V]{}, nil, fmt.Errorf("sphere: versioned map %s not found", addr)
	}
	return versionedmap.FromEntries(env.Entries), env.Changelog, nil
}
