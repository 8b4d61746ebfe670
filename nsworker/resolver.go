// Package nsworker implements the gateway's name-system worker: the single
// long-lived job loop that publishes link-records, resolves petnames, and
// reconciles the served spheres' address-books against an external
// key→record resolver (spec.md §4.G).
package nsworker

import (
	"context"
	"sync"
	"time"

	"github.com/viccon/sturdyc"

	"github.com/glyphgrid/sphere/linkrecord"
)

// resolveCacheTTL bounds how long a resolved (or negative) lookup is
// reused within a single ResolveAll/ResolveSince sweep; Reset is called at
// the start of each sweep so this mostly guards against a sweep running
// long past the period that scheduled it.
const resolveCacheTTL = 2 * time.Minute

// NameResolver is the external key→link-record resolver (spec.md §6
// "Name-system resolver interface"). Implementations may be remote (a DHT
// client) or in-process; no ordering is guaranteed across calls.
type NameResolver interface {
	Publish(ctx context.Context, record linkrecord.LinkRecord) error
	Resolve(ctx context.Context, identity string) (linkrecord.LinkRecord, bool, error)
}

// MemoryResolver is an in-process NameResolver test double, grounded on
// noosphere-ns/src/helpers.rs's KeyValueNameResolver.
type MemoryResolver struct {
	mu      sync.Mutex
	records map[string]linkrecord.LinkRecord
}

// NewMemoryResolver constructs an empty in-memory resolver.
func NewMemoryResolver() *MemoryResolver {
	return &MemoryResolver{records: map[string]linkrecord.LinkRecord{}}
}

func (r *MemoryResolver) Publish(_ context.Context, record linkrecord.LinkRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.SphereIdentity()] = record
	return nil
}

func (r *MemoryResolver) Resolve(_ context.Context, identity string) (linkrecord.LinkRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[identity]
	return rec, ok, nil
}

// CachingResolver wraps a NameResolver with a stampede-protected cache, so
// a ResolveAll/ResolveSince sweep that references the same identity from
// two address-book entries only calls through to the underlying resolver
// once per sweep (spec.md §4.G, SPEC_FULL.md domain stack).
type CachingResolver struct {
	inner        NameResolver
	capacity     int
	numShards    int
	evictPercent int
	cache        *sturdyc.Client[resolveResult]
}

type resolveResult struct {
	record linkrecord.LinkRecord
	found  bool
}

// NewCachingResolver wraps inner with a cache sharded numShards ways,
// holding up to capacity entries total.
func NewCachingResolver(inner NameResolver, capacity, numShards int) *CachingResolver {
	r := &CachingResolver{inner: inner, capacity: capacity, numShards: numShards, evictPercent: 10}
	r.cache = sturdyc.New[resolveResult](r.capacity, r.numShards, resolveCacheTTL, r.evictPercent)
	return r
}

func (r *CachingResolver) Publish(ctx context.Context, record linkrecord.LinkRecord) error {
	return r.inner.Publish(ctx, record)
}

func (r *CachingResolver) Resolve(ctx context.Context, identity string) (linkrecord.LinkRecord, bool, error) {
	result, err := r.cache.GetOrFetch(ctx, identity, func(ctx context.Context) (resolveResult, error) {
		record, found, err := r.inner.Resolve(ctx, identity)
		if err != nil {
			return resolveResult{}, err
		}
		return resolveResult{record: record, found: found}, nil
	})
	if err != nil {
		return linkrecord.LinkRecord{}, false, err
	}
	return result.record, result.found, nil
}

// Reset drops every cached entry, called once at the start of each
// periodic resolve sweep so stale negatives do not outlive a cycle.
func (r *CachingResolver) Reset() {
	r.cache = sturdyc.New[resolveResult](r.capacity, r.numShards, resolveCacheTTL, r.evictPercent)
}
