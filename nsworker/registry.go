package nsworker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/glyphgrid/sphere/linkrecord"
)

// ResolverRegistry maps a sphere identity DID to the NameResolver that
// should serve its name-system traffic (a resolver scoped to a specific
// DHT namespace, gateway peer, or transport). Generalized from
// core.ProviderRegistry's register/get/list shape.
type ResolverRegistry struct {
	mu        sync.RWMutex
	resolvers map[string]NameResolver
}

func NewResolverRegistry() *ResolverRegistry {
	return &ResolverRegistry{resolvers: make(map[string]NameResolver)}
}

func (r *ResolverRegistry) Register(identityDID string, resolver NameResolver) error {
	if resolver == nil {
		return fmt.Errorf("nsworker: resolver is nil")
	}
	id := strings.TrimSpace(identityDID)
	if id == "" {
		return fmt.Errorf("nsworker: identity did is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.resolvers[id]; exists {
		return fmt.Errorf("nsworker: resolver already registered: %s", id)
	}
	r.resolvers[id] = resolver
	return nil
}

func (r *ResolverRegistry) Get(identityDID string) (NameResolver, bool) {
	id := strings.TrimSpace(identityDID)
	if id == "" {
		return nil, false
	}
	r.mu.RLock()
	resolver, ok := r.resolvers[id]
	r.mu.RUnlock()
	return resolver, ok
}

func (r *ResolverRegistry) List() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.resolvers))
	for id := range r.resolvers {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// RegistryResolver is itself a NameResolver: it dispatches by the
// identity a publish/resolve call concerns to whatever resolver is
// registered for that identity, falling back to a default resolver
// (typically an HTTP-backed DHT client) when none is registered.
type RegistryResolver struct {
	registry *ResolverRegistry
	fallback NameResolver
}

func NewRegistryResolver(registry *ResolverRegistry, fallback NameResolver) *RegistryResolver {
	return &RegistryResolver{registry: registry, fallback: fallback}
}

func (r *RegistryResolver) resolverFor(identityDID string) NameResolver {
	if r.registry != nil {
		if resolver, ok := r.registry.Get(identityDID); ok {
			return resolver
		}
	}
	return r.fallback
}

func (r *RegistryResolver) Publish(ctx context.Context, record linkrecord.LinkRecord) error {
	identity := record.SphereIdentity()
	resolver := r.resolverFor(identity)
	if resolver == nil {
		return fmt.Errorf("nsworker: no resolver registered for %s", identity)
	}
	return resolver.Publish(ctx, record)
}

func (r *RegistryResolver) Resolve(ctx context.Context, identityDID string) (linkrecord.LinkRecord, bool, error) {
	resolver := r.resolverFor(identityDID)
	if resolver == nil {
		return linkrecord.LinkRecord{}, false, fmt.Errorf("nsworker: no resolver registered for %s", identityDID)
	}
	return resolver.Resolve(ctx, identityDID)
}

var _ NameResolver = (*RegistryResolver)(nil)
