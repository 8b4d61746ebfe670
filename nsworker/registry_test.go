package nsworker

import (
	"context"
	"testing"

	"github.com/glyphgrid/sphere/authority"
	"github.com/glyphgrid/sphere/linkrecord"
)

func TestRegistryResolver_DispatchesToRegisteredResolverByIdentity(t *testing.T) {
	ctx := context.Background()
	did, priv, err := authority.GenerateIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	token, err := authority.New(did, did, priv, nil, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	record := linkrecord.LinkRecord{Token: token}

	scoped := NewMemoryResolver()
	fallback := NewMemoryResolver()

	registry := NewResolverRegistry()
	if err := registry.Register(did, scoped); err != nil {
		t.Fatalf("register: %v", err)
	}

	resolver := NewRegistryResolver(registry, fallback)
	if err := resolver.Publish(ctx, record); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if _, found, _ := fallback.Resolve(ctx, did); found {
		t.Fatalf("expected fallback resolver to be untouched")
	}
	if _, found, _ := scoped.Resolve(ctx, did); !found {
		t.Fatalf("expected scoped resolver to receive the publish")
	}
}

func TestRegistryResolver_FallsBackWhenUnregistered(t *testing.T) {
	ctx := context.Background()
	did, priv, err := authority.GenerateIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	token, err := authority.New(did, did, priv, nil, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	record := linkrecord.LinkRecord{Token: token}

	fallback := NewMemoryResolver()
	resolver := NewRegistryResolver(NewResolverRegistry(), fallback)

	if err := resolver.Publish(ctx, record); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, found, _ := fallback.Resolve(ctx, did); !found {
		t.Fatalf("expected fallback resolver to receive the publish")
	}
}
