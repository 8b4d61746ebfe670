// Package block implements the content-addressed byte-block store contract
// from spec.md §4.A: an immutable, concurrently-safe address→bytes map plus
// auxiliary signed-token storage.
package block

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/glyphgrid/sphere/codec"
)

// Store is the block-store contract every higher layer (sphere, authority,
// replication) depends on. Implementations must be safe for concurrent
// readers and writers over disjoint addresses, and Put/PutToken must be
// idempotent.
type Store interface {
	Get(ctx context.Context, addr cid.Cid) ([]byte, bool, error)
	Put(ctx context.Context, b []byte) (cid.Cid, error)
	GetToken(ctx context.Context, addr cid.Cid) (string, bool, error)
	PutToken(ctx context.Context, jwt string) (cid.Cid, error)
}

// MemoryStore is an in-process Store backed by lock-free concurrent maps,
// used by tests, by the replication round-trip checks, and as the default
// backing for a freshly-opened read-only traversal context (spec.md §4.E
// "Traverse by petname").
type MemoryStore struct {
	blocks *xsync.MapOf[string, []byte]
	tokens *xsync.MapOf[string, string]
}

// NewMemoryStore constructs an empty in-memory block store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blocks: xsync.NewMapOf[string, []byte](),
		tokens: xsync.NewMapOf[string, string](),
	}
}

func (s *MemoryStore) Get(_ context.Context, addr cid.Cid) ([]byte, bool, error) {
	b, ok := s.blocks.Load(addr.String())
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, true, nil
}

func (s *MemoryStore) Put(_ context.Context, b []byte) (cid.Cid, error) {
	addr, err := codec.Address(b)
	if err != nil {
		return cid.Undef, err
	}
	stored := make([]byte, len(b))
	copy(stored, b)
	s.blocks.Store(addr.String(), stored)
	return addr, nil
}

func (s *MemoryStore) GetToken(_ context.Context, addr cid.Cid) (string, bool, error) {
	jwt, ok := s.tokens.Load(addr.String())
	return jwt, ok, nil
}

func (s *MemoryStore) PutToken(_ context.Context, jwt string) (cid.Cid, error) {
	addr, err := codec.Address([]byte(jwt))
	if err != nil {
		return cid.Undef, err
	}
	s.tokens.Store(addr.String(), jwt)
	return addr, nil
}

// RequireBlock fetches an address that the caller expects to exist,
// converting a missing block into an explicit error (spec.md §7 "Missing
// data").
func RequireBlock(ctx context.Context, s Store, addr cid.Cid) ([]byte, error) {
	b, ok, err := s.Get(ctx, addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("block: address %s not found", addr)
	}
	return b, nil
}

// RequireToken fetches a token address that the caller expects to exist.
func RequireToken(ctx context.Context, s Store, addr cid.Cid) (string, error) {
	jwt, ok, err := s.GetToken(ctx, addr)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("block: token %s not found", addr)
	}
	return jwt, nil
}

// PutValue canonically encodes v and stores it, returning its address.
func PutValue(ctx context.Context, s Store, v any) (cid.Cid, error) {
	b, err := codec.Encode(v)
	if err != nil {
		return cid.Undef, err
	}
	return s.Put(ctx, b)
}

// GetValue fetches and decodes the block at addr into out.
func GetValue(ctx context.Context, s Store, addr cid.Cid, out any) (bool, error) {
	b, ok, err := s.Get(ctx, addr)
	if err != nil || !ok {
		return ok, err
	}
	if err := codec.Decode(b, out); err != nil {
		return true, err
	}
	return true, nil
}
