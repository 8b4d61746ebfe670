// Package replication streams every block reachable from a sphere memo
// version, for peer-to-peer replication (spec.md §4.H). It mirrors the
// original implementation's block_stream/car_stream shape: a tapped store
// captures every block a traversal actually reads, so the output is
// exactly the set a remote replica needs and nothing more.
package replication

import (
	"context"

	"github.com/ipfs/go-cid"

	"github.com/glyphgrid/sphere/block"
)

// blockItem is a single tapped (address, bytes) pair. Token items carry
// their token's content address (computed the same way block.PutToken
// would) so they interleave with ordinary blocks on one channel.
type blockItem struct {
	Addr  cid.Cid
	Bytes []byte
}

// tapStore wraps a block.Store and forwards the bytes of every
// successful Get/GetToken onto a channel, so a caller can discover
// exactly which blocks a read-only traversal touched without
// duplicating the traversal logic.
type tapStore struct {
	inner block.Store
	ch    chan<- blockItem
}

func newTapStore(inner block.Store, ch chan<- blockItem) *tapStore {
	return &tapStore{inner: inner, ch: ch}
}

func (t *tapStore) Get(ctx context.Context, addr cid.Cid) ([]byte, bool, error) {
	b, ok, err := t.inner.Get(ctx, addr)
	if err != nil || !ok {
		return b, ok, err
	}
	if err := t.emit(ctx, addr, b); err != nil {
		return b, ok, err
	}
	return b, ok, nil
}

func (t *tapStore) Put(ctx context.Context, b []byte) (cid.Cid, error) {
	return t.inner.Put(ctx, b)
}

func (t *tapStore) GetToken(ctx context.Context, addr cid.Cid) (string, bool, error) {
	jwt, ok, err := t.inner.GetToken(ctx, addr)
	if err != nil || !ok {
		return jwt, ok, err
	}
	if err := t.emit(ctx, addr, []byte(jwt)); err != nil {
		return jwt, ok, err
	}
	return jwt, ok, nil
}

func (t *tapStore) PutToken(ctx context.Context, jwt string) (cid.Cid, error) {
	return t.inner.PutToken(ctx, jwt)
}

func (t *tapStore) emit(ctx context.Context, addr cid.Cid, b []byte) error {
	cp := make([]byte, len(b))
	copy(cp, b)
	select {
	case t.ch <- blockItem{Addr: addr, Bytes: cp}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ block.Store = (*tapStore)(nil)
