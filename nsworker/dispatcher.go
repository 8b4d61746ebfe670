package nsworker

import (
	"context"
	"crypto/ed25519"

	"github.com/ipfs/go-cid"

	"github.com/glyphgrid/sphere/linkrecord"
)

// Dispatcher is the surface the command package drives: enqueue the
// three fire-and-forget job kinds, and resolve one name synchronously.
// *Worker implements it directly.
type Dispatcher interface {
	Publish(ctx context.Context, record linkrecord.LinkRecord, enforceExpiry bool) error
	ResolveAll(ctx context.Context, sphereAddr cid.Cid, signingKey ed25519.PrivateKey) error
	ResolveSince(ctx context.Context, sphereAddr, since cid.Cid, signingKey ed25519.PrivateKey) error
	ResolveImmediately(ctx context.Context, name string) (ResolveImmediateResult, error)
}

var _ Dispatcher = (*Worker)(nil)

// Publish enqueues a Publish job and returns once it is queued, not once
// it has been processed (spec.md §4.G jobs are strictly arrival-ordered
// and never block their producer).
func (w *Worker) Publish(ctx context.Context, record linkrecord.LinkRecord, enforceExpiry bool) error {
	w.Enqueue(Job{Kind: KindPublish, Record: record, EnforceExpiry: enforceExpiry})
	return nil
}

// ResolveAll enqueues a full address-book resolve sweep. A non-nil
// signingKey lets the worker commit adopted petnames as a new memo.
func (w *Worker) ResolveAll(ctx context.Context, sphereAddr cid.Cid, signingKey ed25519.PrivateKey) error {
	w.Enqueue(Job{Kind: KindResolveAll, SphereAddr: sphereAddr, SigningKey: signingKey})
	return nil
}

// ResolveSince enqueues a resolve sweep restricted to petnames whose
// identity record changed since the given revision.
func (w *Worker) ResolveSince(ctx context.Context, sphereAddr, since cid.Cid, signingKey ed25519.PrivateKey) error {
	w.Enqueue(Job{Kind: KindResolveSince, SphereAddr: sphereAddr, Since: &since, SigningKey: signingKey})
	return nil
}

// ResolveImmediately enqueues a resolve job ahead of the job queue's FIFO
// order from the caller's perspective only in that it blocks for the
// reply; the job itself still waits its turn behind anything already
// queued.
func (w *Worker) ResolveImmediately(ctx context.Context, name string) (ResolveImmediateResult, error) {
	reply := make(chan ResolveImmediateResult, 1)
	w.Enqueue(Job{Kind: KindResolveImmediately, Name: name, Reply: reply})
	select {
	case result := <-reply:
		return result, result.Err
	case <-ctx.Done():
		return ResolveImmediateResult{}, ctx.Err()
	}
}
