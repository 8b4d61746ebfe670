package nsworker

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/glyphgrid/sphere/authority"
	"github.com/glyphgrid/sphere/block"
	"github.com/glyphgrid/sphere/codec"
	"github.com/glyphgrid/sphere/linkrecord"
	"github.com/glyphgrid/sphere/sphere"
	"github.com/glyphgrid/sphere/sphereview"
)

func newTestWorker(t *testing.T, store block.Store, resolver NameResolver) (*Worker, *MemoryRefStore) {
	t.Helper()
	refs := NewMemoryRefStore()
	w := NewWorker(store, refs, func(ctx context.Context) (NameResolver, error) {
		return resolver, nil
	}, glog.Nop())
	return w, refs
}

// seededSphere is a freshly created sphere with one petname ("alice")
// pointing at a counterpart identity that has not yet resolved.
type seededSphere struct {
	store       block.Store
	ownerDID    string
	ownerPriv   ed25519.PrivateKey
	counterpart string
	head        cid.Cid
}

func seedSphere(t *testing.T, ctx context.Context) seededSphere {
	t.Helper()
	store := block.NewMemoryStore()

	ownerDID, ownerPriv, err := authority.GenerateIdentity()
	if err != nil {
		t.Fatalf("generate owner identity: %v", err)
	}
	counterpartDID, _, err := authority.GenerateIdentity()
	if err != nil {
		t.Fatalf("generate counterpart identity: %v", err)
	}

	body, err := sphere.EmptyBody(ctx, store, ownerDID)
	if err != nil {
		t.Fatalf("empty body: %v", err)
	}
	bodyAddr, err := block.PutValue(ctx, store, body)
	if err != nil {
		t.Fatalf("put body: %v", err)
	}
	signature := ed25519.Sign(ownerPriv, sphere.BodyAddressBytes(bodyAddr))
	headers := sphere.Headers{}.
		With(sphere.HeaderContentType, sphere.ContentTypeSphere).
		With(sphere.HeaderSignature, base64.StdEncoding.EncodeToString(signature))
	genesis := sphere.Memo{Headers: headers, Body: bodyAddr}
	head, err := sphere.PutMemo(ctx, store, genesis)
	if err != nil {
		t.Fatalf("put genesis memo: %v", err)
	}

	view, err := sphereview.Open(ctx, store, head, glog.Nop())
	if err != nil {
		t.Fatalf("open view: %v", err)
	}
	if err := view.SetPetname(ctx, "alice", counterpartDID); err != nil {
		t.Fatalf("set petname: %v", err)
	}
	head, err = view.Commit(ctx, ownerPriv, nil)
	if err != nil {
		t.Fatalf("commit petname: %v", err)
	}

	return seededSphere{store: store, ownerDID: ownerDID, ownerPriv: ownerPriv, counterpart: counterpartDID, head: head}
}

// selfSignedLinkRecord builds a link-record a sphere identity issues to
// itself, granting itself publish (no witness proofs needed to validate).
func selfSignedLinkRecord(t *testing.T, identity string, priv ed25519.PrivateKey, revision cid.Cid) linkrecord.LinkRecord {
	t.Helper()
	token, err := authority.New(
		identity, identity, priv,
		[]authority.Capability{{Resource: authority.Resource{DID: identity}, Action: authority.ActionPublish}},
		nil,
		map[string]any{linkrecord.FactKeyLink: revision.String()},
		nil, nil,
	)
	if err != nil {
		t.Fatalf("new link token: %v", err)
	}
	return linkrecord.LinkRecord{Token: token}
}

func TestWorker_ResolveAllAdoptsValidatedLinkRecord(t *testing.T) {
	ctx := context.Background()
	seeded := seedSphere(t, ctx)

	counterpartDID, counterpartPriv, err := authority.GenerateIdentity()
	if err != nil {
		t.Fatalf("generate counterpart identity: %v", err)
	}
	// Overwrite the petname target with a key we hold, so we can validate
	// a link-record it self-issues.
	view, err := sphereview.Open(ctx, seeded.store, seeded.head, glog.Nop())
	if err != nil {
		t.Fatalf("open view: %v", err)
	}
	if err := view.SetPetname(ctx, "alice", counterpartDID); err != nil {
		t.Fatalf("reset petname: %v", err)
	}
	head, err := view.Commit(ctx, seeded.ownerPriv, nil)
	if err != nil {
		t.Fatalf("commit petname reset: %v", err)
	}

	revisionAddr, err := seeded.store.Put(ctx, []byte("some revision bytes"))
	if err != nil {
		t.Fatalf("put revision block: %v", err)
	}
	record := selfSignedLinkRecord(t, counterpartDID, counterpartPriv, revisionAddr)

	resolver := NewMemoryResolver()
	if err := resolver.Publish(ctx, record); err != nil {
		t.Fatalf("seed resolver: %v", err)
	}

	worker, refs := newTestWorker(t, seeded.store, resolver)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		worker.Run(runCtx)
		close(done)
	}()

	worker.Enqueue(Job{Kind: KindResolveAll, SphereAddr: head, SigningKey: seeded.ownerPriv})
	worker.Stop()
	<-done
	cancel()

	if _, ok, _ := refs.Get(ctx, resolvedRefKey(counterpartDID)); !ok {
		t.Fatalf("expected resolved ref to be recorded")
	}
	encoded, err := record.Token.Encode()
	if err != nil {
		t.Fatalf("encode link token: %v", err)
	}
	tokenAddr, err := codec.Address([]byte(encoded))
	if err != nil {
		t.Fatalf("address link token: %v", err)
	}
	if _, ok, _ := seeded.store.GetToken(ctx, tokenAddr); !ok {
		t.Fatalf("expected adopted link-record token to be written to token storage")
	}

	finalView, err := sphereview.Open(ctx, seeded.store, head, glog.Nop())
	if err != nil {
		t.Fatalf("reopen view: %v", err)
	}
	addr, ok, err := finalView.ResolvePetname(ctx, "alice")
	if err != nil {
		t.Fatalf("resolve petname on original head: %v", err)
	}
	// The original head's own memo was never mutated by the worker's
	// commit (it produced a new, later memo); this just confirms the
	// worker did not corrupt the pre-existing revision.
	_ = addr
	_ = ok
}

func TestWorker_ResolveImmediatelyRepliesOnChannel(t *testing.T) {
	ctx := context.Background()
	resolver := NewMemoryResolver()
	did, priv, err := authority.GenerateIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	token, err := authority.New(did, did, priv, nil, nil, map[string]any{linkrecord.FactKeyLink: "bafy"}, nil, nil)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	record := linkrecord.LinkRecord{Token: token}
	if err := resolver.Publish(ctx, record); err != nil {
		t.Fatalf("publish: %v", err)
	}

	worker, _ := newTestWorker(t, block.NewMemoryStore(), resolver)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})
	go func() {
		worker.Run(runCtx)
		close(done)
	}()

	reply := make(chan ResolveImmediateResult, 1)
	worker.Enqueue(Job{Kind: KindResolveImmediately, Name: did, Reply: reply})

	select {
	case result := <-reply:
		if result.Err != nil {
			t.Fatalf("unexpected error: %v", result.Err)
		}
		if !result.Found {
			t.Fatalf("expected record to be found")
		}
		if result.Record.SphereIdentity() != did {
			t.Fatalf("expected identity %q, got %q", did, result.Record.SphereIdentity())
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for reply")
	}

	worker.Stop()
	<-done
}

func TestWorker_PublishHonorsEnforceExpiry(t *testing.T) {
	ctx := context.Background()
	did, priv, err := authority.GenerateIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	past := time.Now().Add(-time.Hour)
	token, err := authority.New(did, did, priv, nil, nil, nil, nil, &past)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	expired := linkrecord.LinkRecord{Token: token}

	resolver := NewMemoryResolver()
	worker, refs := newTestWorker(t, block.NewMemoryStore(), resolver)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		worker.Run(runCtx)
		close(done)
	}()

	worker.Enqueue(Job{Kind: KindPublish, Record: expired, EnforceExpiry: true})
	worker.Stop()
	<-done
	cancel()

	if _, found, _ := resolver.Resolve(ctx, did); found {
		t.Fatalf("expected expired record to be skipped")
	}
	if _, ok, _ := refs.Get(ctx, publishedRefKey(did)); ok {
		t.Fatalf("expected no published ref for a skipped publish")
	}
}

func TestReconnectingClient_DropsInstanceAfterFailure(t *testing.T) {
	builds := 0
	client := NewReconnectingClient(func(ctx context.Context) (int, error) {
		builds++
		return builds, nil
	})

	var first int
	if err := client.Invoke(context.Background(), func(v int) error { first = v; return nil }); err != nil {
		t.Fatalf("first invoke: %v", err)
	}
	if first != 1 {
		t.Fatalf("expected first build, got %d", first)
	}

	if err := client.Invoke(context.Background(), func(int) error { return errFailure{} }); err == nil {
		t.Fatalf("expected failure to propagate")
	}

	var second int
	if err := client.Invoke(context.Background(), func(v int) error { second = v; return nil }); err != nil {
		t.Fatalf("second invoke: %v", err)
	}
	if second != 2 {
		t.Fatalf("expected reconstruction after failure, got %d", second)
	}
}

type errFailure struct{}

func (errFailure) Error() string { return "forced failure" }

func TestQueue_PopBlocksUntilPushOrClose(t *testing.T) {
	q := newQueue()
	done := make(chan struct{})
	var popped Job
	var ok bool
	go func() {
		popped, ok = q.Pop()
		close(done)
	}()

	q.Push(Job{Kind: KindResolveImmediately, Name: "x"})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for pop")
	}
	if !ok || popped.Name != "x" {
		t.Fatalf("expected pushed job to be popped, got %+v ok=%v", popped, ok)
	}

	closedDone := make(chan struct{})
	go func() {
		_, ok = q.Pop()
		close(closedDone)
	}()
	q.Close()
	select {
	case <-closedDone:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for close to unblock pop")
	}
	if ok {
		t.Fatalf("expected ok=false after close")
	}
}
