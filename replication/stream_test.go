package replication

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"testing"

	"github.com/ipfs/go-cid"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/glyphgrid/sphere/authority"
	"github.com/glyphgrid/sphere/block"
	"github.com/glyphgrid/sphere/linkrecord"
	"github.com/glyphgrid/sphere/sphere"
	"github.com/glyphgrid/sphere/sphereview"
)

func seedReplicatedSphere(t *testing.T, ctx context.Context) (block.Store, cid.Cid) {
	t.Helper()
	store := block.NewMemoryStore()

	ownerDID, ownerPriv, err := authority.GenerateIdentity()
	if err != nil {
		t.Fatalf("generate owner identity: %v", err)
	}
	counterpartDID, counterpartPriv, err := authority.GenerateIdentity()
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

	revisionAddr, err := store.Put(ctx, []byte("some revision bytes"))
	if err != nil {
		t.Fatalf("put revision block: %v", err)
	}
	linkToken, err := authority.New(
		counterpartDID, counterpartDID, counterpartPriv,
		[]authority.Capability{{Resource: authority.Resource{DID: counterpartDID}, Action: authority.ActionPublish}},
		nil,
		map[string]any{linkrecord.FactKeyLink: revisionAddr.String()},
		nil, nil,
	)
	if err != nil {
		t.Fatalf("new link token: %v", err)
	}
	if err := view.AdoptPetname(ctx, "alice", linkrecord.LinkRecord{Token: linkToken}); err != nil {
		t.Fatalf("adopt petname: %v", err)
	}
	if _, err := view.WriteContent(ctx, "hello", []byte("bar")); err != nil {
		t.Fatalf("write content: %v", err)
	}

	head, err = view.Commit(ctx, ownerPriv, nil)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	return store, head
}

func TestBlockStream_EmitsEveryReachableBlockExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store, head := seedReplicatedSphere(t, ctx)

	seen := map[cid.Cid]struct{}{}
	mirror := block.NewMemoryStore()
	for item := range BlockStream(ctx, store, head, glog.Nop()) {
		if item.Err != nil {
			t.Fatalf("block stream error: %v", item.Err)
		}
		if _, dup := seen[item.Addr]; dup {
			t.Fatalf("got %s but it was already streamed", item.Addr)
		}
		seen[item.Addr] = struct{}{}
		if _, err := mirror.Put(ctx, item.Bytes); err != nil {
			t.Fatalf("mirror put: %v", err)
		}
	}

	if len(seen) == 0 {
		t.Fatalf("expected at least one block to stream")
	}

	view, err := sphereview.Open(ctx, mirror, head, glog.Nop())
	if err != nil {
		t.Fatalf("reopen replicated sphere: %v", err)
	}
	addr, found, err := view.ResolvePetname(ctx, "alice")
	if err != nil {
		t.Fatalf("resolve petname from mirror: %v", err)
	}
	if !found {
		t.Fatalf("expected petname to resolve from mirrored blocks alone")
	}
	_ = addr

	got, found, err := view.ReadContent(ctx, "hello")
	if err != nil {
		t.Fatalf("read content from mirror: %v", err)
	}
	if !found || string(got) != "bar" {
		t.Fatalf("expected content slug to resolve from mirrored blocks alone, got %q found=%v", got, found)
	}
}

func TestBlockStream_RawMemoEmitsItsBody(t *testing.T) {
	ctx := context.Background()
	store := block.NewMemoryStore()

	bodyAddr, err := store.Put(ctx, []byte("raw content bytes"))
	if err != nil {
		t.Fatalf("put body: %v", err)
	}
	memo := sphere.Memo{
		Headers: sphere.Headers{}.With(sphere.HeaderContentType, "text/plain"),
		Body:    bodyAddr,
	}
	memoAddr, err := sphere.PutMemo(ctx, store, memo)
	if err != nil {
		t.Fatalf("put memo: %v", err)
	}

	found := map[cid.Cid]struct{}{}
	for item := range BlockStream(ctx, store, memoAddr, glog.Nop()) {
		if item.Err != nil {
			t.Fatalf("block stream error: %v", item.Err)
		}
		found[item.Addr] = struct{}{}
	}
	if _, ok := found[bodyAddr]; !ok {
		t.Fatalf("expected raw memo's body block to be streamed")
	}
	if _, ok := found[memoAddr]; !ok {
		t.Fatalf("expected the memo block itself to be streamed")
	}
}
