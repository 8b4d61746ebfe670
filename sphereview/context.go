// Package sphereview implements the navigable sphere context: petname
// resolution/adoption/traversal and the history stream over a sphere's
// memo chain (spec.md §4.E "Sphere view and versioned maps").
package sphereview

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"github.com/ipfs/go-cid"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/glyphgrid/sphere/authority"
	"github.com/glyphgrid/sphere/block"
	"github.com/glyphgrid/sphere/linkrecord"
	"github.com/glyphgrid/sphere/sphere"
	"github.com/glyphgrid/sphere/versionedmap"
)

// Context is a read/write view over a sphere at a particular revision.
type Context struct {
	store  block.Store
	memo   sphere.Memo
	addr   cid.Cid
	body   sphere.Body
	logger glog.Logger
}

// Open loads the sphere context at memoAddr.
func Open(ctx context.Context, s block.Store, memoAddr cid.Cid, logger glog.Logger) (*Context, error) {
	memo, err := sphere.LoadMemo(ctx, s, memoAddr)
	if err != nil {
		return nil, err
	}
	body, err := sphere.LoadBody(ctx, s, memo.Body)
	if err != nil {
		return nil, err
	}
	return &Context{store: s, memo: memo, addr: memoAddr, body: body, logger: logger}, nil
}

// Identity returns the sphere's identity DID.
func (c *Context) Identity() string { return c.body.Identity }

// Address returns the content address of the memo this context is opened at.
func (c *Context) Address() cid.Cid { return c.addr }

// Parent returns the content address of the previous memo, if any.
func (c *Context) Parent() (cid.Cid, bool) {
	if c.memo.Parent == nil {
		return cid.Undef, false
	}
	return *c.memo.Parent, true
}

// AddressBook loads the current address-book versioned map.
func (c *Context) AddressBook(ctx context.Context) (versionedmap.Map[sphere.IdentityRecord], error) {
	m, _, err := sphere.LoadAddressBook(ctx, c.store, c.body.AddressBook)
	return m, err
}

// Content loads the current content versioned map.
func (c *Context) Content(ctx context.Context) (versionedmap.Map[cid.Cid], error) {
	m, _, err := sphere.LoadContent(ctx, c.store, c.body.Content)
	return m, err
}

// Authority loads the current authority subgraph.
func (c *Context) Authority(ctx context.Context) (sphere.Authority, error) {
	return sphere.LoadAuthority(ctx, c.store, c.body.Authority)
}

// ResolvePetname looks up petname in the current address-book; if present
// and its identity record carries a link-record whose stored token
// resolves to a link, returns that link (spec.md §4.E "Resolve petname").
func (c *Context) ResolvePetname(ctx context.Context, petname string) (cid.Cid, bool, error) {
	addressBook, err := c.AddressBook(ctx)
	if err != nil {
		return cid.Undef, false, err
	}
	record, ok := addressBook.Get(petname)
	if !ok || record.LinkRecord == nil {
		return cid.Undef, false, nil
	}
	jwt, err := block.RequireToken(ctx, c.store, *record.LinkRecord)
	if err != nil {
		return cid.Undef, false, err
	}
	lr, err := linkrecord.Parse(jwt)
	if err != nil {
		return cid.Undef, false, err
	}
	addr, ok := lr.Link(c.logger)
	return addr, ok, nil
}

// AdoptPetname writes a new link-record token to token storage and
// updates the identity record for petname to reference it (spec.md §4.E
// "Adopt petname"). Fails if no such petname is set.
func (c *Context) AdoptPetname(ctx context.Context, petname string, record linkrecord.LinkRecord) error {
	addressBook, err := c.AddressBook(ctx)
	if err != nil {
		return err
	}
	existing, ok := addressBook.Get(petname)
	if !ok {
		return fmt.Errorf("sphereview: no petname %q set", petname)
	}
	encoded, err := record.Token.Encode()
	if err != nil {
		return err
	}
	tokenAddr, err := c.store.PutToken(ctx, encoded)
	if err != nil {
		return err
	}
	existing.LinkRecord = &tokenAddr
	draft := versionedmap.NewDraft(addressBook)
	draft.Set(petname, existing)
	return c.commitAddressBook(ctx, draft)
}

// SetPetname creates or repoints a petname to identity did, without a
// link-record (used before the first successful resolve).
func (c *Context) SetPetname(ctx context.Context, petname, did string) error {
	if err := sphere.ValidatePetname(petname); err != nil {
		return err
	}
	addressBook, err := c.AddressBook(ctx)
	if err != nil {
		return err
	}
	draft := versionedmap.NewDraft(addressBook)
	draft.Set(petname, sphere.IdentityRecord{DID: did})
	return c.commitAddressBook(ctx, draft)
}

// UnsetPetname removes petname from the address-book (spec.md §8 boundary:
// "Setting a petname then unsetting it within one revision ⇒ effective op
// is Remove").
func (c *Context) UnsetPetname(ctx context.Context, petname string) error {
	addressBook, err := c.AddressBook(ctx)
	if err != nil {
		return err
	}
	draft := versionedmap.NewDraft(addressBook)
	draft.Remove(petname)
	return c.commitAddressBook(ctx, draft)
}

func (c *Context) commitAddressBook(ctx context.Context, draft *versionedmap.Draft[sphere.IdentityRecord]) error {
	changelog := draft.Changelog()
	next := draft.Commit()
	addr, err := sphere.PutVersionedMap(ctx, c.store, next, changelog)
	if err != nil {
		return err
	}
	c.body.AddressBook = addr
	return nil
}

// WriteContent stores body as a raw content memo and points slug at it in
// the content map (spec.md §3 "Content map"; exercised by the gateway
// petname round-trip fixture's "write content 'bar'" step).
func (c *Context) WriteContent(ctx context.Context, slug string, body []byte) (cid.Cid, error) {
	if err := sphere.ValidateSlug(slug); err != nil {
		return cid.Undef, err
	}
	bodyAddr, err := c.store.Put(ctx, body)
	if err != nil {
		return cid.Undef, err
	}
	memo := sphere.Memo{
		Headers: sphere.Headers{}.With(sphere.HeaderContentType, sphere.ContentTypeRaw),
		Body:    bodyAddr,
	}
	memoAddr, err := sphere.PutMemo(ctx, c.store, memo)
	if err != nil {
		return cid.Undef, err
	}

	content, err := c.Content(ctx)
	if err != nil {
		return cid.Undef, err
	}
	draft := versionedmap.NewDraft(content)
	draft.Set(slug, memoAddr)
	if err := c.commitContent(ctx, draft); err != nil {
		return cid.Undef, err
	}
	return memoAddr, nil
}

// UnsetContent removes slug from the content map.
func (c *Context) UnsetContent(ctx context.Context, slug string) error {
	content, err := c.Content(ctx)
	if err != nil {
		return err
	}
	draft := versionedmap.NewDraft(content)
	draft.Remove(slug)
	return c.commitContent(ctx, draft)
}

func (c *Context) commitContent(ctx context.Context, draft *versionedmap.Draft[cid.Cid]) error {
	changelog := draft.Changelog()
	next := draft.Commit()
	addr, err := sphere.PutVersionedMap(ctx, c.store, next, changelog)
	if err != nil {
		return err
	}
	c.body.Content = addr
	return nil
}

// ReadContent resolves slug in the current content map and fetches the
// referenced memo's raw body bytes.
func (c *Context) ReadContent(ctx context.Context, slug string) ([]byte, bool, error) {
	content, err := c.Content(ctx)
	if err != nil {
		return nil, false, err
	}
	memoAddr, ok := content.Get(slug)
	if !ok {
		return nil, false, nil
	}
	memo, err := sphere.LoadMemo(ctx, c.store, memoAddr)
	if err != nil {
		return nil, false, err
	}
	body, ok, err := c.store.Get(ctx, memo.Body)
	if err != nil || !ok {
		return nil, ok, err
	}
	return body, true, nil
}

// Commit signs and appends a new memo for the context's current body,
// under priv (whose public key must correspond to the sphere identity, or
// to the audience of proofToken if non-nil), producing the new HEAD.
func (c *Context) Commit(ctx context.Context, priv ed25519.PrivateKey, proofTokenAddr *cid.Cid) (cid.Cid, error) {
	bodyAddr, err := block.PutValue(ctx, c.store, c.body)
	if err != nil {
		return cid.Undef, err
	}
	signature := ed25519.Sign(priv, sphere.BodyAddressBytes(bodyAddr))
	headers := sphere.Headers{}.
		With(sphere.HeaderContentType, sphere.ContentTypeSphere).
		With(sphere.HeaderSignature, base64.StdEncoding.EncodeToString(signature))
	if proofTokenAddr != nil {
		headers = headers.With(sphere.HeaderProof, proofTokenAddr.String())
	}
	parent := c.addr
	memo := sphere.Memo{Headers: headers, Body: bodyAddr, Parent: &parent}
	addr, err := sphere.PutMemo(ctx, c.store, memo)
	if err != nil {
		return cid.Undef, err
	}
	c.memo = memo
	c.addr = addr
	return addr, nil
}

// TraversePetname resolves petname's link and opens a read-only context at
// that revision, whose backing store transparently fetches missing blocks
// from remote via fetch (spec.md §4.E "Traverse by petname"). Traversal
// composes: the result's address-book is the referenced sphere's own.
func (c *Context) TraversePetname(ctx context.Context, petname string, fetch RemoteFetch) (*Context, error) {
	addr, ok, err := c.ResolvePetname(ctx, petname)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("sphereview: petname %q has no resolved link", petname)
	}
	local := block.NewMemoryStore()
	remoteStore := &fetchingStore{Store: local, fetch: fetch}
	return Open(ctx, remoteStore, addr, c.logger)
}

// RemoteFetch fetches a block by address from an external source
// (typically a replication.ArchiveStream consumer or a direct peer fetch).
type RemoteFetch func(ctx context.Context, addr cid.Cid) ([]byte, bool, error)

// fetchingStore wraps a local Store, transparently backfilling misses from
// an external source and caching the result locally.
type fetchingStore struct {
	block.Store
	fetch RemoteFetch
}

func (f *fetchingStore) Get(ctx context.Context, addr cid.Cid) ([]byte, bool, error) {
	b, ok, err := f.Store.Get(ctx, addr)
	if err != nil || ok {
		return b, ok, err
	}
	if f.fetch == nil {
		return nil, false, nil
	}
	remote, ok, err := f.fetch(ctx, addr)
	if err != nil || !ok {
		return nil, ok, err
	}
	if _, err := f.Store.Put(ctx, remote); err != nil {
		return nil, false, err
	}
	return remote, true, nil
}

// HistoryEntry is one step of a sphere's history stream.
type HistoryEntry struct {
	Addr sphere.Memo
	Body sphere.Body
}

// HistoryStream walks parent links from head until since is reached or the
// beginning, yielding (memo, body) pairs. It does not include since itself
// (spec.md §4.E "History stream").
func HistoryStream(ctx context.Context, s block.Store, head cid.Cid, since *cid.Cid) ([]HistoryEntry, error) {
	var out []HistoryEntry
	current := head
	for {
		if since != nil && current.Equals(*since) {
			return out, nil
		}
		memo, err := sphere.LoadMemo(ctx, s, current)
		if err != nil {
			return nil, err
		}
		body, err := sphere.LoadBody(ctx, s, memo.Body)
		if err != nil {
			return nil, err
		}
		out = append(out, HistoryEntry{Addr: memo, Body: body})
		if memo.Parent == nil {
			return out, nil
		}
		current = *memo.Parent
	}
}
