// Package sphere implements the content-addressed sphere data model:
// memos, sphere bodies, and the authority/address-book/content subgraphs
// (spec.md §3, §4.B, §4.E). The navigable sphere context is in package
// sphereview.
package sphere

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"

	"github.com/glyphgrid/sphere/block"
)

// Header names recognized by memo envelopes (spec.md §3 "Memo").
const (
	HeaderContentType = "content-type"
	HeaderSignature   = "signature"
	HeaderProof       = "proof"
)

// ContentType values used in the content-type header.
const (
	ContentTypeSphere = "sphere"
	ContentTypeRaw    = "raw"
)

// HeaderField is a single (name, value) pair; names may repeat within a
// memo's header list (spec.md §3).
type HeaderField struct {
	Name  string `cbor:"name"`
	Value string `cbor:"value"`
}

// Headers is an ordered, possibly-repeating header list.
type Headers []HeaderField

// First returns the first value recorded under name, if any.
func (h Headers) First(name string) (string, bool) {
	for _, f := range h {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// All returns every value recorded under name, in order.
func (h Headers) All(name string) []string {
	var out []string
	for _, f := range h {
		if f.Name == name {
			out = append(out, f.Value)
		}
	}
	return out
}

// With returns a copy of h with (name, value) appended.
func (h Headers) With(name, value string) Headers {
	return append(append(Headers{}, h...), HeaderField{Name: name, Value: value})
}

// Memo is the envelope wrapping every sphere revision and every piece of
// content (spec.md §3 "Memo").
type Memo struct {
	Headers Headers  `cbor:"headers"`
	Body    cid.Cid  `cbor:"body"`
	Parent  *cid.Cid `cbor:"parent,omitempty"`
}

// Body is the sphere body referenced by a sphere memo's Body address
// (spec.md §3 "Sphere body").
type Body struct {
	Identity    string  `cbor:"identity"`
	Authority   cid.Cid `cbor:"authority"`
	AddressBook cid.Cid `cbor:"address_book"`
	Content     cid.Cid `cbor:"content"`
}

// PutMemo encodes and stores a memo, returning its content address.
func PutMemo(ctx context.Context, s block.Store, m Memo) (cid.Cid, error) {
	return block.PutValue(ctx, s, m)
}

// LoadMemo fetches and decodes the memo at addr.
func LoadMemo(ctx context.Context, s block.Store, addr cid.Cid) (Memo, error) {
	var m Memo
	ok, err := block.GetValue(ctx, s, addr, &m)
	if err != nil {
		return Memo{}, err
	}
	if !ok {
		return Memo{}, fmt.Errorf("sphere: memo %s not found", addr)
	}
	return m, nil
}

// LoadBody fetches and decodes the sphere body at addr.
func LoadBody(ctx context.Context, s block.Store, addr cid.Cid) (Body, error) {
	var b Body
	ok, err := block.GetValue(ctx, s, addr, &b)
	if err != nil {
		return Body{}, err
	}
	if !ok {
		return Body{}, fmt.Errorf("sphere: body %s not found", addr)
	}
	return b, nil
}

// EmptyBody constructs a fresh sphere body with canonical empty roots for
// its authority, address-book, and content subgraphs.
func EmptyBody(ctx context.Context, s block.Store, identity string) (Body, error) {
	authorityAddr, err := PutAuthority(ctx, s, Authority{})
	if err != nil {
		return Body{}, err
	}
	addressBookAddr, err := PutAddressBookRoot(ctx, s, EmptyAddressBook())
	if err != nil {
		return Body{}, err
	}
	contentAddr, err := PutContentRoot(ctx, s, EmptyContentMap())
	if err != nil {
		return Body{}, err
	}
	return Body{
		Identity:    identity,
		Authority:   authorityAddr,
		AddressBook: addressBookAddr,
		Content:     contentAddr,
	}, nil
}

// BodyAddressBytes is the canonical byte form over which a memo's
// signature is computed: the raw bytes of the body's content address.
func BodyAddressBytes(bodyAddr cid.Cid) []byte {
	return bodyAddr.Bytes()
}
