package sphere

import (
	"context"

	"github.com/ipfs/go-cid"

	"github.com/glyphgrid/sphere/block"
	"github.com/glyphgrid/sphere/versionedmap"
)

// DelegationRecord is the value half of the delegations map: token-content-
// address → {display_name, token_cid} (spec.md §3 "Authority subgraph").
type DelegationRecord struct {
	DisplayName string  `cbor:"display_name"`
	TokenAddr   cid.Cid `cbor:"token_cid"`
}

// RevocationRecord is the value half of the revocations map: an issuer
// signature over the challenge string "REVOKE:"+token_address
// (spec.md §3, §4.C "Revocation").
type RevocationRecord struct {
	Issuer    string `cbor:"iss"`
	Signature []byte `cbor:"sig"`
}

// Authority is the sphere's delegation/revocation subgraph (spec.md §3
// "Authority subgraph").
type Authority struct {
	Delegations cid.Cid `cbor:"delegations"`
	Revocations cid.Cid `cbor:"revocations"`
}

// PutAuthority stores an authority subgraph, defaulting unset delegation/
// revocation roots to the canonical empty map.
func PutAuthority(ctx context.Context, s block.Store, a Authority) (cid.Cid, error) {
	if a.Delegations == cid.Undef {
		addr, err := PutVersionedMap(ctx, s, versionedmap.Empty[DelegationRecord](), nil)
		if err != nil {
			return cid.Undef, err
		}
		a.Delegations = addr
	}
	if a.Revocations == cid.Undef {
		addr, err := PutVersionedMap(ctx, s, versionedmap.Empty[RevocationRecord](), nil)
		if err != nil {
			return cid.Undef, err
		}
		a.Revocations = addr
	}
	return block.PutValue(ctx, s, a)
}

// LoadAuthority fetches an authority subgraph.
func LoadAuthority(ctx context.Context, s block.Store, addr cid.Cid) (Authority, error) {
	var a Authority
	ok, err := block.GetValue(ctx, s, addr, &a)
	if err != nil {
		return Authority{}, err
	}
	if !ok {
		return Authority{}, errNotFound("authority", addr)
	}
	return a, nil
}

// LoadDelegations loads a's delegations versioned map.
func LoadDelegations(ctx context.Context, s block.Store, a Authority) (versionedmap.Map[DelegationRecord], []versionedmap.Change[DelegationRecord], error) {
	return LoadVersionedMap[DelegationRecord](ctx, s, a.Delegations)
}

// LoadRevocations loads a's revocations versioned map.
func LoadRevocations(ctx context.Context, s block.Store, a Authority) (versionedmap.Map[RevocationRecord], []versionedmap.Change[RevocationRecord], error) {
	return LoadVersionedMap[RevocationRecord](ctx, s, a.Revocations)
}
