// Package codec provides the canonical byte encoding and content-address
// derivation shared by every block the sphere network stores.
package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	gohex "github.com/tmthrgd/go-hex"
)

// rawMulticodec is the content-identifier codec tag stored in every address, per
// the multicodec "raw" convention used for opaque content-addressed bytes.
const rawMulticodec = 0x55

var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: invalid canonical encoding options: %v", err))
	}
	return mode
}

// Encode produces the canonical, deterministic byte encoding of v. Equal
// values always produce byte-identical output, which is the precondition
// for content addressing (spec.md §3, Invariant 1).
func Encode(v any) ([]byte, error) {
	b, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: encode failed: %w", err)
	}
	return b, nil
}

// Decode reverses Encode into the structure pointed to by out.
func Decode(b []byte, out any) error {
	if err := cbor.Unmarshal(b, out); err != nil {
		return fmt.Errorf("codec: decode failed: %w", err)
	}
	return nil
}

// Address computes the stable content address of a raw byte block: a
// sha2-256 multihash wrapped in a CIDv1 with the raw codec.
func Address(b []byte) (cid.Cid, error) {
	mh, err := multihash.Sum(b, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("codec: hash block: %w", err)
	}
	return cid.NewCidV1(rawMulticodec, mh), nil
}

// AddressOf encodes v canonically and returns its content address.
func AddressOf(v any) (cid.Cid, error) {
	b, err := Encode(v)
	if err != nil {
		return cid.Undef, err
	}
	return Address(b)
}

// MustParseAddress parses a CID string, panicking on malformed input. Only
// meant for constants and tests; production code should use ParseAddress.
func MustParseAddress(s string) cid.Cid {
	c, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseAddress parses the string form of a content address.
func ParseAddress(s string) (cid.Cid, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, fmt.Errorf("codec: malformed content address %q: %w", s, err)
	}
	return c, nil
}

// HexDigest renders the raw multihash digest bytes of an address as hex,
// for log lines and error messages where the full multibase string is
// noisier than the reader needs.
func HexDigest(c cid.Cid) string {
	dmh, err := multihash.Decode(c.Hash())
	if err != nil {
		return gohex.EncodeToString(c.Hash())
	}
	return gohex.EncodeToString(dmh.Digest)
}
