package authority

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/ipfs/go-cid"

	"github.com/glyphgrid/sphere/block"
	"github.com/glyphgrid/sphere/sphere"
)

// VerifySphereMemo checks spec.md Invariant 1: a sphere memo's signature
// verifies the body address under either the sphere identity's own key, or
// the audience key of a proof-referenced auth-token whose delegation chain
// grants push on this sphere to that audience.
//
// This mirrors, field for field, `verify_sphere_cid` in
// noosphere-core/src/authority/verification.rs from the original source.
func VerifySphereMemo(ctx context.Context, s block.Store, memo sphere.Memo) error {
	contentType, ok := memo.Headers.First(sphere.HeaderContentType)
	if !ok || contentType != sphere.ContentTypeSphere {
		return fmt.Errorf("authority: memo is not a sphere memo (content-type=%q)", contentType)
	}

	sigHeader, ok := memo.Headers.First(sphere.HeaderSignature)
	if !ok {
		return fmt.Errorf("authority: memo has no signature header")
	}
	signature, err := base64.StdEncoding.DecodeString(sigHeader)
	if err != nil {
		return fmt.Errorf("authority: malformed signature header: %w", err)
	}

	body, err := sphere.LoadBody(ctx, s, memo.Body)
	if err != nil {
		return err
	}
	bodyBytes := sphere.BodyAddressBytes(memo.Body)

	proofHeader, hasProof := memo.Headers.First(sphere.HeaderProof)
	if !hasProof {
		pub, err := ParseDID(body.Identity)
		if err != nil {
			return err
		}
		if !ed25519.Verify(pub, bodyBytes, signature) {
			return fmt.Errorf("authority: memo signature invalid for identity %s", body.Identity)
		}
		return nil
	}

	proofAddr, err := cid.Decode(proofHeader)
	if err != nil {
		return fmt.Errorf("authority: malformed proof header: %w", err)
	}
	jwt, err := block.RequireToken(ctx, s, proofAddr)
	if err != nil {
		return err
	}
	leaf, err := Decode(jwt)
	if err != nil {
		return err
	}

	pub, err := ParseDID(leaf.Audience)
	if err != nil {
		return err
	}
	if !ed25519.Verify(pub, bodyBytes, signature) {
		return fmt.Errorf("authority: memo signature invalid for proof audience %s", leaf.Audience)
	}

	chain, err := Reconstruct(ctx, s, leaf, time.Now())
	if err != nil {
		return err
	}
	reduced, err := ReduceCapabilities(chain)
	if err != nil {
		return err
	}
	desired := Capability{Resource: Resource{DID: body.Identity}, Action: ActionPush}
	if !Authorize(reduced, desired, body.Identity) {
		return fmt.Errorf("authority: proof did not enable signer to push sphere %s", body.Identity)
	}
	return nil
}
