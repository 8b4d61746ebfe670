package authority

import (
	"crypto/ed25519"
	"fmt"

	"github.com/ipfs/go-cid"

	"github.com/glyphgrid/sphere/sphere"
	"github.com/glyphgrid/sphere/versionedmap"
)

// IsRevoked reports whether tokenAddr appears in revocations with a
// signature that verifies under its recorded issuer. Per spec.md §4.C
// enforcement note: "the verifier MAY consult the revocations map ... and
// treat any token whose address appears there as having its signature
// invalid" — IsRevoked is that check; Reconstruct and VerifySphereMemo do
// not call it.
func IsRevoked(revocations versionedmap.Map[sphere.RevocationRecord], tokenAddr cid.Cid) bool {
	rec, ok := revocations.Get(tokenAddr.String())
	if !ok {
		return false
	}
	return VerifyRevocation(rec.Issuer, tokenAddr, rec.Signature) == nil
}

// RevocationChallenge builds the challenge string a revocation signs:
// "REVOKE:"+token_address (spec.md §4.C "Revocation").
func RevocationChallenge(tokenAddr cid.Cid) []byte {
	return []byte("REVOKE:" + tokenAddr.String())
}

// SignRevocation signs a revocation of tokenAddr under priv.
func SignRevocation(priv ed25519.PrivateKey, tokenAddr cid.Cid) []byte {
	return ed25519.Sign(priv, RevocationChallenge(tokenAddr))
}

// VerifyRevocation checks that signature is a valid signature by issuer
// over the revocation challenge for tokenAddr (spec.md §4.C: "valid iff
// the signature verifies under iss's key").
func VerifyRevocation(issuer string, tokenAddr cid.Cid, signature []byte) error {
	pub, err := ParseDID(issuer)
	if err != nil {
		return err
	}
	if !ed25519.Verify(pub, RevocationChallenge(tokenAddr), signature) {
		return errInvalidRevocation(issuer, tokenAddr)
	}
	return nil
}

func errInvalidRevocation(issuer string, tokenAddr cid.Cid) error {
	return fmt.Errorf("authority: revocation signature invalid for issuer %s over token %s", issuer, tokenAddr)
}
