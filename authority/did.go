// Package authority implements the capability-based authorization layer:
// auth-tokens, delegation-chain reconstruction, capability reduction, and
// sphere-memo signature verification (spec.md §4.C).
package authority

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

// didKeyPrefix marks an identity string as a raw ed25519 public key. The
// production noosphere convention is a multicodec/multibase "did:key:z...";
// this module keeps the teacher's "sign with stdlib crypto directly, no
// external JOSE library" idiom (auth/jwt_support.go) and pairs it with the
// simplest DID encoding that idiom supports: base64url over the raw
// 32-byte ed25519 public key.
const didKeyPrefix = "did:key:"

// GenerateIdentity creates a fresh ed25519 keypair and its DID string.
func GenerateIdentity() (did string, priv ed25519.PrivateKey, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", nil, fmt.Errorf("authority: generate identity: %w", err)
	}
	return EncodeDID(pub), priv, nil
}

// EncodeDID renders a raw ed25519 public key as a did:key string.
func EncodeDID(pub ed25519.PublicKey) string {
	return didKeyPrefix + base64.RawURLEncoding.EncodeToString(pub)
}

// ParseDID recovers the ed25519 public key embedded in a did:key string.
func ParseDID(did string) (ed25519.PublicKey, error) {
	if !strings.HasPrefix(did, didKeyPrefix) {
		return nil, fmt.Errorf("authority: identity %q is not a did:key", did)
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(did, didKeyPrefix))
	if err != nil {
		return nil, fmt.Errorf("authority: malformed did:key %q: %w", did, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("authority: did:key %q has wrong key size %d", did, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}
