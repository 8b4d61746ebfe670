package authority

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/mitchellh/copystructure"

	"github.com/glyphgrid/sphere/codec"
)

// Action is one of the two sphere actions spec.md §4.C recognizes.
type Action string

const (
	ActionPush    Action = "push"
	ActionPublish Action = "publish"
)

// Enables reports whether holding capability for Action a is sufficient to
// perform Action other. Per spec.md §4.C: "publish implies publish; push
// implies push; neither implies the other" — enablement is plain equality.
func (a Action) Enables(other Action) bool { return a == other }

// Resource scopes a capability to one sphere, `did:<identity>` (spec.md
// §4.C).
type Resource struct {
	DID string `cbor:"did"`
}

// Capability is a (resource, action) pair.
type Capability struct {
	Resource Resource `cbor:"resource"`
	Action   Action   `cbor:"action"`
}

// Enables reports whether holding c is sufficient to perform other: same
// resource, and c's action enables other's action.
func (c Capability) Enables(other Capability) bool {
	return c.Resource.DID == other.Resource.DID && c.Action.Enables(other.Action)
}

// payload is every signed field of a Token except its own signature.
type payload struct {
	Issuer       string         `cbor:"iss"`
	Audience     string         `cbor:"aud"`
	NotBefore    *time.Time     `cbor:"nbf,omitempty"`
	Expiry       *time.Time     `cbor:"exp,omitempty"`
	Capabilities []Capability   `cbor:"cap"`
	Proofs       []cid.Cid      `cbor:"prf,omitempty"`
	Facts        map[string]any `cbor:"fct,omitempty"`
}

// Token is a signed capability grant: issuer, audience, capabilities,
// witness proofs, and a free-form facts field (spec.md §4.C "Auth-token").
type Token struct {
	payload
	Signature []byte
}

// New builds and signs a token issued by priv (whose public key must
// correspond to issuer's DID).
func New(issuer, audience string, priv ed25519.PrivateKey, capabilities []Capability, proofs []cid.Cid, facts map[string]any, notBefore, expiry *time.Time) (Token, error) {
	t := Token{payload: payload{
		Issuer:       issuer,
		Audience:     audience,
		NotBefore:    notBefore,
		Expiry:       expiry,
		Capabilities: capabilities,
		Proofs:       proofs,
		Facts:        facts,
	}}
	digest, err := t.signingDigest()
	if err != nil {
		return Token{}, err
	}
	t.Signature = ed25519.Sign(priv, digest)
	return t, nil
}

func (t Token) signingDigest() ([]byte, error) {
	return codec.Encode(t.payload)
}

// Verify checks t's signature against the issuer's public key, per
// spec.md Invariant 4 / §4.C: every delegation link's signature is
// checked against its issuer.
func (t Token) Verify() error {
	pub, err := ParseDID(t.Issuer)
	if err != nil {
		return err
	}
	digest, err := t.signingDigest()
	if err != nil {
		return err
	}
	if !ed25519.Verify(pub, digest, t.Signature) {
		return fmt.Errorf("authority: token signature invalid for issuer %s", t.Issuer)
	}
	return nil
}

// Encode renders the token as a compact "payload.signature" string
// (base64url halves joined by a dot), mirroring the teacher's hand-rolled
// JWT framing in auth/jwt_support.go, generalized to an ed25519 payload+
// signature pair instead of an HMAC/RSA JOSE header.
func (t Token) Encode() (string, error) {
	digest, err := t.signingDigest()
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(digest) + "." + base64.RawURLEncoding.EncodeToString(t.Signature), nil
}

// Decode parses a compact token string produced by Encode.
func Decode(encoded string) (Token, error) {
	parts := strings.SplitN(encoded, ".", 2)
	if len(parts) != 2 {
		return Token{}, fmt.Errorf("authority: malformed token encoding")
	}
	digest, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return Token{}, fmt.Errorf("authority: malformed token payload: %w", err)
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return Token{}, fmt.Errorf("authority: malformed token signature: %w", err)
	}
	var p payload
	if err := codec.Decode(digest, &p); err != nil {
		return Token{}, fmt.Errorf("authority: malformed token body: %w", err)
	}
	return Token{payload: p, Signature: sig}, nil
}

// CloneFacts deep-copies t's facts map so a caller accumulating reduced
// capabilities across concurrent chain walks never aliases a mutable map
// (spec.md §4.C capability reduction).
func CloneFacts(facts map[string]any) (map[string]any, error) {
	if len(facts) == 0 {
		return map[string]any{}, nil
	}
	cloned, err := copystructure.Copy(facts)
	if err != nil {
		return nil, fmt.Errorf("authority: clone facts: %w", err)
	}
	out, ok := cloned.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("authority: clone facts: unexpected type %T", cloned)
	}
	return out, nil
}
