// Package linkrecord implements the signed, expiring sphere identity →
// revision assertion described in spec.md §4.D, and its validation against
// a delegation chain.
package linkrecord

import (
	"context"
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/ipfs/go-cid"

	"github.com/glyphgrid/sphere/authority"
	"github.com/glyphgrid/sphere/block"
	glog "github.com/goliatone/go-logger/glog"
)

// FactKeyLink is the facts-map key a link-record's revision assertion is
// stored under (spec.md §3 "Link-record": `{"link": "<revision-address>"}`).
const FactKeyLink = "link"

// LinkRecord is a signed auth-token asserting that a sphere identity
// currently points to a given revision (spec.md §3, §4.D).
type LinkRecord struct {
	Token authority.Token
}

type linkFacts struct {
	Link string `mapstructure:"link"`
}

// Parse wraps a decoded auth-token as a link-record. It performs no
// validation beyond what authority.Decode already does; malformed facts
// are tolerated here and only surfaced by Link (spec.md §4.D: "warnings are
// logged for malformed facts but do not fail parsing").
func Parse(encoded string) (LinkRecord, error) {
	tok, err := authority.Decode(encoded)
	if err != nil {
		return LinkRecord{}, err
	}
	return LinkRecord{Token: tok}, nil
}

// SphereIdentity is the link-record's audience: the sphere identity it
// claims to describe (spec.md §4.D).
func (r LinkRecord) SphereIdentity() string {
	return r.Token.Audience
}

// Link returns the first fact whose "link" field parses as a valid
// content address, logging (not failing) on malformed facts.
func (r LinkRecord) Link(logger glog.Logger) (cid.Cid, bool) {
	var f linkFacts
	if err := mapstructure.Decode(r.Token.Facts, &f); err != nil {
		if logger != nil {
			logger.Warn("linkrecord: malformed facts", "error", err)
		}
		return cid.Undef, false
	}
	addr, err := cid.Decode(f.Link)
	if err != nil {
		if logger != nil {
			logger.Warn("linkrecord: facts link is not a valid content address", "link", f.Link, "error", err)
		}
		return cid.Undef, false
	}
	return addr, true
}

// HasPublishableTimeframe reports whether the record is currently usable:
// not expired, not before its not-before time. This is deliberately
// independent of Validate (spec.md §4.D "Notably validation is independent
// of current wall-clock time").
func (r LinkRecord) HasPublishableTimeframe(now time.Time) bool {
	if r.Token.Expiry != nil && !now.Before(*r.Token.Expiry) {
		return false
	}
	if r.Token.NotBefore != nil && now.Before(*r.Token.NotBefore) {
		return false
	}
	return true
}

// Validate checks spec.md §4.D's three validation conditions:
//  1. a link fact is present
//  2. the delegation chain, reconstructed at nbf (or expiry-1 if absent),
//     grants publish on the audience sphere, with originator = audience
//  3. the token's own signature verifies
//
// Validation takes its evaluation instant from the token (see
// evaluationTime) and consults the current time only for a token with
// neither not-before nor expiry: a record can be valid yet unpublishable
// (HasPublishableTimeframe reports that separately).
func (r LinkRecord) Validate(ctx context.Context, s block.Store, logger glog.Logger) error {
	if _, ok := r.Link(logger); !ok {
		return fmt.Errorf("linkrecord: no parsable link fact")
	}
	if err := r.Token.Verify(); err != nil {
		return err
	}
	chain, err := authority.Reconstruct(ctx, s, r.Token, evaluationTime(r.Token))
	if err != nil {
		return err
	}
	reduced, err := authority.ReduceCapabilities(chain)
	if err != nil {
		return err
	}
	desired := authority.Capability{
		Resource: authority.Resource{DID: r.SphereIdentity()},
		Action:   authority.ActionPublish,
	}
	if !authority.Authorize(reduced, desired, r.SphereIdentity()) {
		return fmt.Errorf("linkrecord: chain does not grant publish on %s to %s", r.SphereIdentity(), r.SphereIdentity())
	}
	return nil
}

// evaluationTime picks the instant spec.md §4.D prescribes for chain
// reconstruction: the token's own not-before, or expiry-1 if no not-before.
// A token with neither is evaluated at the current time.
func evaluationTime(t authority.Token) time.Time {
	if t.NotBefore != nil {
		return *t.NotBefore
	}
	if t.Expiry != nil {
		return t.Expiry.Add(-time.Second)
	}
	return time.Now()
}

// Equal reports whether two link-records are byte-identical under their
// canonical token encoding (spec.md §4.D "Equality").
func Equal(a, b LinkRecord) bool {
	ea, errA := a.Token.Encode()
	eb, errB := b.Token.Encode()
	if errA != nil || errB != nil {
		return false
	}
	return ea == eb
}
