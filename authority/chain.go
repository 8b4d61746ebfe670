package authority

import (
	"context"
	"fmt"
	"time"

	"github.com/glyphgrid/sphere/block"
)

// Chain is a reconstructed delegation chain: a leaf token plus the
// recursively-reconstructed chains of each of its witness proofs
// (spec.md §4.C "Delegation chain").
type Chain struct {
	Leaf      Token
	Witnesses []*Chain
}

// Reconstruct follows leaf's proof references transitively through store,
// verifying every node's signature against its issuer along the way
// (spec.md §4.C, Invariant 4). The chain is evaluated as of `at` — every
// witness token must have a publishable timeframe at that instant
// (spec.md §4.D: "the delegation chain (reconstructed at the token's own
// not-before, or expiry-1 if no not-before)").
func Reconstruct(ctx context.Context, s block.Store, leaf Token, at time.Time) (*Chain, error) {
	if err := leaf.Verify(); err != nil {
		return nil, err
	}
	chain := &Chain{Leaf: leaf}
	for _, proofAddr := range leaf.Proofs {
		jwt, err := block.RequireToken(ctx, s, proofAddr)
		if err != nil {
			return nil, fmt.Errorf("authority: missing witness proof %s: %w", proofAddr, err)
		}
		witnessToken, err := Decode(jwt)
		if err != nil {
			return nil, fmt.Errorf("authority: malformed witness proof %s: %w", proofAddr, err)
		}
		if !timeframeValid(witnessToken, at) {
			return nil, fmt.Errorf("authority: witness proof %s is not valid at %s", proofAddr, at)
		}
		witnessChain, err := Reconstruct(ctx, s, witnessToken, at)
		if err != nil {
			return nil, err
		}
		chain.Witnesses = append(chain.Witnesses, witnessChain)
	}
	return chain, nil
}

// ReducedCapability is a capability surviving intersection along one
// root→leaf path, tagged with the DID of that path's root issuer
// (spec.md §4.C "Reduce capabilities").
type ReducedCapability struct {
	Capability  Capability
	Originators map[string]bool
}

// ReduceCapabilities computes the effective capability set at chain's leaf:
// the intersection of claimed capabilities along every root→leaf path.
// Grounded on the teacher's core/grants.go ComputeGrantDelta/normalizeGrants
// shape (normalize → build set → intersect), applied to capability tuples.
func ReduceCapabilities(chain *Chain) ([]ReducedCapability, error) {
	if chain == nil {
		return nil, nil
	}
	if len(chain.Witnesses) == 0 {
		// Self-signed root: the issuer is its own originator.
		out := make([]ReducedCapability, 0, len(chain.Leaf.Capabilities))
		for _, c := range chain.Leaf.Capabilities {
			out = append(out, ReducedCapability{
				Capability:  c,
				Originators: map[string]bool{chain.Leaf.Issuer: true},
			})
		}
		return out, nil
	}

	var combined []ReducedCapability
	for _, witness := range chain.Witnesses {
		parentReduced, err := ReduceCapabilities(witness)
		if err != nil {
			return nil, err
		}
		for _, pr := range parentReduced {
			for _, claimed := range chain.Leaf.Capabilities {
				if !pr.Capability.Enables(claimed) {
					continue
				}
				origins, err := cloneOriginators(pr.Originators)
				if err != nil {
					return nil, err
				}
				combined = append(combined, ReducedCapability{Capability: claimed, Originators: origins})
			}
		}
	}
	return combined, nil
}

func timeframeValid(t Token, at time.Time) bool {
	if t.Expiry != nil && !at.Before(*t.Expiry) {
		return false
	}
	if t.NotBefore != nil && at.Before(*t.NotBefore) {
		return false
	}
	return true
}

func cloneOriginators(in map[string]bool) (map[string]bool, error) {
	facts := make(map[string]any, len(in))
	for k := range in {
		facts[k] = true
	}
	cloned, err := CloneFacts(facts)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(cloned))
	for k := range cloned {
		out[k] = true
	}
	return out, nil
}

// Authorize reports whether some reduced capability in reduced enables
// desired and was originated by one of allowedOriginators (spec.md §4.C
// "Authorization check", §4.F "Authorize").
func Authorize(reduced []ReducedCapability, desired Capability, allowedOriginators ...string) bool {
	for _, rc := range reduced {
		if !rc.Capability.Enables(desired) {
			continue
		}
		for _, origin := range allowedOriginators {
			if rc.Originators[origin] {
				return true
			}
		}
	}
	return false
}
