// Package gateway implements the per-request capability check a gateway
// process runs against the bearer auth-token and side-band proof headers
// of an incoming request (spec.md §4.F, §6).
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/glyphgrid/sphere/authority"
	"github.com/glyphgrid/sphere/block"
	"github.com/glyphgrid/sphere/codec"
)

// Scope fixes a gateway process's identity and the counterpart sphere it
// serves (spec.md §4.F "Gateway scope").
type Scope struct {
	Gateway     string
	Counterpart string
}

// Authority embodies the authorization status of one request, derived
// once per request from its bearer token and side-band proof headers.
// Mirrors noosphere-gateway/src/authority.rs's GatewayAuthority.
type Authority struct {
	scope   Scope
	reduced []authority.ReducedCapability
}

// RequestError pairs an HTTP status with a description, matching spec.md
// §6's exact status-code mapping.
type RequestError struct {
	Status int
	Err    error
}

func (e *RequestError) Error() string { return e.Err.Error() }
func (e *RequestError) Unwrap() error { return e.Err }

func statusErr(status int, format string, args ...any) *RequestError {
	return &RequestError{Status: status, Err: fmt.Errorf(format, args...)}
}

// Authorize parses a bearer token and its "ucan: <addr> <jwt>" side-band
// proof headers, verifies every accepted proof's claimed address against
// its computed address, stores accepted proofs, reconstructs the bearer's
// delegation chain, and returns an Authority that can check capabilities.
//
// Status mapping (spec.md §6): missing bearer → 400; proof address
// mismatch → 400; chain fails to verify → 400; this func itself never
// returns 401/500 — those arise from TryAuthorize and from the caller's
// own missing-context checks, respectively.
func Authorize(ctx context.Context, s block.Store, scope Scope, header http.Header) (*Authority, error) {
	bearer := strings.TrimPrefix(header.Get("Authorization"), "Bearer ")
	bearer = strings.TrimSpace(bearer)
	if bearer == "" {
		return nil, statusErr(http.StatusBadRequest, "gateway: missing bearer token")
	}

	for _, line := range header.Values("ucan") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, statusErr(http.StatusBadRequest, "gateway: malformed ucan header %q", line)
		}
		claimedAddr, jwt := fields[0], fields[1]
		claimed, err := codec.ParseAddress(claimedAddr)
		if err != nil {
			return nil, statusErr(http.StatusBadRequest, "gateway: %w", err)
		}
		actual, err := codec.Address([]byte(jwt))
		if err != nil {
			return nil, statusErr(http.StatusBadRequest, "gateway: %w", err)
		}
		if !claimed.Equals(actual) {
			return nil, statusErr(http.StatusBadRequest, "gateway: claimed proof address %s does not match computed %s", claimed, actual)
		}
		if _, err := s.PutToken(ctx, jwt); err != nil {
			return nil, statusErr(http.StatusBadRequest, "gateway: %w", err)
		}
	}

	leaf, err := authority.Decode(bearer)
	if err != nil {
		return nil, statusErr(http.StatusBadRequest, "gateway: %w", err)
	}
	chain, err := authority.Reconstruct(ctx, s, leaf, time.Now())
	if err != nil {
		return nil, statusErr(http.StatusBadRequest, "gateway: %w", err)
	}
	reduced, err := authority.ReduceCapabilities(chain)
	if err != nil {
		return nil, statusErr(http.StatusBadRequest, "gateway: %w", err)
	}

	return &Authority{scope: scope, reduced: reduced}, nil
}

// TryAuthorize reports whether the request's reduced capability set
// enables capability and was originated by the gateway's counterpart
// (spec.md §4.F "Authorize"). Returns 401 on denial.
func (a *Authority) TryAuthorize(capability authority.Capability) error {
	if a == nil {
		return statusErr(http.StatusInternalServerError, "gateway: missing authorization context")
	}
	if authority.Authorize(a.reduced, capability, a.scope.Counterpart) {
		return nil
	}
	return statusErr(http.StatusUnauthorized, "gateway: capability %+v not authorized for %s", capability, a.scope.Counterpart)
}
