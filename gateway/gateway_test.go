package gateway_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/glyphgrid/sphere/authority"
	"github.com/glyphgrid/sphere/block"
	"github.com/glyphgrid/sphere/gateway"
)

func TestAuthorize_RejectsMissingBearerToken(t *testing.T) {
	ctx := context.Background()
	s := block.NewMemoryStore()
	scope := gateway.Scope{Gateway: "did:key:gw", Counterpart: "did:key:peer"}

	_, err := gateway.Authorize(ctx, s, scope, http.Header{})
	if err == nil {
		t.Fatalf("expected missing bearer token to be rejected")
	}
	var rerr *gateway.RequestError
	if !asRequestError(err, &rerr) {
		t.Fatalf("expected a *gateway.RequestError, got %T", err)
	}
	if rerr.Status != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", rerr.Status, http.StatusBadRequest)
	}
}

func TestAuthorize_SelfSignedBearerGrantsMatchingCapability(t *testing.T) {
	ctx := context.Background()
	s := block.NewMemoryStore()

	counterpartDID, counterpartPriv, err := authority.GenerateIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	tok, err := authority.New(counterpartDID, counterpartDID, counterpartPriv, []authority.Capability{
		{Resource: authority.Resource{DID: counterpartDID}, Action: authority.ActionPush},
	}, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	encoded, err := tok.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+encoded)

	scope := gateway.Scope{Gateway: "did:key:gw", Counterpart: counterpartDID}
	auth, err := gateway.Authorize(ctx, s, scope, header)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}

	if err := auth.TryAuthorize(authority.Capability{
		Resource: authority.Resource{DID: counterpartDID}, Action: authority.ActionPush,
	}); err != nil {
		t.Fatalf("expected matching capability to authorize: %v", err)
	}
}

func TestAuthorize_SelfSignedBearerDeniesUnrelatedCapability(t *testing.T) {
	ctx := context.Background()
	s := block.NewMemoryStore()

	counterpartDID, counterpartPriv, err := authority.GenerateIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	tok, err := authority.New(counterpartDID, counterpartDID, counterpartPriv, []authority.Capability{
		{Resource: authority.Resource{DID: counterpartDID}, Action: authority.ActionPush},
	}, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	encoded, err := tok.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+encoded)

	scope := gateway.Scope{Gateway: "did:key:gw", Counterpart: counterpartDID}
	auth, err := gateway.Authorize(ctx, s, scope, header)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}

	err = auth.TryAuthorize(authority.Capability{
		Resource: authority.Resource{DID: counterpartDID}, Action: authority.ActionPublish,
	})
	if err == nil {
		t.Fatalf("expected push-only capability to not authorize publish")
	}
	var rerr *gateway.RequestError
	if !asRequestError(err, &rerr) || rerr.Status != http.StatusUnauthorized {
		t.Fatalf("expected a 401 RequestError, got %v", err)
	}
}

func TestAuthorize_RejectsMismatchedProofAddress(t *testing.T) {
	ctx := context.Background()
	s := block.NewMemoryStore()

	counterpartDID, counterpartPriv, err := authority.GenerateIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	tok, err := authority.New(counterpartDID, counterpartDID, counterpartPriv, nil, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	encoded, err := tok.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+encoded)
	// Claimed address doesn't match the actual content address of the jwt.
	wrongAddr, err := s.Put(ctx, []byte("unrelated bytes"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	header.Add("ucan", wrongAddr.String()+" "+encoded)

	scope := gateway.Scope{Gateway: "did:key:gw", Counterpart: counterpartDID}
	if _, err := gateway.Authorize(ctx, s, scope, header); err == nil {
		t.Fatalf("expected mismatched proof address to be rejected")
	}
}

func TestAuthority_TryAuthorizeNilReceiverFails(t *testing.T) {
	var auth *gateway.Authority
	err := auth.TryAuthorize(authority.Capability{})
	if err == nil {
		t.Fatalf("expected a nil authority to fail TryAuthorize")
	}
	var rerr *gateway.RequestError
	if !asRequestError(err, &rerr) || rerr.Status != http.StatusInternalServerError {
		t.Fatalf("expected a 500 RequestError, got %v", err)
	}
}

func asRequestError(err error, target **gateway.RequestError) bool {
	rerr, ok := err.(*gateway.RequestError)
	if !ok {
		return false
	}
	*target = rerr
	return true
}
