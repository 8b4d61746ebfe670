package sphere

import (
	"fmt"

	"github.com/ipfs/go-cid"
	goerrors "github.com/goliatone/go-errors"
)

// errNotFound builds a categorized missing-data error (spec.md §7), in the
// teacher's goerrors-envelope idiom (core/errors.go's newServiceError).
func errNotFound(kind string, addr cid.Cid) error {
	return goerrors.New(fmt.Sprintf("sphere: %s %s not found", kind, addr), goerrors.CategoryNotFound).
		WithTextCode("SPHERE_NOT_FOUND")
}
