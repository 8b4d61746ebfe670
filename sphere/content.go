package sphere

import (
	"context"

	"github.com/go-ozzo/ozzo-validation/v4"
	"github.com/ipfs/go-cid"

	"github.com/glyphgrid/sphere/block"
	"github.com/glyphgrid/sphere/versionedmap"
)

// ValidateSlug enforces the structural constraints spec.md §3 assumes of a
// content-map slug: a non-empty, reasonably-sized UTF-8 string.
func ValidateSlug(slug string) error {
	return validation.Validate(slug, validation.Required, validation.Length(1, 256), validation.RuneLength(1, 256))
}

// EmptyContentMap returns the canonical empty content map.
func EmptyContentMap() versionedmap.Map[cid.Cid] {
	return versionedmap.Empty[cid.Cid]()
}

// PutContentRoot stores a content-map snapshot with no changelog, used
// when constructing an empty sphere body.
func PutContentRoot(ctx context.Context, s block.Store, m versionedmap.Map[cid.Cid]) (cid.Cid, error) {
	return PutVersionedMap(ctx, s, m, nil)
}

// LoadContent loads the content-map versioned map at addr: slug → content-
// memo address (spec.md §3 "Content map").
func LoadContent(ctx context.Context, s block.Store, addr cid.Cid) (versionedmap.Map[cid.Cid], []versionedmap.Change[cid.Cid], error) {
	return LoadVersionedMap[cid.Cid](ctx, s, addr)
}
