package sphere

import (
	"context"

	"github.com/go-ozzo/ozzo-validation/v4"
	"github.com/ipfs/go-cid"

	"github.com/glyphgrid/sphere/block"
	"github.com/glyphgrid/sphere/versionedmap"
)

// IdentityRecord is the value half of the address-book map: petname →
// {did, link_record?} (spec.md §3 "Address-book subgraph").
type IdentityRecord struct {
	DID        string   `cbor:"did"`
	LinkRecord *cid.Cid `cbor:"link_record,omitempty"`
}

// ValidatePetname enforces the structural constraints spec.md §4.E assumes
// of a petname: a non-empty, reasonably-sized UTF-8 string.
func ValidatePetname(petname string) error {
	return validation.Validate(petname, validation.Required, validation.Length(1, 256), validation.RuneLength(1, 256))
}

// EmptyAddressBook returns the canonical empty address-book map.
func EmptyAddressBook() versionedmap.Map[IdentityRecord] {
	return versionedmap.Empty[IdentityRecord]()
}

// PutAddressBookRoot stores an address-book snapshot with no changelog,
// used when constructing an empty sphere body.
func PutAddressBookRoot(ctx context.Context, s block.Store, m versionedmap.Map[IdentityRecord]) (cid.Cid, error) {
	return PutVersionedMap(ctx, s, m, nil)
}

// LoadAddressBook loads the address-book versioned map at addr.
func LoadAddressBook(ctx context.Context, s block.Store, addr cid.Cid) (versionedmap.Map[IdentityRecord], []versionedmap.Change[IdentityRecord], error) {
	return LoadVersionedMap[IdentityRecord](ctx, s, addr)
}
