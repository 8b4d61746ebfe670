package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

// contentBlockRecord persists one content-addressed byte block (spec.md
// §6 "Persisted state"). addr is the block's own content address, so it
// is both the primary key and the value's hash — Put is idempotent by
// construction (re-inserting the same addr/bytes pair is a no-op).
type contentBlockRecord struct {
	bun.BaseModel `bun:"table:content_blocks,alias:cb"`

	Addr      string    `bun:"addr,pk"`
	Bytes     []byte    `bun:"bytes,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// authTokenRecord persists one signed auth-token (JWT) by the content
// address of its encoded form (spec.md §6, §4.A "auxiliary signed-token
// storage").
type authTokenRecord struct {
	bun.BaseModel `bun:"table:auth_tokens,alias:at"`

	Addr      string    `bun:"addr,pk"`
	JWT       string    `bun:"jwt,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// refRecord is one small named key→value reference (spec.md §6 "a key-
// value store for small named references"): a gateway's counterpart
// identity, its last-resolved or last-published marker, and similar
// worker bookkeeping that isn't itself content-addressed.
type refRecord struct {
	bun.BaseModel `bun:"table:kv_refs,alias:kvr"`

	Key       string    `bun:"key,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
