package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/uptrace/bun"

	"github.com/glyphgrid/sphere/block"
	"github.com/glyphgrid/sphere/codec"
)

// BlockStore is a bun-backed implementation of block.Store over the
// content_blocks/auth_tokens tables (spec.md §4.A, §6 "Persisted state").
// Content addresses aren't UUIDs, so unlike the teacher's other stores
// this talks to bun directly rather than through go-repository-bun, whose
// ModelHandlers contract is keyed on uuid.UUID.
type BlockStore struct {
	db *bun.DB
}

var _ block.Store = (*BlockStore)(nil)

// NewBlockStore wraps db. EnsureSchema must be called once (or the tables
// created by a migration) before use.
func NewBlockStore(db *bun.DB) (*BlockStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &BlockStore{db: db}, nil
}

// EnsureSchema creates the content_blocks/auth_tokens tables if they don't
// already exist. Production deployments are expected to run the real
// migration set instead; this exists for tests and for callers that only
// need the sphere tables without the rest of the teacher's schema.
func (s *BlockStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: block store is not configured")
	}
	if _, err := s.db.NewCreateTable().Model((*contentBlockRecord)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: create content_blocks: %w", err)
	}
	if _, err := s.db.NewCreateTable().Model((*authTokenRecord)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: create auth_tokens: %w", err)
	}
	return nil
}

func (s *BlockStore) Get(ctx context.Context, addr cid.Cid) ([]byte, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, fmt.Errorf("sqlstore: block store is not configured")
	}
	record := new(contentBlockRecord)
	err := s.db.NewSelect().Model(record).Where("addr = ?", addr.String()).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return record.Bytes, true, nil
}

func (s *BlockStore) Put(ctx context.Context, b []byte) (cid.Cid, error) {
	if s == nil || s.db == nil {
		return cid.Undef, fmt.Errorf("sqlstore: block store is not configured")
	}
	addr, err := codec.Address(b)
	if err != nil {
		return cid.Undef, err
	}
	record := &contentBlockRecord{Addr: addr.String(), Bytes: b, CreatedAt: time.Now().UTC()}
	_, err = s.db.NewInsert().Model(record).On("CONFLICT (addr) DO NOTHING").Exec(ctx)
	if err != nil {
		return cid.Undef, err
	}
	return addr, nil
}

func (s *BlockStore) GetToken(ctx context.Context, addr cid.Cid) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, fmt.Errorf("sqlstore: block store is not configured")
	}
	record := new(authTokenRecord)
	err := s.db.NewSelect().Model(record).Where("addr = ?", addr.String()).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return record.JWT, true, nil
}

func (s *BlockStore) PutToken(ctx context.Context, jwt string) (cid.Cid, error) {
	if s == nil || s.db == nil {
		return cid.Undef, fmt.Errorf("sqlstore: block store is not configured")
	}
	addr, err := codec.Address([]byte(jwt))
	if err != nil {
		return cid.Undef, err
	}
	record := &authTokenRecord{Addr: addr.String(), JWT: jwt, CreatedAt: time.Now().UTC()}
	_, err = s.db.NewInsert().Model(record).On("CONFLICT (addr) DO NOTHING").Exec(ctx)
	if err != nil {
		return cid.Undef, err
	}
	return addr, nil
}
