package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/glyphgrid/sphere/nsworker"
)

// RefStore is a bun-backed implementation of nsworker.RefStore over the
// kv_refs table (spec.md §6 "a key-value store for small named
// references").
type RefStore struct {
	db *bun.DB
}

var _ nsworker.RefStore = (*RefStore)(nil)

// NewRefStore wraps db. EnsureSchema must be called once (or the table
// created by a migration) before use.
func NewRefStore(db *bun.DB) (*RefStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &RefStore{db: db}, nil
}

// EnsureSchema creates the kv_refs table if it doesn't already exist.
func (s *RefStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: ref store is not configured")
	}
	if _, err := s.db.NewCreateTable().Model((*refRecord)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: create kv_refs: %w", err)
	}
	return nil
}

func (s *RefStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, fmt.Errorf("sqlstore: ref store is not configured")
	}
	record := new(refRecord)
	err := s.db.NewSelect().Model(record).Where("\"key\" = ?", key).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return record.Value, true, nil
}

func (s *RefStore) Put(ctx context.Context, key, value string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: ref store is not configured")
	}
	record := &refRecord{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (\"key\") DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}
