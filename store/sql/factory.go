package sqlstore

import (
	"context"
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

// RepositoryFactory wires the bun-backed stores this module's domain
// actually needs: the content-addressed block store and the small
// named-reference store (spec.md §6).
type RepositoryFactory struct {
	db *bun.DB

	blockStore *BlockStore
	refStore   *RefStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (*RepositoryFactory, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.blockStore != nil && f.refStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

// BlockStore returns the bun-backed block.Store over content_blocks/
// auth_tokens (spec.md §4.A, §6).
func (f *RepositoryFactory) BlockStore() *BlockStore {
	if f == nil {
		return nil
	}
	return f.blockStore
}

// RefStore returns the bun-backed nsworker.RefStore over kv_refs.
func (f *RepositoryFactory) RefStore() *RefStore {
	if f == nil {
		return nil
	}
	return f.refStore
}

func (f *RepositoryFactory) initStores() error {
	blockStore, err := NewBlockStore(f.db)
	if err != nil {
		return err
	}
	if err := blockStore.EnsureSchema(context.Background()); err != nil {
		return err
	}
	f.blockStore = blockStore

	refStore, err := NewRefStore(f.db)
	if err != nil {
		return err
	}
	if err := refStore.EnsureSchema(context.Background()); err != nil {
		return err
	}
	f.refStore = refStore

	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
