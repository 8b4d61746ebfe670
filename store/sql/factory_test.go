package sqlstore_test

import (
	"context"
	"testing"

	sqlstore "github.com/glyphgrid/sphere/store/sql"
)

func TestRepositoryFactory_BuildStoresWiresBlockAndRefStores(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteBunDB(t)

	factory, err := sqlstore.NewRepositoryFactoryFromDB(db)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	if factory.BlockStore() == nil {
		t.Fatalf("expected a wired block store")
	}
	if factory.RefStore() == nil {
		t.Fatalf("expected a wired ref store")
	}

	addr, err := factory.BlockStore().Put(ctx, []byte("via factory"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	got, found, err := factory.BlockStore().Get(ctx, addr)
	if err != nil || !found || string(got) != "via factory" {
		t.Fatalf("got %q found=%v err=%v, want %q", got, found, err, "via factory")
	}
}

func TestRepositoryFactory_BuildStoresIsIdempotent(t *testing.T) {
	db := newSQLiteBunDB(t)
	factory := sqlstore.NewRepositoryFactory()

	if _, err := factory.BuildStores(db); err != nil {
		t.Fatalf("build stores: %v", err)
	}
	first := factory.BlockStore()
	if _, err := factory.BuildStores(db); err != nil {
		t.Fatalf("build stores again: %v", err)
	}
	if factory.BlockStore() != first {
		t.Fatalf("expected a second BuildStores call to reuse the already-wired block store")
	}
}
