package replication

import (
	"context"
	"sync"

	"github.com/ipfs/go-cid"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/glyphgrid/sphere/block"
	"github.com/glyphgrid/sphere/sphere"
)

// blockStreamDepth bounds how many tapped-but-not-yet-forwarded blocks may
// queue up before a tap write blocks its producer (spec.md §4.H).
const blockStreamDepth = 64

// BlockStreamItem is a single block a replication traversal touched, or a
// terminal error. Err is only ever set on the final item.
type BlockStreamItem struct {
	Addr  cid.Cid
	Bytes []byte
	Err   error
}

// BlockStream walks every block reachable from memoVersion — the memo
// itself, and, if it is a sphere revision, its body, authority subgraph,
// address-book (plus each identity's link-record token), and content map
// (plus each linked content memo and its body) — and emits each one
// exactly once as it is read. The channel closes after the final item (which carries a
// non-nil Err if the walk failed).
func BlockStream(ctx context.Context, store block.Store, memoVersion cid.Cid, logger glog.Logger) <-chan BlockStreamItem {
	out := make(chan BlockStreamItem)
	go func() {
		defer close(out)

		tapCh := make(chan blockItem, blockStreamDepth)
		tap := newTapStore(store, tapCh)

		walkDone := make(chan error, 1)
		go func() {
			walkDone <- walkMemo(ctx, tap, memoVersion, logger)
		}()

		forwardDone := make(chan struct{})
		go func() {
			defer close(forwardDone)
			// Identical blocks (e.g. two empty versioned maps) share one
			// address and would otherwise be read, and emitted, twice.
			forwarded := map[cid.Cid]struct{}{}
			for item := range tapCh {
				if _, dup := forwarded[item.Addr]; dup {
					continue
				}
				forwarded[item.Addr] = struct{}{}
				select {
				case out <- BlockStreamItem{Addr: item.Addr, Bytes: item.Bytes}:
				case <-ctx.Done():
					return
				}
			}
		}()

		err := <-walkDone
		close(tapCh)
		<-forwardDone

		if err != nil {
			select {
			case out <- BlockStreamItem{Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return out
}

// walkMemo loads memoVersion through tap (so the memo block itself is
// emitted) and, for a sphere revision, loads its authority, address-book
// and content subgraph roots, then fetches their out-of-line blocks on two
// concurrent goroutines. Our versioned maps persist every live entry in
// one content-addressed block, so loading a subgraph's root already
// emits its full entry set; the only additional reads a walk needs are
// the out-of-line blocks a map entry merely references (a link-record
// token, a linked content memo and its body).
func walkMemo(ctx context.Context, tap block.Store, memoVersion cid.Cid, logger glog.Logger) error {
	memo, err := sphere.LoadMemo(ctx, tap, memoVersion)
	if err != nil {
		return err
	}

	contentType, _ := memo.Headers.First(sphere.HeaderContentType)
	switch contentType {
	case sphere.ContentTypeSphere:
		return walkSphereBody(ctx, tap, memo.Body, logger)
	case "":
		return nil
	default:
		// Raw content memo: its body is the content bytes themselves.
		_, _, err := tap.Get(ctx, memo.Body)
		return err
	}
}

func walkSphereBody(ctx context.Context, tap block.Store, bodyAddr cid.Cid, logger glog.Logger) error {
	body, err := sphere.LoadBody(ctx, tap, bodyAddr)
	if err != nil {
		return err
	}

	authority, err := sphere.LoadAuthority(ctx, tap, body.Authority)
	if err != nil {
		return err
	}
	// Delegations/revocations are fully present in the one authority-
	// subgraph block pair LoadDelegations/LoadRevocations just read; our
	// flat versioned-map encoding has no further nested blocks to walk.
	if _, _, err := sphere.LoadDelegations(ctx, tap, authority); err != nil {
		return err
	}
	if _, _, err := sphere.LoadRevocations(ctx, tap, authority); err != nil {
		return err
	}

	addressBook, _, err := sphere.LoadAddressBook(ctx, tap, body.AddressBook)
	if err != nil {
		return err
	}
	content, _, err := sphere.LoadContent(ctx, tap, body.Content)
	if err != nil {
		return err
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	record := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, entry := range addressBook.Stream() {
			if entry.Value.LinkRecord == nil {
				continue
			}
			if _, _, err := tap.GetToken(ctx, *entry.Value.LinkRecord); err != nil {
				logger.Warn("replication: failed to fetch link-record token", "petname", entry.Key, "error", err)
				record(err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for _, entry := range content.Stream() {
			if err := walkMemo(ctx, tap, entry.Value, logger); err != nil {
				logger.Warn("replication: failed to fetch content memo", "slug", entry.Key, "error", err)
				record(err)
				return
			}
		}
	}()
	wg.Wait()

	return firstErr
}
