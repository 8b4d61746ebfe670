package nsworker

import (
	"context"
	"time"

	"github.com/ipfs/go-cid"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/glyphgrid/sphere/block"
	"github.com/glyphgrid/sphere/linkrecord"
	"github.com/glyphgrid/sphere/sphere"
	"github.com/glyphgrid/sphere/sphereview"
	"github.com/glyphgrid/sphere/versionedmap"
)

// Worker is the gateway's single long-lived name-system job loop
// (spec.md §4.G "exactly one worker processes jobs, strictly in arrival
// order; this bounds resolver load regardless of request concurrency").
type Worker struct {
	store    block.Store
	resolver *ReconnectingClient[NameResolver]
	refs     RefStore
	logger   glog.Logger
	jobs     *queue
	done     chan struct{}
}

// NewWorker constructs a worker. resolverFactory is invoked lazily (and
// again after any resolver call fails) to obtain the active NameResolver,
// matching the ReconnectingClient try-or-reset contract.
func NewWorker(store block.Store, refs RefStore, resolverFactory func(ctx context.Context) (NameResolver, error), logger glog.Logger) *Worker {
	return &Worker{
		store:    store,
		resolver: NewReconnectingClient(resolverFactory),
		refs:     refs,
		logger:   logger,
		jobs:     newQueue(),
		done:     make(chan struct{}),
	}
}

// Enqueue appends a job to the worker's unbounded queue. Never blocks.
func (w *Worker) Enqueue(j Job) { w.jobs.Push(j) }

// Stop closes the job queue; Run returns once the queue drains.
func (w *Worker) Stop() { w.jobs.Close() }

// Run processes jobs until Stop is called and the queue drains, or ctx
// is canceled. A job's own error is logged and never crashes the loop
// (spec.md §4.G "a failed job never blocks subsequent jobs").
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	for {
		if ctx.Err() != nil {
			return
		}
		job, ok := w.jobs.Pop()
		if !ok {
			return
		}
		if err := w.dispatch(ctx, job); err != nil {
			w.logger.Error("nsworker: job failed", "kind", job.Kind, "error", err)
		}
	}
}

// Done reports whether Run has returned.
func (w *Worker) Done() <-chan struct{} { return w.done }

func (w *Worker) dispatch(ctx context.Context, job Job) error {
	switch job.Kind {
	case KindPublish:
		return w.handlePublish(ctx, job)
	case KindResolveAll:
		return w.handleResolveSweep(ctx, job, nil)
	case KindResolveSince:
		return w.handleResolveSweep(ctx, job, job.Since)
	case KindResolveImmediately:
		w.handleResolveImmediately(ctx, job)
		return nil
	default:
		return nil
	}
}

func (w *Worker) handlePublish(ctx context.Context, job Job) error {
	if job.EnforceExpiry && !job.Record.HasPublishableTimeframe(time.Now()) {
		w.logger.Warn("nsworker: skipping publish of unpublishable record", "identity", job.Record.SphereIdentity())
		return nil
	}
	identity := job.Record.SphereIdentity()
	encoded, err := job.Record.Token.Encode()
	if err != nil {
		return err
	}
	if err := w.refs.Put(ctx, publishedRefKey(identity), encoded); err != nil {
		return err
	}
	return w.resolver.Invoke(ctx, func(r NameResolver) error {
		return r.Publish(ctx, job.Record)
	})
}

// handleResolveSweep implements both ResolveAll (since == nil) and
// ResolveSince (resolve only entries whose identity record changed since
// a prior revision). When job.SigningKey is set, adopted petnames are
// committed as a new memo; otherwise the sweep only updates resolver-side
// bookkeeping and the ref store (spec.md §4.G "ResolveAll"/"ResolveSince").
func (w *Worker) handleResolveSweep(ctx context.Context, job Job, since *cid.Cid) error {
	view, err := sphereview.Open(ctx, w.store, job.SphereAddr, w.logger)
	if err != nil {
		return err
	}
	addressBook, err := view.AddressBook(ctx)
	if err != nil {
		return err
	}

	var priorAddrs map[string]struct{}
	if since != nil {
		priorView, err := sphereview.Open(ctx, w.store, *since, w.logger)
		if err == nil {
			priorBook, err := priorView.AddressBook(ctx)
			if err == nil {
				priorAddrs = changedSincePetnames(priorBook, addressBook)
			}
		}
	}

	changed := false
	for _, entry := range addressBook.Stream() {
		petname, record := entry.Key, entry.Value
		if priorAddrs != nil {
			if _, dirty := priorAddrs[petname]; !dirty {
				continue
			}
		}
		didChange, err := w.resolveOne(ctx, view, petname, record)
		if err != nil {
			w.logger.Warn("nsworker: resolve failed", "petname", petname, "error", err)
			continue
		}
		changed = changed || didChange
	}

	if changed && job.SigningKey != nil {
		if _, err := view.Commit(ctx, job.SigningKey, nil); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) resolveOne(ctx context.Context, view *sphereview.Context, petname string, record sphere.IdentityRecord) (bool, error) {
	var resolved linkrecord.LinkRecord
	var found bool
	err := w.resolver.Invoke(ctx, func(r NameResolver) error {
		var err error
		resolved, found, err = r.Resolve(ctx, record.DID)
		return err
	})
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	if err := resolved.Validate(ctx, w.store, w.logger); err != nil {
		w.logger.Warn("nsworker: discarding unvalidated resolved record", "identity", record.DID, "error", err)
		return false, nil
	}

	previousEncoded, hasPrevious, err := w.refs.Get(ctx, resolvedRefKey(record.DID))
	if err == nil && hasPrevious {
		if previous, perr := linkrecord.Parse(previousEncoded); perr == nil && linkrecord.Equal(previous, resolved) {
			return false, nil
		}
	}

	encoded, err := resolved.Token.Encode()
	if err != nil {
		return false, err
	}
	if err := w.refs.Put(ctx, resolvedRefKey(record.DID), encoded); err != nil {
		return false, err
	}
	if err := view.AdoptPetname(ctx, petname, resolved); err != nil {
		return false, err
	}
	return true, nil
}

func (w *Worker) handleResolveImmediately(ctx context.Context, job Job) {
	var result ResolveImmediateResult
	result.Err = w.resolver.Invoke(ctx, func(r NameResolver) error {
		var err error
		result.Record, result.Found, err = r.Resolve(ctx, job.Name)
		return err
	})
	if job.Reply != nil {
		job.Reply <- result
	}
}

// changedSincePetnames reports which petnames' identity record differs
// between a prior and current address-book snapshot (spec.md §4.G
// "ResolveSince skips entries unchanged since the reference revision").
func changedSincePetnames(prior, current versionedmap.Map[sphere.IdentityRecord]) map[string]struct{} {
	out := map[string]struct{}{}
	for _, entry := range current.Stream() {
		priorRecord, ok := prior.Get(entry.Key)
		if !ok || !identityRecordsEqual(priorRecord, entry.Value) {
			out[entry.Key] = struct{}{}
		}
	}
	return out
}

func identityRecordsEqual(a, b sphere.IdentityRecord) bool {
	if a.DID != b.DID {
		return false
	}
	if (a.LinkRecord == nil) != (b.LinkRecord == nil) {
		return false
	}
	if a.LinkRecord != nil && !a.LinkRecord.Equals(*b.LinkRecord) {
		return false
	}
	return true
}
