package nsworker

import (
	"context"
	"crypto/ed25519"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/robfig/cron/v3"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/glyphgrid/sphere/linkrecord"
	"github.com/glyphgrid/sphere/sphereview"
)

// publishSchedule and resolveSchedule match spec.md §4.G's periodic
// producer cadence: publish every 5 minutes, resolve every 60 seconds.
const (
	publishSchedule = "@every 5m"
	resolveSchedule = "@every 1m"
)

// managedSphere is one gateway-served sphere the scheduler sweeps.
type managedSphere struct {
	addr       cid.Cid
	signingKey ed25519.PrivateKey
}

// Scheduler owns the cron triggers that periodically enqueue ResolveAll
// and Publish jobs onto a Worker, for every sphere the gateway currently
// serves
// (spec.md §4.G "periodic producer tasks").
type Scheduler struct {
	mu       sync.Mutex
	worker   *Worker
	resolver *CachingResolver
	logger   glog.Logger
	spheres  map[string]*managedSphere
	cron     *cron.Cron
}

// NewScheduler constructs a scheduler driving worker. resolver, if
// non-nil, is reset at the start of every resolve sweep cycle so stale
// negatives never outlive a cycle.
func NewScheduler(worker *Worker, resolver *CachingResolver, logger glog.Logger) *Scheduler {
	return &Scheduler{
		worker:   worker,
		resolver: resolver,
		logger:   logger,
		spheres:  map[string]*managedSphere{},
		cron:     cron.New(),
	}
}

// Serve registers addr (keyed by its memo address string) as a sphere the
// scheduler should sweep going forward.
func (s *Scheduler) Serve(addr cid.Cid, signingKey ed25519.PrivateKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spheres[addr.String()] = &managedSphere{addr: addr, signingKey: signingKey}
}

// Unserve stops sweeping addr.
func (s *Scheduler) Unserve(addr cid.Cid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.spheres, addr.String())
}

// Start registers the periodic triggers and begins running them. Returns
// a stop function.
func (s *Scheduler) Start(ctx context.Context) (func(), error) {
	if _, err := s.cron.AddFunc(resolveSchedule, func() { s.runResolveSweep(ctx) }); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc(publishSchedule, func() { s.runRepublish(ctx) }); err != nil {
		return nil, err
	}
	s.cron.Start()
	return func() { s.cron.Stop() }, nil
}

func (s *Scheduler) runResolveSweep(ctx context.Context) {
	if s.resolver != nil {
		s.resolver.Reset()
	}
	s.mu.Lock()
	targets := make([]*managedSphere, 0, len(s.spheres))
	for _, sph := range s.spheres {
		targets = append(targets, sph)
	}
	s.mu.Unlock()

	for _, sph := range targets {
		s.worker.Enqueue(Job{Kind: KindResolveAll, SphereAddr: sph.addr, SigningKey: sph.signingKey})
	}
}

// runRepublish re-publishes every managed sphere's currently-addressed
// link-record, refreshing its name-resolver TTL before it lapses
// (spec.md §4.G "Publish is also driven periodically, independent of the
// request that first produced a link-record").
func (s *Scheduler) runRepublish(ctx context.Context) {
	s.mu.Lock()
	targets := make([]*managedSphere, 0, len(s.spheres))
	for _, sph := range s.spheres {
		targets = append(targets, sph)
	}
	s.mu.Unlock()

	for _, sph := range targets {
		view, err := sphereview.Open(ctx, s.worker.store, sph.addr, s.logger)
		if err != nil {
			s.logger.Warn("nsworker: republish could not open sphere", "sphere", sph.addr.String(), "error", err)
			continue
		}
		encoded, ok, err := s.worker.refs.Get(ctx, publishedRefKey(view.Identity()))
		if err != nil || !ok {
			continue
		}
		record, err := linkrecord.Parse(encoded)
		if err != nil {
			s.logger.Warn("nsworker: republish could not parse stored record", "identity", view.Identity(), "error", err)
			continue
		}
		s.worker.Enqueue(Job{Kind: KindPublish, SphereAddr: sph.addr, Record: record})
	}
}
