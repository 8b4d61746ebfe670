package nsworker

import (
	"crypto/ed25519"
	"sync"

	"github.com/ipfs/go-cid"

	"github.com/glyphgrid/sphere/linkrecord"
)

// Kind discriminates the four job shapes spec.md §4.G names.
type Kind int

const (
	// KindPublish publishes a link-record to the name resolver and
	// records it in the ref store, honoring EnforceExpiry if set.
	KindPublish Kind = iota
	// KindResolveAll resolves every petname in a sphere's address-book.
	KindResolveAll
	// KindResolveSince resolves petnames whose identity record changed
	// since a given prior revision, skipping ones unchanged since then.
	KindResolveSince
	// KindResolveImmediately resolves a single named identity out of
	// band and replies on a channel, bypassing the periodic sweep.
	KindResolveImmediately
)

// Job is the worker's unit of work. Exactly the fields relevant to Kind
// are set; the rest are zero.
type Job struct {
	Kind Kind

	// SphereAddr is the memo address of the sphere context this job
	// operates against. Required for all kinds except ResolveImmediately.
	SphereAddr cid.Cid

	// SigningKey signs the new memo a ResolveAll/ResolveSince commit
	// produces, or is nil if the job must not mutate (read-only sweep).
	SigningKey ed25519.PrivateKey

	// Record and EnforceExpiry are set for KindPublish.
	Record        linkrecord.LinkRecord
	EnforceExpiry bool

	// Since is set for KindResolveSince: the address-book as of a prior
	// revision, used to skip identities unchanged since then.
	Since *cid.Cid

	// Name and Reply are set for KindResolveImmediately.
	Name  string
	Reply chan ResolveImmediateResult
}

// ResolveImmediateResult answers a KindResolveImmediately job.
type ResolveImmediateResult struct {
	Record linkrecord.LinkRecord
	Found  bool
	Err    error
}

// queue is an unbounded FIFO of jobs: the worker never applies
// backpressure to producers (spec.md §4.G "the job channel is unbounded
// by design; producers never block").
type queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Job
	closed bool
}

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *queue) Push(j Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, j)
	q.cond.Signal()
}

// Pop blocks until a job is available or the queue is closed, in which
// case ok is false.
func (q *queue) Pop() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return Job{}, false
	}
	j := q.items[0]
	q.items = q.items[1:]
	return j, true
}

func (q *queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
