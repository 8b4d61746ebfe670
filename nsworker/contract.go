package nsworker

import (
	"context"
	"fmt"
	"time"

	"github.com/ipfs/go-cid"

	"github.com/glyphgrid/sphere/linkrecord"
)

// Job-ID constants for the four nsworker job kinds, used as the wire
// identifier when a job crosses a durable queue boundary (spec.md §4.G).
const (
	JobIDPublish            = "nsworker.publish"
	JobIDResolveAll         = "nsworker.resolve_all"
	JobIDResolveSince       = "nsworker.resolve_since"
	JobIDResolveImmediately = "nsworker.resolve_immediately"
)

// ExecutionMessage is the wire form of a Job, for hand-off through a
// durable queue (adapters/gojob bridges this to go-job's own
// ExecutionMessage). SigningKey and Reply are process-local concerns and
// never cross this boundary: a rehydrated ResolveAll/ResolveSince job can only
// perform read-only work unless a signing key is independently available
// to whichever worker dequeues it (spec.md §6 "the gateway signs served
// spheres with a key it alone holds; queue messages are never key-bearing").
type ExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

// NackOptions mirrors core/contracts.go's JobNackOptions, generalized to
// nsworker's own queue contract.
type NackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

// Enqueuer, Delivery, Dequeuer, and WorkerHook give nsworker the same
// durable-queue seam the teacher's core.Job* contracts provide, so
// adapters/gojob can bridge to the real `go-job` queue/worker engine
// without nsworker importing it directly.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg *ExecutionMessage) error
}

type Delivery interface {
	Message() *ExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts NackOptions) error
}

type Dequeuer interface {
	Dequeue(ctx context.Context) (Delivery, error)
}

type WorkerHook interface {
	OnStart(ctx context.Context, event WorkerEvent)
	OnSuccess(ctx context.Context, event WorkerEvent)
	OnFailure(ctx context.Context, event WorkerEvent)
	OnRetry(ctx context.Context, event WorkerEvent)
}

type WorkerEvent struct {
	Message   *ExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// ToExecutionMessage renders j's non-secret fields as a durable queue
// message. Its signing key and reply channel are dropped, per
// ExecutionMessage's doc.
func ToExecutionMessage(j Job) (*ExecutionMessage, error) {
	params := map[string]any{}
	jobID := ""
	switch j.Kind {
	case KindPublish:
		jobID = JobIDPublish
		encoded, err := j.Record.Token.Encode()
		if err != nil {
			return nil, err
		}
		params["sphere_addr"] = j.SphereAddr.String()
		params["record"] = encoded
		params["enforce_expiry"] = j.EnforceExpiry
	case KindResolveAll:
		jobID = JobIDResolveAll
		params["sphere_addr"] = j.SphereAddr.String()
	case KindResolveSince:
		jobID = JobIDResolveSince
		params["sphere_addr"] = j.SphereAddr.String()
		if j.Since != nil {
			params["since"] = j.Since.String()
		}
	case KindResolveImmediately:
		jobID = JobIDResolveImmediately
		params["name"] = j.Name
	default:
		return nil, fmt.Errorf("nsworker: unknown job kind %v", j.Kind)
	}
	return &ExecutionMessage{JobID: jobID, Parameters: params}, nil
}

// FromExecutionMessage reconstructs a Job from a durable queue message.
// The result never carries a SigningKey or Reply; a caller that needs to
// mutate a served sphere must attach a SigningKey it holds locally before
// re-enqueueing the result in-process.
func FromExecutionMessage(msg *ExecutionMessage) (Job, error) {
	if msg == nil {
		return Job{}, fmt.Errorf("nsworker: execution message is nil")
	}
	switch msg.JobID {
	case JobIDPublish:
		addr, err := parseStringParam(msg.Parameters, "sphere_addr")
		if err != nil {
			return Job{}, err
		}
		sphereAddr, err := cid.Decode(addr)
		if err != nil {
			return Job{}, fmt.Errorf("nsworker: malformed sphere_addr: %w", err)
		}
		encoded, err := parseStringParam(msg.Parameters, "record")
		if err != nil {
			return Job{}, err
		}
		record, err := linkrecord.Parse(encoded)
		if err != nil {
			return Job{}, fmt.Errorf("nsworker: malformed record: %w", err)
		}
		enforceExpiry, _ := msg.Parameters["enforce_expiry"].(bool)
		return Job{Kind: KindPublish, SphereAddr: sphereAddr, Record: record, EnforceExpiry: enforceExpiry}, nil
	case JobIDResolveAll:
		addr, err := parseStringParam(msg.Parameters, "sphere_addr")
		if err != nil {
			return Job{}, err
		}
		sphereAddr, err := cid.Decode(addr)
		if err != nil {
			return Job{}, fmt.Errorf("nsworker: malformed sphere_addr: %w", err)
		}
		return Job{Kind: KindResolveAll, SphereAddr: sphereAddr}, nil
	case JobIDResolveSince:
		addr, err := parseStringParam(msg.Parameters, "sphere_addr")
		if err != nil {
			return Job{}, err
		}
		sphereAddr, err := cid.Decode(addr)
		if err != nil {
			return Job{}, fmt.Errorf("nsworker: malformed sphere_addr: %w", err)
		}
		job := Job{Kind: KindResolveSince, SphereAddr: sphereAddr}
		if since, ok := msg.Parameters["since"].(string); ok && since != "" {
			sinceAddr, err := cid.Decode(since)
			if err != nil {
				return Job{}, fmt.Errorf("nsworker: malformed since: %w", err)
			}
			job.Since = &sinceAddr
		}
		return job, nil
	case JobIDResolveImmediately:
		name, err := parseStringParam(msg.Parameters, "name")
		if err != nil {
			return Job{}, err
		}
		return Job{Kind: KindResolveImmediately, Name: name}, nil
	default:
		return Job{}, fmt.Errorf("nsworker: unknown job id %q", msg.JobID)
	}
}

func parseStringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("nsworker: missing parameter %q", key)
	}
	return v, nil
}
