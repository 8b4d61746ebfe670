package gojob

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glyphgrid/sphere/nsworker"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

func TestMessageMappingRoundTrip(t *testing.T) {
	original := &nsworker.ExecutionMessage{
		JobID:          nsworker.JobIDResolveAll,
		Parameters:     map[string]any{"sphere_addr": "bafy..."},
		IdempotencyKey: "idem-1",
		DedupPolicy:    "drop",
	}

	converted := ToExecutionMessage(original)
	if converted == nil {
		t.Fatalf("expected converted message")
	}
	roundTrip := FromExecutionMessage(converted)
	if roundTrip.JobID != original.JobID {
		t.Fatalf("expected job id %q, got %q", original.JobID, roundTrip.JobID)
	}
	if roundTrip.IdempotencyKey != original.IdempotencyKey {
		t.Fatalf("expected idempotency key %q, got %q", original.IdempotencyKey, roundTrip.IdempotencyKey)
	}
	if roundTrip.DedupPolicy != original.DedupPolicy {
		t.Fatalf("expected dedup policy %q, got %q", original.DedupPolicy, roundTrip.DedupPolicy)
	}
	if roundTrip.Parameters["sphere_addr"] != "bafy..." {
		t.Fatalf("expected parameters to survive mapping")
	}
}

func TestEnqueueAndDequeueAdapters(t *testing.T) {
	ctx := context.Background()
	enqueuer := &stubQueueEnqueuer{}
	enqueueAdapter := NewEnqueuerAdapter(enqueuer)

	msg := &nsworker.ExecutionMessage{
		JobID:          nsworker.JobIDResolveImmediately,
		Parameters:     map[string]any{"name": "did:key:abc"},
		IdempotencyKey: "idem-resolve",
		DedupPolicy:    "merge",
	}
	if err := enqueueAdapter.Enqueue(ctx, msg); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if enqueuer.last == nil || enqueuer.last.JobID != nsworker.JobIDResolveImmediately {
		t.Fatalf("expected mapped go-job message")
	}

	dequeuer := &stubQueueDequeuer{delivery: &stubQueueDelivery{msg: enqueuer.last}}
	dequeueAdapter := NewDequeuerAdapter(dequeuer, RetryPolicy{})
	delivery, err := dequeueAdapter.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	got := delivery.Message()
	if got == nil || got.JobID != nsworker.JobIDResolveImmediately {
		t.Fatalf("expected mapped nsworker message")
	}
	if err := delivery.Ack(ctx); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if !dequeuer.delivery.(*stubQueueDelivery).acked {
		t.Fatalf("expected ack on underlying delivery")
	}
}

func TestNackRetryPolicyBoundaries(t *testing.T) {
	ctx := context.Background()
	rawDelivery := &stubQueueDelivery{
		msg: &job.ExecutionMessage{
			JobID: nsworker.JobIDResolveSince,
		},
	}
	adapter := NewDeliveryAdapter(rawDelivery, RetryPolicy{
		MaxAttempts:     3,
		MaxDelay:        10 * time.Second,
		DeadLetterOnMax: true,
	})

	if err := adapter.NackForAttempt(ctx, nsworker.NackOptions{
		Delay:   30 * time.Second,
		Requeue: true,
		Reason:  "transient",
	}, 1); err != nil {
		t.Fatalf("nack attempt 1: %v", err)
	}
	if rawDelivery.nackOpts.Delay != 10*time.Second {
		t.Fatalf("expected delay to be bounded, got %s", rawDelivery.nackOpts.Delay)
	}
	if !rawDelivery.nackOpts.Requeue {
		t.Fatalf("expected message to be requeued before max attempts")
	}

	if err := adapter.NackForAttempt(ctx, nsworker.NackOptions{
		Delay:   time.Second,
		Requeue: true,
		Reason:  "still failing",
	}, 3); err != nil {
		t.Fatalf("nack max attempt: %v", err)
	}
	if rawDelivery.nackOpts.Requeue {
		t.Fatalf("expected no requeue once max attempts is reached")
	}
	if !rawDelivery.nackOpts.DeadLetter {
		t.Fatalf("expected dead letter on max attempts")
	}
}

func TestWorkerHookAdapterEventMapping(t *testing.T) {
	now := time.Now().UTC().Add(-time.Second)
	hook := &capturingHook{}
	adapter := NewWorkerHookAdapter(hook)

	evt := worker.Event{
		Message: &job.ExecutionMessage{
			JobID:          nsworker.JobIDPublish,
			IdempotencyKey: "idem-pub",
		},
		Attempt:   2,
		Delay:     5 * time.Second,
		Err:       errors.New("retry"),
		StartedAt: now,
		Duration:  250 * time.Millisecond,
	}

	adapter.OnRetry(context.Background(), evt)
	if hook.last.Message == nil {
		t.Fatalf("expected worker message mapping")
	}
	if hook.last.Message.JobID != nsworker.JobIDPublish {
		t.Fatalf("expected job id mapping, got %q", hook.last.Message.JobID)
	}
	if hook.last.Attempt != 2 {
		t.Fatalf("expected attempt 2, got %d", hook.last.Attempt)
	}
	if hook.last.Delay != 5*time.Second {
		t.Fatalf("expected delay 5s, got %s", hook.last.Delay)
	}
	if hook.last.Duration != 250*time.Millisecond {
		t.Fatalf("expected duration mapping")
	}
	if hook.last.StartedAt.IsZero() {
		t.Fatalf("expected started_at mapping")
	}
	if hook.last.Err == nil || hook.last.Err.Error() != "retry" {
		t.Fatalf("expected error mapping")
	}
}

type stubQueueEnqueuer struct {
	last *job.ExecutionMessage
}

func (s *stubQueueEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	s.last = msg
	return nil
}

type stubQueueDequeuer struct {
	delivery queue.Delivery
}

func (s *stubQueueDequeuer) Dequeue(context.Context) (queue.Delivery, error) {
	return s.delivery, nil
}

type stubQueueDelivery struct {
	msg      *job.ExecutionMessage
	acked    bool
	nackOpts queue.NackOptions
}

func (s *stubQueueDelivery) Message() *job.ExecutionMessage {
	return s.msg
}

func (s *stubQueueDelivery) Ack(context.Context) error {
	s.acked = true
	return nil
}

func (s *stubQueueDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	s.nackOpts = opts
	return nil
}

type capturingHook struct {
	last nsworker.WorkerEvent
}

func (h *capturingHook) OnStart(context.Context, nsworker.WorkerEvent)   {}
func (h *capturingHook) OnSuccess(context.Context, nsworker.WorkerEvent) {}
func (h *capturingHook) OnFailure(context.Context, nsworker.WorkerEvent) {}
func (h *capturingHook) OnRetry(_ context.Context, event nsworker.WorkerEvent) {
	h.last = event
}
