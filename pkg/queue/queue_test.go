package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	now := time.Unix(1_700_000_000, 0)
	q := NewWithClock(rdb, func() time.Time { return now })
	return q, mr, &now
}

func TestEnqueueDequeueAck(t *testing.T) {
	q, _, _ := newTestQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, "file-1"); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	job, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue failed: %v", err)
	}
	if job.FileID != "file-1" || job.Attempt != 1 {
		t.Errorf("unexpected job %+v", job)
	}

	if err := q.Ack(ctx, job); err != nil {
		t.Fatalf("ack failed: %v", err)
	}

	pending, processing, delayed, dead, err := q.Depths(ctx)
	if err != nil {
		t.Fatalf("depths failed: %v", err)
	}
	if pending+processing+delayed+dead != 0 {
		t.Errorf("expected empty queue, got %d/%d/%d/%d", pending, processing, delayed, dead)
	}
}

func TestDequeueEmpty(t *testing.T) {
	q, _, _ := newTestQueue(t)
	_, err := q.Dequeue(context.Background())
	if !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty, got %v", err)
	}
}

func TestEnqueueDeduplicates(t *testing.T) {
	q, _, _ := newTestQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, "file-1"); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if err := q.Enqueue(ctx, "file-1"); err != nil {
		t.Fatalf("duplicate enqueue failed: %v", err)
	}

	pending, _, _, _, _ := q.Depths(ctx)
	if pending != 1 {
		t.Errorf("expected 1 pending job, got %d", pending)
	}
}

func TestAckAllowsReenqueue(t *testing.T) {
	q, _, _ := newTestQueue(t)
	ctx := context.Background()

	q.Enqueue(ctx, "file-1")
	job, _ := q.Dequeue(ctx)
	q.Ack(ctx, job)

	if err := q.Enqueue(ctx, "file-1"); err != nil {
		t.Fatalf("re-enqueue failed: %v", err)
	}
	pending, _, _, _, _ := q.Depths(ctx)
	if pending != 1 {
		t.Errorf("expected job re-enqueued, pending = %d", pending)
	}
}

func TestEnqueueFailureDoesNotBlockReenqueue(t *testing.T) {
	q, mr, _ := newTestQueue(t)
	ctx := context.Background()

	mr.SetError("redis is down")
	if err := q.Enqueue(ctx, "file-1"); err == nil {
		t.Fatal("expected enqueue to fail while redis is down")
	}
	mr.SetError("")

	// The failed attempt must not leave a dedup member behind: the dedup
	// mark and the job push are a single atomic write.
	if err := q.Enqueue(ctx, "file-1"); err != nil {
		t.Fatalf("re-enqueue failed: %v", err)
	}
	job, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue failed: %v", err)
	}
	if job.FileID != "file-1" || job.Attempt != 1 {
		t.Errorf("unexpected job %+v", job)
	}
}

func TestStaleClaimReclaimed(t *testing.T) {
	q, _, now := newTestQueue(t)
	ctx := context.Background()

	q.Enqueue(ctx, "file-1")
	if _, err := q.Dequeue(ctx); err != nil {
		t.Fatalf("dequeue failed: %v", err)
	}
	// Worker crashes: neither Ack nor Retry runs.

	if _, err := q.Dequeue(ctx); !errors.Is(err, ErrEmpty) {
		t.Fatalf("claim still fresh, expected ErrEmpty, got %v", err)
	}

	*now = now.Add(DefaultClaimTTL + time.Second)
	job, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue after claim expiry failed: %v", err)
	}
	if job.FileID != "file-1" || job.Attempt != 2 {
		t.Errorf("unexpected reclaimed job %+v", job)
	}
}

func TestStaleClaimExhaustionDeadLetters(t *testing.T) {
	q, _, now := newTestQueue(t)
	ctx := context.Background()

	q.Enqueue(ctx, "file-1")
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		job, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("dequeue for attempt %d failed: %v", attempt, err)
		}
		if job.Attempt != attempt {
			t.Fatalf("expected attempt %d, got %d", attempt, job.Attempt)
		}
		*now = now.Add(DefaultClaimTTL + time.Second)
	}

	// The final claim expired with attempts exhausted.
	if _, err := q.Dequeue(ctx); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty after dead-lettering, got %v", err)
	}
	pending, processing, _, dead, err := q.Depths(ctx)
	if err != nil {
		t.Fatalf("depths failed: %v", err)
	}
	if pending != 0 || processing != 0 || dead != 1 {
		t.Errorf("expected only a dead job, got %d/%d/%d", pending, processing, dead)
	}

	// Dead-lettering clears dedup so the file can be enqueued again.
	if err := q.Enqueue(ctx, "file-1"); err != nil {
		t.Fatalf("re-enqueue after dead-letter failed: %v", err)
	}
}

func TestRetryBackoffSchedule(t *testing.T) {
	q, _, now := newTestQueue(t)
	ctx := context.Background()

	q.Enqueue(ctx, "file-1")
	job, _ := q.Dequeue(ctx)

	rescheduled, err := q.Retry(ctx, job)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if !rescheduled {
		t.Fatal("expected first retry to reschedule")
	}

	// Not due yet: delayed by the 10s backoff.
	if _, err := q.Dequeue(ctx); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty before backoff elapses, got %v", err)
	}

	*now = now.Add(11 * time.Second)
	job2, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue after backoff failed: %v", err)
	}
	if job2.FileID != "file-1" || job2.Attempt != 2 {
		t.Errorf("unexpected retried job %+v", job2)
	}
}

func TestRetryExhaustionDeadLetters(t *testing.T) {
	q, _, now := newTestQueue(t)
	ctx := context.Background()

	q.Enqueue(ctx, "file-1")

	job, _ := q.Dequeue(ctx)
	for attempt := 1; attempt < MaxAttempts; attempt++ {
		rescheduled, err := q.Retry(ctx, job)
		if err != nil {
			t.Fatalf("retry %d failed: %v", attempt, err)
		}
		if !rescheduled {
			t.Fatalf("attempt %d should reschedule", attempt)
		}
		*now = now.Add(2 * time.Minute)
		job, err = q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("dequeue after retry %d failed: %v", attempt, err)
		}
	}

	if job.Attempt != MaxAttempts {
		t.Fatalf("expected final attempt %d, got %d", MaxAttempts, job.Attempt)
	}
	rescheduled, err := q.Retry(ctx, job)
	if err != nil {
		t.Fatalf("final retry failed: %v", err)
	}
	if rescheduled {
		t.Error("exhausted job must not be rescheduled")
	}

	_, _, _, dead, _ := q.Depths(ctx)
	if dead != 1 {
		t.Errorf("expected 1 dead job, got %d", dead)
	}

	// Dead-lettering clears dedup so the file can be enqueued again.
	if err := q.Enqueue(ctx, "file-1"); err != nil {
		t.Fatalf("re-enqueue after dead-letter failed: %v", err)
	}
	pending, _, _, _, _ := q.Depths(ctx)
	if pending != 1 {
		t.Errorf("expected fresh pending job, got %d", pending)
	}
}
