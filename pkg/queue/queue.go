// Package queue implements the durable scan queue on Redis. Jobs are
// deduplicated on file id, delivered at most once at a time, and retried
// with fixed backoffs before landing on a dead-letter list.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/filegate/filegate/internal/logger"
	"github.com/filegate/filegate/internal/telemetry"
)

// Name is the scan queue name, used as the Redis key prefix.
const Name = "scan"

// MaxAttempts bounds deliveries per job before dead-lettering.
const MaxAttempts = 3

// RetryBackoffs holds the delay before each retry. Attempt n (1-based)
// failing schedules the next delivery after RetryBackoffs[n-1].
var RetryBackoffs = []time.Duration{10 * time.Second, 30 * time.Second, 60 * time.Second}

// DefaultClaimTTL bounds how long a dequeued job may sit unacknowledged
// before it is handed back to the pending list. Covers workers that crash
// mid-job and never reach Ack or Retry.
const DefaultClaimTTL = 5 * time.Minute

// ErrEmpty is returned by Dequeue when no job is ready.
var ErrEmpty = errors.New("queue is empty")

// enqueueScript marks the file enqueued and pushes its job in one atomic
// step. Split writes could fail in between and leave a dedup member with no
// job behind it, silently dropping every later enqueue for the file.
var enqueueScript = redis.NewScript(`
if redis.call("SADD", KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call("LPUSH", KEYS[2], ARGV[2])
return 1
`)

// Job is one unit of scan work.
type Job struct {
	FileID  string `json:"file_id"`
	Attempt int    `json:"attempt"`
}

// Queue is a Redis-backed job queue. Multiple worker processes may consume
// it concurrently; a job sits on the processing list while in flight.
type Queue struct {
	rdb      redis.UniversalClient
	now      func() time.Time
	claimTTL time.Duration

	pendingKey    string
	processingKey string
	delayedKey    string
	deadKey       string
	dedupKey      string
	claimsKey     string
}

// New creates the scan queue over the given Redis client.
func New(rdb redis.UniversalClient) *Queue {
	return NewWithClock(rdb, time.Now)
}

// NewWithClock creates a queue with an injectable clock for tests.
func NewWithClock(rdb redis.UniversalClient, now func() time.Time) *Queue {
	return &Queue{
		rdb:           rdb,
		now:           now,
		claimTTL:      DefaultClaimTTL,
		pendingKey:    Name + ":pending",
		processingKey: Name + ":processing",
		delayedKey:    Name + ":delayed",
		deadKey:       Name + ":dead",
		dedupKey:      Name + ":enqueued",
		claimsKey:     Name + ":claims",
	}
}

// Enqueue adds a scan job for the file. A file already enqueued (and not
// yet finished) is not enqueued twice; duplicate requests are dropped.
func (q *Queue) Enqueue(ctx context.Context, fileID string) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanQueueEnqueue,
		trace.WithAttributes(telemetry.QueueName(Name), telemetry.FileID(fileID)))
	defer span.End()

	payload, err := json.Marshal(Job{FileID: fileID, Attempt: 1})
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	added, err := enqueueScript.Run(ctx, q.rdb, []string{q.dedupKey, q.pendingKey}, fileID, payload).Int()
	if err != nil {
		return fmt.Errorf("failed to enqueue job for %s: %w", fileID, err)
	}
	if added == 0 {
		logger.Debug("scan job already enqueued", logger.KeyFileID, fileID, logger.KeyQueue, Name)
	}
	return nil
}

// Dequeue moves one job from pending to the processing list and returns it.
// Returns ErrEmpty when nothing is ready. Callers must follow up with Ack
// or Retry.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	if err := q.promoteDue(ctx); err != nil {
		return nil, err
	}
	if err := q.reclaimStale(ctx); err != nil {
		return nil, err
	}

	payload, err := q.rdb.LMove(ctx, q.pendingKey, q.processingKey, "right", "left").Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		// Drop the malformed payload so it cannot wedge the queue.
		q.rdb.LRem(ctx, q.processingKey, 1, payload)
		return nil, fmt.Errorf("malformed job payload %q: %w", payload, err)
	}

	deadline := float64(q.now().Add(q.claimTTL).Unix())
	if err := q.rdb.ZAdd(ctx, q.claimsKey, redis.Z{Score: deadline, Member: payload}).Err(); err != nil {
		return nil, fmt.Errorf("failed to record claim for %s: %w", job.FileID, err)
	}
	return &job, nil
}

// Ack removes a completed job from the processing list and clears its dedup
// marker so the file can be enqueued again later.
func (q *Queue) Ack(ctx context.Context, job *Job) error {
	if err := q.removeProcessing(ctx, job); err != nil {
		return err
	}
	return q.rdb.SRem(ctx, q.dedupKey, job.FileID).Err()
}

// Retry reschedules a failed job with the attempt's backoff, or moves it to
// the dead-letter list once attempts are exhausted. Returns true when the
// job was rescheduled.
func (q *Queue) Retry(ctx context.Context, job *Job) (bool, error) {
	if err := q.removeProcessing(ctx, job); err != nil {
		return false, err
	}

	if job.Attempt >= MaxAttempts {
		payload, _ := json.Marshal(job)
		if err := q.rdb.LPush(ctx, q.deadKey, payload).Err(); err != nil {
			return false, fmt.Errorf("failed to dead-letter job for %s: %w", job.FileID, err)
		}
		if err := q.rdb.SRem(ctx, q.dedupKey, job.FileID).Err(); err != nil {
			return false, err
		}
		logger.Warn("scan job dead-lettered",
			logger.KeyFileID, job.FileID,
			logger.KeyAttempt, job.Attempt,
			logger.KeyQueue, Name,
		)
		return false, nil
	}

	backoff := RetryBackoffs[len(RetryBackoffs)-1]
	if job.Attempt-1 < len(RetryBackoffs) {
		backoff = RetryBackoffs[job.Attempt-1]
	}
	next := Job{FileID: job.FileID, Attempt: job.Attempt + 1}
	payload, err := json.Marshal(next)
	if err != nil {
		return false, fmt.Errorf("failed to encode job: %w", err)
	}
	due := float64(q.now().Add(backoff).Unix())
	if err := q.rdb.ZAdd(ctx, q.delayedKey, redis.Z{Score: due, Member: payload}).Err(); err != nil {
		return false, fmt.Errorf("failed to schedule retry for %s: %w", job.FileID, err)
	}
	return true, nil
}

// promoteDue moves delayed jobs whose backoff has elapsed onto the pending
// list.
func (q *Queue) promoteDue(ctx context.Context) error {
	nowScore := fmt.Sprintf("%d", q.now().Unix())
	due, err := q.rdb.ZRangeByScore(ctx, q.delayedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: nowScore,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to read delayed jobs: %w", err)
	}
	for _, payload := range due {
		removed, err := q.rdb.ZRem(ctx, q.delayedKey, payload).Result()
		if err != nil {
			return err
		}
		// A concurrent worker may have promoted it first.
		if removed == 0 {
			continue
		}
		if err := q.rdb.LPush(ctx, q.pendingKey, payload).Err(); err != nil {
			return fmt.Errorf("failed to promote delayed job: %w", err)
		}
	}
	return nil
}

func (q *Queue) removeProcessing(ctx context.Context, job *Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.rdb.LRem(ctx, q.processingKey, 1, payload).Err(); err != nil {
		return fmt.Errorf("failed to remove job from processing: %w", err)
	}
	if err := q.rdb.ZRem(ctx, q.claimsKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to release claim: %w", err)
	}
	return nil
}

// reclaimStale returns jobs whose claim expired to the pending list with the
// attempt bumped, or dead-letters them once attempts are exhausted. A worker
// that crashed mid-job would otherwise lose its delivery permanently.
func (q *Queue) reclaimStale(ctx context.Context) error {
	nowScore := fmt.Sprintf("%d", q.now().Unix())
	stale, err := q.rdb.ZRangeByScore(ctx, q.claimsKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: nowScore,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to read stale claims: %w", err)
	}
	for _, payload := range stale {
		removed, err := q.rdb.ZRem(ctx, q.claimsKey, payload).Result()
		if err != nil {
			return err
		}
		// A concurrent worker may have reclaimed it first.
		if removed == 0 {
			continue
		}
		q.rdb.LRem(ctx, q.processingKey, 1, payload)

		var job Job
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			continue
		}
		if job.Attempt >= MaxAttempts {
			if err := q.rdb.LPush(ctx, q.deadKey, payload).Err(); err != nil {
				return fmt.Errorf("failed to dead-letter stale job for %s: %w", job.FileID, err)
			}
			if err := q.rdb.SRem(ctx, q.dedupKey, job.FileID).Err(); err != nil {
				return err
			}
			logger.Warn("stale scan job dead-lettered",
				logger.KeyFileID, job.FileID,
				logger.KeyAttempt, job.Attempt,
				logger.KeyQueue, Name,
			)
			continue
		}
		next, err := json.Marshal(Job{FileID: job.FileID, Attempt: job.Attempt + 1})
		if err != nil {
			return err
		}
		if err := q.rdb.LPush(ctx, q.pendingKey, next).Err(); err != nil {
			return fmt.Errorf("failed to requeue stale job for %s: %w", job.FileID, err)
		}
		logger.Warn("reclaimed stale scan job",
			logger.KeyFileID, job.FileID,
			logger.KeyAttempt, job.Attempt,
			logger.KeyQueue, Name,
		)
	}
	return nil
}

// Depths reports the pending, processing, delayed and dead list sizes, for
// readiness checks and operational visibility.
func (q *Queue) Depths(ctx context.Context) (pending, processing, delayed, dead int64, err error) {
	if pending, err = q.rdb.LLen(ctx, q.pendingKey).Result(); err != nil {
		return
	}
	if processing, err = q.rdb.LLen(ctx, q.processingKey).Result(); err != nil {
		return
	}
	if delayed, err = q.rdb.ZCard(ctx, q.delayedKey).Result(); err != nil {
		return
	}
	dead, err = q.rdb.LLen(ctx, q.deadKey).Result()
	return
}
