package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrQueueFull is returned when the queue cannot accept more work.
var ErrQueueFull = errors.New("queue full")

// Job is one unit of work: parse a single artifact.
type Job struct {
	ArtifactID  uuid.UUID
	SubmittedAt time.Time
}

// Queue is the narrow enqueue surface exposed to producers (the upload API
// notifies the worker through it). Channel-backed; consumption belongs to
// the Pool.
type Queue struct {
	jobs chan Job
}

func NewQueue(size int) *Queue {
	return &Queue{jobs: make(chan Job, size)}
}

// Enqueue adds a job without blocking: a full queue is the producer's
// problem to surface, not something to stall an upload request on.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Jobs exposes the consumption side to the worker pool.
func (q *Queue) Jobs() <-chan Job {
	return q.jobs
}

// Close stops accepting work; workers drain what remains.
func (q *Queue) Close() {
	close(q.jobs)
}

// Depth reports the number of queued jobs, for the status API.
func (q *Queue) Depth() int {
	return len(q.jobs)
}
