package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cliohq/statement-worker/internal/pipeline"
)

// Processor is the pipeline entry point as the pool sees it.
type Processor interface {
	ProcessArtifact(ctx context.Context, artifactID uuid.UUID) (pipeline.Result, error)
}

// PoolConfig bounds concurrency and per-task execution.
type PoolConfig struct {
	Concurrency int
	MaxRetries  int           // additional attempts after the first
	Backoff     time.Duration // fixed delay between attempts
	SoftLimit   time.Duration // log a warning past this
	HardLimit   time.Duration // cancel the task context past this
}

// Pool runs queued parse jobs on a fixed number of workers. Each attempt
// gets its own deadline-bound context; transient failures are retried with a
// fixed backoff, permanent ones are not.
type Pool struct {
	cfg       PoolConfig
	queue     *Queue
	processor Processor
	log       zerolog.Logger
	wg        sync.WaitGroup
}

func NewPool(cfg PoolConfig, queue *Queue, processor Processor, log zerolog.Logger) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Pool{
		cfg:       cfg,
		queue:     queue,
		processor: processor,
		log:       log.With().Str("component", "worker_pool").Logger(),
	}
}

// Run blocks until the queue closes and all in-flight jobs finish, or the
// context is cancelled.
func (p *Pool) Run(ctx context.Context) error {
	for i := 0; i < p.cfg.Concurrency; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.wg.Wait()
	return ctx.Err()
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	log := p.log.With().Int("worker", id).Logger()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("worker_stopping")
			return
		case job, ok := <-p.queue.Jobs():
			if !ok {
				return
			}
			p.runJob(ctx, log, job)
		}
	}
}

func (p *Pool) runJob(ctx context.Context, log zerolog.Logger, job Job) {
	for attempt := 0; ; attempt++ {
		err := p.attempt(ctx, job)
		if err == nil {
			return
		}
		if pipeline.IsPermanent(err) {
			log.Error().Stringer("artifact_id", job.ArtifactID).Err(err).
				Msg("job_failed_permanently")
			return
		}
		if attempt >= p.cfg.MaxRetries {
			log.Error().Stringer("artifact_id", job.ArtifactID).Err(err).
				Int("attempts", attempt+1).Msg("job_retries_exhausted")
			return
		}

		log.Info().Stringer("artifact_id", job.ArtifactID).
			Int("retry_count", attempt+1).Msg("retrying_parse_task")
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.cfg.Backoff):
		}
	}
}

// attempt runs one pipeline pass under the hard time limit, warning when the
// soft limit passes first.
func (p *Pool) attempt(ctx context.Context, job Job) error {
	taskCtx := ctx
	if p.cfg.HardLimit > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, p.cfg.HardLimit)
		defer cancel()
	}

	if p.cfg.SoftLimit > 0 {
		timer := time.AfterFunc(p.cfg.SoftLimit, func() {
			p.log.Warn().Stringer("artifact_id", job.ArtifactID).
				Dur("soft_limit", p.cfg.SoftLimit).Msg("task_soft_limit_exceeded")
		})
		defer timer.Stop()
	}

	_, err := p.processor.ProcessArtifact(taskCtx, job.ArtifactID)
	return err
}
