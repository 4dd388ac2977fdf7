package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cliohq/statement-worker/internal/repository"
	"github.com/cliohq/statement-worker/internal/storage"
)

// SweeperConfig controls the periodic maintenance sweeps.
type SweeperConfig struct {
	Interval   time.Duration
	StuckAfter time.Duration // processing artifacts older than this are failed
}

// Sweeper runs two periodic jobs: retention cleanup of expired statement
// files, and reconciliation of artifacts left in processing by a crashed or
// hard-killed worker (those would otherwise sit in processing forever, since
// the pipeline deliberately does not touch state on forcible termination).
type Sweeper struct {
	cfg       SweeperConfig
	artifacts repository.ArtifactRepository
	store     storage.ObjectStore
	now       func() time.Time
	log       zerolog.Logger
}

func NewSweeper(cfg SweeperConfig, artifacts repository.ArtifactRepository, store storage.ObjectStore, now func() time.Time, log zerolog.Logger) *Sweeper {
	if now == nil {
		now = time.Now
	}
	return &Sweeper{
		cfg:       cfg,
		artifacts: artifacts,
		store:     store,
		now:       now,
		log:       log.With().Str("component", "sweeper").Logger(),
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweepExpired(ctx)
			s.sweepStuck(ctx)
		}
	}
}

// sweepExpired enforces the data retention policy: delete expired statement
// files from storage and tombstone their artifact rows.
func (s *Sweeper) sweepExpired(ctx context.Context) {
	expired, err := s.artifacts.ListExpired(ctx, s.now())
	if err != nil {
		s.log.Error().Err(err).Msg("cleanup_task_failed")
		return
	}

	deleted := 0
	for _, artifact := range expired {
		if err := s.store.Delete(ctx, artifact.StorageKey); err != nil {
			s.log.Error().Err(err).Stringer("artifact_id", artifact.ID).
				Msg("failed_to_delete_statement")
			continue
		}
		if err := s.artifacts.MarkDeleted(ctx, artifact.ID, s.now()); err != nil {
			s.log.Error().Err(err).Stringer("artifact_id", artifact.ID).
				Msg("failed_to_tombstone_artifact")
			continue
		}
		deleted++
		s.log.Info().Stringer("artifact_id", artifact.ID).Msg("deleted_expired_statement")
	}

	if len(expired) > 0 {
		s.log.Info().Int("deleted_count", deleted).Msg("cleanup_task_completed")
	}
}

// sweepStuck fails artifacts that have sat in processing well past the hard
// task limit so they surface for manual intervention instead of looking
// in-progress forever.
func (s *Sweeper) sweepStuck(ctx context.Context) {
	stuck, err := s.artifacts.ListStuck(ctx, s.now().Add(-s.cfg.StuckAfter))
	if err != nil {
		s.log.Error().Err(err).Msg("stuck_sweep_failed")
		return
	}

	for _, artifact := range stuck {
		if err := s.artifacts.MarkFailed(ctx, artifact.ID, "processing timed out"); err != nil {
			s.log.Error().Err(err).Stringer("artifact_id", artifact.ID).
				Msg("failed_to_fail_stuck_artifact")
			continue
		}
		s.log.Warn().Stringer("artifact_id", artifact.ID).Msg("stuck_artifact_failed")
	}
}
