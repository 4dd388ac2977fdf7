package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cliohq/statement-worker/internal/models"
)

type sweepRepo struct {
	expired []models.Artifact
	stuck   []models.Artifact

	deleted []uuid.UUID
	failed  map[uuid.UUID]string
}

func (r *sweepRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Artifact, error) {
	return nil, errors.New("not implemented")
}

func (r *sweepRepo) SetStatus(ctx context.Context, id uuid.UUID, status models.ArtifactStatus) error {
	return nil
}

func (r *sweepRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	if r.failed == nil {
		r.failed = make(map[uuid.UUID]string)
	}
	r.failed[id] = errMsg
	return nil
}

func (r *sweepRepo) ListExpired(ctx context.Context, now time.Time) ([]models.Artifact, error) {
	return r.expired, nil
}

func (r *sweepRepo) MarkDeleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *sweepRepo) ListStuck(ctx context.Context, olderThan time.Time) ([]models.Artifact, error) {
	return r.stuck, nil
}

type sweepStore struct {
	deletedKeys []string
	failKey     string
}

func (s *sweepStore) Download(ctx context.Context, key string) ([]byte, error) { return nil, nil }

func (s *sweepStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	return nil
}

func (s *sweepStore) Delete(ctx context.Context, key string) error {
	if key == s.failKey {
		return errors.New("delete failed")
	}
	s.deletedKeys = append(s.deletedKeys, key)
	return nil
}

func (s *sweepStore) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "", nil
}

func TestSweepExpiredDeletesFilesAndTombstones(t *testing.T) {
	a1 := models.Artifact{ID: uuid.New(), StorageKey: "statements/a.pdf"}
	a2 := models.Artifact{ID: uuid.New(), StorageKey: "statements/b.pdf"}
	repo := &sweepRepo{expired: []models.Artifact{a1, a2}}
	store := &sweepStore{}

	s := NewSweeper(SweeperConfig{Interval: time.Minute, StuckAfter: time.Hour}, repo, store, nil, zerolog.Nop())
	s.sweepExpired(context.Background())

	if len(store.deletedKeys) != 2 {
		t.Errorf("deleted %d objects, want 2", len(store.deletedKeys))
	}
	if len(repo.deleted) != 2 {
		t.Errorf("tombstoned %d artifacts, want 2", len(repo.deleted))
	}
}

func TestSweepExpiredSkipsTombstoneWhenDeleteFails(t *testing.T) {
	a1 := models.Artifact{ID: uuid.New(), StorageKey: "statements/bad.pdf"}
	a2 := models.Artifact{ID: uuid.New(), StorageKey: "statements/ok.pdf"}
	repo := &sweepRepo{expired: []models.Artifact{a1, a2}}
	store := &sweepStore{failKey: "statements/bad.pdf"}

	s := NewSweeper(SweeperConfig{Interval: time.Minute, StuckAfter: time.Hour}, repo, store, nil, zerolog.Nop())
	s.sweepExpired(context.Background())

	// The row must not be tombstoned while the file still exists
	if len(repo.deleted) != 1 || repo.deleted[0] != a2.ID {
		t.Errorf("tombstoned = %v, want only %v", repo.deleted, a2.ID)
	}
}

func TestSweepStuckFailsOverdueArtifacts(t *testing.T) {
	stuck := models.Artifact{ID: uuid.New(), ProcessingStatus: models.ArtifactProcessing}
	repo := &sweepRepo{stuck: []models.Artifact{stuck}}

	s := NewSweeper(SweeperConfig{Interval: time.Minute, StuckAfter: 30 * time.Minute}, repo, &sweepStore{}, nil, zerolog.Nop())
	s.sweepStuck(context.Background())

	if msg, ok := repo.failed[stuck.ID]; !ok || msg != "processing timed out" {
		t.Errorf("failed = %v, want processing timed out for %v", repo.failed, stuck.ID)
	}
}
