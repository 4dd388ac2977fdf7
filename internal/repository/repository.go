package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/cliohq/statement-worker/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ArtifactRepository is the slice of persistence the worker needs for
// uploaded statement files. Schema ownership lives with the API service.
type ArtifactRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Artifact, error)
	SetStatus(ctx context.Context, id uuid.UUID, status models.ArtifactStatus) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error

	// Retention and reconciliation sweeps
	ListExpired(ctx context.Context, now time.Time) ([]models.Artifact, error)
	MarkDeleted(ctx context.Context, id uuid.UUID, at time.Time) error
	ListStuck(ctx context.Context, olderThan time.Time) ([]models.Artifact, error)
}

// BillRepository persists bills extracted from statements.
type BillRepository interface {
	Create(ctx context.Context, bill *models.Bill) error
}
