package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cliohq/statement-worker/internal/models"
)

// PgArtifactRepository is the Postgres-backed artifact repository.
type PgArtifactRepository struct {
	pool *pgxpool.Pool
}

func NewPgArtifactRepository(pool *pgxpool.Pool) *PgArtifactRepository {
	return &PgArtifactRepository{pool: pool}
}

const artifactColumns = `id, user_id, card_id, original_filename, storage_key, mime_type,
	file_size_bytes, processing_status, coalesce(processing_error, ''),
	uploaded_at, delete_after, deleted_at`

func (r *PgArtifactRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Artifact, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+artifactColumns+` FROM source_artifacts WHERE id = $1`, id)
	return scanArtifact(row)
}

func (r *PgArtifactRepository) SetStatus(ctx context.Context, id uuid.UUID, status models.ArtifactStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE source_artifacts SET processing_status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set artifact status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgArtifactRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE source_artifacts SET processing_status = $2, processing_error = $3 WHERE id = $1`,
		id, models.ArtifactFailed, errMsg)
	if err != nil {
		return fmt.Errorf("mark artifact failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgArtifactRepository) ListExpired(ctx context.Context, now time.Time) ([]models.Artifact, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+artifactColumns+` FROM source_artifacts
		 WHERE delete_after <= $1 AND deleted_at IS NULL`, now)
	if err != nil {
		return nil, fmt.Errorf("list expired artifacts: %w", err)
	}
	defer rows.Close()
	return collectArtifacts(rows)
}

func (r *PgArtifactRepository) MarkDeleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE source_artifacts SET deleted_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark artifact deleted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgArtifactRepository) ListStuck(ctx context.Context, olderThan time.Time) ([]models.Artifact, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+artifactColumns+` FROM source_artifacts
		 WHERE processing_status = $1 AND uploaded_at <= $2 AND deleted_at IS NULL`,
		models.ArtifactProcessing, olderThan)
	if err != nil {
		return nil, fmt.Errorf("list stuck artifacts: %w", err)
	}
	defer rows.Close()
	return collectArtifacts(rows)
}

func scanArtifact(row pgx.Row) (*models.Artifact, error) {
	var a models.Artifact
	err := row.Scan(&a.ID, &a.UserID, &a.CardID, &a.OriginalFilename, &a.StorageKey,
		&a.MimeType, &a.FileSizeBytes, &a.ProcessingStatus, &a.ProcessingError,
		&a.UploadedAt, &a.DeleteAfter, &a.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan artifact: %w", err)
	}
	return &a, nil
}

func collectArtifacts(rows pgx.Rows) ([]models.Artifact, error) {
	var out []models.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
