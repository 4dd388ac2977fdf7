package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cliohq/statement-worker/internal/models"
)

// PgBillRepository is the Postgres-backed bill repository.
type PgBillRepository struct {
	pool *pgxpool.Pool
}

func NewPgBillRepository(pool *pgxpool.Pool) *PgBillRepository {
	return &PgBillRepository{pool: pool}
}

func (r *PgBillRepository) Create(ctx context.Context, bill *models.Bill) error {
	if bill.ID == uuid.Nil {
		bill.ID = uuid.New()
	}

	rawJSON, err := json.Marshal(bill.RawExtraction)
	if err != nil {
		return fmt.Errorf("marshal raw extraction: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO bills (
			id, user_id, card_id, source_artifact_id,
			statement_date, statement_month, due_date,
			total_amount_due, minimum_due, currency,
			extraction_confidence, requires_review, raw_extraction_data, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		bill.ID, bill.UserID, bill.CardID, bill.SourceArtifactID,
		bill.StatementDate, bill.StatementMonth, bill.DueDate,
		bill.TotalAmountDue, bill.MinimumDue, bill.Currency,
		bill.ExtractionConfidence, bill.RequiresReview, rawJSON, bill.Status)
	if err != nil {
		return fmt.Errorf("insert bill: %w", err)
	}
	return nil
}
