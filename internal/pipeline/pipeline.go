package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cliohq/statement-worker/internal/extractor"
	"github.com/cliohq/statement-worker/internal/models"
	"github.com/cliohq/statement-worker/internal/parser"
	"github.com/cliohq/statement-worker/internal/repository"
	"github.com/cliohq/statement-worker/internal/storage"
)

// TextExtractor is the extraction stage as the orchestrator sees it.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, mediaType string) models.ExtractionResult
}

// Result is returned to the task queue after processing an artifact.
type Result struct {
	Status         string    `json:"status"` // "success" or "error"
	BillID         uuid.UUID `json:"bill_id,omitempty"`
	Confidence     float64   `json:"confidence,omitempty"`
	RequiresReview bool      `json:"requires_review,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
}

// Pipeline runs one artifact from raw bytes to a persisted bill. All
// collaborators are injected; there is no process-global state, so pipelines
// for distinct artifacts can run concurrently without locking.
type Pipeline struct {
	store     storage.ObjectStore
	artifacts repository.ArtifactRepository
	bills     repository.BillRepository
	extractor TextExtractor
	selector  *parser.Selector

	threshold float64
	now       func() time.Time
	log       zerolog.Logger
}

// New builds a pipeline. threshold is the confidence below which a bill
// requires human review; now may be nil for the wall clock.
func New(
	store storage.ObjectStore,
	artifacts repository.ArtifactRepository,
	bills repository.BillRepository,
	ex TextExtractor,
	selector *parser.Selector,
	threshold float64,
	now func() time.Time,
	log zerolog.Logger,
) *Pipeline {
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		store:     store,
		artifacts: artifacts,
		bills:     bills,
		extractor: ex,
		selector:  selector,
		threshold: threshold,
		now:       now,
		log:       log.With().Str("task", "parse_statement").Logger(),
	}
}

// ProcessArtifact is the single entry point the task queue invokes. On any
// failure the artifact is marked failed with the error message recorded
// verbatim; the returned error tells the queue whether to retry
// (IsPermanent(err) == false).
func (p *Pipeline) ProcessArtifact(ctx context.Context, artifactID uuid.UUID) (Result, error) {
	log := p.log.With().Stringer("artifact_id", artifactID).Logger()
	log.Info().Msg("starting_parse_task")

	artifact, err := p.artifacts.GetByID(ctx, artifactID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Error().Msg("artifact_not_found")
			return p.fail(ctx, artifactID, Permanent(fmt.Errorf("artifact not found")))
		}
		return p.fail(ctx, artifactID, fmt.Errorf("load artifact: %w", err))
	}

	// Visible to concurrent status queries before any extraction work starts
	if err := p.artifacts.SetStatus(ctx, artifactID, models.ArtifactProcessing); err != nil {
		return p.fail(ctx, artifactID, fmt.Errorf("mark processing: %w", err))
	}

	if !extractor.SupportedMediaType(artifact.MimeType) {
		return p.fail(ctx, artifactID,
			Permanent(fmt.Errorf("unsupported file type: %s", artifact.MimeType)))
	}

	data, err := p.store.Download(ctx, artifact.StorageKey)
	if err != nil {
		return p.fail(ctx, artifactID, fmt.Errorf("download %s: %w", artifact.StorageKey, err))
	}

	extraction := p.extractor.Extract(ctx, data, artifact.MimeType)
	if !extraction.Success {
		return p.fail(ctx, artifactID, fmt.Errorf("text extraction failed: %s", extraction.Error))
	}

	chosen := p.selector.Select(extraction.Text)
	log.Info().Str("parser", chosen.BankName()).Msg("parser_selected")
	parsed := chosen.Parse(extraction.Text)

	bill := p.buildBill(artifact, parsed)
	if err := p.bills.Create(ctx, bill); err != nil {
		return p.fail(ctx, artifactID, fmt.Errorf("persist bill: %w", err))
	}

	if err := p.artifacts.SetStatus(ctx, artifactID, models.ArtifactCompleted); err != nil {
		return p.fail(ctx, artifactID, fmt.Errorf("mark completed: %w", err))
	}

	log.Info().
		Stringer("bill_id", bill.ID).
		Float64("confidence", parsed.ConfidenceScore).
		Bool("requires_review", bill.RequiresReview).
		Msg("parse_task_completed")

	return Result{
		Status:         "success",
		BillID:         bill.ID,
		Confidence:     parsed.ConfidenceScore,
		RequiresReview: bill.RequiresReview,
	}, nil
}

// buildBill maps a transient ParsedBill into the persistent record. The
// review flag is a pure function of confidence and threshold, computed once
// here; this pipeline never changes it afterwards.
func (p *Pipeline) buildBill(artifact *models.Artifact, parsed *models.ParsedBill) *models.Bill {
	return &models.Bill{
		ID:               uuid.New(),
		UserID:           artifact.UserID,
		CardID:           artifact.CardID,
		SourceArtifactID: artifact.ID,
		StatementDate:    parsed.StatementDate,
		StatementMonth:   parsed.StatementDate.Format("2006-01"),
		DueDate:          parsed.DueDate,
		TotalAmountDue:   parsed.TotalAmountDue,
		MinimumDue:       parsed.MinimumDue,
		Currency:         parsed.Currency,

		ExtractionConfidence: parsed.ConfidenceScore,
		RequiresReview:       parsed.ConfidenceScore < p.threshold,
		RawExtraction: map[string]any{
			"bank_name":        parsed.BankName,
			"card_last_four":   parsed.CardLastFour,
			"extracted_fields": parsed.ExtractedFields,
			"raw_text":         parsed.RawText,
		},

		Status:    models.BillPendingReview,
		CreatedAt: p.now(),
	}
}

// fail records the failure on the artifact and reports it to the caller.
func (p *Pipeline) fail(ctx context.Context, artifactID uuid.UUID, cause error) (Result, error) {
	p.log.Error().Stringer("artifact_id", artifactID).Err(cause).Msg("parse_task_failed")

	// Best effort; the original error is what matters to the caller
	if err := p.artifacts.MarkFailed(ctx, artifactID, cause.Error()); err != nil {
		p.log.Error().Stringer("artifact_id", artifactID).Err(err).
			Msg("artifact_status_update_failed")
	}

	return Result{Status: "error", ErrorMessage: cause.Error()}, cause
}
