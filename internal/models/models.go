package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ArtifactStatus tracks an uploaded statement file through the pipeline.
type ArtifactStatus string

const (
	ArtifactPending    ArtifactStatus = "pending"
	ArtifactProcessing ArtifactStatus = "processing"
	ArtifactCompleted  ArtifactStatus = "completed"
	ArtifactFailed     ArtifactStatus = "failed"
)

// BillStatus is the lifecycle state of an extracted bill.
type BillStatus string

const (
	BillPendingReview BillStatus = "pending_review"
	BillUnpaid        BillStatus = "unpaid"
	BillPaidConfirmed BillStatus = "paid_confirmed"
)

// UnknownCardLastFour is the sentinel used when no card suffix was extracted.
const UnknownCardLastFour = "0000"

// NeedsReviewMarker replaces the extracted-fields list when a generic parse
// scored too low to be trusted.
const NeedsReviewMarker = "needs_review"

// ParsedBill is the result of one parse attempt over extracted statement text.
// It is transient: the orchestrator maps it into a persistent Bill.
type ParsedBill struct {
	BankName     string `json:"bank_name"`
	CardLastFour string `json:"card_last_four"` // "0000" when not found

	StatementDate  time.Time `json:"statement_date"`
	StatementMonth string    `json:"statement_month"` // YYYY-MM of StatementDate
	DueDate        time.Time `json:"due_date"`

	TotalAmountDue decimal.Decimal  `json:"total_amount_due"` // 0 when not found
	MinimumDue     *decimal.Decimal `json:"minimum_due,omitempty"`
	Currency       string           `json:"currency"`

	ConfidenceScore float64  `json:"confidence_score"` // 0.0 to 1.0
	ExtractedFields []string `json:"extracted_fields"`

	// Truncated snippet of the cleaned input text, kept for debugging.
	RawText string `json:"raw_text,omitempty"`
}

// ExtractionResult is the output of the text extraction stage.
type ExtractionResult struct {
	Text       string
	Pages      []string
	PageCount  int
	Confidence float64 // OCR only; 0 for text-layer extraction
	Success    bool
	Error      string
}

// Artifact is an uploaded statement file awaiting or undergoing processing.
type Artifact struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	CardID           *uuid.UUID
	OriginalFilename string
	StorageKey       string
	MimeType         string
	FileSizeBytes    int64
	ProcessingStatus ArtifactStatus
	ProcessingError  string
	UploadedAt       time.Time
	DeleteAfter      time.Time
	DeletedAt        *time.Time
}

// Bill is the persistent record built from a ParsedBill.
type Bill struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	CardID           *uuid.UUID
	SourceArtifactID uuid.UUID

	StatementDate  time.Time
	StatementMonth string
	DueDate        time.Time

	TotalAmountDue decimal.Decimal
	MinimumDue     *decimal.Decimal
	Currency       string

	ExtractionConfidence float64
	RequiresReview       bool
	RawExtraction        map[string]any

	Status    BillStatus
	CreatedAt time.Time
}
