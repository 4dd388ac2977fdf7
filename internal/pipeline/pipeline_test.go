package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cliohq/statement-worker/internal/models"
	"github.com/cliohq/statement-worker/internal/parser"
	"github.com/cliohq/statement-worker/internal/repository"
)

type fakeStore struct {
	objects map[string][]byte
	err     error
}

func (f *fakeStore) Download(ctx context.Context, key string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("no object %s", key)
	}
	return data, nil
}

func (f *fakeStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error { return nil }

func (f *fakeStore) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "", nil
}

type fakeArtifacts struct {
	artifacts map[uuid.UUID]*models.Artifact

	statuses   []models.ArtifactStatus
	failedWith string
}

func (f *fakeArtifacts) GetByID(ctx context.Context, id uuid.UUID) (*models.Artifact, error) {
	a, ok := f.artifacts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return a, nil
}

func (f *fakeArtifacts) SetStatus(ctx context.Context, id uuid.UUID, status models.ArtifactStatus) error {
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeArtifacts) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	f.statuses = append(f.statuses, models.ArtifactFailed)
	f.failedWith = errMsg
	return nil
}

func (f *fakeArtifacts) ListExpired(ctx context.Context, now time.Time) ([]models.Artifact, error) {
	return nil, nil
}

func (f *fakeArtifacts) MarkDeleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	return nil
}

func (f *fakeArtifacts) ListStuck(ctx context.Context, olderThan time.Time) ([]models.Artifact, error) {
	return nil, nil
}

type fakeBills struct {
	created []*models.Bill
	err     error
}

func (f *fakeBills) Create(ctx context.Context, bill *models.Bill) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, bill)
	return nil
}

type fakeExtractor struct {
	result models.ExtractionResult
}

func (f *fakeExtractor) Extract(ctx context.Context, data []byte, mediaType string) models.ExtractionResult {
	return f.result
}

const ctbcText = `中國信託商業銀行 信用卡帳單
帳單日期: 2024-01-15
繳款截止日: 2024-02-05
本期應繳金額: 12,345.67
最低應繳金額: 1,000`

func testClock() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

func newTestPipeline(store *fakeStore, artifacts *fakeArtifacts, bills *fakeBills, ex TextExtractor) *Pipeline {
	return New(store, artifacts, bills, ex, parser.NewSelector(testClock), 0.8, testClock, zerolog.Nop())
}

func seedArtifact(mimeType string) (*fakeArtifacts, uuid.UUID) {
	id := uuid.New()
	return &fakeArtifacts{artifacts: map[uuid.UUID]*models.Artifact{
		id: {
			ID:               id,
			UserID:           uuid.New(),
			StorageKey:       "statements/test.pdf",
			MimeType:         mimeType,
			ProcessingStatus: models.ArtifactPending,
		},
	}}, id
}

func TestProcessArtifactSuccess(t *testing.T) {
	artifacts, id := seedArtifact("application/pdf")
	store := &fakeStore{objects: map[string][]byte{"statements/test.pdf": []byte("%PDF-")}}
	bills := &fakeBills{}
	ex := &fakeExtractor{result: models.ExtractionResult{Text: ctbcText, Success: true}}

	p := newTestPipeline(store, artifacts, bills, ex)
	result, err := p.ProcessArtifact(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != "success" {
		t.Errorf("status = %q, want success", result.Status)
	}
	if result.RequiresReview {
		t.Error("high-confidence parse should not require review")
	}
	if result.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", result.Confidence)
	}

	if len(bills.created) != 1 {
		t.Fatalf("created %d bills, want 1", len(bills.created))
	}
	bill := bills.created[0]
	if bill.SourceArtifactID != id {
		t.Error("bill not linked to source artifact")
	}
	if bill.TotalAmountDue.String() != "12345.67" {
		t.Errorf("total = %s, want 12345.67", bill.TotalAmountDue)
	}
	if bill.Status != models.BillPendingReview {
		t.Errorf("bill status = %q, want pending_review", bill.Status)
	}
	if bill.RawExtraction["bank_name"] != "CTBC" {
		t.Errorf("raw extraction bank = %v, want CTBC", bill.RawExtraction["bank_name"])
	}

	want := []models.ArtifactStatus{models.ArtifactProcessing, models.ArtifactCompleted}
	if len(artifacts.statuses) != 2 || artifacts.statuses[0] != want[0] || artifacts.statuses[1] != want[1] {
		t.Errorf("status transitions = %v, want %v", artifacts.statuses, want)
	}
}

func TestProcessArtifactLowConfidenceRequiresReview(t *testing.T) {
	artifacts, id := seedArtifact("application/pdf")
	store := &fakeStore{objects: map[string][]byte{"statements/test.pdf": []byte("%PDF-")}}
	bills := &fakeBills{}
	ex := &fakeExtractor{result: models.ExtractionResult{Text: "unrecognizable statement text", Success: true}}

	p := newTestPipeline(store, artifacts, bills, ex)
	result, err := p.ProcessArtifact(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.RequiresReview {
		t.Error("low-confidence parse should require review")
	}
	if len(bills.created) != 1 {
		t.Fatalf("bill should still be persisted for review")
	}
	if !bills.created[0].RequiresReview {
		t.Error("persisted bill missing the review flag")
	}
}

func TestProcessArtifactNotFoundIsPermanent(t *testing.T) {
	artifacts := &fakeArtifacts{artifacts: map[uuid.UUID]*models.Artifact{}}
	p := newTestPipeline(&fakeStore{}, artifacts, &fakeBills{}, &fakeExtractor{})

	result, err := p.ProcessArtifact(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected error for missing artifact")
	}
	if !IsPermanent(err) {
		t.Error("missing artifact should not be retried")
	}
	if result.Status != "error" {
		t.Errorf("status = %q, want error", result.Status)
	}
}

func TestProcessArtifactUnsupportedTypeIsPermanent(t *testing.T) {
	artifacts, id := seedArtifact("application/zip")
	p := newTestPipeline(&fakeStore{}, artifacts, &fakeBills{}, &fakeExtractor{})

	_, err := p.ProcessArtifact(context.Background(), id)
	if err == nil {
		t.Fatal("expected error for unsupported type")
	}
	if !IsPermanent(err) {
		t.Error("unsupported file type should not be retried")
	}
	if !strings.Contains(artifacts.failedWith, "unsupported file type") {
		t.Errorf("failure message = %q", artifacts.failedWith)
	}
}

func TestProcessArtifactExtractionFailureIsTransient(t *testing.T) {
	artifacts, id := seedArtifact("application/pdf")
	store := &fakeStore{objects: map[string][]byte{"statements/test.pdf": []byte("%PDF-")}}
	ex := &fakeExtractor{result: models.ExtractionResult{Success: false, Error: "ocr crashed"}}

	p := newTestPipeline(store, artifacts, &fakeBills{}, ex)
	_, err := p.ProcessArtifact(context.Background(), id)
	if err == nil {
		t.Fatal("expected error for failed extraction")
	}
	if IsPermanent(err) {
		t.Error("extraction failure should be retryable")
	}
	if !strings.Contains(artifacts.failedWith, "ocr crashed") {
		t.Errorf("failure message = %q, want extraction error recorded verbatim", artifacts.failedWith)
	}
}

func TestProcessArtifactDownloadFailureIsTransient(t *testing.T) {
	artifacts, id := seedArtifact("application/pdf")
	store := &fakeStore{err: errors.New("connection refused")}

	p := newTestPipeline(store, artifacts, &fakeBills{}, &fakeExtractor{})
	_, err := p.ProcessArtifact(context.Background(), id)
	if err == nil {
		t.Fatal("expected error for failed download")
	}
	if IsPermanent(err) {
		t.Error("download failure should be retryable")
	}
}

func TestProcessArtifactBillPersistFailure(t *testing.T) {
	artifacts, id := seedArtifact("application/pdf")
	store := &fakeStore{objects: map[string][]byte{"statements/test.pdf": []byte("%PDF-")}}
	bills := &fakeBills{err: errors.New("unique constraint violation")}
	ex := &fakeExtractor{result: models.ExtractionResult{Text: ctbcText, Success: true}}

	p := newTestPipeline(store, artifacts, bills, ex)
	_, err := p.ProcessArtifact(context.Background(), id)
	if err == nil {
		t.Fatal("expected error for failed persist")
	}
	if artifacts.statuses[len(artifacts.statuses)-1] != models.ArtifactFailed {
		t.Errorf("final status = %v, want failed", artifacts.statuses[len(artifacts.statuses)-1])
	}
}

func TestPermanentErrorWrapping(t *testing.T) {
	base := errors.New("boom")
	if IsPermanent(base) {
		t.Error("plain error should be retryable")
	}
	wrapped := Permanent(base)
	if !IsPermanent(wrapped) {
		t.Error("Permanent() error not recognized")
	}
	if !IsPermanent(fmt.Errorf("context: %w", wrapped)) {
		t.Error("permanence should survive wrapping")
	}
	if !errors.Is(wrapped, base) {
		t.Error("Permanent() should preserve the cause chain")
	}
}
