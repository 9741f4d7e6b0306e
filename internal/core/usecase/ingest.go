package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/intellidocs/internal/core/domain"
	"github.com/kirillkom/intellidocs/internal/core/ports"
)

type IngestMode string

const (
	IngestModeSync  IngestMode = "sync"
	IngestModeAsync IngestMode = "async"
)

type IngestDocumentUseCase struct {
	repo      ports.DocumentRepository
	processor *ProcessDocumentUseCase
	queue     ports.MessageQueue
	mode      IngestMode
	logger    *slog.Logger
}

// NewIngestDocumentUseCase wires uploads. queue may be nil in sync mode.
func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	processor *ProcessDocumentUseCase,
	queue ports.MessageQueue,
	mode IngestMode,
	logger *slog.Logger,
) *IngestDocumentUseCase {
	if mode != IngestModeAsync || queue == nil {
		mode = IngestModeSync
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestDocumentUseCase{
		repo:      repo,
		processor: processor,
		queue:     queue,
		mode:      mode,
		logger:    logger,
	}
}

// Upload creates the record and either processes it inline or hands it to the worker.
// The returned error covers failures before a record exists; later failures are
// reported through the ProcessingResult.
func (uc *IngestDocumentUseCase) Upload(ctx context.Context, req domain.UploadRequest) (*domain.Document, domain.ProcessingResult, error) {
	if err := req.Validate(); err != nil {
		return nil, domain.ProcessingResult{}, err
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Filename:  req.Filename,
		MimeType:  req.MimeType,
		FileSize:  int64(len(req.Data)),
		Status:    domain.StatusUploading,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, domain.ProcessingResult{}, fmt.Errorf("create document metadata: %w", err)
	}
	uc.logger.Info("document_uploaded",
		"document_id", doc.ID,
		"user_id", doc.UserID,
		"mime_type", doc.MimeType,
		"file_size", doc.FileSize,
		"mode", uc.mode,
	)

	var result domain.ProcessingResult
	if uc.mode == IngestModeAsync {
		result = uc.enqueue(ctx, doc, req.Data)
	} else {
		result = uc.processor.Process(ctx, domain.ProcessRequest{
			DocumentID: doc.ID,
			Payload:    domain.RawPayload(req.Data),
			Filename:   doc.Filename,
			MimeType:   doc.MimeType,
		})
	}

	latest, err := uc.repo.GetByID(ctx, doc.ID)
	if err != nil {
		uc.logger.Warn("document_reload_failed", "document_id", doc.ID, "error", err)
		return doc, result, nil
	}
	return latest, result, nil
}

func (uc *IngestDocumentUseCase) enqueue(ctx context.Context, doc *domain.Document, data []byte) domain.ProcessingResult {
	persisted := uc.processor.Persist(ctx, doc, data)
	if !persisted.Success {
		return persisted
	}
	if err := uc.queue.PublishDocumentIngested(ctx, doc.ID); err != nil {
		return uc.processor.fail(ctx, doc.ID, &domain.StageError{
			Kind:  domain.KindOf(err, domain.ErrorKindInternal),
			Stage: "publish ingestion event",
			Err:   err,
		})
	}
	return persisted
}

// StorageKey derives the object key from owner, document id and filename.
func StorageKey(userID, documentID, filename string) string {
	owner := sanitizeFilename(userID)
	if strings.TrimSpace(userID) == "" {
		owner = "anonymous"
	}
	return fmt.Sprintf("%s/%s/%s", owner, documentID, sanitizeFilename(filename))
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "document.bin"
	}
	return base
}
