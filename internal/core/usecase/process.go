package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/kirillkom/intellidocs/internal/core/domain"
	"github.com/kirillkom/intellidocs/internal/core/ports"
)

type ProcessDocumentUseCase struct {
	repo       ports.DocumentRepository
	storage    ports.ObjectStorage
	extractor  ports.TextExtractor
	classifier ports.DocumentClassifier
	observer   ports.PipelineObserver
	logger     *slog.Logger
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	classifier ports.DocumentClassifier,
	observer ports.PipelineObserver,
	logger *slog.Logger,
) *ProcessDocumentUseCase {
	if observer == nil {
		observer = noopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessDocumentUseCase{
		repo:       repo,
		storage:    storage,
		extractor:  extractor,
		classifier: classifier,
		observer:   observer,
		logger:     logger,
	}
}

type extraction struct {
	text string
	err  string
}

// Process runs load -> store -> extract -> classify -> complete for one document.
// Stage failures are recorded on the document and returned as data.
func (uc *ProcessDocumentUseCase) Process(ctx context.Context, req domain.ProcessRequest) domain.ProcessingResult {
	return uc.observe(req.DocumentID, func() domain.ProcessingResult {
		return uc.run(ctx, req)
	})
}

// ProcessByID is the queue path: the blob is read back from object storage.
func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	loaded := uc.load(ctx, documentID)
	if !loaded.IsOk() {
		return loaded.Err
	}
	doc := loaded.Value

	data := uc.readBlob(ctx, doc)
	if !data.IsOk() {
		return uc.observe(doc.ID, func() domain.ProcessingResult {
			return uc.fail(ctx, doc.ID, data.Err)
		}).Err()
	}

	return uc.Process(ctx, domain.ProcessRequest{
		DocumentID: doc.ID,
		Payload:    domain.RawPayload(data.Value),
		Filename:   doc.Filename,
		MimeType:   doc.MimeType,
	}).Err()
}

// observe brackets one document run with observer and log events.
func (uc *ProcessDocumentUseCase) observe(documentID string, runFn func() domain.ProcessingResult) domain.ProcessingResult {
	start := time.Now()
	uc.observer.StartDocument()

	result := runFn()

	status := domain.StatusCompleted
	if !result.Success {
		status = domain.StatusFailed
	}
	uc.observer.FinishDocument(status, result.ErrorKind, time.Since(start).Seconds())
	uc.logger.Info("document_process_finish",
		"document_id", documentID,
		"status", status,
		"category", result.Category,
		"confidence", result.Confidence,
		"error_kind", result.ErrorKind,
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return result
}

// Persist writes the blob of an uploading document and moves it to processing.
func (uc *ProcessDocumentUseCase) Persist(ctx context.Context, doc *domain.Document, data []byte) domain.ProcessingResult {
	stored := uc.store(ctx, doc, data)
	if !stored.IsOk() {
		return uc.fail(ctx, doc.ID, stored.Err)
	}
	return domain.ProcessingResult{Success: true, DocumentID: doc.ID}
}

func (uc *ProcessDocumentUseCase) run(ctx context.Context, req domain.ProcessRequest) domain.ProcessingResult {
	if err := req.Validate(); err != nil {
		return domain.FailedResult(req.DocumentID, &domain.StageError{Kind: domain.ErrorKindInvalidInput, Stage: "validate", Err: err})
	}

	loaded := uc.load(ctx, req.DocumentID)
	if !loaded.IsOk() {
		return domain.FailedResult(req.DocumentID, loaded.Err)
	}
	doc := loaded.Value
	filename := firstNonEmpty(req.Filename, doc.Filename)
	mimeType := firstNonEmpty(req.MimeType, doc.MimeType)

	if doc.Status == domain.StatusUploading {
		data, err := req.Payload.Bytes()
		if err != nil {
			return uc.fail(ctx, doc.ID, &domain.StageError{Kind: domain.ErrorKindInvalidInput, Stage: "decode payload", Err: err})
		}
		if stored := uc.store(ctx, doc, data); !stored.IsOk() {
			return uc.fail(ctx, doc.ID, stored.Err)
		}
	}

	extracted := uc.extract(ctx, req.Payload, mimeType)
	if !extracted.IsOk() {
		return uc.fail(ctx, doc.ID, extracted.Err)
	}

	classified := uc.classify(ctx, extracted.Value.text, filename)
	if !classified.IsOk() {
		return uc.fail(ctx, doc.ID, classified.Err)
	}

	completion := domain.Completion{
		ExtractedText:  extracted.Value.text,
		Classification: classified.Value,
	}
	if completed := uc.complete(ctx, doc.ID, completion); !completed.IsOk() {
		return uc.fail(ctx, doc.ID, completed.Err)
	}

	return domain.SucceededResult(doc.ID, completion, extracted.Value.err)
}

func (uc *ProcessDocumentUseCase) load(ctx context.Context, documentID string) domain.Result[*domain.Document] {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return domain.Fail[*domain.Document](domain.KindOf(err, domain.ErrorKindStore), "fetch document", err)
	}
	if doc.Status.IsTerminal() {
		return domain.Fail[*domain.Document](
			domain.ErrorKindInvalidTransition,
			"fetch document",
			domain.WrapError(domain.ErrInvalidTransition, "process", fmt.Errorf("document %s is already %s", doc.ID, doc.Status)),
		)
	}
	return domain.Ok(doc)
}

func (uc *ProcessDocumentUseCase) store(ctx context.Context, doc *domain.Document, data []byte) domain.Result[string] {
	key := StorageKey(doc.UserID, doc.ID, doc.Filename)
	if err := uc.storage.Save(ctx, key, bytes.NewReader(data)); err != nil {
		return domain.Fail[string](domain.ErrorKindStorage, "save to object storage", err)
	}
	if err := uc.repo.MarkProcessing(ctx, doc.ID, key); err != nil {
		return domain.Fail[string](domain.KindOf(err, domain.ErrorKindStore), "set status=processing", err)
	}
	doc.StoragePath = key
	doc.Status = domain.StatusProcessing
	return domain.Ok(key)
}

func (uc *ProcessDocumentUseCase) readBlob(ctx context.Context, doc *domain.Document) domain.Result[[]byte] {
	if doc.Status != domain.StatusProcessing || doc.StoragePath == "" {
		return domain.Fail[[]byte](
			domain.ErrorKindInvalidTransition,
			"open source document",
			domain.WrapError(domain.ErrInvalidTransition, "process by id", fmt.Errorf("document %s is %s without stored blob", doc.ID, doc.Status)),
		)
	}
	reader, err := uc.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return domain.Fail[[]byte](domain.ErrorKindStorage, "open source document", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return domain.Fail[[]byte](domain.ErrorKindStorage, "read source document", err)
	}
	return domain.Ok(data)
}

// extract never fails the run: decode and extractor errors degrade to empty text.
func (uc *ProcessDocumentUseCase) extract(ctx context.Context, payload domain.Payload, mimeType string) (res domain.Result[extraction]) {
	defer func() {
		if r := recover(); r != nil {
			uc.logger.Error("extract_panic", "mime_type", mimeType, "panic", r)
			res = domain.Ok(extraction{err: fmt.Sprintf("extract text: %v", r)})
		}
	}()

	data, err := payload.Bytes()
	if err != nil {
		uc.logger.Warn("extract_degraded", "mime_type", mimeType, "error", err)
		return domain.Ok(extraction{err: err.Error()})
	}

	text, err := uc.extractor.Extract(ctx, data, mimeType)
	if err != nil {
		uc.logger.Warn("extract_degraded", "mime_type", mimeType, "error", err)
		return domain.Ok(extraction{err: fmt.Sprintf("extract text: %v", err)})
	}
	return domain.Ok(extraction{text: text})
}

func (uc *ProcessDocumentUseCase) classify(ctx context.Context, text, filename string) (res domain.Result[domain.Classification]) {
	defer func() {
		if r := recover(); r != nil {
			res = domain.Fail[domain.Classification](domain.ErrorKindInternal, "classify document", fmt.Errorf("panic: %v", r))
		}
	}()

	cls := uc.classifier.Classify(ctx, text, filename)
	uc.observer.ObserveClassification(cls.Fallback)
	if !cls.Category.Valid() {
		return domain.Fail[domain.Classification](
			domain.ErrorKindInternal,
			"classify document",
			fmt.Errorf("classifier returned unknown category %q", cls.Category),
		)
	}
	return domain.Ok(cls)
}

func (uc *ProcessDocumentUseCase) complete(ctx context.Context, documentID string, completion domain.Completion) domain.Result[struct{}] {
	if err := uc.repo.Complete(ctx, documentID, completion); err != nil {
		return domain.Fail[struct{}](domain.KindOf(err, domain.ErrorKindStore), "save completed document", err)
	}
	return domain.Ok(struct{}{})
}

// fail records status=failed and converts the stage error into a failed result.
func (uc *ProcessDocumentUseCase) fail(ctx context.Context, documentID string, stageErr *domain.StageError) domain.ProcessingResult {
	result := domain.FailedResult(documentID, stageErr)
	if err := uc.repo.MarkFailed(ctx, documentID, result.Error); err != nil {
		uc.logger.Error("mark_failed_error", "document_id", documentID, "error", err)
		if !errors.Is(err, domain.ErrInvalidTransition) {
			result.Error = fmt.Sprintf("%s; mark failed status: %v", result.Error, err)
		}
	}
	uc.logger.Warn("document_process_failed",
		"document_id", documentID,
		"stage", stageErr.Stage,
		"error_kind", stageErr.Kind,
		"error", stageErr.Err,
	)
	return result
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

type noopObserver struct{}

func (noopObserver) StartDocument() {}

func (noopObserver) FinishDocument(domain.DocumentStatus, domain.ErrorKind, float64) {}

func (noopObserver) ObserveClassification(bool) {}
