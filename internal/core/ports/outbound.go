package ports

import (
	"context"
	"io"

	"github.com/kirillkom/intellidocs/internal/core/domain"
)

// DocumentRepository persists document records. Updates are row-keyed and
// conditional on the current status, so each write is a single forward transition.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, error)
	MarkProcessing(ctx context.Context, id, storagePath string) error
	Complete(ctx context.Context, id string, completion domain.Completion) error
	MarkFailed(ctx context.Context, id, errMessage string) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor turns raw file bytes into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (string, error)
}

// DocumentClassifier never fails; model errors degrade to a heuristic result.
type DocumentClassifier interface {
	Classify(ctx context.Context, text, filename string) domain.Classification
}

type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	JSON        bool
}

// CompletionModel is the external language model.
type CompletionModel interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ClassificationCache memoizes model classifications by content key.
type ClassificationCache interface {
	Get(ctx context.Context, key string) (domain.Classification, bool, error)
	Set(ctx context.Context, key string, cls domain.Classification) error
}

// PipelineObserver receives per-document processing outcomes.
type PipelineObserver interface {
	StartDocument()
	FinishDocument(status domain.DocumentStatus, kind domain.ErrorKind, seconds float64)
	ObserveClassification(fallback bool)
}
