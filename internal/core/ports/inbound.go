package ports

import (
	"context"

	"github.com/kirillkom/intellidocs/internal/core/domain"
)

// DocumentIngestor is the inbound contract for client uploads.
type DocumentIngestor interface {
	Upload(ctx context.Context, req domain.UploadRequest) (*domain.Document, domain.ProcessingResult, error)
}

// DocumentProcessor runs the ingestion pipeline for one document.
type DocumentProcessor interface {
	Process(ctx context.Context, req domain.ProcessRequest) domain.ProcessingResult
	ProcessByID(ctx context.Context, documentID string) error
}

// DocumentReader is the read model behind the feed, search and compliance views.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, error)
}
