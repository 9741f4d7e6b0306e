package memory

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/intellidocs/internal/core/domain"
)

func seed(t *testing.T, repo *DocumentRepository, id, user string, createdAt time.Time) {
	t.Helper()
	err := repo.Create(context.Background(), &domain.Document{
		ID:        id,
		UserID:    user,
		Filename:  id + ".txt",
		Status:    domain.StatusUploading,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
}

func TestLifecycleForwardOnly(t *testing.T) {
	repo := NewDocumentRepository()
	ctx := context.Background()
	seed(t, repo, "doc-1", "u-1", time.Now())

	if err := repo.Complete(ctx, "doc-1", domain.Completion{}); !domain.IsKind(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected uploading -> completed to be rejected, got %v", err)
	}
	if err := repo.MarkProcessing(ctx, "doc-1", "u-1/doc-1/doc-1.txt"); err != nil {
		t.Fatalf("MarkProcessing() error = %v", err)
	}
	err := repo.Complete(ctx, "doc-1", domain.Completion{
		ExtractedText:  "text",
		Classification: domain.Classification{Summary: "s", Category: domain.CategoryHR, Confidence: 0.9},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if err := repo.MarkFailed(ctx, "doc-1", "late failure"); !domain.IsKind(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected completed -> failed to be rejected, got %v", err)
	}

	doc, err := repo.GetByID(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if doc.Status != domain.StatusCompleted || doc.Category != domain.CategoryHR || doc.StoragePath == "" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if doc.ProcessingError != "" {
		t.Fatalf("expected no processing error, got %q", doc.ProcessingError)
	}
}

func TestGetByIDMissing(t *testing.T) {
	repo := NewDocumentRepository()
	if _, err := repo.GetByID(context.Background(), "missing"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := repo.MarkFailed(context.Background(), "missing", "x"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound on update, got %v", err)
	}
}

func TestListFiltersAndOrdersNewestFirst(t *testing.T) {
	repo := NewDocumentRepository()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seed(t, repo, "a", "u-1", base)
	seed(t, repo, "b", "u-1", base.Add(time.Hour))
	seed(t, repo, "c", "u-2", base.Add(2*time.Hour))
	if err := repo.MarkProcessing(ctx, "b", "k"); err != nil {
		t.Fatalf("MarkProcessing() error = %v", err)
	}

	docs, err := repo.List(ctx, domain.DocumentFilter{UserID: "u-1"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "b" || docs[1].ID != "a" {
		t.Fatalf("unexpected listing: %+v", docs)
	}

	docs, _ = repo.List(ctx, domain.DocumentFilter{Status: domain.StatusProcessing})
	if len(docs) != 1 || docs[0].ID != "b" {
		t.Fatalf("expected only processing doc, got %+v", docs)
	}

	docs, _ = repo.List(ctx, domain.DocumentFilter{Limit: 1})
	if len(docs) != 1 || docs[0].ID != "c" {
		t.Fatalf("expected newest doc with limit, got %+v", docs)
	}
}
