package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/intellidocs/internal/core/domain"
)

type queueFake struct {
	published  []string
	publishErr error
}

func (q *queueFake) PublishDocumentIngested(_ context.Context, documentID string) error {
	if q.publishErr != nil {
		return q.publishErr
	}
	q.published = append(q.published, documentID)
	return nil
}

func (q *queueFake) SubscribeDocumentIngested(context.Context, func(context.Context, string) error) error {
	return nil
}

func TestUploadSyncProcessesInline(t *testing.T) {
	cls := &classifierFake{cls: domain.Classification{Summary: "Quarterly budget", Category: domain.CategoryFinance, Confidence: 0.88}}
	p := newPipeline(extractorFake{text: "Q3 budget"}, cls)
	uc := NewIngestDocumentUseCase(p.repo, p.uc, nil, IngestModeSync, discardLogger())

	doc, result, err := uc.Upload(context.Background(), domain.UploadRequest{
		UserID:   "user-7",
		Filename: "Q3 budget.txt",
		MimeType: "text/plain",
		Data:     []byte("Q3 budget"),
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if !result.Success || result.DocumentID != doc.ID {
		t.Fatalf("unexpected result: %+v", result)
	}
	if doc.Status != domain.StatusCompleted || doc.Category != domain.CategoryFinance {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if doc.FileSize != int64(len("Q3 budget")) {
		t.Fatalf("expected file size to be recorded, got %d", doc.FileSize)
	}
	if doc.StoragePath != "user-7/"+doc.ID+"/Q3_budget.txt" {
		t.Fatalf("unexpected storage path %q", doc.StoragePath)
	}
}

func TestUploadAsyncPersistsAndPublishes(t *testing.T) {
	cls := &classifierFake{cls: domain.Classification{Summary: "s", Category: domain.CategoryHR, Confidence: 0.9}}
	p := newPipeline(extractorFake{text: "x"}, cls)
	queue := &queueFake{}
	uc := NewIngestDocumentUseCase(p.repo, p.uc, queue, IngestModeAsync, discardLogger())

	doc, result, err := uc.Upload(context.Background(), domain.UploadRequest{
		UserID:   "user-1",
		Filename: "handbook.txt",
		MimeType: "text/plain",
		Data:     []byte("handbook"),
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("unexpected result: %+v", result)
	}
	if doc.Status != domain.StatusProcessing || doc.StoragePath == "" {
		t.Fatalf("expected processing document with storage path, got %+v", doc)
	}
	if len(queue.published) != 1 || queue.published[0] != doc.ID {
		t.Fatalf("expected one published id, got %v", queue.published)
	}
	if cls.calls != 0 {
		t.Fatalf("async upload must not classify inline")
	}

	if err := p.uc.ProcessByID(context.Background(), doc.ID); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if got := p.record(t, doc.ID); got.Status != domain.StatusCompleted || got.Category != domain.CategoryHR {
		t.Fatalf("unexpected record after worker run: %+v", got)
	}
}

func TestUploadAsyncPublishFailureMarksFailed(t *testing.T) {
	p := newPipeline(extractorFake{text: "x"}, &classifierFake{})
	queue := &queueFake{publishErr: errors.New("nats: connection closed")}
	uc := NewIngestDocumentUseCase(p.repo, p.uc, queue, IngestModeAsync, discardLogger())

	doc, result, err := uc.Upload(context.Background(), domain.UploadRequest{
		UserID:   "user-1",
		Filename: "a.txt",
		Data:     []byte("a"),
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if result.Success || !strings.Contains(result.Error, "connection closed") {
		t.Fatalf("expected publish failure, got %+v", result)
	}
	if doc.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %s", doc.Status)
	}
}

func TestUploadAsyncWithoutQueueFallsBackToSync(t *testing.T) {
	cls := &classifierFake{cls: domain.Classification{Summary: "s", Category: domain.CategoryLegal, Confidence: 0.6}}
	p := newPipeline(extractorFake{text: "x"}, cls)
	uc := NewIngestDocumentUseCase(p.repo, p.uc, nil, IngestModeAsync, discardLogger())

	doc, _, err := uc.Upload(context.Background(), domain.UploadRequest{UserID: "u", Filename: "nda.txt", Data: []byte("x")})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.Status != domain.StatusCompleted {
		t.Fatalf("expected inline processing, got %s", doc.Status)
	}
}

func TestUploadValidatesRequest(t *testing.T) {
	p := newPipeline(extractorFake{}, &classifierFake{})
	uc := NewIngestDocumentUseCase(p.repo, p.uc, nil, IngestModeSync, discardLogger())

	cases := []domain.UploadRequest{
		{Filename: "a.txt", Data: []byte("a")},
		{UserID: "u", Data: []byte("a")},
	}
	for _, req := range cases {
		if _, _, err := uc.Upload(context.Background(), req); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", req, err)
		}
	}
	docs, _ := p.repo.List(context.Background(), domain.DocumentFilter{})
	if len(docs) != 0 {
		t.Fatalf("invalid uploads must not create records, got %d", len(docs))
	}
}

func TestStorageKeySanitizes(t *testing.T) {
	cases := []struct {
		user, id, filename string
		want               string
	}{
		{"user-1", "doc-1", "report.pdf", "user-1/doc-1/report.pdf"},
		{"", "doc-2", "a b.txt", "anonymous/doc-2/a_b.txt"},
		{"u", "doc-3", "../../etc/passwd", "u/doc-3/passwd"},
		{"u", "doc-4", "отчёт.docx", "u/doc-4/_____.docx"},
		{"u", "doc-5", "..", "u/doc-5/document.bin"},
	}
	for _, tc := range cases {
		if got := StorageKey(tc.user, tc.id, tc.filename); got != tc.want {
			t.Fatalf("StorageKey(%q, %q, %q) = %q, want %q", tc.user, tc.id, tc.filename, got, tc.want)
		}
	}
}
