package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/intellidocs/internal/core/domain"
)

type readerFake struct {
	docs       map[string]*domain.Document
	lastFilter domain.DocumentFilter
}

func (f *readerFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
	}
	copied := *doc
	return &copied, nil
}

func (f *readerFake) List(_ context.Context, filter domain.DocumentFilter) ([]domain.Document, error) {
	f.lastFilter = filter
	out := make([]domain.Document, 0, len(f.docs))
	for _, doc := range f.docs {
		out = append(out, *doc)
	}
	return out, nil
}

type processorFake struct {
	reader *readerFake
	err    error
	calls  []string
}

func (f *processorFake) Process(context.Context, domain.ProcessRequest) domain.ProcessingResult {
	return domain.ProcessingResult{}
}

func (f *processorFake) ProcessByID(_ context.Context, id string) error {
	f.calls = append(f.calls, id)
	if f.err != nil {
		return f.err
	}
	if doc, ok := f.reader.docs[id]; ok {
		doc.Status = domain.StatusCompleted
		doc.Category = domain.CategoryLegal
	}
	return nil
}

func newTestServer() (*Server, *readerFake, *processorFake) {
	reader := &readerFake{docs: map[string]*domain.Document{
		"doc-1": {ID: "doc-1", UserID: "user-1", Filename: "contract.pdf", Status: domain.StatusProcessing},
	}}
	processor := &processorFake{reader: reader}
	return New(processor, reader, "test", nil), reader, processor
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatalf("expected tool content, got %+v", result)
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestGetDocumentTool(t *testing.T) {
	srv, _, _ := newTestServer()

	result, err := srv.getDocument(context.Background(), callRequest("get_document", map[string]any{"document_id": "doc-1"}))
	if err != nil {
		t.Fatalf("getDocument() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}
	var doc domain.Document
	if err := json.Unmarshal([]byte(resultText(t, result)), &doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if doc.ID != "doc-1" || doc.Filename != "contract.pdf" {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestGetDocumentToolNotFound(t *testing.T) {
	srv, _, _ := newTestServer()

	result, err := srv.getDocument(context.Background(), callRequest("get_document", map[string]any{"document_id": "missing"}))
	if err != nil {
		t.Fatalf("getDocument() error = %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error for missing document")
	}
}

func TestGetDocumentToolRequiresID(t *testing.T) {
	srv, _, _ := newTestServer()

	result, err := srv.getDocument(context.Background(), callRequest("get_document", map[string]any{}))
	if err != nil {
		t.Fatalf("getDocument() error = %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error without document_id")
	}
}

func TestListDocumentsToolBuildsFilter(t *testing.T) {
	srv, reader, _ := newTestServer()

	result, err := srv.listDocuments(context.Background(), callRequest("list_documents", map[string]any{
		"user_id":  "user-1",
		"category": "legal",
		"status":   "processing",
		"limit":    float64(1000),
	}))
	if err != nil {
		t.Fatalf("listDocuments() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}
	want := domain.DocumentFilter{UserID: "user-1", Category: domain.CategoryLegal, Status: domain.StatusProcessing, Limit: maxListLimit}
	if reader.lastFilter != want {
		t.Fatalf("unexpected filter: %+v", reader.lastFilter)
	}

	var docs []domain.Document
	if err := json.Unmarshal([]byte(resultText(t, result)), &docs); err != nil {
		t.Fatalf("decode documents: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected one document, got %d", len(docs))
	}
}

func TestListDocumentsToolRejectsUnknownCategory(t *testing.T) {
	srv, _, _ := newTestServer()

	result, err := srv.listDocuments(context.Background(), callRequest("list_documents", map[string]any{"category": "Marketing"}))
	if err != nil {
		t.Fatalf("listDocuments() error = %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error for unknown category")
	}
}

func TestProcessDocumentTool(t *testing.T) {
	srv, _, processor := newTestServer()

	result, err := srv.processDocument(context.Background(), callRequest("process_document", map[string]any{"document_id": "doc-1"}))
	if err != nil {
		t.Fatalf("processDocument() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}
	if len(processor.calls) != 1 || processor.calls[0] != "doc-1" {
		t.Fatalf("unexpected processor calls: %v", processor.calls)
	}
	var doc domain.Document
	if err := json.Unmarshal([]byte(resultText(t, result)), &doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if doc.Status != domain.StatusCompleted || doc.Category != domain.CategoryLegal {
		t.Fatalf("expected processed document, got %+v", doc)
	}
}

func TestProcessDocumentToolReportsInvalidTransition(t *testing.T) {
	srv, _, processor := newTestServer()
	processor.err = domain.WrapError(domain.ErrInvalidTransition, "process", errors.New("document doc-1 is already completed"))

	result, err := srv.processDocument(context.Background(), callRequest("process_document", map[string]any{"document_id": "doc-1"}))
	if err != nil {
		t.Fatalf("processDocument() error = %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error")
	}
}
