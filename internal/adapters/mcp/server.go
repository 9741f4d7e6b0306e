// Package mcpadapter exposes the document pipeline as MCP tools.
package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/intellidocs/internal/core/domain"
	"github.com/kirillkom/intellidocs/internal/core/ports"
)

const (
	serverName       = "intellidocs"
	defaultListLimit = 20
	maxListLimit     = 200
)

type Server struct {
	processor ports.DocumentProcessor
	reader    ports.DocumentReader
	logger    *slog.Logger
	mcp       *server.MCPServer
}

func New(processor ports.DocumentProcessor, reader ports.DocumentReader, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		processor: processor,
		reader:    reader,
		logger:    logger,
		mcp:       server.NewMCPServer(serverName, version, server.WithToolCapabilities(false)),
	}
	s.registerTools()
	return s
}

func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("get_document",
		mcp.WithDescription("Fetch one document record with its status, category and summary."),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document UUID")),
	), s.getDocument)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List documents, newest first, optionally filtered by owner, category or status."),
		mcp.WithString("user_id", mcp.Description("Owner id")),
		mcp.WithString("category", mcp.Description("Document category"), mcp.Enum(domain.CategoryNames()...)),
		mcp.WithString("status", mcp.Description("Lifecycle status"),
			mcp.Enum(string(domain.StatusUploading), string(domain.StatusProcessing), string(domain.StatusCompleted), string(domain.StatusFailed)),
		),
		mcp.WithNumber("limit", mcp.Description(fmt.Sprintf("Maximum rows (default %d, max %d)", defaultListLimit, maxListLimit))),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("process_document",
		mcp.WithDescription("Run extraction and classification for a stored document that is still processing."),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document UUID")),
	), s.processDocument)
}

func (s *Server) getDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.reader.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return toolError("get_document", err), nil
	}
	return jsonResult(doc)
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := domain.DocumentFilter{
		UserID: strings.TrimSpace(req.GetString("user_id", "")),
		Limit:  min(max(req.GetInt("limit", defaultListLimit), 1), maxListLimit),
	}
	if raw := req.GetString("category", ""); raw != "" {
		category, ok := domain.ParseCategory(raw)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown category %q", raw)), nil
		}
		filter.Category = category
	}
	if raw := req.GetString("status", ""); raw != "" {
		status, ok := domain.ParseStatus(raw)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown status %q", raw)), nil
		}
		filter.Status = status
	}

	docs, err := s.reader.List(ctx, filter)
	if err != nil {
		return toolError("list_documents", err), nil
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	return jsonResult(docs)
}

func (s *Server) processDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id = strings.TrimSpace(id)

	if err := s.processor.ProcessByID(ctx, id); err != nil {
		s.logger.Warn("mcp_process_failed", "document_id", id, "error", err)
		return toolError("process_document", err), nil
	}
	doc, err := s.reader.GetByID(ctx, id)
	if err != nil {
		return toolError("process_document", err), nil
	}
	return jsonResult(doc)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func toolError(tool string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, domain.ErrDocumentNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("%s: document not found", tool))
	case errors.Is(err, domain.ErrInvalidTransition):
		return mcp.NewToolResultError(fmt.Sprintf("%s: document is not in a processable state: %v", tool, err))
	default:
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", tool, err))
	}
}
