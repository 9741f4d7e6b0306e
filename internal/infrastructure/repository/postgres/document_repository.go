package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/intellidocs/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL DEFAULT '',
	file_size BIGINT NOT NULL DEFAULT 0,
	storage_path TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	extracted_text TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	processing_error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT documents_status_check CHECK (status IN ('uploading', 'processing', 'completed', 'failed')),
	CONSTRAINT documents_confidence_check CHECK (confidence_score >= 0 AND confidence_score <= 1)
);

CREATE INDEX IF NOT EXISTS idx_documents_user_created ON documents(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_category ON documents(category);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const selectColumns = `id, user_id, filename, mime_type, file_size, storage_path, status, extracted_text, category, summary, confidence_score, processing_error, created_at, updated_at`

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	`+selectColumns+`
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`,
		doc.ID, doc.UserID, doc.Filename, doc.MimeType, doc.FileSize, doc.StoragePath, string(doc.Status),
		doc.ExtractedText, string(doc.Category), doc.Summary, doc.ConfidenceScore, doc.ProcessingError,
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+selectColumns+`
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepository) List(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := "SELECT " + selectColumns + " FROM documents"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) MarkProcessing(ctx context.Context, id, storagePath string) error {
	return r.transition(ctx, id, domain.StatusProcessing, `storage_path = $3`, storagePath)
}

func (r *DocumentRepository) Complete(ctx context.Context, id string, completion domain.Completion) error {
	cls := completion.Classification
	return r.transition(ctx, id, domain.StatusCompleted,
		`extracted_text = $3, summary = $4, category = $5, confidence_score = $6, processing_error = ''`,
		completion.ExtractedText, cls.Summary, string(cls.Category), cls.Confidence,
	)
}

func (r *DocumentRepository) MarkFailed(ctx context.Context, id, errMessage string) error {
	return r.transition(ctx, id, domain.StatusFailed, `processing_error = $3`, errMessage)
}

// transition applies a row-keyed update guarded by the statuses allowed to reach next.
// $1 is the id, $2 the new status; set clauses start at $3, updated_at is appended last.
func (r *DocumentRepository) transition(ctx context.Context, id string, next domain.DocumentStatus, set string, values ...any) error {
	args := append([]any{id, string(next)}, values...)
	args = append(args, time.Now().UTC())

	query := fmt.Sprintf(`
UPDATE documents
SET status = $2, %s, updated_at = $%d
WHERE id = $1 AND status IN (%s)
`, set, len(args), sourceStatuses(next))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update document status=%s: %w", next, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var current string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM documents WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WrapError(domain.ErrDocumentNotFound, "update document", fmt.Errorf("id=%s", id))
	}
	if err != nil {
		return fmt.Errorf("read document status: %w", err)
	}
	return domain.WrapError(domain.ErrInvalidTransition, "update document", fmt.Errorf("%s -> %s", current, next))
}

var allStatuses = []domain.DocumentStatus{
	domain.StatusUploading,
	domain.StatusProcessing,
	domain.StatusCompleted,
	domain.StatusFailed,
}

func sourceStatuses(next domain.DocumentStatus) string {
	var quoted []string
	for _, s := range allStatuses {
		if s.CanTransitionTo(next) {
			quoted = append(quoted, "'"+string(s)+"'")
		}
	}
	if len(quoted) == 0 {
		return "NULL"
	}
	return strings.Join(quoted, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var (
		doc      domain.Document
		status   string
		category string
	)
	err := row.Scan(
		&doc.ID, &doc.UserID, &doc.Filename, &doc.MimeType, &doc.FileSize, &doc.StoragePath, &status,
		&doc.ExtractedText, &category, &doc.Summary, &doc.ConfidenceScore, &doc.ProcessingError,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.Status = domain.DocumentStatus(status)
	doc.Category = domain.Category(category)
	return &doc, nil
}
