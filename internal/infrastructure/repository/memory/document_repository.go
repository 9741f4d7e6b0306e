package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kirillkom/intellidocs/internal/core/domain"
)

// DocumentRepository keeps records in process memory. Used when no Postgres DSN is
// configured and as the store behind pipeline tests.
type DocumentRepository struct {
	mu   sync.RWMutex
	docs map[string]domain.Document
	now  func() time.Time
}

func NewDocumentRepository() *DocumentRepository {
	return &DocumentRepository{
		docs: make(map[string]domain.Document),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (r *DocumentRepository) Create(_ context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "create document", fmt.Errorf("document id is required"))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.docs[doc.ID]; exists {
		return domain.WrapError(domain.ErrInvalidInput, "create document", fmt.Errorf("duplicate id=%s", doc.ID))
	}
	r.docs[doc.ID] = *doc
	return nil
}

func (r *DocumentRepository) GetByID(_ context.Context, id string) (*domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
	}
	return &doc, nil
}

func (r *DocumentRepository) List(_ context.Context, filter domain.DocumentFilter) ([]domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Document, 0, len(r.docs))
	for _, doc := range r.docs {
		if filter.UserID != "" && doc.UserID != filter.UserID {
			continue
		}
		if filter.Category != "" && doc.Category != filter.Category {
			continue
		}
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *DocumentRepository) MarkProcessing(_ context.Context, id, storagePath string) error {
	return r.transition(id, domain.StatusProcessing, func(doc *domain.Document) {
		doc.StoragePath = storagePath
	})
}

func (r *DocumentRepository) Complete(_ context.Context, id string, completion domain.Completion) error {
	return r.transition(id, domain.StatusCompleted, func(doc *domain.Document) {
		doc.ExtractedText = completion.ExtractedText
		doc.Summary = completion.Classification.Summary
		doc.Category = completion.Classification.Category
		doc.ConfidenceScore = completion.Classification.Confidence
		doc.ProcessingError = ""
	})
}

func (r *DocumentRepository) MarkFailed(_ context.Context, id, errMessage string) error {
	return r.transition(id, domain.StatusFailed, func(doc *domain.Document) {
		doc.ProcessingError = errMessage
	})
}

func (r *DocumentRepository) transition(id string, next domain.DocumentStatus, apply func(*domain.Document)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "update document", fmt.Errorf("id=%s", id))
	}
	if !doc.Status.CanTransitionTo(next) {
		return domain.WrapError(domain.ErrInvalidTransition, "update document", fmt.Errorf("%s -> %s", doc.Status, next))
	}
	apply(&doc)
	doc.Status = next
	doc.UpdatedAt = r.now()
	r.docs[id] = doc
	return nil
}
