package domain

import "time"

type DocumentStatus string

const (
	StatusUploading  DocumentStatus = "uploading"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// Transitions are forward-only; terminal states accept nothing.
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	switch s {
	case StatusUploading:
		return next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

func (s DocumentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func ParseStatus(raw string) (DocumentStatus, bool) {
	switch s := DocumentStatus(raw); s {
	case StatusUploading, StatusProcessing, StatusCompleted, StatusFailed:
		return s, true
	default:
		return "", false
	}
}

type Document struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	Filename        string         `json:"filename"`
	MimeType        string         `json:"mime_type"`
	FileSize        int64          `json:"file_size"`
	StoragePath     string         `json:"storage_path,omitempty"`
	Status          DocumentStatus `json:"status"`
	ExtractedText   string         `json:"extracted_text,omitempty"`
	Category        Category       `json:"category,omitempty"`
	Summary         string         `json:"summary,omitempty"`
	ConfidenceScore float64        `json:"confidence_score,omitempty"`
	ProcessingError string         `json:"processing_error,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Classification is the classifier output persisted on completion.
type Classification struct {
	Summary    string   `json:"summary"`
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
	// Fallback is set when the filename heuristic produced the result.
	Fallback bool `json:"-"`
}

// Completion is the terminal write for a successfully processed document.
type Completion struct {
	ExtractedText  string
	Classification Classification
}

type DocumentFilter struct {
	UserID   string
	Category Category
	Status   DocumentStatus
	Limit    int
}
