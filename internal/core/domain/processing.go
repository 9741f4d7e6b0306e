package domain

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Payload carries file bytes either raw or base64-encoded as received on the wire.
type Payload struct {
	Raw    []byte
	Base64 string
}

func RawPayload(data []byte) Payload {
	return Payload{Raw: data}
}

func Base64Payload(encoded string) Payload {
	return Payload{Base64: encoded}
}

// Bytes returns the decoded payload. Raw wins when both are set.
func (p Payload) Bytes() ([]byte, error) {
	if p.Raw != nil {
		return p.Raw, nil
	}
	encoded := strings.TrimSpace(p.Base64)
	if encoded == "" {
		return []byte{}, nil
	}
	if idx := strings.Index(encoded, ";base64,"); idx >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[idx+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, WrapError(ErrInvalidInput, "decode payload", err)
	}
	return data, nil
}

// Size is the decoded length when it can be known without decoding.
func (p Payload) Size() int64 {
	if p.Raw != nil {
		return int64(len(p.Raw))
	}
	return int64(base64.StdEncoding.DecodedLen(len(strings.TrimSpace(p.Base64))))
}

type ProcessRequest struct {
	DocumentID string
	Payload    Payload
	Filename   string
	MimeType   string
}

func (r ProcessRequest) Validate() error {
	if strings.TrimSpace(r.DocumentID) == "" {
		return WrapError(ErrInvalidInput, "process request", errors.New("document id is required"))
	}
	return nil
}

type UploadRequest struct {
	UserID   string
	Filename string
	MimeType string
	Data     []byte
}

func (r UploadRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return WrapError(ErrInvalidInput, "upload request", errors.New("user id is required"))
	}
	if strings.TrimSpace(r.Filename) == "" {
		return WrapError(ErrInvalidInput, "upload request", errors.New("filename is required"))
	}
	return nil
}

// ProcessingResult is the terminal response of one orchestrator run.
type ProcessingResult struct {
	Success         bool      `json:"success"`
	DocumentID      string    `json:"documentId,omitempty"`
	ExtractedText   string    `json:"extractedText"`
	Summary         string    `json:"summary,omitempty"`
	Category        Category  `json:"category,omitempty"`
	Confidence      float64   `json:"confidence"`
	ExtractionError string    `json:"extractionError,omitempty"`
	Error           string    `json:"error,omitempty"`
	ErrorKind       ErrorKind `json:"-"`
}

// MarshalJSON always emits the full success shape, and only success,
// documentId and error for failures.
func (r ProcessingResult) MarshalJSON() ([]byte, error) {
	type wire ProcessingResult
	if r.Success {
		return json.Marshal(wire(r))
	}
	return json.Marshal(struct {
		Success    bool   `json:"success"`
		DocumentID string `json:"documentId,omitempty"`
		Error      string `json:"error"`
	}{Success: false, DocumentID: r.DocumentID, Error: r.Error})
}

func SucceededResult(documentID string, completion Completion, extractionErr string) ProcessingResult {
	return ProcessingResult{
		Success:         true,
		DocumentID:      documentID,
		ExtractedText:   completion.ExtractedText,
		Summary:         completion.Classification.Summary,
		Category:        completion.Classification.Category,
		Confidence:      completion.Classification.Confidence,
		ExtractionError: extractionErr,
	}
}

func FailedResult(documentID string, stageErr *StageError) ProcessingResult {
	msg := "unknown error"
	kind := ErrorKindInternal
	if stageErr != nil {
		msg = stageErr.Error()
		kind = stageErr.Kind
	}
	return ProcessingResult{
		Success:    false,
		DocumentID: documentID,
		Error:      msg,
		ErrorKind:  kind,
	}
}

// Err converts a failed result back into an error for callers that need one.
func (r ProcessingResult) Err() error {
	if r.Success {
		return nil
	}
	return fmt.Errorf("process document %s: %s: %s", r.DocumentID, r.ErrorKind, r.Error)
}
