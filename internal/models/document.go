package models

import (
	"encoding/json"
	"errors"
	"time"
)

// DocumentType identifies the kind of generated compliance document.
type DocumentType string

const (
	DocumentModelCard          DocumentType = "model_card"
	DocumentTransparencyReport DocumentType = "transparency_report"
)

// DocumentStatus is the generation lifecycle state of a document.
type DocumentStatus string

const (
	DocumentPending DocumentStatus = "pending"
	DocumentReady   DocumentStatus = "ready"
	DocumentFailed  DocumentStatus = "failed"
)

// Document is a generated compliance artifact. Content is encrypted at rest;
// the plaintext is only populated when a document is read through the API.
type Document struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"project_id"`
	Type      DocumentType   `json:"type"`
	Status    DocumentStatus `json:"status"`
	Title     string         `json:"title"`
	Content   string         `json:"content,omitempty"` // decrypted on read, never stored
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ErrInvalidDocumentType is returned for unknown document types.
var ErrInvalidDocumentType = errors.New("invalid document type")

// ValidateDocumentType checks that t is a known document type.
func ValidateDocumentType(t DocumentType) error {
	switch t {
	case DocumentModelCard, DocumentTransparencyReport:
		return nil
	default:
		return ErrInvalidDocumentType
	}
}

// DocumentJob is a queued document generation request, serialized to JSON
// for storage in the job queue.
type DocumentJob struct {
	ID          string       `json:"id"`
	DocumentID  string       `json:"document_id"`
	ProjectID   string       `json:"project_id"`
	Type        DocumentType `json:"type"`
	RequestedBy string       `json:"requested_by"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Marshal serializes the job for queue storage.
func (j *DocumentJob) Marshal() ([]byte, error) {
	return json.Marshal(j)
}
