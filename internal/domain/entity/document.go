// Package entity defines the core domain entities of the grant-insight application:
// uploaded application documents, grant opportunities, applicant organizations and
// the analysis results derived from them.
package entity

import (
	"strings"
	"time"
)

// maxDocumentBodyLength bounds the body accepted for analysis, in runes.
const maxDocumentBodyLength = 200000

// Document is an uploaded grant application document.
type Document struct {
	ID             int64
	OrganizationID int64
	Title          string
	Body           string
	CreatedAt      time.Time
}

// Validate checks the fields required for analysis.
func (d *Document) Validate() error {
	if d.ID <= 0 {
		return &ValidationError{Field: "id", Message: "id must be positive"}
	}
	if strings.TrimSpace(d.Body) == "" {
		return &ValidationError{Field: "body", Message: "body is required"}
	}
	if len([]rune(d.Body)) > maxDocumentBodyLength {
		return &ValidationError{Field: "body", Message: "body is too long"}
	}
	return nil
}
