// Package export renders contracts to PDF and DOCX.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Request contains parameters for an export operation
type Request struct {
	ContractID string
	Version    string // "latest" or commit hash
	Format     Format
}

// ContractInfo holds the contract metadata needed for export.
type ContractInfo struct {
	ID         string
	Title      string
	Reference  string
	Employer   string
	Contractor string
	Status     string
	UpdatedAt  time.Time
}

// ClauseInfo holds one clause as it should appear in the export.
type ClauseInfo struct {
	ID           string
	Section      string
	ClauseNumber string
	Heading      string
	Body         string
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrContentUnavailable indicates contract content could not be loaded for export.
	ErrContentUnavailable = errors.New("export content unavailable")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
