package store

import "time"

// Clause sections in FIDIC-style contracts: GENERAL holds the standard
// conditions, PARTICULAR the project-specific overrides for the same
// clause numbers.
const (
	SectionGeneral    = "GENERAL"
	SectionParticular = "PARTICULAR"
)

type Contract struct {
	ID              string
	Title           string
	Reference       string
	Employer        string
	Contractor      string
	Status          string
	SourceObjectKey string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Clause struct {
	ID           string
	ContractID   string
	Section      string
	ClauseNumber string
	Heading      string
	Body         string
	CategoryID   *string
	SortOrder    int
	UpdatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Category is a curated grouping of clauses (payment, time, risk, ...).
type Category struct {
	ID          string
	Name        string
	Slug        string
	Description string
	SortOrder   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ShareLink grants read-only access to one contract via an opaque token,
// optionally behind a password.
type ShareLink struct {
	ID             string
	Token          string
	ContractID     string
	CreatedBy      string
	PasswordHash   *string
	ExpiresAt      *time.Time
	AccessCount    int
	LastAccessedAt *time.Time
	CreatedAt      time.Time
	RevokedAt      *time.Time
}

// CommitInfo describes one revision in a contract's clause history.
type CommitInfo struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
}
