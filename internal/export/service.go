package export

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"clausebook/api/internal/clauseref"
)

// DataStore defines the data access the export service needs.
type DataStore interface {
	GetContract(ctx context.Context, id string) (ContractInfo, error)
	ListClauses(ctx context.Context, contractID, version string) ([]ClauseInfo, error)
}

// Service renders contracts to downloadable formats.
type Service struct {
	store    DataStore
	resolver *clauseref.Resolver
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{
		store:    store,
		resolver: clauseref.NewResolver(),
	}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	contract, err := s.store.GetContract(ctx, req.ContractID)
	if err != nil {
		return nil, fmt.Errorf("get contract: %w", err)
	}

	clauses, err := s.store.ListClauses(ctx, req.ContractID, req.Version)
	if err != nil {
		return nil, fmt.Errorf("list clauses: %w", err)
	}

	numbers := make([]string, 0, len(clauses))
	for _, c := range clauses {
		if c.ClauseNumber != "" {
			numbers = append(numbers, c.ClauseNumber)
		}
	}
	index := s.resolver.BuildIndex(numbers)

	data := TemplateData{
		Title:      contract.Title,
		Reference:  contract.Reference,
		Employer:   contract.Employer,
		Contractor: contract.Contractor,
		Status:     contract.Status,
		UpdatedAt:  contract.UpdatedAt,
	}

	for _, section := range sectionOrder {
		ts := TemplateSection{Name: sectionTitle(section)}
		for _, c := range clauses {
			if c.Section != section {
				continue
			}
			anchor := ""
			if c.ClauseNumber != "" {
				anchor = "clause-" + s.resolver.Normalize(c.ClauseNumber)
			}
			ts.Clauses = append(ts.Clauses, TemplateClause{
				Number:   c.ClauseNumber,
				Heading:  c.Heading,
				Anchor:   anchor,
				BodyHTML: s.renderBody(c.Body, index),
			})
		}
		if len(ts.Clauses) > 0 {
			data.Sections = append(data.Sections, ts)
		}
	}

	html, err := RenderContractHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(html, contract.Title)
	case FormatDOCX:
		return exportDOCX(html, contract.Title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

// renderBody escapes the clause body and turns citations into in-document
// anchors. Linkification runs on the escaped text so citation offsets line up
// with what ends up in the page.
func (s *Service) renderBody(body string, index *clauseref.Index) template.HTML {
	var b strings.Builder
	for _, line := range strings.Split(body, "\n") {
		escaped := template.HTMLEscapeString(line)
		b.WriteString("<p>")
		b.WriteString(s.resolver.Linkify(escaped, index))
		b.WriteString("</p>\n")
	}
	return template.HTML(b.String())
}

var sectionOrder = []string{"GENERAL", "PARTICULAR"}

func sectionTitle(section string) string {
	switch section {
	case "GENERAL":
		return "General Conditions"
	case "PARTICULAR":
		return "Particular Conditions"
	default:
		return section
	}
}
