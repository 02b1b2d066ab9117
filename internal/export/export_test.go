package export

import (
	"context"
	"strings"
	"testing"
	"time"
)

type fakeStore struct {
	contract ContractInfo
	clauses  []ClauseInfo
}

func (f *fakeStore) GetContract(ctx context.Context, id string) (ContractInfo, error) {
	return f.contract, nil
}

func (f *fakeStore) ListClauses(ctx context.Context, contractID, version string) ([]ClauseInfo, error) {
	return f.clauses, nil
}

func testStore() *fakeStore {
	return &fakeStore{
		contract: ContractInfo{
			ID:         "ct-1",
			Title:      "Highway Upgrade Works",
			Reference:  "HW-2026-014",
			Employer:   "Roads Authority",
			Contractor: "Acme Construction",
			Status:     "ACTIVE",
			UpdatedAt:  time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		},
		clauses: []ClauseInfo{
			{ID: "cl-1", Section: "GENERAL", ClauseNumber: "6A.1", Heading: "Site Access", Body: "The Employer shall give access."},
			{ID: "cl-2", Section: "GENERAL", ClauseNumber: "22.3", Heading: "Delay Damages", Body: "Subject to Clause 6A.1, damages apply."},
			{ID: "cl-3", Section: "PARTICULAR", ClauseNumber: "22.3", Heading: "Delay Damages (Amended)", Body: "Rate is 0.1% per day."},
		},
	}
}

func TestRenderContractHTML(t *testing.T) {
	data := TemplateData{
		Title:      "Highway Upgrade Works",
		Reference:  "HW-2026-014",
		Employer:   "Roads Authority",
		Contractor: "Acme Construction",
		Status:     "ACTIVE",
		UpdatedAt:  time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		Sections: []TemplateSection{
			{Name: "General Conditions", Clauses: []TemplateClause{
				{Number: "6A.1", Heading: "Site Access", Anchor: "clause-6A.1", BodyHTML: "<p>Body</p>"},
			}},
		},
	}

	html, err := RenderContractHTML(data)
	if err != nil {
		t.Fatalf("RenderContractHTML() error = %v", err)
	}

	for _, want := range []string{
		"Highway Upgrade Works",
		"General Conditions",
		`id="clause-6A.1"`,
		"<p>Body</p>",
		"Mar 14, 2026",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered HTML missing %q", want)
		}
	}
}

func TestServiceBuildsLinkedSections(t *testing.T) {
	svc := NewService(testStore())

	clauses, _ := testStore().ListClauses(context.Background(), "ct-1", "latest")

	numbers := make([]string, 0, len(clauses))
	for _, c := range clauses {
		numbers = append(numbers, c.ClauseNumber)
	}
	index := svc.resolver.BuildIndex(numbers)

	body := svc.renderBody(clauses[1].Body, index)
	if !strings.Contains(string(body), `href="#clause-6A.1"`) {
		t.Errorf("expected citation link in body, got %q", body)
	}
	if !strings.Contains(string(body), `data-clause="6A.1"`) {
		t.Errorf("expected data-clause attribute, got %q", body)
	}
}

func TestRenderBodyEscapesMarkup(t *testing.T) {
	svc := NewService(testStore())
	index := svc.resolver.BuildIndex(nil)

	body := svc.renderBody("Use <script>alert(1)</script> & stay safe.", index)
	if strings.Contains(string(body), "<script>") {
		t.Errorf("body was not escaped: %q", body)
	}
	if !strings.Contains(string(body), "&lt;script&gt;") {
		t.Errorf("expected escaped markup, got %q", body)
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	svc := NewService(testStore())

	_, err := svc.Export(context.Background(), Request{
		ContractID: "ct-1",
		Version:    "latest",
		Format:     Format("odt"),
	})
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Highway Upgrade Works", "Highway-Upgrade-Works"},
		{"FIDIC / Red Book (1999)", "FIDIC--Red-Book-1999"},
		{"", "contract"},
		{"***", "contract"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
