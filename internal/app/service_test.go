package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"clausebook/api/internal/config"
	"clausebook/api/internal/gitrepo"
	"clausebook/api/internal/search"
	"clausebook/api/internal/store"
)

type fakeStore struct {
	contracts  map[string]store.Contract
	clauses    map[string]store.Clause
	categories map[string]store.Category
	shares     map[string]store.ShareLink
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		contracts:  make(map[string]store.Contract),
		clauses:    make(map[string]store.Clause),
		categories: make(map[string]store.Category),
		shares:     make(map[string]store.ShareLink),
	}
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }

func (f *fakeStore) InsertContract(ctx context.Context, c store.Contract) error {
	f.contracts[c.ID] = c
	return nil
}

func (f *fakeStore) GetContract(ctx context.Context, id string) (store.Contract, error) {
	c, ok := f.contracts[id]
	if !ok {
		return store.Contract{}, sql.ErrNoRows
	}
	return c, nil
}

func (f *fakeStore) ListContracts(ctx context.Context) ([]store.Contract, error) {
	items := make([]store.Contract, 0, len(f.contracts))
	for _, c := range f.contracts {
		items = append(items, c)
	}
	return items, nil
}

func (f *fakeStore) UpdateContract(ctx context.Context, c store.Contract) error {
	if _, ok := f.contracts[c.ID]; !ok {
		return sql.ErrNoRows
	}
	f.contracts[c.ID] = c
	return nil
}

func (f *fakeStore) DeleteContract(ctx context.Context, id string) error {
	if _, ok := f.contracts[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.contracts, id)
	for cid, clause := range f.clauses {
		if clause.ContractID == id {
			delete(f.clauses, cid)
		}
	}
	return nil
}

func (f *fakeStore) SetContractSourceObject(ctx context.Context, contractID, key string) error {
	c, ok := f.contracts[contractID]
	if !ok {
		return sql.ErrNoRows
	}
	c.SourceObjectKey = key
	f.contracts[contractID] = c
	return nil
}

func (f *fakeStore) ListClauses(ctx context.Context, contractID string) ([]store.Clause, error) {
	items := make([]store.Clause, 0)
	for _, clause := range f.clauses {
		if clause.ContractID == contractID {
			items = append(items, clause)
		}
	}
	return items, nil
}

func (f *fakeStore) GetClause(ctx context.Context, id string) (store.Clause, error) {
	clause, ok := f.clauses[id]
	if !ok {
		return store.Clause{}, sql.ErrNoRows
	}
	return clause, nil
}

func (f *fakeStore) InsertClause(ctx context.Context, c store.Clause) error {
	f.clauses[c.ID] = c
	return nil
}

func (f *fakeStore) UpdateClause(ctx context.Context, c store.Clause) error {
	if _, ok := f.clauses[c.ID]; !ok {
		return sql.ErrNoRows
	}
	f.clauses[c.ID] = c
	return nil
}

func (f *fakeStore) DeleteClause(ctx context.Context, id string) error {
	if _, ok := f.clauses[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.clauses, id)
	return nil
}

func (f *fakeStore) ClauseNumbers(ctx context.Context, contractID string) ([]string, error) {
	numbers := make([]string, 0)
	for _, clause := range f.clauses {
		if clause.ContractID == contractID && clause.ClauseNumber != "" {
			numbers = append(numbers, clause.ClauseNumber)
		}
	}
	return numbers, nil
}

func (f *fakeStore) ListCategories(ctx context.Context) ([]store.Category, error) {
	items := make([]store.Category, 0, len(f.categories))
	for _, c := range f.categories {
		items = append(items, c)
	}
	return items, nil
}

func (f *fakeStore) InsertCategory(ctx context.Context, c store.Category) error {
	f.categories[c.ID] = c
	return nil
}

func (f *fakeStore) UpdateCategory(ctx context.Context, c store.Category) error {
	if _, ok := f.categories[c.ID]; !ok {
		return sql.ErrNoRows
	}
	f.categories[c.ID] = c
	return nil
}

func (f *fakeStore) DeleteCategory(ctx context.Context, id string) error {
	delete(f.categories, id)
	return nil
}

func (f *fakeStore) InsertShareLink(ctx context.Context, link store.ShareLink) error {
	f.shares[link.Token] = link
	return nil
}

func (f *fakeStore) GetShareLinkByToken(ctx context.Context, token string) (store.ShareLink, error) {
	link, ok := f.shares[token]
	if !ok {
		return store.ShareLink{}, sql.ErrNoRows
	}
	return link, nil
}

func (f *fakeStore) TouchShareLink(ctx context.Context, id string) error {
	for token, link := range f.shares {
		if link.ID == id {
			link.AccessCount++
			f.shares[token] = link
		}
	}
	return nil
}

func (f *fakeStore) RevokeShareLink(ctx context.Context, id string) error {
	for token, link := range f.shares {
		if link.ID == id {
			now := time.Now()
			link.RevokedAt = &now
			f.shares[token] = link
			return nil
		}
	}
	return sql.ErrNoRows
}

type fakeGit struct {
	commits []string
}

func (f *fakeGit) EnsureContractRepo(contractID string, initial gitrepo.Snapshot, author string) error {
	return nil
}

func (f *fakeGit) CommitSnapshot(contractID string, snap gitrepo.Snapshot, author, message string) (store.CommitInfo, error) {
	f.commits = append(f.commits, message)
	return store.CommitInfo{Hash: "abc1234", Message: message, Author: author, CreatedAt: time.Now()}, nil
}

func (f *fakeGit) GetHeadSnapshot(contractID string) (gitrepo.Snapshot, store.CommitInfo, error) {
	return gitrepo.Snapshot{}, store.CommitInfo{Hash: "abc1234"}, nil
}

func (f *fakeGit) GetSnapshotByHash(contractID, hash string) (gitrepo.Snapshot, store.CommitInfo, error) {
	return gitrepo.Snapshot{}, store.CommitInfo{}, errors.New("not found")
}

func (f *fakeGit) History(contractID string, limit int) ([]store.CommitInfo, error) {
	items := make([]store.CommitInfo, 0, len(f.commits))
	for i := len(f.commits) - 1; i >= 0; i-- {
		items = append(items, store.CommitInfo{Hash: "abc1234", Message: f.commits[i]})
	}
	return items, nil
}

func (f *fakeGit) CreateTag(contractID, hash, name string) error { return nil }

type fakeSearch struct {
	indexed []string
	deleted []string
}

func (f *fakeSearch) Search(q search.Query) search.Response {
	return search.Response{Results: []search.Result{}, Query: q.Text}
}

func (f *fakeSearch) IndexContract(c search.ContractRecord) { f.indexed = append(f.indexed, c.ID) }
func (f *fakeSearch) IndexClause(c search.ClauseRecord)    { f.indexed = append(f.indexed, c.ID) }
func (f *fakeSearch) DeleteContract(id string)             { f.deleted = append(f.deleted, id) }
func (f *fakeSearch) DeleteClause(id string)               { f.deleted = append(f.deleted, id) }

func newTestService() (*Service, *fakeStore, *fakeGit, *fakeSearch) {
	fs := newFakeStore()
	fg := &fakeGit{}
	fsr := &fakeSearch{}
	svc := New(config.Config{}, fs, fg, fsr)
	return svc, fs, fg, fsr
}

func seedContract(t *testing.T, svc *Service) string {
	t.Helper()
	payload, err := svc.CreateContract(context.Background(), ContractInput{
		Title:      "Highway Upgrade Works",
		Reference:  "HW-2026-014",
		Employer:   "Roads Authority",
		Contractor: "Acme Construction",
	}, "Avery")
	if err != nil {
		t.Fatalf("CreateContract() error = %v", err)
	}
	id, _ := payload["id"].(string)
	if id == "" {
		t.Fatal("expected contract id in payload")
	}
	return id
}

func TestCreateContractValidation(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.CreateContract(context.Background(), ContractInput{Title: "  "}, "Avery")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = svc.CreateContract(context.Background(), ContractInput{Title: "Ok", Status: "bogus"}, "Avery")
	if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected status validation error, got %v", err)
	}
}

func TestCreateContractIndexesSearch(t *testing.T) {
	svc, _, _, fsr := newTestService()
	id := seedContract(t, svc)

	if len(fsr.indexed) != 1 || fsr.indexed[0] != id {
		t.Fatalf("expected contract indexed in search, got %v", fsr.indexed)
	}
}

func TestClauseLifecycle(t *testing.T) {
	svc, _, fg, _ := newTestService()
	contractID := seedContract(t, svc)

	payload, err := svc.CreateClause(context.Background(), contractID, ClauseInput{
		Section:      "general",
		ClauseNumber: "6A.1",
		Heading:      "Site Access",
		Body:         "The Employer shall give access.",
		SortOrder:    1,
	}, "Avery")
	if err != nil {
		t.Fatalf("CreateClause() error = %v", err)
	}
	clauseID, _ := payload["id"].(string)
	if payload["section"] != "GENERAL" {
		t.Errorf("expected section normalized to GENERAL, got %v", payload["section"])
	}

	found := false
	for _, msg := range fg.commits {
		if strings.Contains(msg, "Add Clause 6A.1") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected git commit for clause creation, got %v", fg.commits)
	}

	updated, err := svc.UpdateClause(context.Background(), contractID, clauseID, ClauseInput{
		Section:      "GENERAL",
		ClauseNumber: "6A.1",
		Heading:      "Access to the Site",
		Body:         "Access within 7 days.",
		SortOrder:    1,
	}, "Avery")
	if err != nil {
		t.Fatalf("UpdateClause() error = %v", err)
	}
	if updated["heading"] != "Access to the Site" {
		t.Errorf("unexpected heading after update: %v", updated["heading"])
	}

	if err := svc.DeleteClause(context.Background(), contractID, clauseID, "Avery"); err != nil {
		t.Fatalf("DeleteClause() error = %v", err)
	}
	if _, err := svc.GetClause(context.Background(), contractID, clauseID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows after delete, got %v", err)
	}
}

func TestClauseSectionValidation(t *testing.T) {
	svc, _, _, _ := newTestService()
	contractID := seedContract(t, svc)

	_, err := svc.CreateClause(context.Background(), contractID, ClauseInput{
		Section: "APPENDIX",
		Heading: "Nope",
	}, "Avery")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected section validation error, got %v", err)
	}
}

func TestDuplicateClauseNumberConflict(t *testing.T) {
	svc, _, _, _ := newTestService()
	contractID := seedContract(t, svc)

	mustCreateClause(t, svc, contractID, "GENERAL", "6A.1", "Site Access")

	// Same number spelled differently still collides after normalization.
	_, err := svc.CreateClause(context.Background(), contractID, ClauseInput{
		Section:      "GENERAL",
		ClauseNumber: "clause 6a.1",
		Heading:      "Duplicate",
	}, "Avery")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusConflict {
		t.Fatalf("expected conflict, got %v", err)
	}

	// The same number in the other section is allowed: particular conditions
	// override general ones.
	if _, err := svc.CreateClause(context.Background(), contractID, ClauseInput{
		Section:      "PARTICULAR",
		ClauseNumber: "6A.1",
		Heading:      "Override",
	}, "Avery"); err != nil {
		t.Fatalf("expected particular override to be allowed, got %v", err)
	}
}

func TestResolveTextUsesFreshIndex(t *testing.T) {
	svc, _, _, _ := newTestService()
	contractID := seedContract(t, svc)

	payload, err := svc.ResolveText(context.Background(), contractID, "See Clause 6A.1 here")
	if err != nil {
		t.Fatalf("ResolveText() error = %v", err)
	}
	if clauses, _ := payload["clauses"].([]string); len(clauses) != 0 {
		t.Fatalf("expected empty index before any clause exists, got %v", clauses)
	}

	mustCreateClause(t, svc, contractID, "GENERAL", "6A.1", "Site Access")

	payload, err = svc.ResolveText(context.Background(), contractID, "See Clause 6A.1 here")
	if err != nil {
		t.Fatalf("ResolveText() error = %v", err)
	}
	clauses, _ := payload["clauses"].([]string)
	if len(clauses) != 1 || clauses[0] != "6A.1" {
		t.Fatalf("expected rebuilt index with 6A.1 after mutation, got %v", clauses)
	}
}

func TestRenderedClauseLinkifies(t *testing.T) {
	svc, _, _, _ := newTestService()
	contractID := seedContract(t, svc)

	mustCreateClause(t, svc, contractID, "GENERAL", "6A.1", "Site Access")
	payload, err := svc.CreateClause(context.Background(), contractID, ClauseInput{
		Section:      "GENERAL",
		ClauseNumber: "22.3",
		Heading:      "Delay Damages",
		Body:         "Subject to Clause 6A.1, damages apply.",
	}, "Avery")
	if err != nil {
		t.Fatalf("CreateClause() error = %v", err)
	}
	clauseID, _ := payload["id"].(string)

	rendered, err := svc.RenderedClause(context.Background(), contractID, clauseID)
	if err != nil {
		t.Fatalf("RenderedClause() error = %v", err)
	}
	html, _ := rendered["html"].(string)
	if !strings.Contains(html, `href="#clause-6A.1"`) {
		t.Errorf("expected linkified citation, got %q", html)
	}
	if cached, _ := rendered["cached"].(bool); cached {
		t.Error("expected cache miss without a cache configured")
	}
}

func TestShareLinkFlow(t *testing.T) {
	svc, fs, _, _ := newTestService()
	contractID := seedContract(t, svc)
	mustCreateClause(t, svc, contractID, "GENERAL", "1.1", "Definitions")

	created, err := svc.CreateShareLink(context.Background(), contractID, ShareLinkInput{Password: "s3cret"}, "Avery")
	if err != nil {
		t.Fatalf("CreateShareLink() error = %v", err)
	}
	token, _ := created["token"].(string)
	if token == "" {
		t.Fatal("expected share token")
	}
	if hasPassword, _ := created["hasPassword"].(bool); !hasPassword {
		t.Error("expected hasPassword true")
	}

	if _, err := svc.AccessShare(context.Background(), token, ""); err == nil {
		t.Fatal("expected password-required error")
	}
	if _, err := svc.AccessShare(context.Background(), token, "wrong"); err == nil {
		t.Fatal("expected invalid-password error")
	}

	payload, err := svc.AccessShare(context.Background(), token, "s3cret")
	if err != nil {
		t.Fatalf("AccessShare() error = %v", err)
	}
	clauses, _ := payload["clauses"].([]map[string]any)
	if len(clauses) != 1 {
		t.Fatalf("expected 1 shared clause, got %d", len(clauses))
	}

	if fs.shares[token].AccessCount != 1 {
		t.Errorf("expected access count 1, got %d", fs.shares[token].AccessCount)
	}

	id, _ := created["id"].(string)
	if err := svc.RevokeShareLink(context.Background(), id); err != nil {
		t.Fatalf("RevokeShareLink() error = %v", err)
	}
	if _, err := svc.AccessShare(context.Background(), token, "s3cret"); err == nil {
		t.Fatal("expected revoked error")
	}
}

func TestShareLinkExpiry(t *testing.T) {
	svc, _, _, _ := newTestService()
	contractID := seedContract(t, svc)

	past := time.Now().Add(-time.Hour).Format(time.RFC3339)
	created, err := svc.CreateShareLink(context.Background(), contractID, ShareLinkInput{ExpiresAt: &past}, "Avery")
	if err != nil {
		t.Fatalf("CreateShareLink() error = %v", err)
	}
	token, _ := created["token"].(string)

	_, err = svc.AccessShare(context.Background(), token, "")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusGone {
		t.Fatalf("expected 410 for expired link, got %v", err)
	}
}

func TestDeleteContractCleansUpSearch(t *testing.T) {
	svc, _, _, fsr := newTestService()
	contractID := seedContract(t, svc)
	clausePayload := mustCreateClause(t, svc, contractID, "GENERAL", "1.1", "Definitions")
	clauseID, _ := clausePayload["id"].(string)

	if err := svc.DeleteContract(context.Background(), contractID); err != nil {
		t.Fatalf("DeleteContract() error = %v", err)
	}

	foundContract, foundClause := false, false
	for _, id := range fsr.deleted {
		if id == contractID {
			foundContract = true
		}
		if id == clauseID {
			foundClause = true
		}
	}
	if !foundContract || !foundClause {
		t.Errorf("expected contract and clause removed from search, got %v", fsr.deleted)
	}
}

func TestBootstrapSeedsOnce(t *testing.T) {
	svc, fs, _, _ := newTestService()

	if err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	if len(fs.contracts) != 1 {
		t.Fatalf("expected 1 seeded contract, got %d", len(fs.contracts))
	}
	if len(fs.clauses) != 4 {
		t.Fatalf("expected 4 seeded clauses, got %d", len(fs.clauses))
	}

	if err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() second run error = %v", err)
	}
	if len(fs.contracts) != 1 {
		t.Fatalf("expected bootstrap to be idempotent, got %d contracts", len(fs.contracts))
	}
}

func mustCreateClause(t *testing.T, svc *Service, contractID, section, number, heading string) map[string]any {
	t.Helper()
	payload, err := svc.CreateClause(context.Background(), contractID, ClauseInput{
		Section:      section,
		ClauseNumber: number,
		Heading:      heading,
		Body:         heading + " body.",
	}, "Avery")
	if err != nil {
		t.Fatalf("CreateClause(%s) error = %v", number, err)
	}
	return payload
}
