package app

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"clausebook/api/internal/clauseref"
	"clausebook/api/internal/config"
	"clausebook/api/internal/docstore"
	"clausebook/api/internal/export"
	"clausebook/api/internal/gitrepo"
	"clausebook/api/internal/search"
	"clausebook/api/internal/store"
	"clausebook/api/internal/util"

	"golang.org/x/crypto/bcrypt"
)

type ContractInput struct {
	Title      string `json:"title"`
	Reference  string `json:"reference"`
	Employer   string `json:"employer"`
	Contractor string `json:"contractor"`
	Status     string `json:"status"`
}

type ClauseInput struct {
	Section      string  `json:"section"`
	ClauseNumber string  `json:"clauseNumber"`
	Heading      string  `json:"heading"`
	Body         string  `json:"body"`
	CategoryID   *string `json:"categoryId"`
	SortOrder    int     `json:"sortOrder"`
}

type CategoryInput struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	SortOrder   int    `json:"sortOrder"`
}

type ShareLinkInput struct {
	Password  string  `json:"password"`
	ExpiresAt *string `json:"expiresAt"`
}

var allowedSections = map[string]struct{}{
	store.SectionGeneral:    {},
	store.SectionParticular: {},
}

var allowedContractStatuses = map[string]struct{}{
	"DRAFT":     {},
	"ACTIVE":    {},
	"SUSPENDED": {},
	"CLOSED":    {},
}

type dataStore interface {
	Ping(ctx context.Context) error
	InsertContract(context.Context, store.Contract) error
	GetContract(context.Context, string) (store.Contract, error)
	ListContracts(context.Context) ([]store.Contract, error)
	UpdateContract(context.Context, store.Contract) error
	DeleteContract(context.Context, string) error
	SetContractSourceObject(context.Context, string, string) error
	ListClauses(context.Context, string) ([]store.Clause, error)
	GetClause(context.Context, string) (store.Clause, error)
	InsertClause(context.Context, store.Clause) error
	UpdateClause(context.Context, store.Clause) error
	DeleteClause(context.Context, string) error
	ClauseNumbers(context.Context, string) ([]string, error)
	ListCategories(context.Context) ([]store.Category, error)
	InsertCategory(context.Context, store.Category) error
	UpdateCategory(context.Context, store.Category) error
	DeleteCategory(context.Context, string) error
	InsertShareLink(context.Context, store.ShareLink) error
	GetShareLinkByToken(context.Context, string) (store.ShareLink, error)
	TouchShareLink(context.Context, string) error
	RevokeShareLink(context.Context, string) error
}

type gitService interface {
	EnsureContractRepo(string, gitrepo.Snapshot, string) error
	CommitSnapshot(string, gitrepo.Snapshot, string, string) (store.CommitInfo, error)
	GetHeadSnapshot(string) (gitrepo.Snapshot, store.CommitInfo, error)
	GetSnapshotByHash(string, string) (gitrepo.Snapshot, store.CommitInfo, error)
	History(string, int) ([]store.CommitInfo, error)
	CreateTag(string, string, string) error
}

type searchService interface {
	Search(q search.Query) search.Response
	IndexContract(c search.ContractRecord)
	IndexClause(c search.ClauseRecord)
	DeleteContract(id string)
	DeleteClause(id string)
}

type renderCache interface {
	Get(ctx context.Context, contractID, clauseID, rev string) (string, error)
	Put(ctx context.Context, contractID, clauseID, rev, html string) error
	InvalidateContract(ctx context.Context, contractID string) error
}

type objectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (docstore.Object, error)
	Remove(ctx context.Context, key string) error
}

type exporter interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	git      gitService
	search   searchService
	cache    renderCache
	docs     objectStore
	export   exporter
	resolver *clauseref.Resolver

	idxMu   sync.Mutex
	indexes map[string]*clauseref.Index
}

func New(cfg config.Config, dataStore dataStore, gitService gitService, searchService searchService) *Service {
	s := &Service{
		cfg:      cfg,
		store:    dataStore,
		git:      gitService,
		search:   searchService,
		resolver: clauseref.NewResolver(),
		indexes:  make(map[string]*clauseref.Index),
	}
	s.export = export.NewService(&exportAdapter{service: s})
	return s
}

// SetRenderCache wires the optional Redis cache for rendered clause HTML.
func (s *Service) SetRenderCache(cache renderCache) {
	s.cache = cache
}

// SetObjectStore wires the optional object store for contract source files.
func (s *Service) SetObjectStore(docs objectStore) {
	s.docs = docs
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Contracts

func (s *Service) CreateContract(ctx context.Context, input ContractInput, actor string) (map[string]any, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	status := strings.ToUpper(strings.TrimSpace(input.Status))
	if status == "" {
		status = "DRAFT"
	}
	if _, ok := allowedContractStatuses[status]; !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid status", map[string]any{"status": input.Status})
	}

	contract := store.Contract{
		ID:         util.NewID("ct"),
		Title:      title,
		Reference:  strings.TrimSpace(input.Reference),
		Employer:   strings.TrimSpace(input.Employer),
		Contractor: strings.TrimSpace(input.Contractor),
		Status:     status,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := s.store.InsertContract(ctx, contract); err != nil {
		return nil, fmt.Errorf("insert contract: %w", err)
	}

	if err := s.git.EnsureContractRepo(contract.ID, s.snapshot(contract, nil), actor); err != nil {
		return nil, fmt.Errorf("init contract repo: %w", err)
	}

	s.search.IndexContract(contractRecord(contract))

	return contractPayload(contract), nil
}

func (s *Service) ListContracts(ctx context.Context) ([]map[string]any, error) {
	contracts, err := s.store.ListContracts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	items := make([]map[string]any, 0, len(contracts))
	for _, c := range contracts {
		items = append(items, contractPayload(c))
	}
	return items, nil
}

func (s *Service) GetContract(ctx context.Context, id string) (map[string]any, error) {
	contract, err := s.store.GetContract(ctx, id)
	if err != nil {
		return nil, err
	}
	clauses, err := s.store.ListClauses(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list clauses: %w", err)
	}

	payload := contractPayload(contract)
	sections := map[string][]map[string]any{
		store.SectionGeneral:    {},
		store.SectionParticular: {},
	}
	for _, clause := range clauses {
		sections[clause.Section] = append(sections[clause.Section], clausePayload(clause))
	}
	payload["sections"] = map[string]any{
		"general":    sections[store.SectionGeneral],
		"particular": sections[store.SectionParticular],
	}
	return payload, nil
}

func (s *Service) UpdateContract(ctx context.Context, id string, input ContractInput, actor string) (map[string]any, error) {
	contract, err := s.store.GetContract(ctx, id)
	if err != nil {
		return nil, err
	}

	if title := strings.TrimSpace(input.Title); title != "" {
		contract.Title = title
	}
	contract.Reference = strings.TrimSpace(input.Reference)
	contract.Employer = strings.TrimSpace(input.Employer)
	contract.Contractor = strings.TrimSpace(input.Contractor)
	if status := strings.ToUpper(strings.TrimSpace(input.Status)); status != "" {
		if _, ok := allowedContractStatuses[status]; !ok {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid status", map[string]any{"status": input.Status})
		}
		contract.Status = status
	}
	contract.UpdatedAt = time.Now()

	if err := s.store.UpdateContract(ctx, contract); err != nil {
		return nil, fmt.Errorf("update contract: %w", err)
	}

	s.commitContract(ctx, contract.ID, actor, "Update contract details")
	s.search.IndexContract(contractRecord(contract))

	return contractPayload(contract), nil
}

func (s *Service) DeleteContract(ctx context.Context, id string) error {
	contract, err := s.store.GetContract(ctx, id)
	if err != nil {
		return err
	}
	clauses, err := s.store.ListClauses(ctx, id)
	if err != nil {
		return fmt.Errorf("list clauses: %w", err)
	}
	if err := s.store.DeleteContract(ctx, id); err != nil {
		return err
	}

	if s.docs != nil && contract.SourceObjectKey != "" {
		if err := s.docs.Remove(ctx, contract.SourceObjectKey); err != nil {
			log.Printf("remove source document %s: %v", contract.SourceObjectKey, err)
		}
	}
	s.search.DeleteContract(id)
	for _, clause := range clauses {
		s.search.DeleteClause(clause.ID)
	}
	s.dropIndex(ctx, id)
	return nil
}

// Clauses

func (s *Service) CreateClause(ctx context.Context, contractID string, input ClauseInput, actor string) (map[string]any, error) {
	if _, err := s.store.GetContract(ctx, contractID); err != nil {
		return nil, err
	}
	if err := s.validateClauseInput(ctx, contractID, "", input); err != nil {
		return nil, err
	}

	clause := store.Clause{
		ID:           util.NewID("cl"),
		ContractID:   contractID,
		Section:      strings.ToUpper(strings.TrimSpace(input.Section)),
		ClauseNumber: strings.TrimSpace(input.ClauseNumber),
		Heading:      strings.TrimSpace(input.Heading),
		Body:         input.Body,
		CategoryID:   input.CategoryID,
		SortOrder:    input.SortOrder,
		UpdatedBy:    actor,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.store.InsertClause(ctx, clause); err != nil {
		return nil, fmt.Errorf("insert clause: %w", err)
	}

	s.afterClauseMutation(ctx, contractID, actor, fmt.Sprintf("Add Clause %s", displayNumber(clause)))
	s.search.IndexClause(clauseRecord(clause))

	return clausePayload(clause), nil
}

func (s *Service) UpdateClause(ctx context.Context, contractID, clauseID string, input ClauseInput, actor string) (map[string]any, error) {
	clause, err := s.clauseInContract(ctx, contractID, clauseID)
	if err != nil {
		return nil, err
	}
	if err := s.validateClauseInput(ctx, contractID, clauseID, input); err != nil {
		return nil, err
	}

	clause.Section = strings.ToUpper(strings.TrimSpace(input.Section))
	clause.ClauseNumber = strings.TrimSpace(input.ClauseNumber)
	clause.Heading = strings.TrimSpace(input.Heading)
	clause.Body = input.Body
	clause.CategoryID = input.CategoryID
	clause.SortOrder = input.SortOrder
	clause.UpdatedBy = actor
	clause.UpdatedAt = time.Now()

	if err := s.store.UpdateClause(ctx, clause); err != nil {
		return nil, fmt.Errorf("update clause: %w", err)
	}

	s.afterClauseMutation(ctx, contractID, actor, fmt.Sprintf("Amend Clause %s", displayNumber(clause)))
	s.search.IndexClause(clauseRecord(clause))

	return clausePayload(clause), nil
}

func (s *Service) DeleteClause(ctx context.Context, contractID, clauseID, actor string) error {
	clause, err := s.clauseInContract(ctx, contractID, clauseID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteClause(ctx, clauseID); err != nil {
		return err
	}

	s.afterClauseMutation(ctx, contractID, actor, fmt.Sprintf("Remove Clause %s", displayNumber(clause)))
	s.search.DeleteClause(clauseID)
	return nil
}

func (s *Service) ListContractClauses(ctx context.Context, contractID string) ([]map[string]any, error) {
	if _, err := s.store.GetContract(ctx, contractID); err != nil {
		return nil, err
	}
	clauses, err := s.store.ListClauses(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("list clauses: %w", err)
	}
	items := make([]map[string]any, 0, len(clauses))
	for _, clause := range clauses {
		items = append(items, clausePayload(clause))
	}
	return items, nil
}

func (s *Service) GetClause(ctx context.Context, contractID, clauseID string) (map[string]any, error) {
	clause, err := s.clauseInContract(ctx, contractID, clauseID)
	if err != nil {
		return nil, err
	}
	return clausePayload(clause), nil
}

// RenderedClause returns the clause body as HTML with citations linkified
// against the contract's clause index. Results are cached per head revision.
func (s *Service) RenderedClause(ctx context.Context, contractID, clauseID string) (map[string]any, error) {
	clause, err := s.clauseInContract(ctx, contractID, clauseID)
	if err != nil {
		return nil, err
	}

	rev := "0"
	if _, head, err := s.git.GetHeadSnapshot(contractID); err == nil {
		rev = head.Hash
	}

	if s.cache != nil {
		if html, err := s.cache.Get(ctx, contractID, clauseID, rev); err == nil {
			return renderedPayload(clause, html, true), nil
		}
	}

	index, err := s.contractIndex(ctx, contractID)
	if err != nil {
		return nil, err
	}
	html := s.renderBody(clause.Body, index)

	if s.cache != nil {
		if err := s.cache.Put(ctx, contractID, clauseID, rev, html); err != nil {
			log.Printf("rendercache put failed for %s/%s: %v", contractID, clauseID, err)
		}
	}

	return renderedPayload(clause, html, false), nil
}

// ResolveText tokenizes arbitrary text against the contract's clause index.
// Editors use this to preview which citations will become links.
func (s *Service) ResolveText(ctx context.Context, contractID, text string) (map[string]any, error) {
	if _, err := s.store.GetContract(ctx, contractID); err != nil {
		return nil, err
	}
	index, err := s.contractIndex(ctx, contractID)
	if err != nil {
		return nil, err
	}

	tokens := s.resolver.ResolveTokens(s.resolver.Tokenize(text), index)
	if tokens == nil {
		tokens = []clauseref.Token{}
	}
	return map[string]any{
		"tokens":  tokens,
		"clauses": index.Canonical(),
	}, nil
}

// History and versions

func (s *Service) History(ctx context.Context, contractID string, limit int) (map[string]any, error) {
	if _, err := s.store.GetContract(ctx, contractID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	commits, err := s.git.History(contractID, limit)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	items := make([]map[string]any, 0, len(commits))
	for _, commit := range commits {
		items = append(items, commitPayload(commit))
	}
	return map[string]any{"commits": items}, nil
}

func (s *Service) Version(ctx context.Context, contractID, hash string) (map[string]any, error) {
	if _, err := s.store.GetContract(ctx, contractID); err != nil {
		return nil, err
	}
	snap, commit, err := s.git.GetSnapshotByHash(contractID, hash)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "VERSION_NOT_FOUND", "Version not found", map[string]any{"hash": hash})
	}

	clauses := make([]map[string]any, 0, len(snap.Clauses))
	for _, entry := range snap.Clauses {
		clauses = append(clauses, map[string]any{
			"id":           entry.ID,
			"section":      entry.Section,
			"clauseNumber": entry.ClauseNumber,
			"heading":      entry.Heading,
			"body":         entry.Body,
			"sortOrder":    entry.SortOrder,
		})
	}
	return map[string]any{
		"commit":    commitPayload(commit),
		"title":     snap.Title,
		"reference": snap.Reference,
		"clauses":   clauses,
	}, nil
}

// TagVersion attaches a named tag (e.g. "signed", "rev-2") to a commit.
func (s *Service) TagVersion(ctx context.Context, contractID, hash, name string) error {
	if _, err := s.store.GetContract(ctx, contractID); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	if err := s.git.CreateTag(contractID, hash, name); err != nil {
		return domainError(http.StatusNotFound, "VERSION_NOT_FOUND", "Version not found", map[string]any{"hash": hash})
	}
	return nil
}

// Export

func (s *Service) Export(ctx context.Context, contractID, version string, format export.Format) (*export.Result, error) {
	if version == "" {
		version = "latest"
	}
	result, err := s.export.Export(ctx, export.Request{
		ContractID: contractID,
		Version:    version,
		Format:     format,
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Source documents

func (s *Service) UploadSourceDocument(ctx context.Context, contractID string, r io.Reader, size int64, contentType string) (map[string]any, error) {
	if s.docs == nil {
		return nil, domainError(http.StatusServiceUnavailable, "DOCSTORE_UNAVAILABLE", "Object storage not configured", nil)
	}
	if _, err := s.store.GetContract(ctx, contractID); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("contracts/%s/source-%d.pdf", contractID, time.Now().Unix())
	if err := s.docs.Put(ctx, key, r, size, contentType); err != nil {
		return nil, fmt.Errorf("store source document: %w", err)
	}
	if err := s.store.SetContractSourceObject(ctx, contractID, key); err != nil {
		return nil, fmt.Errorf("record source object: %w", err)
	}
	return map[string]any{"objectKey": key}, nil
}

func (s *Service) DownloadSourceDocument(ctx context.Context, contractID string) (docstore.Object, error) {
	if s.docs == nil {
		return docstore.Object{}, domainError(http.StatusServiceUnavailable, "DOCSTORE_UNAVAILABLE", "Object storage not configured", nil)
	}
	contract, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return docstore.Object{}, err
	}
	if contract.SourceObjectKey == "" {
		return docstore.Object{}, domainError(http.StatusNotFound, "NO_SOURCE_DOCUMENT", "No source document uploaded", nil)
	}
	obj, err := s.docs.Get(ctx, contract.SourceObjectKey)
	if err != nil {
		return docstore.Object{}, fmt.Errorf("fetch source document: %w", err)
	}
	return obj, nil
}

// Search

func (s *Service) Search(ctx context.Context, text, filterType, contractID string, limit, offset int) (search.Response, error) {
	var rtyp search.ResultType
	switch filterType {
	case "":
	case "contract":
		rtyp = search.ResultContract
	case "clause":
		rtyp = search.ResultClause
	default:
		return search.Response{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "type must be contract or clause", nil)
	}
	return s.search.Search(search.Query{
		Text:             text,
		FilterType:       rtyp,
		FilterContractID: contractID,
		Limit:            limit,
		Offset:           offset,
	}), nil
}

// Categories

func (s *Service) ListCategories(ctx context.Context) ([]map[string]any, error) {
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	items := make([]map[string]any, 0, len(categories))
	for _, c := range categories {
		items = append(items, categoryPayload(c))
	}
	return items, nil
}

func (s *Service) CreateCategory(ctx context.Context, input CategoryInput) (map[string]any, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	slug := strings.TrimSpace(input.Slug)
	if slug == "" {
		slug = slugify(name)
	}

	category := store.Category{
		ID:          util.NewID("cat"),
		Name:        name,
		Slug:        slug,
		Description: strings.TrimSpace(input.Description),
		SortOrder:   input.SortOrder,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := s.store.InsertCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}
	return categoryPayload(category), nil
}

func (s *Service) UpdateCategory(ctx context.Context, id string, input CategoryInput) (map[string]any, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	slug := strings.TrimSpace(input.Slug)
	if slug == "" {
		slug = slugify(name)
	}

	category := store.Category{
		ID:          id,
		Name:        name,
		Slug:        slug,
		Description: strings.TrimSpace(input.Description),
		SortOrder:   input.SortOrder,
		UpdatedAt:   time.Now(),
	}
	if err := s.store.UpdateCategory(ctx, category); err != nil {
		return nil, err
	}
	return categoryPayload(category), nil
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	return s.store.DeleteCategory(ctx, id)
}

// Share links

func (s *Service) CreateShareLink(ctx context.Context, contractID string, input ShareLinkInput, actor string) (map[string]any, error) {
	if _, err := s.store.GetContract(ctx, contractID); err != nil {
		return nil, err
	}

	link := store.ShareLink{
		ID:         util.NewID("shl"),
		Token:      util.NewID(""),
		ContractID: contractID,
		CreatedBy:  actor,
		CreatedAt:  time.Now(),
	}

	if input.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash share password: %w", err)
		}
		hashed := string(hash)
		link.PasswordHash = &hashed
	}

	if input.ExpiresAt != nil && *input.ExpiresAt != "" {
		expires, err := time.Parse(time.RFC3339, *input.ExpiresAt)
		if err != nil {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "expiresAt must be RFC 3339", nil)
		}
		link.ExpiresAt = &expires
	}

	if err := s.store.InsertShareLink(ctx, link); err != nil {
		return nil, fmt.Errorf("insert share link: %w", err)
	}

	return map[string]any{
		"id":          link.ID,
		"token":       link.Token,
		"contractId":  link.ContractID,
		"hasPassword": link.PasswordHash != nil,
		"expiresAt":   link.ExpiresAt,
	}, nil
}

// AccessShare validates a share token (and password if set) and returns the
// shared contract with every clause rendered and linkified.
func (s *Service) AccessShare(ctx context.Context, token, password string) (map[string]any, error) {
	link, err := s.store.GetShareLinkByToken(ctx, token)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "SHARE_NOT_FOUND", "Share link not found", nil)
	}
	if link.RevokedAt != nil {
		return nil, domainError(http.StatusGone, "SHARE_REVOKED", "Share link has been revoked", nil)
	}
	if link.ExpiresAt != nil && time.Now().After(*link.ExpiresAt) {
		return nil, domainError(http.StatusGone, "SHARE_EXPIRED", "Share link has expired", nil)
	}
	if link.PasswordHash != nil {
		if password == "" {
			return nil, domainError(http.StatusUnauthorized, "SHARE_PASSWORD_REQUIRED", "Password required", nil)
		}
		if bcrypt.CompareHashAndPassword([]byte(*link.PasswordHash), []byte(password)) != nil {
			return nil, domainError(http.StatusUnauthorized, "SHARE_PASSWORD_INVALID", "Invalid password", nil)
		}
	}

	contract, err := s.store.GetContract(ctx, link.ContractID)
	if err != nil {
		return nil, err
	}
	clauses, err := s.store.ListClauses(ctx, link.ContractID)
	if err != nil {
		return nil, fmt.Errorf("list clauses: %w", err)
	}
	index, err := s.contractIndex(ctx, link.ContractID)
	if err != nil {
		return nil, err
	}

	if err := s.store.TouchShareLink(ctx, link.ID); err != nil {
		log.Printf("touch share link %s: %v", link.ID, err)
	}

	rendered := make([]map[string]any, 0, len(clauses))
	for _, clause := range clauses {
		payload := clausePayload(clause)
		payload["html"] = s.renderBody(clause.Body, index)
		rendered = append(rendered, payload)
	}

	return map[string]any{
		"contract": contractPayload(contract),
		"clauses":  rendered,
	}, nil
}

func (s *Service) RevokeShareLink(ctx context.Context, id string) error {
	return s.store.RevokeShareLink(ctx, id)
}

// Bootstrap seeds a demonstration contract on an empty database.
func (s *Service) Bootstrap(ctx context.Context) error {
	contracts, err := s.store.ListContracts(ctx)
	if err != nil {
		return err
	}
	if len(contracts) > 0 {
		return nil
	}

	payload, err := s.CreateContract(ctx, ContractInput{
		Title:      "Sample Works Contract",
		Reference:  "SAMPLE-001",
		Employer:   "Example Employer Ltd",
		Contractor: "Example Contractor Ltd",
		Status:     "DRAFT",
	}, "system")
	if err != nil {
		return err
	}
	contractID, _ := payload["id"].(string)

	seeds := []ClauseInput{
		{Section: store.SectionGeneral, ClauseNumber: "1.1", Heading: "Definitions", Body: "In this Contract the following words have the meanings stated.", SortOrder: 1},
		{Section: store.SectionGeneral, ClauseNumber: "6A.1", Heading: "Access to the Site", Body: "The Employer shall give the Contractor access to the Site.", SortOrder: 2},
		{Section: store.SectionGeneral, ClauseNumber: "22.3", Heading: "Delay Damages", Body: "Subject to Clause 6A.1, the Contractor shall pay delay damages.", SortOrder: 3},
		{Section: store.SectionParticular, ClauseNumber: "22.3", Heading: "Delay Damages", Body: "The rate of delay damages under Clause 22.3 is 0.1% per day.", SortOrder: 1},
	}
	for _, seed := range seeds {
		if _, err := s.CreateClause(ctx, contractID, seed, "system"); err != nil {
			return err
		}
	}
	return nil
}

// internals

func (s *Service) validateClauseInput(ctx context.Context, contractID, clauseID string, input ClauseInput) error {
	section := strings.ToUpper(strings.TrimSpace(input.Section))
	if _, ok := allowedSections[section]; !ok {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "section must be GENERAL or PARTICULAR", map[string]any{"section": input.Section})
	}
	if strings.TrimSpace(input.Heading) == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "heading is required", nil)
	}

	number := strings.TrimSpace(input.ClauseNumber)
	if number == "" {
		return nil
	}
	normalized := s.resolver.Normalize(number)
	if normalized == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "clauseNumber is not a valid clause identifier", map[string]any{"clauseNumber": number})
	}

	clauses, err := s.store.ListClauses(ctx, contractID)
	if err != nil {
		return fmt.Errorf("list clauses: %w", err)
	}
	for _, existing := range clauses {
		if existing.ID == clauseID || existing.ClauseNumber == "" {
			continue
		}
		if existing.Section == section && s.resolver.Normalize(existing.ClauseNumber) == normalized {
			return domainError(http.StatusConflict, "CLAUSE_NUMBER_TAKEN", "A clause with this number already exists in the section", map[string]any{"clauseNumber": number})
		}
	}
	return nil
}

func (s *Service) clauseInContract(ctx context.Context, contractID, clauseID string) (store.Clause, error) {
	clause, err := s.store.GetClause(ctx, clauseID)
	if err != nil {
		return store.Clause{}, err
	}
	if clause.ContractID != contractID {
		return store.Clause{}, domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
	return clause, nil
}

// afterClauseMutation commits the new clause list to the contract repo and
// drops the cached index and renderings. Side effects are logged, not
// surfaced: the database write already succeeded.
func (s *Service) afterClauseMutation(ctx context.Context, contractID, actor, message string) {
	s.commitContract(ctx, contractID, actor, message)
	s.dropIndex(ctx, contractID)
}

func (s *Service) commitContract(ctx context.Context, contractID, actor, message string) {
	contract, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		log.Printf("commit %s: load contract: %v", contractID, err)
		return
	}
	clauses, err := s.store.ListClauses(ctx, contractID)
	if err != nil {
		log.Printf("commit %s: load clauses: %v", contractID, err)
		return
	}
	if actor == "" {
		actor = "system"
	}
	if _, err := s.git.CommitSnapshot(contractID, s.snapshot(contract, clauses), actor, message); err != nil {
		log.Printf("commit %s: %v", contractID, err)
	}
}

func (s *Service) snapshot(contract store.Contract, clauses []store.Clause) gitrepo.Snapshot {
	snap := gitrepo.Snapshot{
		Title:     contract.Title,
		Reference: contract.Reference,
		Clauses:   make([]gitrepo.ClauseEntry, 0, len(clauses)),
	}
	for _, clause := range clauses {
		snap.Clauses = append(snap.Clauses, gitrepo.ClauseEntry{
			ID:           clause.ID,
			Section:      clause.Section,
			ClauseNumber: clause.ClauseNumber,
			Heading:      clause.Heading,
			Body:         clause.Body,
			SortOrder:    clause.SortOrder,
		})
	}
	return snap
}

// contractIndex returns the clause index for a contract, building it on
// first use after any mutation.
func (s *Service) contractIndex(ctx context.Context, contractID string) (*clauseref.Index, error) {
	s.idxMu.Lock()
	if index, ok := s.indexes[contractID]; ok {
		s.idxMu.Unlock()
		return index, nil
	}
	s.idxMu.Unlock()

	numbers, err := s.store.ClauseNumbers(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("load clause numbers: %w", err)
	}
	index := s.resolver.BuildIndex(numbers)

	s.idxMu.Lock()
	s.indexes[contractID] = index
	s.idxMu.Unlock()
	return index, nil
}

func (s *Service) dropIndex(ctx context.Context, contractID string) {
	s.idxMu.Lock()
	delete(s.indexes, contractID)
	s.idxMu.Unlock()

	if s.cache != nil {
		if err := s.cache.InvalidateContract(ctx, contractID); err != nil {
			log.Printf("invalidate render cache for %s: %v", contractID, err)
		}
	}
}

// renderBody escapes the body and linkifies citations line by line.
func (s *Service) renderBody(body string, index *clauseref.Index) string {
	var b strings.Builder
	for _, line := range strings.Split(body, "\n") {
		escaped := template.HTMLEscapeString(line)
		b.WriteString("<p>")
		b.WriteString(s.resolver.Linkify(escaped, index))
		b.WriteString("</p>\n")
	}
	return b.String()
}

func displayNumber(clause store.Clause) string {
	if clause.ClauseNumber != "" {
		return clause.ClauseNumber
	}
	return clause.Heading
}

func slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// payload builders

func contractPayload(c store.Contract) map[string]any {
	return map[string]any{
		"id":         c.ID,
		"title":      c.Title,
		"reference":  c.Reference,
		"employer":   c.Employer,
		"contractor": c.Contractor,
		"status":     c.Status,
		"hasSource":  c.SourceObjectKey != "",
		"createdAt":  c.CreatedAt,
		"updatedAt":  c.UpdatedAt,
	}
}

func clausePayload(c store.Clause) map[string]any {
	return map[string]any{
		"id":           c.ID,
		"contractId":   c.ContractID,
		"section":      c.Section,
		"clauseNumber": c.ClauseNumber,
		"heading":      c.Heading,
		"body":         c.Body,
		"categoryId":   c.CategoryID,
		"sortOrder":    c.SortOrder,
		"updatedBy":    c.UpdatedBy,
		"updatedAt":    c.UpdatedAt,
	}
}

func categoryPayload(c store.Category) map[string]any {
	return map[string]any{
		"id":          c.ID,
		"name":        c.Name,
		"slug":        c.Slug,
		"description": c.Description,
		"sortOrder":   c.SortOrder,
	}
}

func commitPayload(c store.CommitInfo) map[string]any {
	return map[string]any{
		"hash":      c.Hash,
		"message":   strings.TrimSpace(c.Message),
		"author":    c.Author,
		"createdAt": c.CreatedAt,
	}
}

func renderedPayload(clause store.Clause, html string, cached bool) map[string]any {
	return map[string]any{
		"clauseId":     clause.ID,
		"clauseNumber": clause.ClauseNumber,
		"heading":      clause.Heading,
		"html":         html,
		"cached":       cached,
	}
}

func contractRecord(c store.Contract) search.ContractRecord {
	return search.ContractRecord{
		ID:         c.ID,
		Title:      c.Title,
		Reference:  c.Reference,
		Employer:   c.Employer,
		Contractor: c.Contractor,
		Status:     c.Status,
	}
}

func clauseRecord(c store.Clause) search.ClauseRecord {
	record := search.ClauseRecord{
		ID:           c.ID,
		ContractID:   c.ContractID,
		Section:      c.Section,
		ClauseNumber: c.ClauseNumber,
		Heading:      c.Heading,
		Body:         c.Body,
	}
	if c.CategoryID != nil {
		record.CategoryID = *c.CategoryID
	}
	return record
}

// exportAdapter feeds the export service from the store, or from a git
// snapshot when a specific version is requested.
type exportAdapter struct {
	service *Service
}

func (a *exportAdapter) GetContract(ctx context.Context, id string) (export.ContractInfo, error) {
	contract, err := a.service.store.GetContract(ctx, id)
	if err != nil {
		return export.ContractInfo{}, err
	}
	return export.ContractInfo{
		ID:         contract.ID,
		Title:      contract.Title,
		Reference:  contract.Reference,
		Employer:   contract.Employer,
		Contractor: contract.Contractor,
		Status:     contract.Status,
		UpdatedAt:  contract.UpdatedAt,
	}, nil
}

func (a *exportAdapter) ListClauses(ctx context.Context, contractID, version string) ([]export.ClauseInfo, error) {
	if version == "" || version == "latest" {
		clauses, err := a.service.store.ListClauses(ctx, contractID)
		if err != nil {
			return nil, err
		}
		items := make([]export.ClauseInfo, 0, len(clauses))
		for _, clause := range clauses {
			items = append(items, export.ClauseInfo{
				ID:           clause.ID,
				Section:      clause.Section,
				ClauseNumber: clause.ClauseNumber,
				Heading:      clause.Heading,
				Body:         clause.Body,
			})
		}
		return items, nil
	}

	snap, _, err := a.service.git.GetSnapshotByHash(contractID, version)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", export.ErrContentUnavailable, err)
	}
	items := make([]export.ClauseInfo, 0, len(snap.Clauses))
	for _, entry := range snap.Clauses {
		items = append(items, export.ClauseInfo{
			ID:           entry.ID,
			Section:      entry.Section,
			ClauseNumber: entry.ClauseNumber,
			Heading:      entry.Heading,
			Body:         entry.Body,
		})
	}
	return items, nil
}
