package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not
// configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexContract indexes a contract (fire-and-forget to Meilisearch).
func (s *Service) IndexContract(c ContractRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexContract(c); err != nil {
			log.Printf("search: index contract %s: %v", c.ID, err)
		}
	}()
}

// IndexClause indexes a clause (fire-and-forget to Meilisearch).
func (s *Service) IndexClause(c ClauseRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexClause(c); err != nil {
			log.Printf("search: index clause %s: %v", c.ID, err)
		}
	}()
}

// DeleteContract removes a contract from the search index (fire-and-forget).
func (s *Service) DeleteContract(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteContract(id); err != nil {
			log.Printf("search: delete contract %s: %v", id, err)
		}
	}()
}

// DeleteClause removes a clause from the search index (fire-and-forget).
func (s *Service) DeleteClause(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteClause(id); err != nil {
			log.Printf("search: delete clause %s: %v", id, err)
		}
	}()
}

// ReindexAllFromPG reads all searchable entities from PostgreSQL and pushes
// them to Meilisearch. Called during bootstrap.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	contracts, clauses, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if len(contracts) > 0 {
		if err := s.meili.IndexContracts(contracts); err != nil {
			log.Printf("search: reindex contracts: %v", err)
		}
	}
	if len(clauses) > 0 {
		if err := s.meili.IndexClauses(clauses); err != nil {
			log.Printf("search: reindex clauses: %v", err)
		}
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
