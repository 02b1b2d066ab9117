package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across contracts and clauses using
// plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultContract {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'contract'::text AS type, c.id, c.title,
				ts_headline('english', coalesce(c.reference, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				c.id AS contract_id,
				''::text AS section,
				''::text AS clause_number,
				ts_rank(c.fts, %s) AS rank
			FROM contracts c
			WHERE c.fts @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	if q.FilterType == "" || q.FilterType == ResultClause {
		clauseWhere := "cl.fts @@ " + tsQuery
		if q.FilterContractID != "" {
			clauseWhere += fmt.Sprintf(" AND cl.contract_id = $%d", argN)
			args = append(args, q.FilterContractID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'clause'::text AS type, cl.id, cl.heading AS title,
				ts_headline('english', coalesce(cl.body, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				cl.contract_id,
				cl.section,
				cl.clause_number,
				ts_rank(cl.fts, %s) AS rank
			FROM clauses cl
			WHERE %s`, tsQuery, tsQuery, clauseWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, contract_id, section, clause_number
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.ContractID, &r.Section, &r.ClauseNumber); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ContractRecord, []ClauseRecord, error) {
	contractRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, reference, employer, contractor, status
		FROM contracts
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load contracts: %w", err)
	}
	defer contractRows.Close()

	contracts := make([]ContractRecord, 0)
	for contractRows.Next() {
		var c ContractRecord
		if err := contractRows.Scan(&c.ID, &c.Title, &c.Reference, &c.Employer, &c.Contractor, &c.Status); err != nil {
			return nil, nil, fmt.Errorf("scan contract: %w", err)
		}
		contracts = append(contracts, c)
	}
	if err := contractRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate contracts: %w", err)
	}

	clauseRows, err := p.db.QueryContext(ctx, `
		SELECT id, contract_id, section, clause_number, heading, body, COALESCE(category_id, '')
		FROM clauses
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load clauses: %w", err)
	}
	defer clauseRows.Close()

	clauses := make([]ClauseRecord, 0)
	for clauseRows.Next() {
		var c ClauseRecord
		if err := clauseRows.Scan(&c.ID, &c.ContractID, &c.Section, &c.ClauseNumber, &c.Heading, &c.Body, &c.CategoryID); err != nil {
			return nil, nil, fmt.Errorf("scan clause: %w", err)
		}
		clauses = append(clauses, c)
	}
	if err := clauseRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate clauses: %w", err)
	}

	return contracts, clauses, nil
}
