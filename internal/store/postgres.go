package store

import (
	"context"
	"database/sql"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Contracts

func (s *PostgresStore) InsertContract(ctx context.Context, c Contract) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contracts (id, title, reference, employer, contractor, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.Title, c.Reference, c.Employer, c.Contractor, c.Status)
	if err != nil {
		return fmt.Errorf("insert contract: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetContract(ctx context.Context, id string) (Contract, error) {
	var c Contract
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, reference, employer, contractor, status,
			COALESCE(source_object_key, ''), created_at, updated_at
		FROM contracts WHERE id = $1
	`, id).Scan(&c.ID, &c.Title, &c.Reference, &c.Employer, &c.Contractor,
		&c.Status, &c.SourceObjectKey, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Contract{}, err
	}
	return c, nil
}

func (s *PostgresStore) ListContracts(ctx context.Context) ([]Contract, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, reference, employer, contractor, status,
			COALESCE(source_object_key, ''), created_at, updated_at
		FROM contracts
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()

	contracts := make([]Contract, 0)
	for rows.Next() {
		var c Contract
		if err := rows.Scan(&c.ID, &c.Title, &c.Reference, &c.Employer, &c.Contractor,
			&c.Status, &c.SourceObjectKey, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

func (s *PostgresStore) UpdateContract(ctx context.Context, c Contract) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE contracts
		SET title = $2, reference = $3, employer = $4, contractor = $5,
			status = $6, updated_at = NOW()
		WHERE id = $1
	`, c.ID, c.Title, c.Reference, c.Employer, c.Contractor, c.Status)
	if err != nil {
		return fmt.Errorf("update contract: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) DeleteContract(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM contracts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete contract: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) SetContractSourceObject(ctx context.Context, contractID, objectKey string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE contracts SET source_object_key = $2, updated_at = NOW() WHERE id = $1
	`, contractID, objectKey)
	if err != nil {
		return fmt.Errorf("set source object: %w", err)
	}
	return requireRow(result)
}

// Clauses

func (s *PostgresStore) ListClauses(ctx context.Context, contractID string) ([]Clause, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, contract_id, section, clause_number, heading, body,
			category_id, sort_order, COALESCE(updated_by, ''), created_at, updated_at
		FROM clauses
		WHERE contract_id = $1
		ORDER BY section, sort_order, clause_number
	`, contractID)
	if err != nil {
		return nil, fmt.Errorf("list clauses: %w", err)
	}
	defer rows.Close()

	clauses := make([]Clause, 0)
	for rows.Next() {
		var c Clause
		if err := rows.Scan(&c.ID, &c.ContractID, &c.Section, &c.ClauseNumber, &c.Heading,
			&c.Body, &c.CategoryID, &c.SortOrder, &c.UpdatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan clause: %w", err)
		}
		clauses = append(clauses, c)
	}
	return clauses, rows.Err()
}

func (s *PostgresStore) GetClause(ctx context.Context, id string) (Clause, error) {
	var c Clause
	err := s.db.QueryRowContext(ctx, `
		SELECT id, contract_id, section, clause_number, heading, body,
			category_id, sort_order, COALESCE(updated_by, ''), created_at, updated_at
		FROM clauses WHERE id = $1
	`, id).Scan(&c.ID, &c.ContractID, &c.Section, &c.ClauseNumber, &c.Heading,
		&c.Body, &c.CategoryID, &c.SortOrder, &c.UpdatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Clause{}, err
	}
	return c, nil
}

func (s *PostgresStore) InsertClause(ctx context.Context, c Clause) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clauses (id, contract_id, section, clause_number, heading, body,
			category_id, sort_order, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, c.ID, c.ContractID, c.Section, c.ClauseNumber, c.Heading, c.Body,
		c.CategoryID, c.SortOrder, c.UpdatedBy)
	if err != nil {
		return fmt.Errorf("insert clause: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateClause(ctx context.Context, c Clause) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE clauses
		SET section = $2, clause_number = $3, heading = $4, body = $5,
			category_id = $6, sort_order = $7, updated_by = $8, updated_at = NOW()
		WHERE id = $1
	`, c.ID, c.Section, c.ClauseNumber, c.Heading, c.Body, c.CategoryID, c.SortOrder, c.UpdatedBy)
	if err != nil {
		return fmt.Errorf("update clause: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) DeleteClause(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM clauses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete clause: %w", err)
	}
	return requireRow(result)
}

// ClauseNumbers returns every clause number in the contract, both sections,
// for building the reference index. Blank numbers are kept out here so the
// index builder sees only real clauses.
func (s *PostgresStore) ClauseNumbers(ctx context.Context, contractID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT clause_number FROM clauses
		WHERE contract_id = $1 AND clause_number <> ''
	`, contractID)
	if err != nil {
		return nil, fmt.Errorf("clause numbers: %w", err)
	}
	defer rows.Close()

	numbers := make([]string, 0)
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan clause number: %w", err)
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}

// Categories

func (s *PostgresStore) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, slug, description, sort_order, created_at, updated_at
		FROM categories ORDER BY sort_order, name
	`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]Category, 0)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.SortOrder,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *PostgresStore) InsertCategory(ctx context.Context, c Category) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, slug, description, sort_order)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.Name, c.Slug, c.Description, c.SortOrder)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateCategory(ctx context.Context, c Category) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE categories
		SET name = $2, slug = $3, description = $4, sort_order = $5, updated_at = NOW()
		WHERE id = $1
	`, c.ID, c.Name, c.Slug, c.Description, c.SortOrder)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) DeleteCategory(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return requireRow(result)
}

// Share links

func (s *PostgresStore) InsertShareLink(ctx context.Context, link ShareLink) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO share_links (id, token, contract_id, created_by, password_hash, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, link.ID, link.Token, link.ContractID, link.CreatedBy, link.PasswordHash, link.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert share link: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetShareLinkByToken(ctx context.Context, token string) (ShareLink, error) {
	var link ShareLink
	err := s.db.QueryRowContext(ctx, `
		SELECT id, token, contract_id, created_by, password_hash, expires_at,
			access_count, last_accessed_at, created_at, revoked_at
		FROM share_links WHERE token = $1
	`, token).Scan(&link.ID, &link.Token, &link.ContractID, &link.CreatedBy,
		&link.PasswordHash, &link.ExpiresAt, &link.AccessCount, &link.LastAccessedAt,
		&link.CreatedAt, &link.RevokedAt)
	if err != nil {
		return ShareLink{}, err
	}
	return link, nil
}

func (s *PostgresStore) TouchShareLink(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE share_links
		SET access_count = access_count + 1, last_accessed_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("touch share link: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeShareLink(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE share_links SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL
	`, id)
	if err != nil {
		return fmt.Errorf("revoke share link: %w", err)
	}
	return requireRow(result)
}

// requireRow converts a zero-row write into sql.ErrNoRows so the HTTP layer
// maps it to 404.
func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
