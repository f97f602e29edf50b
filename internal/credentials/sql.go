package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/watzon/saleorhook/internal/database"
)

// SQLStore keeps credentials in the app_credentials table.
type SQLStore struct {
	db *database.DB
}

// NewSQLStore creates a store over an open database.
func NewSQLStore(db *database.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Get retrieves credentials for a domain.
func (s *SQLStore) Get(ctx context.Context, domain string) (*AuthData, error) {
	query := `
		SELECT domain, token, api_url, app_id, jwks
		FROM app_credentials
		WHERE domain = ?
	`

	var data AuthData
	err := s.db.QueryRowContext(ctx, query, normalizeDomain(domain)).Scan(
		&data.Domain,
		&data.Token,
		&data.APIURL,
		&data.AppID,
		&data.JWKS,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting credentials: %w", err)
	}

	return &data, nil
}

// Set inserts or replaces the credentials for data.Domain.
func (s *SQLStore) Set(ctx context.Context, data *AuthData) error {
	if err := validate(data); err != nil {
		return err
	}

	query := `
		INSERT INTO app_credentials (domain, token, api_url, app_id, jwks, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(domain) DO UPDATE SET
			token = excluded.token,
			api_url = excluded.api_url,
			app_id = excluded.app_id,
			jwks = excluded.jwks,
			updated_at = excluded.updated_at
	`

	now := database.Now()
	_, err := s.db.ExecContext(ctx, query,
		normalizeDomain(data.Domain),
		data.Token,
		data.APIURL,
		data.AppID,
		data.JWKS,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}

	return nil
}

// Delete removes the credentials for a domain.
func (s *SQLStore) Delete(ctx context.Context, domain string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM app_credentials WHERE domain = ?`, normalizeDomain(domain))
	if err != nil {
		return fmt.Errorf("deleting credentials: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting credentials: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// List returns every stored entry ordered by domain.
func (s *SQLStore) List(ctx context.Context) ([]*AuthData, error) {
	query := `
		SELECT domain, token, api_url, app_id, jwks
		FROM app_credentials
		ORDER BY domain ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}
	defer rows.Close()

	var result []*AuthData
	for rows.Next() {
		var data AuthData
		if err := rows.Scan(&data.Domain, &data.Token, &data.APIURL, &data.AppID, &data.JWKS); err != nil {
			return nil, fmt.Errorf("scanning credentials row: %w", err)
		}
		result = append(result, &data)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating credentials rows: %w", err)
	}

	return result, nil
}
