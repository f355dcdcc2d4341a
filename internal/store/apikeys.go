// internal/store/apikeys.go
package store

import (
	"context"
	"time"

	"commitsync/internal/model"
)

const apiKeyColumns = `id, principal, name, prefix, key_hash, scopes, status,
	expires_at, last_used_at, last_used_ip, usage_count, created_at, revoked_at`

func scanAPIKey(row interface{ Scan(dest ...any) error }) (model.APIKey, error) {
	var k model.APIKey
	err := row.Scan(
		&k.ID, &k.Principal, &k.Name, &k.Prefix, &k.KeyHash, &k.Scopes, &k.Status,
		&k.ExpiresAt, &k.LastUsedAt, &k.LastUsedIP, &k.UsageCount, &k.CreatedAt, &k.RevokedAt,
	)
	return k, err
}

// CreateAPIKey persists a freshly issued key. Only the hash is stored; the raw
// secret never reaches this layer.
func (s *Store) CreateAPIKey(ctx context.Context, key model.APIKey) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO api_keys (id, principal, name, prefix, key_hash, scopes, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.Principal, key.Name, key.Prefix, key.KeyHash, key.Scopes, key.Status, key.ExpiresAt,
	)
	return err
}

// GetAPIKeyByPrefix looks up a key by its public prefix, the fast path used on
// every verification. Returns pgx.ErrNoRows if absent.
func (s *Store) GetAPIKeyByPrefix(ctx context.Context, prefix string) (model.APIKey, error) {
	row := s.db.QueryRow(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE prefix = $1`, prefix)
	return scanAPIKey(row)
}

// GetAPIKey fetches one key by id.
func (s *Store) GetAPIKey(ctx context.Context, id string) (model.APIKey, error) {
	row := s.db.QueryRow(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1`, id)
	return scanAPIKey(row)
}

// ListAPIKeys returns a principal's keys, newest first. Secrets are not stored,
// so nothing secret can leak from here.
func (s *Store) ListAPIKeys(ctx context.Context, principal string, includeRevoked bool) ([]model.APIKey, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+apiKeyColumns+` FROM api_keys
		WHERE principal = $1 AND ($2 OR status = $3)
		ORDER BY created_at DESC`,
		principal, includeRevoked, model.APIKeyActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []model.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RevokeAPIKey irreversibly disables a key.
func (s *Store) RevokeAPIKey(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE api_keys SET status = $2, revoked_at = $3 WHERE id = $1`,
		id, model.APIKeyRevoked, at)
	return err
}

// TouchAPIKeyUsage records a successful verification. Failed verifications are
// deliberately not recorded, so usage counters leak nothing about near-misses.
func (s *Store) TouchAPIKeyUsage(ctx context.Context, id string, ip string, at time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE api_keys
		SET last_used_at = $2, last_used_ip = $3, usage_count = usage_count + 1
		WHERE id = $1`, id, at, ip)
	return err
}
