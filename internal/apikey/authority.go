// internal/apikey/authority.go

// Package apikey issues, verifies, and revokes the bearer credentials that
// authorize push-transport submissions.
package apikey

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	custom_errors "commitsync/internal/errors"
	"commitsync/internal/model"
	"commitsync/internal/secrets"
	"commitsync/internal/store"
)

// KeyPrefix tags every issued key, e.g. csk_ab12cd34_<secret>.
const KeyPrefix = "csk"

// Authority is the credential authority over the api_keys table.
type Authority struct {
	q      store.Querier
	logger *slog.Logger
	now    func() time.Time
}

// NewAuthority creates an Authority backed by the given querier.
func NewAuthority(q store.Querier, logger *slog.Logger) *Authority {
	return &Authority{q: q, logger: logger, now: time.Now}
}

// generateKey produces (fullKey, publicPrefix). The full key is
// csk_{8 char prefix}_{32 char secret}; only the prefix is ever stored in clear.
func generateKey() (string, string, error) {
	raw := make([]byte, 6)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	prefix := fmt.Sprintf("%s_%s", KeyPrefix, base64.RawURLEncoding.EncodeToString(raw)[:8])

	secret := make([]byte, 24)
	if _, err := rand.Read(secret); err != nil {
		return "", "", err
	}
	full := fmt.Sprintf("%s_%s", prefix, base64.RawURLEncoding.EncodeToString(secret))
	return full, prefix, nil
}

// Create issues a new key for a principal. The returned full key is shown
// exactly once and cannot be recovered afterwards.
func (a *Authority) Create(ctx context.Context, principal, name string, scopes []string, ttl time.Duration) (model.APIKey, string, error) {
	if len(scopes) == 0 {
		scopes = []string{model.ScopeSyncCommits, model.ScopeReadRepos}
	}

	full, prefix, err := generateKey()
	if err != nil {
		return model.APIKey{}, "", fmt.Errorf("generating key material: %w", err)
	}

	hash, err := secrets.HashSecret(full)
	if err != nil {
		return model.APIKey{}, "", err
	}

	key := model.APIKey{
		ID:        uuid.NewString(),
		Principal: principal,
		Name:      name,
		Prefix:    prefix,
		KeyHash:   hash,
		Scopes:    scopes,
		Status:    model.APIKeyActive,
		CreatedAt: a.now(),
	}
	if ttl > 0 {
		exp := a.now().Add(ttl)
		key.ExpiresAt = &exp
	}

	if err := a.q.CreateAPIKey(ctx, key); err != nil {
		return model.APIKey{}, "", fmt.Errorf("storing api key: %w", err)
	}

	if err := a.q.AppendAudit(ctx, model.AuditEntry{
		Actor:        principal,
		Action:       "create_api_key",
		ResourceType: "api_key",
		ResourceID:   key.ID,
		Details:      map[string]any{"name": name, "prefix": prefix, "scopes": scopes},
	}); err != nil {
		return model.APIKey{}, "", err
	}

	a.logger.Info("API key created", "principal", principal, "prefix", prefix)
	return key, full, nil
}

// Verify checks a presented bearer key and returns the stored record on
// success. Usage counters are updated only on success, so failed attempts leave
// no timing signal about which prefixes exist.
func (a *Authority) Verify(ctx context.Context, presented, ip string) (model.APIKey, error) {
	parts := strings.SplitN(presented, "_", 3)
	if len(parts) != 3 || parts[0] != KeyPrefix {
		return model.APIKey{}, &custom_errors.ErrUnauthorized{Reason: "malformed API key"}
	}
	prefix := parts[0] + "_" + parts[1]

	key, err := a.q.GetAPIKeyByPrefix(ctx, prefix)
	if err != nil {
		return model.APIKey{}, &custom_errors.ErrUnauthorized{Reason: "unknown API key"}
	}

	if key.Status != model.APIKeyActive {
		return model.APIKey{}, &custom_errors.ErrUnauthorized{Reason: "API key revoked"}
	}
	if key.ExpiresAt != nil && key.ExpiresAt.Before(a.now()) {
		return model.APIKey{}, &custom_errors.ErrUnauthorized{Reason: "API key expired"}
	}

	if err := secrets.VerifySecret(presented, key.KeyHash); err != nil {
		return model.APIKey{}, &custom_errors.ErrUnauthorized{Reason: "invalid API key"}
	}

	if err := a.q.TouchAPIKeyUsage(ctx, key.ID, ip, a.now()); err != nil {
		// Verification already succeeded; a failed counter update should not
		// block the request.
		a.logger.Warn("Failed to update API key usage", "key_id", key.ID, "error", err)
	}

	return key, nil
}

// Revoke immediately and irreversibly disables future verification of the key.
func (a *Authority) Revoke(ctx context.Context, id, actor string) error {
	key, err := a.q.GetAPIKey(ctx, id)
	if err != nil {
		return &custom_errors.ErrNotFound{Resource: "api_key", ID: id}
	}
	if key.Status == model.APIKeyRevoked {
		return fmt.Errorf("api key %s already revoked", id)
	}

	if err := a.q.RevokeAPIKey(ctx, id, a.now()); err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}

	if err := a.q.AppendAudit(ctx, model.AuditEntry{
		Actor:        actor,
		Action:       "revoke_api_key",
		ResourceType: "api_key",
		ResourceID:   id,
		Details:      map[string]any{"name": key.Name, "prefix": key.Prefix},
	}); err != nil {
		return err
	}

	a.logger.Info("API key revoked", "key_id", id, "prefix", key.Prefix)
	return nil
}

// List returns a principal's key metadata. Raw secrets are never stored, so
// they cannot appear here.
func (a *Authority) List(ctx context.Context, principal string, includeRevoked bool) ([]model.APIKey, error) {
	return a.q.ListAPIKeys(ctx, principal, includeRevoked)
}
