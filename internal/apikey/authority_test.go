// internal/apikey/authority_test.go
package apikey

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	custom_errors "commitsync/internal/errors"
	"commitsync/internal/model"
	"commitsync/internal/store/storetest"
)

func testAuthority(q *storetest.MockQuerier) *Authority {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewAuthority(q, logger)
}

func TestGenerateKey(t *testing.T) {
	full, prefix, err := generateKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(full, prefix+"_"))
	assert.True(t, strings.HasPrefix(prefix, KeyPrefix+"_"))
	parts := strings.SplitN(full, "_", 3)
	require.Len(t, parts, 3)
	assert.Len(t, parts[1], 8)
	assert.Len(t, parts[2], 32)

	other, _, err := generateKey()
	require.NoError(t, err)
	assert.NotEqual(t, full, other)
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a verifiable key with default scopes", func(t *testing.T) {
		mockQ := new(storetest.MockQuerier)
		a := testAuthority(mockQ)

		var stored model.APIKey
		mockQ.On("CreateAPIKey", ctx, mock.Anything).Run(func(args mock.Arguments) {
			stored = args.Get(1).(model.APIKey)
		}).Return(nil).Once()
		mockQ.On("AppendAudit", ctx, mock.MatchedBy(func(e model.AuditEntry) bool {
			return e.Action == "create_api_key" && e.Actor == "ci-bot"
		})).Return(nil).Once()

		key, full, err := a.Create(ctx, "ci-bot", "deploy key", nil, 0)
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(full, key.Prefix+"_"))
		assert.ElementsMatch(t, []string{model.ScopeSyncCommits, model.ScopeReadRepos}, key.Scopes)
		assert.Equal(t, model.APIKeyActive, key.Status)
		assert.Nil(t, key.ExpiresAt)
		// The stored record carries only a hash, never the raw key.
		assert.NotContains(t, stored.KeyHash, full)
		mockQ.AssertExpectations(t)
	})

	t.Run("positive ttl sets an expiry", func(t *testing.T) {
		mockQ := new(storetest.MockQuerier)
		a := testAuthority(mockQ)
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		a.now = func() time.Time { return now }

		mockQ.On("CreateAPIKey", ctx, mock.Anything).Return(nil).Once()
		mockQ.On("AppendAudit", ctx, mock.Anything).Return(nil).Once()

		key, _, err := a.Create(ctx, "ci-bot", "short lived", []string{model.ScopeSyncCommits}, 24*time.Hour)
		require.NoError(t, err)
		require.NotNil(t, key.ExpiresAt)
		assert.Equal(t, now.Add(24*time.Hour), *key.ExpiresAt)
		assert.Equal(t, []string{model.ScopeSyncCommits}, key.Scopes)
	})

	t.Run("storage failure surfaces", func(t *testing.T) {
		mockQ := new(storetest.MockQuerier)
		a := testAuthority(mockQ)

		mockQ.On("CreateAPIKey", ctx, mock.Anything).Return(errors.New("duplicate prefix")).Once()

		_, _, err := a.Create(ctx, "ci-bot", "dupe", nil, 0)
		require.Error(t, err)
	})
}

func TestVerify(t *testing.T) {
	ctx := context.Background()

	// Issue a real key through Create so the stored hash matches.
	issue := func(t *testing.T, mutate func(*model.APIKey)) (*storetest.MockQuerier, *Authority, model.APIKey, string) {
		t.Helper()
		mockQ := new(storetest.MockQuerier)
		a := testAuthority(mockQ)

		mockQ.On("CreateAPIKey", ctx, mock.Anything).Return(nil).Once()
		mockQ.On("AppendAudit", ctx, mock.Anything).Return(nil).Once()
		key, full, err := a.Create(ctx, "ci-bot", "key", nil, 0)
		require.NoError(t, err)
		if mutate != nil {
			mutate(&key)
		}
		return mockQ, a, key, full
	}

	t.Run("valid key verifies and touches usage", func(t *testing.T) {
		mockQ, a, key, full := issue(t, nil)

		mockQ.On("GetAPIKeyByPrefix", ctx, key.Prefix).Return(key, nil).Once()
		mockQ.On("TouchAPIKeyUsage", ctx, key.ID, "10.0.0.1", mock.Anything).Return(nil).Once()

		got, err := a.Verify(ctx, full, "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, key.ID, got.ID)
		mockQ.AssertExpectations(t)
	})

	t.Run("malformed key is rejected without a lookup", func(t *testing.T) {
		mockQ, a, _, _ := issue(t, nil)

		_, err := a.Verify(ctx, "garbage", "10.0.0.1")
		var unauth *custom_errors.ErrUnauthorized
		require.ErrorAs(t, err, &unauth)
		mockQ.AssertNotCalled(t, "GetAPIKeyByPrefix", mock.Anything, mock.Anything)
	})

	t.Run("wrong secret under a known prefix fails without touching usage", func(t *testing.T) {
		mockQ, a, key, _ := issue(t, nil)

		mockQ.On("GetAPIKeyByPrefix", ctx, key.Prefix).Return(key, nil).Once()

		_, err := a.Verify(ctx, key.Prefix+"_"+strings.Repeat("x", 32), "10.0.0.1")
		var unauth *custom_errors.ErrUnauthorized
		require.ErrorAs(t, err, &unauth)
		mockQ.AssertNotCalled(t, "TouchAPIKeyUsage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("revoked key is rejected before hash comparison", func(t *testing.T) {
		mockQ, a, key, full := issue(t, func(k *model.APIKey) { k.Status = model.APIKeyRevoked })

		mockQ.On("GetAPIKeyByPrefix", ctx, key.Prefix).Return(key, nil).Once()

		_, err := a.Verify(ctx, full, "10.0.0.1")
		var unauth *custom_errors.ErrUnauthorized
		require.ErrorAs(t, err, &unauth)
		assert.Contains(t, unauth.Reason, "revoked")
	})

	t.Run("expired key is rejected", func(t *testing.T) {
		past := time.Now().Add(-time.Hour)
		mockQ, a, key, full := issue(t, func(k *model.APIKey) { k.ExpiresAt = &past })

		mockQ.On("GetAPIKeyByPrefix", ctx, key.Prefix).Return(key, nil).Once()

		_, err := a.Verify(ctx, full, "10.0.0.1")
		var unauth *custom_errors.ErrUnauthorized
		require.ErrorAs(t, err, &unauth)
		assert.Contains(t, unauth.Reason, "expired")
	})

	t.Run("usage update failure does not fail verification", func(t *testing.T) {
		mockQ, a, key, full := issue(t, nil)

		mockQ.On("GetAPIKeyByPrefix", ctx, key.Prefix).Return(key, nil).Once()
		mockQ.On("TouchAPIKeyUsage", ctx, key.ID, "10.0.0.1", mock.Anything).
			Return(errors.New("deadlock")).Once()

		_, err := a.Verify(ctx, full, "10.0.0.1")
		assert.NoError(t, err)
	})
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()

	t.Run("active key is revoked with an audit trail", func(t *testing.T) {
		mockQ := new(storetest.MockQuerier)
		a := testAuthority(mockQ)

		key := model.APIKey{ID: "key-1", Name: "deploy key", Prefix: "csk_ab12cd34", Status: model.APIKeyActive}
		mockQ.On("GetAPIKey", ctx, "key-1").Return(key, nil).Once()
		mockQ.On("RevokeAPIKey", ctx, "key-1", mock.Anything).Return(nil).Once()
		mockQ.On("AppendAudit", ctx, mock.MatchedBy(func(e model.AuditEntry) bool {
			return e.Action == "revoke_api_key" && e.ResourceID == "key-1" && e.Actor == "admin"
		})).Return(nil).Once()

		require.NoError(t, a.Revoke(ctx, "key-1", "admin"))
		mockQ.AssertExpectations(t)
	})

	t.Run("unknown key returns not found", func(t *testing.T) {
		mockQ := new(storetest.MockQuerier)
		a := testAuthority(mockQ)

		mockQ.On("GetAPIKey", ctx, "nope").Return(model.APIKey{}, errors.New("no rows")).Once()

		err := a.Revoke(ctx, "nope", "admin")
		var notFound *custom_errors.ErrNotFound
		require.ErrorAs(t, err, &notFound)
	})

	t.Run("double revoke is rejected", func(t *testing.T) {
		mockQ := new(storetest.MockQuerier)
		a := testAuthority(mockQ)

		key := model.APIKey{ID: "key-1", Status: model.APIKeyRevoked}
		mockQ.On("GetAPIKey", ctx, "key-1").Return(key, nil).Once()

		err := a.Revoke(ctx, "key-1", "admin")
		require.Error(t, err)
		mockQ.AssertNotCalled(t, "RevokeAPIKey", mock.Anything, mock.Anything, mock.Anything)
	})
}
