// Package storetest provides a testify mock of store.Querier for unit tests.
package storetest

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"commitsync/internal/model"
	"commitsync/internal/store"
)

// MockQuerier is a mock of the store.Querier interface.
type MockQuerier struct {
	mock.Mock
}

var _ store.Querier = (*MockQuerier)(nil)

func (m *MockQuerier) CreateRepository(ctx context.Context, arg store.CreateRepositoryParams) (model.Repository, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.Repository), args.Error(1)
}

func (m *MockQuerier) GetRepository(ctx context.Context, id string) (model.Repository, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Repository), args.Error(1)
}

func (m *MockQuerier) ListRepositories(ctx context.Context, transport model.Transport) ([]model.Repository, error) {
	args := m.Called(ctx, transport)
	return args.Get(0).([]model.Repository), args.Error(1)
}

func (m *MockQuerier) DeleteRepository(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockQuerier) DueRepositories(ctx context.Context, now time.Time, limit int) ([]model.Repository, error) {
	args := m.Called(ctx, now, limit)
	return args.Get(0).([]model.Repository), args.Error(1)
}

func (m *MockQuerier) LockRepository(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockQuerier) SetRepositoryStatus(ctx context.Context, id string, status model.RepoStatus, errMsg *string) error {
	args := m.Called(ctx, id, status, errMsg)
	return args.Error(0)
}

func (m *MockQuerier) FinishSync(ctx context.Context, arg store.FinishSyncParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}

func (m *MockQuerier) SetRepositoryTransport(ctx context.Context, id string, transport model.Transport, clearRemoteToken bool) error {
	args := m.Called(ctx, id, transport, clearRemoteToken)
	return args.Error(0)
}

func (m *MockQuerier) SetRemoteToken(ctx context.Context, id string, sealed []byte) error {
	args := m.Called(ctx, id, sealed)
	return args.Error(0)
}

func (m *MockQuerier) RescheduleRepository(ctx context.Context, id string, next time.Time) error {
	args := m.Called(ctx, id, next)
	return args.Error(0)
}

func (m *MockQuerier) InsertCommit(ctx context.Context, c model.Commit) (bool, error) {
	args := m.Called(ctx, c)
	return args.Bool(0), args.Error(1)
}

func (m *MockQuerier) CountCommits(ctx context.Context, repoID string) (int64, error) {
	args := m.Called(ctx, repoID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockQuerier) CreateAPIKey(ctx context.Context, key model.APIKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockQuerier) GetAPIKeyByPrefix(ctx context.Context, prefix string) (model.APIKey, error) {
	args := m.Called(ctx, prefix)
	return args.Get(0).(model.APIKey), args.Error(1)
}

func (m *MockQuerier) GetAPIKey(ctx context.Context, id string) (model.APIKey, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.APIKey), args.Error(1)
}

func (m *MockQuerier) ListAPIKeys(ctx context.Context, principal string, includeRevoked bool) ([]model.APIKey, error) {
	args := m.Called(ctx, principal, includeRevoked)
	return args.Get(0).([]model.APIKey), args.Error(1)
}

func (m *MockQuerier) RevokeAPIKey(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockQuerier) TouchAPIKeyUsage(ctx context.Context, id string, ip string, at time.Time) error {
	args := m.Called(ctx, id, ip, at)
	return args.Error(0)
}

func (m *MockQuerier) AppendAudit(ctx context.Context, entry model.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}
