// internal/model/models.go
package model

import (
	"database/sql"
	"time"
)

// Transport identifies how a repository's commits reach the store.
type Transport string

const (
	// TransportPull means the server fetches the remote and extracts commits itself.
	TransportPull Transport = "pull"
	// TransportPush means an external client extracts commits and submits them in batches.
	TransportPush Transport = "push"
)

// RepoStatus is the repository sync state machine's current state.
type RepoStatus string

const (
	StatusPending RepoStatus = "pending"
	StatusSyncing RepoStatus = "syncing"
	StatusHealthy RepoStatus = "healthy"
	StatusError   RepoStatus = "error"
)

// Repository is one tracked source of commits.
type Repository struct {
	ID              string
	Name            string
	RemoteURL       string
	Branch          string
	Transport       Transport
	LastIngestedSHA *string // checkpoint; nil until the first commit is stored
	Status          RepoStatus
	ErrorMessage    *string
	LastSyncAt      sql.NullTime
	TotalCommits    int64
	NextSyncAt      time.Time
	SyncInterval    time.Duration
	// RemoteTokenSealed holds the secretbox-sealed remote access token for pull
	// transport. Erased when the repository migrates to push.
	RemoteTokenSealed []byte
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Commit is an immutable record of one version-control commit, keyed by its SHA.
type Commit struct {
	SHA            string    `json:"sha"`
	RepositoryID   string    `json:"-"`
	AuthorName     string    `json:"author_name"`
	AuthorEmail    string    `json:"author_email"`
	CommitterName  string    `json:"committer_name"`
	CommitterEmail string    `json:"committer_email"`
	CommitDate     time.Time `json:"commit_date"`
	MessageTitle   string    `json:"message_title"`
	MessageBody    string    `json:"message_body,omitempty"`
	Additions      int       `json:"additions"`
	Deletions      int       `json:"deletions"`
	FilesChanged   int       `json:"files_changed"`
	IsMerge        bool      `json:"is_merge"`
	ParentCount    int       `json:"parent_count"`
	DBCreatedAt    time.Time `json:"-"`
}

// APIKeyStatus is the lifecycle state of an API key.
type APIKeyStatus string

const (
	APIKeyActive  APIKeyStatus = "active"
	APIKeyRevoked APIKeyStatus = "revoked"
)

// API key scopes.
const (
	ScopeSyncCommits = "sync:commits"
	ScopeReadRepos   = "read:repos"
)

// APIKey is the stored half of a bearer credential. The raw secret is never
// persisted; only the argon2id hash of the full key is.
type APIKey struct {
	ID         string
	Principal  string
	Name       string
	Prefix     string
	KeyHash    string
	Scopes     []string
	Status     APIKeyStatus
	ExpiresAt  *time.Time
	LastUsedAt *time.Time
	LastUsedIP *string
	UsageCount int64
	CreatedAt  time.Time
	RevokedAt  *time.Time
}

// HasScope reports whether the key carries the given scope.
func (k *APIKey) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// AuditEntry is an append-only record of a sensitive operation.
type AuditEntry struct {
	ID           int64
	Actor        string
	Action       string
	ResourceType string
	ResourceID   string
	Details      map[string]any
	CreatedAt    time.Time
}
