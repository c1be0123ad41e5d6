package repo

import (
	"context"
	"errors"

	"github.com/confkit-labs/confkit-go/internal/domain"
	"github.com/confkit-labs/confkit-go/internal/query"
)

// ErrNotFound is returned when a replace/delete/get target does not exist
// within the caller's tenant.
var ErrNotFound = errors.New("not found")

// ErrScopeConflict is the storage backstop rejecting a write that would put
// a second enabled entry into one scope key. It surfaces when a concurrent
// writer slips past the in-process check; the coordinator reports it as the
// same validation failure.
var ErrScopeConflict = errors.New("scope key already holds an enabled entry")

// EntrySearchResult is one page of typed entries plus the query totals.
type EntrySearchResult struct {
	Entries      []domain.ConfigurationEntry
	TotalRecords int
	Facets       map[string][]query.FacetCount
}

// AuditSearchResult mirrors EntrySearchResult for the audit collection.
type AuditSearchResult struct {
	Records      []domain.AuditRecord
	TotalRecords int
	Facets       map[string][]query.FacetCount
}

// EntryStore is the tenant-scoped document storage contract for entries.
// Search implements get(collection, predicate, sort, limit, offset); Mutate
// opens a transaction so the validate-then-write step and its audit record
// commit or abort together.
type EntryStore interface {
	Search(ctx context.Context, tenantID string, req query.Request) (EntrySearchResult, error)
	GetByID(ctx context.Context, tenantID, id string) (domain.ConfigurationEntry, error)
	Mutate(ctx context.Context, tenantID string, fn func(ctx context.Context, tx EntryTx) error) error
}

// EntryTx is the per-transaction surface of EntryStore. SharingSet locks the
// rows of one scope key, which serializes concurrent writers to that key.
type EntryTx interface {
	Get(ctx context.Context, id string) (domain.ConfigurationEntry, error)
	SharingSet(ctx context.Context, key domain.ScopeKey, excludeID string) ([]domain.ConfigurationEntry, error)
	Insert(ctx context.Context, entry domain.ConfigurationEntry) error
	Replace(ctx context.Context, entry domain.ConfigurationEntry) (int64, error)
	Delete(ctx context.Context, id string) (domain.ConfigurationEntry, int64, error)
	AppendAudit(ctx context.Context, record domain.AuditRecord) error
}

// AuditStore reads the append-only audit collection. Writes only happen
// through EntryTx.AppendAudit.
type AuditStore interface {
	Search(ctx context.Context, tenantID string, req query.Request) (AuditSearchResult, error)
}
