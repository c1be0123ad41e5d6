// Package entries coordinates configuration-entry mutations: scope-key
// resolution, the one-enabled-entry-per-scope-key check, the storage write,
// and the paired audit record, all inside one transaction per mutation.
package entries

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/confkit-labs/confkit-go/internal/domain"
	"github.com/confkit-labs/confkit-go/internal/query"
	"github.com/confkit-labs/confkit-go/internal/repo"
	"github.com/google/uuid"
)

type Service struct {
	store repo.EntryStore
	audit repo.AuditStore
	now   func() time.Time
	newID func() string
}

func NewService(store repo.EntryStore, audit repo.AuditStore) *Service {
	return &Service{
		store: store,
		audit: audit,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Create assigns id and creation metadata, defaults enabled to true when the
// client omitted it, and persists entry plus CREATE audit record in one
// transaction. A scope-key duplicate is rejected before the write; a
// concurrent duplicate slipping past the in-process check is caught by the
// storage unique index and reported the same way. Client-supplied ids must
// be valid UUIDs and unused.
func (s *Service) Create(ctx context.Context, tenantID, actor string, entry domain.ConfigurationEntry, enabled *bool) (domain.ConfigurationEntry, error) {
	if s == nil || s.store == nil {
		return domain.ConfigurationEntry{}, fmt.Errorf("entries service not initialized")
	}
	entry = entry.Clone()
	clientID := strings.TrimSpace(entry.ID) != ""
	if clientID {
		if _, err := uuid.Parse(entry.ID); err != nil {
			return domain.ConfigurationEntry{}, &domain.ValidationError{Field: "id", Message: "id must be a valid UUID"}
		}
	} else {
		entry.ID = s.newID()
	}
	entry.Enabled = resolveEnabled(enabled)
	now := s.now().UTC()
	entry.Metadata = domain.EntryMetadata{
		CreatedDate: now,
		CreatedBy:   actor,
	}
	if err := entry.Validate(); err != nil {
		return domain.ConfigurationEntry{}, err
	}

	key := domain.ScopeKeyOf(entry)
	err := s.store.Mutate(ctx, tenantID, func(ctx context.Context, tx repo.EntryTx) error {
		if clientID {
			if _, err := tx.Get(ctx, entry.ID); err == nil {
				return &domain.ValidationError{Field: "id", Message: fmt.Sprintf("an entry with id %s already exists", entry.ID)}
			} else if !errors.Is(err, repo.ErrNotFound) {
				return err
			}
		}
		sharing, err := tx.SharingSet(ctx, key, "")
		if err != nil {
			return err
		}
		if err := checkScopeUnique(entry, key, sharing); err != nil {
			return err
		}
		if err := tx.Insert(ctx, entry); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, domain.AuditRecord{
			OriginID:    entry.ID,
			Operation:   domain.OpCreate,
			Snapshot:    entry,
			CreatedDate: now,
		})
	})
	if err != nil {
		return domain.ConfigurationEntry{}, classifyScopeConflict(err, key)
	}
	return entry, nil
}

// Replace is a full update of the mutable fields. It never creates: a
// missing id is NotFound. The post-update scope key is validated against
// all other entries, so an entry never conflicts with itself, and omitting
// enabled restores the entry to enabled.
func (s *Service) Replace(ctx context.Context, tenantID, actor, id string, entry domain.ConfigurationEntry, enabled *bool) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("entries service not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return &domain.ValidationError{Field: "id", Message: "entry id is required"}
	}
	entry = entry.Clone()
	entry.ID = id
	entry.Enabled = resolveEnabled(enabled)
	now := s.now().UTC()

	key := domain.ScopeKeyOf(entry)
	err := s.store.Mutate(ctx, tenantID, func(ctx context.Context, tx repo.EntryTx) error {
		existing, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		entry.Metadata = existing.Metadata
		entry.Metadata.UpdatedDate = &now
		actorCopy := actor
		entry.Metadata.UpdatedBy = &actorCopy
		if err := entry.Validate(); err != nil {
			return err
		}

		sharing, err := tx.SharingSet(ctx, key, id)
		if err != nil {
			return err
		}
		if err := checkScopeUnique(entry, key, sharing); err != nil {
			return err
		}

		affected, err := tx.Replace(ctx, entry)
		if err != nil {
			return err
		}
		if affected != 1 {
			return fmt.Errorf("replace entry %s: %d rows affected, want 1", id, affected)
		}
		return tx.AppendAudit(ctx, domain.AuditRecord{
			OriginID:    entry.ID,
			Operation:   domain.OpUpdate,
			Snapshot:    entry,
			CreatedDate: now,
		})
	})
	if err != nil {
		return classifyScopeConflict(err, key)
	}
	return nil
}

// Delete hard-deletes the entry; only the audit trail keeps its history,
// with the pre-delete state as the snapshot.
func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("entries service not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return &domain.ValidationError{Field: "id", Message: "entry id is required"}
	}
	now := s.now().UTC()
	return s.store.Mutate(ctx, tenantID, func(ctx context.Context, tx repo.EntryTx) error {
		snapshot, affected, err := tx.Delete(ctx, id)
		if err != nil {
			return err
		}
		if affected == 0 {
			return repo.ErrNotFound
		}
		if affected != 1 {
			return fmt.Errorf("delete entry %s: %d rows affected, want 1", id, affected)
		}
		return tx.AppendAudit(ctx, domain.AuditRecord{
			OriginID:    snapshot.ID,
			Operation:   domain.OpDelete,
			Snapshot:    snapshot,
			CreatedDate: now,
		})
	})
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (domain.ConfigurationEntry, error) {
	if s == nil || s.store == nil {
		return domain.ConfigurationEntry{}, fmt.Errorf("entries service not initialized")
	}
	return s.store.GetByID(ctx, tenantID, id)
}

// List answers the filter/sort/paginate/facet contract over the tenant's
// entries.
func (s *Service) List(ctx context.Context, tenantID string, req query.Request) (repo.EntrySearchResult, error) {
	if s == nil || s.store == nil {
		return repo.EntrySearchResult{}, fmt.Errorf("entries service not initialized")
	}
	return s.store.Search(ctx, tenantID, req)
}

// ListAudit answers the same contract over the audit trail, read-only.
func (s *Service) ListAudit(ctx context.Context, tenantID string, req query.Request) (repo.AuditSearchResult, error) {
	if s == nil || s.audit == nil {
		return repo.AuditSearchResult{}, fmt.Errorf("entries service not initialized")
	}
	return s.audit.Search(ctx, tenantID, req)
}

// checkScopeUnique is the uniqueness validator: a disabled candidate is
// always accepted; an enabled one is rejected when any other entry of the
// same scope key is enabled.
func checkScopeUnique(candidate domain.ConfigurationEntry, key domain.ScopeKey, sharing []domain.ConfigurationEntry) error {
	if !candidate.Enabled {
		return nil
	}
	for _, other := range sharing {
		if other.Enabled {
			return domain.DuplicateScope(key, other.ID)
		}
	}
	return nil
}

// classifyScopeConflict maps a storage-backstop rejection to the same
// client-correctable error the in-process check produces.
func classifyScopeConflict(err error, key domain.ScopeKey) error {
	if errors.Is(err, repo.ErrScopeConflict) {
		return domain.DuplicateScope(key, "")
	}
	return err
}

func resolveEnabled(enabled *bool) bool {
	if enabled == nil {
		return true
	}
	return *enabled
}
