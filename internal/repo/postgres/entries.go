package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/confkit-labs/confkit-go/internal/domain"
	"github.com/confkit-labs/confkit-go/internal/query"
	"github.com/confkit-labs/confkit-go/internal/repo"
)

const entryColumns = `entry_id, module, config_name, code, description, user_id, value, enabled, is_default, created_at, created_by, updated_at, updated_by`

// EntryStore stores configuration entries in Postgres, one row per entry,
// discriminated by tenant. The scope-uniqueness invariant is backstopped by
// a partial unique index over (tenant, module, config_name, code, user_id)
// for enabled rows.
type EntryStore struct {
	db *sql.DB
}

func NewEntryStore(db *sql.DB) *EntryStore {
	if db == nil {
		return nil
	}
	return &EntryStore{db: db}
}

// Search loads the tenant's collection and answers the list contract:
// filtered page, pre-pagination total, facet tables. Filtering happens in
// memory through the predicate evaluator so the query surface stays uniform
// across nested value/metadata fields.
func (s *EntryStore) Search(ctx context.Context, tenantID string, req query.Request) (repo.EntrySearchResult, error) {
	if s == nil || s.db == nil {
		return repo.EntrySearchResult{}, fmt.Errorf("entry store not initialized")
	}
	entries, err := s.loadAll(ctx, tenantID)
	if err != nil {
		return repo.EntrySearchResult{}, err
	}

	docs := make([]map[string]any, len(entries))
	for i, entry := range entries {
		docs[i] = entry.Document()
	}
	res := query.Run(docs, req)

	page := make([]domain.ConfigurationEntry, 0, len(res.Page))
	for _, idx := range res.Page {
		page = append(page, entries[idx])
	}
	return repo.EntrySearchResult{
		Entries:      page,
		TotalRecords: res.TotalRecords,
		Facets:       res.Facets,
	}, nil
}

func (s *EntryStore) loadAll(ctx context.Context, tenantID string) ([]domain.ConfigurationEntry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+entryColumns+`
		 FROM config_entries
		 WHERE tenant_id = $1
		 ORDER BY seq`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.ConfigurationEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

func (s *EntryStore) GetByID(ctx context.Context, tenantID, id string) (domain.ConfigurationEntry, error) {
	if s == nil || s.db == nil {
		return domain.ConfigurationEntry{}, fmt.Errorf("entry store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.ConfigurationEntry{}, fmt.Errorf("entry id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+entryColumns+`
		 FROM config_entries
		 WHERE tenant_id = $1 AND entry_id = $2`,
		tenantID,
		id,
	)
	entry, err := scanEntry(row)
	if err != nil {
		return domain.ConfigurationEntry{}, handleNotFound(err)
	}
	return entry, nil
}

// Mutate runs fn inside one transaction. A rolled-back fn leaves neither the
// entry mutation nor its audit record behind.
func (s *EntryStore) Mutate(ctx context.Context, tenantID string, fn func(ctx context.Context, tx repo.EntryTx) error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("entry store not initialized")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, &entryTx{tx: tx, tenantID: tenantID}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		if isScopeViolation(err) {
			return fmt.Errorf("commit: %w", repo.ErrScopeConflict)
		}
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type entryTx struct {
	tx       *sql.Tx
	tenantID string
}

func (t *entryTx) Get(ctx context.Context, id string) (domain.ConfigurationEntry, error) {
	row := t.tx.QueryRowContext(
		ctx,
		`SELECT `+entryColumns+`
		 FROM config_entries
		 WHERE tenant_id = $1 AND entry_id = $2
		 FOR UPDATE`,
		t.tenantID,
		strings.TrimSpace(id),
	)
	entry, err := scanEntry(row)
	if err != nil {
		return domain.ConfigurationEntry{}, handleNotFound(err)
	}
	return entry, nil
}

// SharingSet returns the stored entries of one scope key, locked FOR UPDATE
// so concurrent writers to the key serialize on the first one's commit.
func (t *entryTx) SharingSet(ctx context.Context, key domain.ScopeKey, excludeID string) ([]domain.ConfigurationEntry, error) {
	args := []any{t.tenantID, key.Module, key.ConfigName, scopePart(key.Code, key.HasCode), scopePart(key.UserID, key.HasUser)}
	stmt := `SELECT ` + entryColumns + `
		 FROM config_entries
		 WHERE tenant_id = $1
		   AND module = $2
		   AND config_name = $3
		   AND code IS NOT DISTINCT FROM $4
		   AND user_id IS NOT DISTINCT FROM $5`
	if strings.TrimSpace(excludeID) != "" {
		args = append(args, excludeID)
		stmt += fmt.Sprintf(" AND entry_id <> $%d", len(args))
	}
	stmt += " FOR UPDATE"

	rows, err := t.tx.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("sharing set: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.ConfigurationEntry, 0, 2)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sharing set: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sharing set: %w", err)
	}
	return entries, nil
}

func (t *entryTx) Insert(ctx context.Context, entry domain.ConfigurationEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(
		ctx,
		`INSERT INTO config_entries (
			entry_id,
			tenant_id,
			module,
			config_name,
			code,
			description,
			user_id,
			value,
			enabled,
			is_default,
			created_at,
			created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		strings.TrimSpace(entry.ID),
		t.tenantID,
		strings.TrimSpace(entry.Module),
		strings.TrimSpace(entry.ConfigName),
		nullString(entry.Code),
		nullBlankString(entry.Description),
		nullString(entry.UserID),
		entry.Value,
		entry.Enabled,
		entry.Default,
		normalizeTime(entry.Metadata.CreatedDate),
		strings.TrimSpace(entry.Metadata.CreatedBy),
	)
	if err != nil {
		if isScopeViolation(err) {
			return fmt.Errorf("insert entry: %w", repo.ErrScopeConflict)
		}
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

func (t *entryTx) Replace(ctx context.Context, entry domain.ConfigurationEntry) (int64, error) {
	if err := entry.Validate(); err != nil {
		return 0, err
	}
	res, err := t.tx.ExecContext(
		ctx,
		`UPDATE config_entries SET
			module = $3,
			config_name = $4,
			code = $5,
			description = $6,
			user_id = $7,
			value = $8,
			enabled = $9,
			is_default = $10,
			updated_at = $11,
			updated_by = $12
		 WHERE tenant_id = $1 AND entry_id = $2`,
		t.tenantID,
		strings.TrimSpace(entry.ID),
		strings.TrimSpace(entry.Module),
		strings.TrimSpace(entry.ConfigName),
		nullString(entry.Code),
		nullBlankString(entry.Description),
		nullString(entry.UserID),
		entry.Value,
		entry.Enabled,
		entry.Default,
		entry.Metadata.UpdatedDate,
		entry.Metadata.UpdatedBy,
	)
	if err != nil {
		if isScopeViolation(err) {
			return 0, fmt.Errorf("replace entry: %w", repo.ErrScopeConflict)
		}
		return 0, fmt.Errorf("replace entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("replace entry: %w", err)
	}
	return affected, nil
}

func (t *entryTx) Delete(ctx context.Context, id string) (domain.ConfigurationEntry, int64, error) {
	row := t.tx.QueryRowContext(
		ctx,
		`DELETE FROM config_entries
		 WHERE tenant_id = $1 AND entry_id = $2
		 RETURNING `+entryColumns,
		t.tenantID,
		strings.TrimSpace(id),
	)
	entry, err := scanEntry(row)
	if err != nil {
		if handleNotFound(err) == repo.ErrNotFound {
			return domain.ConfigurationEntry{}, 0, nil
		}
		return domain.ConfigurationEntry{}, 0, fmt.Errorf("delete entry: %w", err)
	}
	return entry, 1, nil
}

func (t *entryTx) AppendAudit(ctx context.Context, record domain.AuditRecord) error {
	return appendAudit(ctx, t.tx, t.tenantID, record)
}

func scopePart(value string, present bool) sql.NullString {
	if !present {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (domain.ConfigurationEntry, error) {
	var (
		entry       domain.ConfigurationEntry
		code        sql.NullString
		description sql.NullString
		userID      sql.NullString
		updatedAt   sql.NullTime
		updatedBy   sql.NullString
	)
	if err := row.Scan(
		&entry.ID,
		&entry.Module,
		&entry.ConfigName,
		&code,
		&description,
		&userID,
		&entry.Value,
		&entry.Enabled,
		&entry.Default,
		&entry.Metadata.CreatedDate,
		&entry.Metadata.CreatedBy,
		&updatedAt,
		&updatedBy,
	); err != nil {
		return domain.ConfigurationEntry{}, err
	}
	entry.Code = strPtr(code)
	entry.Description = description.String
	entry.UserID = strPtr(userID)
	entry.Metadata.CreatedDate = entry.Metadata.CreatedDate.UTC()
	entry.Metadata.UpdatedDate = timePtr(updatedAt)
	entry.Metadata.UpdatedBy = strPtr(updatedBy)
	return entry, nil
}
