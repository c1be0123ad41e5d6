package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/confkit-labs/confkit-go/internal/domain"
	"github.com/confkit-labs/confkit-go/internal/query"
	"github.com/confkit-labs/confkit-go/internal/repo"
)

// AuditStore reads the append-only audit collection. Appends happen inside
// the mutation transaction through entryTx.AppendAudit, never standalone.
type AuditStore struct {
	db *sql.DB
}

func NewAuditStore(db *sql.DB) *AuditStore {
	if db == nil {
		return nil
	}
	return &AuditStore{db: db}
}

// Search answers the same filter/sort/paginate/facet contract as entries,
// over the audit collection, read-only.
func (s *AuditStore) Search(ctx context.Context, tenantID string, req query.Request) (repo.AuditSearchResult, error) {
	if s == nil || s.db == nil {
		return repo.AuditSearchResult{}, fmt.Errorf("audit store not initialized")
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT audit_id, origin_id, operation, snapshot, created_date
		 FROM config_audit
		 WHERE tenant_id = $1
		 ORDER BY audit_id`,
		tenantID,
	)
	if err != nil {
		return repo.AuditSearchResult{}, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.AuditRecord, 0)
	for rows.Next() {
		var (
			record      domain.AuditRecord
			operation   string
			snapshotRaw []byte
		)
		if err := rows.Scan(&record.AuditID, &record.OriginID, &operation, &snapshotRaw, &record.CreatedDate); err != nil {
			return repo.AuditSearchResult{}, fmt.Errorf("scan audit record: %w", err)
		}
		op, err := domain.ParseOperation(operation)
		if err != nil {
			return repo.AuditSearchResult{}, fmt.Errorf("audit record %d: %w", record.AuditID, err)
		}
		record.Operation = op
		if err := json.Unmarshal(snapshotRaw, &record.Snapshot); err != nil {
			return repo.AuditSearchResult{}, fmt.Errorf("decode audit snapshot %d: %w", record.AuditID, err)
		}
		record.CreatedDate = record.CreatedDate.UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return repo.AuditSearchResult{}, fmt.Errorf("list audit records: %w", err)
	}

	docs := make([]map[string]any, len(records))
	for i, record := range records {
		docs[i] = record.Document()
	}
	res := query.Run(docs, req)

	page := make([]domain.AuditRecord, 0, len(res.Page))
	for _, idx := range res.Page {
		page = append(page, records[idx])
	}
	return repo.AuditSearchResult{
		Records:      page,
		TotalRecords: res.TotalRecords,
		Facets:       res.Facets,
	}, nil
}

// appendAudit writes one immutable audit row. Callers pass the transaction
// of the mutation so entry and audit commit together.
func appendAudit(ctx context.Context, q DB, tenantID string, record domain.AuditRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	snapshot, err := json.Marshal(record.Snapshot)
	if err != nil {
		return fmt.Errorf("encode audit snapshot: %w", err)
	}
	_, err = q.ExecContext(
		ctx,
		`INSERT INTO config_audit (
			tenant_id,
			origin_id,
			operation,
			snapshot,
			created_date
		) VALUES ($1,$2,$3,$4,$5)`,
		tenantID,
		record.OriginID,
		string(record.Operation),
		snapshot,
		record.CreatedDate.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}
