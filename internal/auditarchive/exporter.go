// Package auditarchive writes a tenant's audit trail to object storage
// as an NDJSON snapshot, one audit record per line in ascending audit
// id order.
package auditarchive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/confkit-labs/confkit-go/internal/domain"
	"github.com/confkit-labs/confkit-go/internal/platform/objectstore"
	"github.com/confkit-labs/confkit-go/internal/query"
	"github.com/confkit-labs/confkit-go/internal/repo"
)

// ObjectPutter is the slice of the MinIO client the exporter needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type Exporter struct {
	store ObjectPutter
	cfg   objectstore.Config
	audit repo.AuditStore
	now   func() time.Time
}

type ExportResult struct {
	Object  string `json:"object"`
	Bucket  string `json:"bucket"`
	Records int    `json:"totalRecords"`
	SHA256  string `json:"sha256"`
}

func NewExporter(store ObjectPutter, cfg objectstore.Config, audit repo.AuditStore) *Exporter {
	return &Exporter{store: store, cfg: cfg, audit: audit, now: time.Now}
}

// Export snapshots the tenant's full audit trail into one object. The
// object key embeds the export time so successive exports never clash.
func (e *Exporter) Export(ctx context.Context, tenantID string) (ExportResult, error) {
	result, err := e.audit.Search(ctx, tenantID, query.Request{Expr: query.MatchAll{}})
	if err != nil {
		return ExportResult{}, fmt.Errorf("load audit trail: %w", err)
	}

	payload, err := encodeNDJSON(result.Records)
	if err != nil {
		return ExportResult{}, err
	}

	exportedAt := e.now().UTC()
	objectKey := fmt.Sprintf("%s/audit-%s.ndjson", tenantID, exportedAt.Format("20060102T150405Z"))

	putCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	_, err = e.store.PutObject(
		putCtx,
		e.cfg.BucketArchive,
		objectKey,
		bytes.NewReader(payload),
		int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/x-ndjson"},
	)
	if err != nil {
		return ExportResult{}, fmt.Errorf("archive put: %w", err)
	}

	sum := sha256.Sum256(payload)
	return ExportResult{
		Object:  objectKey,
		Bucket:  e.cfg.BucketArchive,
		Records: len(result.Records),
		SHA256:  hex.EncodeToString(sum[:]),
	}, nil
}

func encodeNDJSON(records []domain.AuditRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("encode audit record %d: %w", rec.AuditID, err)
		}
	}
	return buf.Bytes(), nil
}
