package auditarchive

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/confkit-labs/confkit-go/internal/domain"
	"github.com/confkit-labs/confkit-go/internal/platform/objectstore"
	"github.com/confkit-labs/confkit-go/internal/query"
	"github.com/confkit-labs/confkit-go/internal/repo"
)

type capturePutter struct {
	bucket string
	object string
	body   []byte
}

func (c *capturePutter) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	c.bucket = bucketName
	c.object = objectName
	body, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	c.body = body
	return minio.UploadInfo{Bucket: bucketName, Key: objectName, Size: int64(len(body))}, nil
}

type staticAuditStore struct {
	records []domain.AuditRecord
}

func (s *staticAuditStore) Search(ctx context.Context, tenantID string, req query.Request) (repo.AuditSearchResult, error) {
	return repo.AuditSearchResult{Records: s.records, TotalRecords: len(s.records)}, nil
}

func testConfig() objectstore.Config {
	return objectstore.Config{
		Endpoint:      "localhost:9000",
		AccessKey:     "a",
		SecretKey:     "b",
		Region:        "us-east-1",
		BucketArchive: "config-audit-archive",
	}
}

func TestExport_WritesNDJSONSnapshot(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	records := []domain.AuditRecord{
		{
			AuditID:     1,
			OriginID:    "e-1",
			Operation:   domain.OpCreate,
			Snapshot:    domain.ConfigurationEntry{ID: "e-1", Module: "CHECKOUT", ConfigName: "other_settings", Value: "true", Enabled: true},
			CreatedDate: created,
		},
		{
			AuditID:     2,
			OriginID:    "e-1",
			Operation:   domain.OpDelete,
			Snapshot:    domain.ConfigurationEntry{ID: "e-1", Module: "CHECKOUT", ConfigName: "other_settings", Value: "true", Enabled: true},
			CreatedDate: created.Add(time.Minute),
		},
	}

	putter := &capturePutter{}
	exp := NewExporter(putter, testConfig(), &staticAuditStore{records: records})
	exp.now = func() time.Time { return time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) }

	res, err := exp.Export(context.Background(), "diku")
	if err != nil {
		t.Fatalf("Export() err=%v", err)
	}
	if res.Records != 2 {
		t.Fatalf("Records=%d, want 2", res.Records)
	}
	if res.Bucket != "config-audit-archive" {
		t.Fatalf("Bucket=%q", res.Bucket)
	}
	if res.Object != "diku/audit-20260302T000000Z.ndjson" {
		t.Fatalf("Object=%q", res.Object)
	}
	if res.SHA256 == "" {
		t.Fatalf("expected checksum")
	}

	lines := bytes.Split(bytes.TrimRight(putter.body, "\n"), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("have %d lines, want 2", len(lines))
	}
	var first map[string]any
	if err := json.Unmarshal(lines[0], &first); err != nil {
		t.Fatalf("line 0 is not JSON: %v", err)
	}
	if first["operation"] != "CREATE" || first["originId"] != "e-1" {
		t.Fatalf("line 0=%v", first)
	}
	if !strings.Contains(string(lines[1]), "\"DELETE\"") {
		t.Fatalf("line 1=%s", lines[1])
	}
}

func TestExport_EmptyTrail(t *testing.T) {
	putter := &capturePutter{}
	exp := NewExporter(putter, testConfig(), &staticAuditStore{})

	res, err := exp.Export(context.Background(), "diku")
	if err != nil {
		t.Fatalf("Export() err=%v", err)
	}
	if res.Records != 0 {
		t.Fatalf("Records=%d, want 0", res.Records)
	}
	if len(putter.body) != 0 {
		t.Fatalf("empty trail must produce an empty object, got %d bytes", len(putter.body))
	}
}
