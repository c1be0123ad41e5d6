package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Document flattens an entry into the dot-addressable field map the query
// engine evaluates. When Value holds a JSON object it is exposed as a nested
// map so queries can reach into it; otherwise it stays an opaque string.
func (e ConfigurationEntry) Document() map[string]any {
	doc := map[string]any{
		"id":         e.ID,
		"module":     e.Module,
		"configName": e.ConfigName,
		"enabled":    e.Enabled,
		"default":    e.Default,
		"value":      valueField(e.Value),
	}
	if e.Code != nil {
		doc["code"] = *e.Code
	}
	if e.Description != "" {
		doc["description"] = e.Description
	}
	if e.UserID != nil {
		doc["userId"] = *e.UserID
	}
	meta := map[string]any{
		"createdDate": e.Metadata.CreatedDate.UTC().Format(time.RFC3339Nano),
	}
	if e.Metadata.CreatedBy != "" {
		meta["createdByUserId"] = e.Metadata.CreatedBy
	}
	if e.Metadata.UpdatedDate != nil {
		meta["updatedDate"] = e.Metadata.UpdatedDate.UTC().Format(time.RFC3339Nano)
	}
	if e.Metadata.UpdatedBy != nil {
		meta["updatedByUserId"] = *e.Metadata.UpdatedBy
	}
	doc["metadata"] = meta
	return doc
}

// Document flattens an audit record for the read-only audit query surface.
func (r AuditRecord) Document() map[string]any {
	return map[string]any{
		"auditId":     r.AuditID,
		"originId":    r.OriginID,
		"operation":   string(r.Operation),
		"snapshot":    r.Snapshot.Document(),
		"createdDate": r.CreatedDate.UTC().Format(time.RFC3339Nano),
	}
}

func valueField(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		var obj map[string]any
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
			return obj
		}
	}
	return raw
}
