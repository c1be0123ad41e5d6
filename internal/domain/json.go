package domain

import (
	"encoding/json"
	"time"
)

// entryJSON is the wire and snapshot shape of a ConfigurationEntry. The
// same encoding serves API responses and audit snapshots so the two never
// drift.
type entryJSON struct {
	ID          string            `json:"id"`
	Module      string            `json:"module"`
	ConfigName  string            `json:"configName"`
	Code        *string           `json:"code,omitempty"`
	Description string            `json:"description,omitempty"`
	UserID      *string           `json:"userId,omitempty"`
	Value       string            `json:"value"`
	Enabled     bool              `json:"enabled"`
	Default     bool              `json:"default"`
	Metadata    entryMetadataJSON `json:"metadata"`
}

type entryMetadataJSON struct {
	CreatedDate time.Time  `json:"createdDate"`
	CreatedBy   string     `json:"createdByUserId,omitempty"`
	UpdatedDate *time.Time `json:"updatedDate,omitempty"`
	UpdatedBy   *string    `json:"updatedByUserId,omitempty"`
}

func (e ConfigurationEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{
		ID:          e.ID,
		Module:      e.Module,
		ConfigName:  e.ConfigName,
		Code:        e.Code,
		Description: e.Description,
		UserID:      e.UserID,
		Value:       e.Value,
		Enabled:     e.Enabled,
		Default:     e.Default,
		Metadata: entryMetadataJSON{
			CreatedDate: e.Metadata.CreatedDate.UTC(),
			CreatedBy:   e.Metadata.CreatedBy,
			UpdatedDate: e.Metadata.UpdatedDate,
			UpdatedBy:   e.Metadata.UpdatedBy,
		},
	})
}

func (e *ConfigurationEntry) UnmarshalJSON(data []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = ConfigurationEntry{
		ID:          raw.ID,
		Module:      raw.Module,
		ConfigName:  raw.ConfigName,
		Code:        raw.Code,
		Description: raw.Description,
		UserID:      raw.UserID,
		Value:       raw.Value,
		Enabled:     raw.Enabled,
		Default:     raw.Default,
		Metadata: EntryMetadata{
			CreatedDate: raw.Metadata.CreatedDate,
			CreatedBy:   raw.Metadata.CreatedBy,
			UpdatedDate: raw.Metadata.UpdatedDate,
			UpdatedBy:   raw.Metadata.UpdatedBy,
		},
	}
	return nil
}

func (r AuditRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		AuditID     int64              `json:"auditId,omitempty"`
		OriginID    string             `json:"originId"`
		Operation   Operation          `json:"operation"`
		Snapshot    ConfigurationEntry `json:"snapshot"`
		CreatedDate time.Time          `json:"createdDate"`
	}{
		AuditID:     r.AuditID,
		OriginID:    r.OriginID,
		Operation:   r.Operation,
		Snapshot:    r.Snapshot,
		CreatedDate: r.CreatedDate.UTC(),
	})
}
