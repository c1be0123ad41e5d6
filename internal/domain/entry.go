package domain

import (
	"strings"
	"time"
)

// ConfigurationEntry is a single named configuration record owned by a
// module. Code and UserID are pointers because absence is a scope bucket of
// its own: a nil Code is not the same bucket as an empty-string Code.
type ConfigurationEntry struct {
	ID          string
	Module      string
	ConfigName  string
	Code        *string
	Description string
	UserID      *string
	Value       string
	Enabled     bool
	Default     bool
	Metadata    EntryMetadata
}

// EntryMetadata is server-controlled; clients never write it directly.
type EntryMetadata struct {
	CreatedDate time.Time
	CreatedBy   string
	UpdatedDate *time.Time
	UpdatedBy   *string
}

func (e ConfigurationEntry) Validate() error {
	if strings.TrimSpace(e.Module) == "" {
		return &ValidationError{Field: "module", Message: "module is required"}
	}
	if strings.TrimSpace(e.ConfigName) == "" {
		return &ValidationError{Field: "configName", Message: "configName is required"}
	}
	if e.Code != nil && strings.TrimSpace(*e.Code) == "" {
		return &ValidationError{Field: "code", Message: "code must be non-blank when present"}
	}
	return nil
}

// ScopeKey identifies the uniqueness bucket of an entry. The Has* flags keep
// an absent code/user distinct from any real value, including "".
type ScopeKey struct {
	Module     string
	ConfigName string
	Code       string
	HasCode    bool
	UserID     string
	HasUser    bool
}

// ScopeKeyOf derives the uniqueness bucket for an entry. Pure, no failure
// modes.
func ScopeKeyOf(e ConfigurationEntry) ScopeKey {
	key := ScopeKey{
		Module:     e.Module,
		ConfigName: e.ConfigName,
	}
	if e.Code != nil {
		key.Code = *e.Code
		key.HasCode = true
	}
	if e.UserID != nil {
		key.UserID = *e.UserID
		key.HasUser = true
	}
	return key
}

func (k ScopeKey) String() string {
	var b strings.Builder
	b.WriteString(k.Module)
	b.WriteByte('/')
	b.WriteString(k.ConfigName)
	b.WriteByte('/')
	if k.HasCode {
		b.WriteString(k.Code)
	} else {
		b.WriteString("<absent>")
	}
	b.WriteByte('/')
	if k.HasUser {
		b.WriteString(k.UserID)
	} else {
		b.WriteString("<absent>")
	}
	return b.String()
}

// Clone returns a deep copy so callers can mutate pointer fields freely.
func (e ConfigurationEntry) Clone() ConfigurationEntry {
	out := e
	if e.Code != nil {
		code := *e.Code
		out.Code = &code
	}
	if e.UserID != nil {
		user := *e.UserID
		out.UserID = &user
	}
	if e.Metadata.UpdatedDate != nil {
		t := *e.Metadata.UpdatedDate
		out.Metadata.UpdatedDate = &t
	}
	if e.Metadata.UpdatedBy != nil {
		by := *e.Metadata.UpdatedBy
		out.Metadata.UpdatedBy = &by
	}
	return out
}
