package domain

import (
	"errors"
	"strings"
	"time"
)

// Operation tags the mutation an audit record captures.
type Operation string

const (
	OpCreate Operation = "CREATE"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

func ParseOperation(s string) (Operation, error) {
	switch Operation(strings.ToUpper(strings.TrimSpace(s))) {
	case OpCreate:
		return OpCreate, nil
	case OpUpdate:
		return OpUpdate, nil
	case OpDelete:
		return OpDelete, nil
	}
	return "", errors.New("unknown operation: " + s)
}

// AuditRecord is an immutable log entry for one accepted mutation. Snapshot
// holds the full entry state after the operation, or before it for a delete.
type AuditRecord struct {
	AuditID     int64
	OriginID    string
	Operation   Operation
	Snapshot    ConfigurationEntry
	CreatedDate time.Time
}

func (r AuditRecord) Validate() error {
	if strings.TrimSpace(r.OriginID) == "" {
		return errors.New("origin id is required")
	}
	if _, err := ParseOperation(string(r.Operation)); err != nil {
		return err
	}
	if r.CreatedDate.IsZero() {
		return errors.New("created date is required")
	}
	return nil
}
