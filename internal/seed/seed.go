// Package seed loads a YAML manifest of baseline configuration entries
// and applies it to a tenant. Applying a manifest is idempotent: an
// entry whose scope key already holds an enabled entry is skipped, not
// an error, so a manifest can be re-applied on every startup.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/confkit-labs/confkit-go/internal/domain"
)

const ManifestSchemaV1 = "confkit.seed.v1"

type Manifest struct {
	Schema  string  `yaml:"schema"`
	Entries []Entry `yaml:"entries"`
}

type Entry struct {
	Module      string  `yaml:"module"`
	ConfigName  string  `yaml:"configName"`
	Code        *string `yaml:"code,omitempty"`
	Description string  `yaml:"description,omitempty"`
	Value       string  `yaml:"value"`
	Enabled     *bool   `yaml:"enabled,omitempty"`
	Default     bool    `yaml:"default,omitempty"`
}

func ParseManifest(input []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(input, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

func (m Manifest) Validate() error {
	if strings.TrimSpace(m.Schema) != ManifestSchemaV1 {
		return fmt.Errorf("manifest.schema must be %q", ManifestSchemaV1)
	}
	if len(m.Entries) == 0 {
		return errors.New("manifest.entries must be non-empty")
	}
	for i, e := range m.Entries {
		if strings.TrimSpace(e.Module) == "" {
			return fmt.Errorf("manifest.entries[%d].module is required", i)
		}
		if strings.TrimSpace(e.ConfigName) == "" {
			return fmt.Errorf("manifest.entries[%d].configName is required", i)
		}
		if e.Value == "" {
			return fmt.Errorf("manifest.entries[%d].value is required", i)
		}
	}
	return nil
}

// Creator is the slice of the entries service Apply needs.
type Creator interface {
	Create(ctx context.Context, tenantID, actor string, entry domain.ConfigurationEntry, enabled *bool) (domain.ConfigurationEntry, error)
}

type Result struct {
	Created int
	Skipped int
}

// Apply creates each manifest entry for the tenant. Entries rejected as
// scope duplicates count as skipped; any other failure aborts.
func Apply(ctx context.Context, svc Creator, tenantID, actor string, m Manifest) (Result, error) {
	var res Result
	for i, e := range m.Entries {
		entry := domain.ConfigurationEntry{
			Module:      e.Module,
			ConfigName:  e.ConfigName,
			Code:        e.Code,
			Description: e.Description,
			Value:       e.Value,
			Default:     e.Default,
		}
		if _, err := svc.Create(ctx, tenantID, actor, entry, e.Enabled); err != nil {
			var vErr *domain.ValidationError
			if errors.As(err, &vErr) && vErr.Field == "scope" {
				res.Skipped++
				continue
			}
			return res, fmt.Errorf("seed entries[%d]: %w", i, err)
		}
		res.Created++
	}
	return res, nil
}
