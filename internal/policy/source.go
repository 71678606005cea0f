package policy

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kestrelops/kestrel/internal/apperrors"
)

// sourceDocument is the on-disk shape of a declarative policy source
// file: a flat list under a single top-level key.
type sourceDocument struct {
	Policies []Policy `yaml:"policies"`
}

// LoadSource reads and validates a declarative policy document from
// path, returning the decoded policies without touching any registry.
// Every entry is validated (condition structure, known action, severity
// enum) before the list is returned, so a caller can reject a bad file
// before it ever reaches Registry.Reload.
func LoadSource(path string) ([]Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.PermanentIO, fmt.Sprintf("read policy source %s", path), err)
	}

	var doc sourceDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.Wrap(apperrors.Validation, fmt.Sprintf("parse policy source %s", path), err)
	}

	now := time.Now()
	for i := range doc.Policies {
		if doc.Policies[i].CreatedAt.IsZero() {
			doc.Policies[i].CreatedAt = now
		}
		if err := doc.Policies[i].Validate(); err != nil {
			return nil, apperrors.Wrap(apperrors.Validation, fmt.Sprintf("policy %q in %s", doc.Policies[i].Name, path), err)
		}
	}
	return doc.Policies, nil
}

// LoadSourceInto loads path and atomically swaps the registry's contents
// via Reload. A missing file is treated as "no policies configured" and
// is not an error, so a control plane can start with an empty registry
// and receive policies later through an operator-triggered reload.
func LoadSourceInto(registry *Registry, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	policies, err := LoadSource(path)
	if err != nil {
		return err
	}
	return registry.Reload(policies)
}
