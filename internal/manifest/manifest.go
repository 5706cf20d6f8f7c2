// Package manifest loads benchmark manifests and plans the case list for a
// run. Planning failures are fatal: a run never silently proceeds with an
// empty or ambiguous plan.
package manifest

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lakebench/lakebench/internal/assertions"
)

// Manifest is one benchmark manifest document.
type Manifest struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	Cases       []Case `yaml:"cases"`
}

// Case is one manifest entry. Enabled defaults to true and Runner to
// "native" when omitted.
type Case struct {
	ID         string          `yaml:"id"`
	Target     string          `yaml:"target"`
	Runner     string          `yaml:"runner"`
	Enabled    *bool           `yaml:"enabled"`
	Assertions []CaseAssertion `yaml:"assertions"`
}

// IsEnabled reports the effective enabled flag.
func (c *Case) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// EffectiveRunner reports the runner, applying the default.
func (c *Case) EffectiveRunner() string {
	if c.Runner == "" {
		return "native"
	}
	return c.Runner
}

// CaseAssertion is the YAML form of an assertion: a type tag plus an
// optional value.
type CaseAssertion struct {
	Type  string `yaml:"type"`
	Value string `yaml:"value"`
}

// ToAssertion converts the YAML record into an engine assertion.
func (a *CaseAssertion) ToAssertion() (assertions.Assertion, error) {
	switch a.Type {
	case "exact_result_hash", "schema_hash", "expected_error_contains":
		if a.Value == "" {
			return assertions.Assertion{}, fmt.Errorf("assertion type %q requires a value", a.Type)
		}
		return assertions.Assertion{Kind: assertions.Kind(a.Type), Value: a.Value}, nil
	case "version_monotonicity":
		if a.Value != "" {
			return assertions.Assertion{}, fmt.Errorf("assertion type %q takes no value", a.Type)
		}
		return assertions.Assertion{Kind: assertions.KindVersionMonotonicity}, nil
	default:
		return assertions.Assertion{}, fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// Parse decodes a manifest document. Unknown fields are rejected so a typo
// in a manifest never passes silently; name is used in error messages.
func Parse(data []byte, name string) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("invalid manifest '%s': %w", name, err)
	}
	for i := range m.Cases {
		c := &m.Cases[i]
		if c.ID == "" {
			return nil, fmt.Errorf("invalid manifest '%s': case %d has no id", name, i)
		}
		if c.Target == "" {
			return nil, fmt.Errorf("invalid manifest '%s': case '%s' has no target", name, c.ID)
		}
		for _, a := range c.Assertions {
			if _, err := a.ToAssertion(); err != nil {
				return nil, fmt.Errorf("invalid manifest '%s': case '%s': %w", name, c.ID, err)
			}
		}
	}
	return &m, nil
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("invalid manifest '%s': %w", path, err)
	}
	return Parse(data, path)
}
