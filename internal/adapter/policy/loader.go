package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFromFile reads a YAML policy file and returns a validated Policy.
func LoadFromFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}

	var pol Policy
	if err := yaml.Unmarshal(data, &pol); err != nil {
		return nil, fmt.Errorf("parsing policy YAML: %w", err)
	}

	if err := validate(&pol); err != nil {
		return nil, fmt.Errorf("validating policy: %w", err)
	}

	return &pol, nil
}

func validate(pol *Policy) error {
	for i, r := range pol.Params.Rules {
		if r.Match == "" && r.Hash == "" {
			return fmt.Errorf("params.rules[%d]: one of match or hash is required", i)
		}
		if r.Mask == "" || !r.Mask.Valid() {
			return fmt.Errorf("params.rules[%d].mask: invalid value %q (allowed: redact, hash, partial, null)", i, r.Mask)
		}
		for _, p := range r.Params {
			if p < 1 {
				return fmt.Errorf("params.rules[%d].params: positions are 1-based, got %d", i, p)
			}
		}
	}
	return nil
}
