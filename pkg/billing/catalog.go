package billing

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// PlanCatalog is the YAML document used to seed plans:
//
//	plans:
//	  - code: pro-monthly
//	    name: Pro
//	    price_cents: 1500
//	    currency: usd
//	    billing_period: monthly
//	    tier: pro
type PlanCatalog struct {
	Plans []CreatePlanInput `yaml:"plans"`
}

// LoadPlanCatalog parses and validates a catalog.
func LoadPlanCatalog(r io.Reader) ([]CreatePlanInput, error) {
	var catalog PlanCatalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&catalog); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: plan catalog: %w", ErrInvalidInput, err)
	}

	seen := make(map[string]bool, len(catalog.Plans))
	for i := range catalog.Plans {
		in := &catalog.Plans[i]
		in.normalize()
		if err := in.Validate(); err != nil {
			return nil, fmt.Errorf("plan catalog entry %d: %w", i, err)
		}
		if seen[in.Code] {
			return nil, fmt.Errorf("%w: plan catalog lists %q twice", ErrInvalidInput, in.Code)
		}
		seen[in.Code] = true
	}
	return catalog.Plans, nil
}
