package knowledge

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/medscan-resolver/internal/domain"
)

// SafetyTable maps lowercase drug aliases to dose ceilings
type SafetyTable struct {
	limits map[string]domain.SafetyLimit
}

// NewSafetyTable validates limits and indexes them by lowercase alias
func NewSafetyTable(source string, limits map[string]domain.SafetyLimit) (*SafetyTable, error) {
	if len(limits) == 0 {
		return nil, domain.NewCatalogError(source, "", "safety table is empty")
	}

	t := &SafetyTable{limits: make(map[string]domain.SafetyLimit, len(limits))}
	for alias, limit := range limits {
		key := aliasKey(alias)
		if key == "" {
			return nil, domain.NewCatalogError(source, alias, "empty alias")
		}
		if limit.MaxSingleDoseMg <= 0 {
			return nil, domain.NewCatalogError(source, alias, "max single dose must be positive")
		}
		if limit.MaxDailyDoseMg < limit.MaxSingleDoseMg {
			return nil, domain.NewCatalogError(source, alias, "max daily dose is below max single dose")
		}
		if _, dup := t.limits[key]; dup {
			return nil, domain.NewCatalogError(source, alias, "duplicate alias")
		}
		if limit.TypicalUnit == "" {
			limit.TypicalUnit = "mg"
		}
		t.limits[key] = limit
	}
	return t, nil
}

// Lookup finds the limits for a drug name, case-insensitively
func (t *SafetyTable) Lookup(name string) (domain.SafetyLimit, bool) {
	limit, ok := t.limits[aliasKey(name)]
	return limit, ok
}

// Len returns the number of aliases
func (t *SafetyTable) Len() int {
	return len(t.limits)
}

func aliasKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// safetyGroup is the on-disk layout: one set of limits shared by several aliases
type safetyGroup struct {
	Aliases         []string `yaml:"aliases" json:"aliases"`
	MaxSingleDoseMg float64  `yaml:"max_single_dose_mg" json:"max_single_dose_mg"`
	MaxDailyDoseMg  float64  `yaml:"max_daily_dose_mg" json:"max_daily_dose_mg"`
	TypicalUnit     string   `yaml:"typical_unit" json:"typical_unit"`
}

type safetyDocument struct {
	Limits []safetyGroup `yaml:"limits" json:"limits"`
}

// ParseSafetyLimits decodes the grouped safety-limit document (YAML or JSON)
// into a flat alias map. An alias listed in two groups is rejected.
func ParseSafetyLimits(source string, data []byte) (map[string]domain.SafetyLimit, error) {
	var doc safetyDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, domain.NewCatalogError(source, "", fmt.Sprintf("decode: %v", err))
	}

	limits := make(map[string]domain.SafetyLimit)
	for i, group := range doc.Limits {
		if len(group.Aliases) == 0 {
			return nil, domain.NewCatalogError(source, fmt.Sprintf("group #%d", i), "no aliases")
		}
		for _, alias := range group.Aliases {
			key := aliasKey(alias)
			if _, dup := limits[key]; dup {
				return nil, domain.NewCatalogError(source, alias, "duplicate alias")
			}
			limits[key] = domain.SafetyLimit{
				MaxSingleDoseMg: group.MaxSingleDoseMg,
				MaxDailyDoseMg:  group.MaxDailyDoseMg,
				TypicalUnit:     group.TypicalUnit,
			}
		}
	}
	return limits, nil
}
