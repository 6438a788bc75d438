// Package knowledge holds the Local Knowledge Base: the curated drug catalog the
// resolver matches against and the safety-limit table the dosage validator reads.
// Both are loaded once at startup from a CatalogSource and are read-only afterwards,
// so they can be shared across goroutines without locking.
package knowledge

import (
	"fmt"
	"strings"

	"github.com/medscan-resolver/internal/domain"
	"github.com/medscan-resolver/pkg/similarity"
)

// Catalog is the immutable drug catalog
type Catalog struct {
	source   string
	records  []domain.DrugRecord
	targets  []string
	byTarget map[string]int
}

// NewCatalog validates records and builds the match-target index.
// Every record needs a name; brands are optional. A name or brand may not
// normalize to the same target as a name or brand of a different record.
func NewCatalog(source string, records []domain.DrugRecord) (*Catalog, error) {
	if len(records) == 0 {
		return nil, domain.NewCatalogError(source, "", "catalog has no drug records")
	}

	c := &Catalog{
		source:   source,
		records:  make([]domain.DrugRecord, len(records)),
		byTarget: make(map[string]int, len(records)*2),
	}
	copy(c.records, records)

	// Names first, then brands, matching the order callers see in Targets.
	for i, rec := range c.records {
		if strings.TrimSpace(rec.Name) == "" {
			return nil, domain.NewCatalogError(source, fmt.Sprintf("#%d", i), "drug record has no name")
		}
		if err := c.addTarget(rec.Name, i); err != nil {
			return nil, err
		}
	}
	for i, rec := range c.records {
		if strings.TrimSpace(rec.Brand) == "" {
			continue
		}
		if err := c.addTarget(rec.Brand, i); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *Catalog) addTarget(target string, idx int) error {
	key := similarity.Normalize(target)
	if existing, ok := c.byTarget[key]; ok {
		if existing == idx {
			return nil
		}
		return domain.NewCatalogError(c.source, target,
			fmt.Sprintf("target collides with record %q", c.records[existing].Name))
	}
	c.byTarget[key] = idx
	c.targets = append(c.targets, target)
	return nil
}

// Targets returns the deduplicated match targets in catalog order
func (c *Catalog) Targets() []string {
	out := make([]string, len(c.targets))
	copy(out, c.targets)
	return out
}

// FindByTarget returns the record whose name or brand equals target after normalization
func (c *Catalog) FindByTarget(target string) (*domain.DrugRecord, bool) {
	idx, ok := c.byTarget[similarity.Normalize(target)]
	if !ok {
		return nil, false
	}
	rec := c.records[idx]
	return &rec, true
}

// Records returns a copy of every drug record in catalog order
func (c *Catalog) Records() []domain.DrugRecord {
	out := make([]domain.DrugRecord, len(c.records))
	copy(out, c.records)
	return out
}

// Len returns the number of drug records
func (c *Catalog) Len() int {
	return len(c.records)
}

// Source names where the catalog was loaded from
func (c *Catalog) Source() string {
	return c.source
}
