package bundle

import (
	"fmt"
	"sort"
	"time"
)

// Package is a purchasable unit granting a fixed duration of internet
// access at a fixed price. The catalog is boot-time configuration and
// never changes while the bot is running.
type Package struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
	Hours int    `yaml:"hours" json:"hours"`
	Price int    `yaml:"price" json:"price"`
}

// Total returns the exact price of quantity units.
func (p Package) Total(quantity int) int {
	return p.Price * quantity
}

// AccessDuration returns the entitlement duration granted by quantity units.
func (p Package) AccessDuration(quantity int) time.Duration {
	return time.Duration(p.Hours*quantity) * time.Hour
}

// Catalog maps package identifiers to their definitions while keeping
// the configured presentation order.
type Catalog struct {
	ordered []Package
	byID    map[string]Package
}

// NewCatalog validates the configured packages and builds a catalog.
func NewCatalog(packages []Package) (*Catalog, error) {
	if len(packages) == 0 {
		return nil, fmt.Errorf("catalog: no packages configured")
	}
	byID := make(map[string]Package, len(packages))
	for _, p := range packages {
		if p.ID == "" {
			return nil, fmt.Errorf("catalog: package with empty id")
		}
		if p.Label == "" {
			return nil, fmt.Errorf("catalog: package %q has empty label", p.ID)
		}
		if p.Hours <= 0 {
			return nil, fmt.Errorf("catalog: package %q has non-positive hours", p.ID)
		}
		if p.Price <= 0 {
			return nil, fmt.Errorf("catalog: package %q has non-positive price", p.ID)
		}
		if _, dup := byID[p.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate package id %q", p.ID)
		}
		byID[p.ID] = p
	}
	return &Catalog{
		ordered: append([]Package(nil), packages...),
		byID:    byID,
	}, nil
}

// Get returns the package with the given identifier.
func (c *Catalog) Get(id string) (Package, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// All returns the packages in configured order.
func (c *Catalog) All() []Package {
	return append([]Package(nil), c.ordered...)
}

// IDs returns the sorted package identifiers, for diagnostics.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultPackages is the stock catalog used when configuration does not
// override it.
func DefaultPackages() []Package {
	return []Package{
		{ID: "3hr", Label: "3 hours", Hours: 3, Price: 80},
		{ID: "24hr", Label: "24 hours", Hours: 24, Price: 200},
	}
}
