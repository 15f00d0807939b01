package payments

import (
	"sort"
	"strings"
	"time"
)

const (
	PlanSingle = "single"
	PlanPro    = "pro"
	PlanAnnual = "annual"
)

// Plan is one purchasable download allowance.
type Plan struct {
	Key         string `json:"id"`
	Name        string `json:"name"`
	AmountCents int64  `json:"price"`
	Currency    string `json:"currency"`
	Downloads   int    `json:"downloads"`
	ValidYears  int    `json:"-"`
	Description string `json:"description"`
}

// ExpiresAt returns the plan expiry for a grant made at `from`, or nil for
// plans that do not lapse.
func (p Plan) ExpiresAt(from time.Time) *time.Time {
	if p.ValidYears <= 0 {
		return nil
	}
	exp := from.UTC().AddDate(p.ValidYears, 0, 0)
	return &exp
}

// Catalog is an immutable set of plans keyed by plan key.
type Catalog struct {
	plans map[string]Plan
	order []string
}

// NewCatalog copies plans into a catalog. Later duplicates win.
func NewCatalog(plans ...Plan) Catalog {
	c := Catalog{plans: make(map[string]Plan, len(plans))}
	for _, p := range plans {
		key := strings.ToLower(strings.TrimSpace(p.Key))
		if key == "" {
			continue
		}
		p.Key = key
		if p.Currency == "" {
			p.Currency = "usd"
		}
		if _, exists := c.plans[key]; !exists {
			c.order = append(c.order, key)
		}
		c.plans[key] = p
	}
	return c
}

// DefaultCatalog is the production plan set.
func DefaultCatalog() Catalog {
	return NewCatalog(
		Plan{Key: PlanSingle, Name: "Single Download", AmountCents: 999, Downloads: 1, Description: "One PDF download"},
		Plan{Key: PlanPro, Name: "Pro Pack", AmountCents: 2999, Downloads: 5, Description: "Five PDF downloads"},
		Plan{Key: PlanAnnual, Name: "Annual Unlimited", AmountCents: 7999, Downloads: 999, ValidYears: 1, Description: "Unlimited downloads for one year"},
	)
}

// Lookup finds a plan by key, case-insensitively.
func (c Catalog) Lookup(key string) (Plan, bool) {
	p, ok := c.plans[strings.ToLower(strings.TrimSpace(key))]
	return p, ok
}

// All returns the plans in catalog order.
func (c Catalog) All() []Plan {
	out := make([]Plan, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.plans[key])
	}
	return out
}

// Keys returns the sorted plan keys.
func (c Catalog) Keys() []string {
	keys := append([]string(nil), c.order...)
	sort.Strings(keys)
	return keys
}
