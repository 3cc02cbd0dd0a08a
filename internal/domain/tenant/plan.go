package tenant

import "github.com/saas/controlplane/internal/domain/shared"

// PlanName identifies a subscription plan in the catalog
type PlanName string

const (
	PlanFree       PlanName = "free"
	PlanBasic      PlanName = "basic"
	PlanPro        PlanName = "pro"
	PlanEnterprise PlanName = "enterprise"
)

// Unlimited is the sentinel limit value meaning "no ceiling"
const Unlimited int64 = -1

// Well-known usage metrics. Metric names are free-form strings; these are
// the ones the catalog ships limits for.
const (
	MetricAPICalls     = "api_calls"
	MetricStorageBytes = "storage_bytes"
	MetricSeats        = "seats"
	MetricProjects     = "projects"
)

// Plan describes a catalog entry: the feature set and numeric limits a
// subscription on this plan starts out with.
type Plan struct {
	Name     PlanName
	Features []string
	Limits   map[string]int64
}

// catalog is the static plan catalog. Tenant-specific overrides are layered
// on top via Subscription limits; the catalog itself is never mutated.
var catalog = map[PlanName]Plan{
	PlanFree: {
		Name:     PlanFree,
		Features: []string{"core"},
		Limits: map[string]int64{
			MetricAPICalls:     1_000,
			MetricStorageBytes: 100 << 20, // 100 MiB
			MetricSeats:        3,
			MetricProjects:     1,
		},
	},
	PlanBasic: {
		Name:     PlanBasic,
		Features: []string{"core", "exports"},
		Limits: map[string]int64{
			MetricAPICalls:     50_000,
			MetricStorageBytes: 5 << 30, // 5 GiB
			MetricSeats:        10,
			MetricProjects:     10,
		},
	},
	PlanPro: {
		Name:     PlanPro,
		Features: []string{"core", "exports", "webhooks", "audit_log"},
		Limits: map[string]int64{
			MetricAPICalls:     1_000_000,
			MetricStorageBytes: 100 << 30, // 100 GiB
			MetricSeats:        50,
			MetricProjects:     100,
		},
	},
	PlanEnterprise: {
		Name:     PlanEnterprise,
		Features: []string{"core", "exports", "webhooks", "audit_log", "sso", "dedicated_support"},
		Limits: map[string]int64{
			MetricAPICalls:     Unlimited,
			MetricStorageBytes: Unlimited,
			MetricSeats:        Unlimited,
			MetricProjects:     Unlimited,
		},
	},
}

// IsValid returns true if the plan exists in the catalog
func (p PlanName) IsValid() bool {
	_, ok := catalog[p]
	return ok
}

// String returns the string representation of the plan name
func (p PlanName) String() string {
	return string(p)
}

// LookupPlan returns the catalog entry for a plan name
func LookupPlan(name PlanName) (Plan, error) {
	plan, ok := catalog[name]
	if !ok {
		return Plan{}, shared.NewDomainError("INVALID_PLAN", "Unknown subscription plan: "+string(name))
	}
	return plan, nil
}

// HasFeature returns true if the plan includes the named feature
func (p Plan) HasFeature(feature string) bool {
	for _, f := range p.Features {
		if f == feature {
			return true
		}
	}
	return false
}

// LimitFor returns the plan's limit for a metric. Metrics the catalog does
// not know about are unlimited.
func (p Plan) LimitFor(metric string) int64 {
	if limit, ok := p.Limits[metric]; ok {
		return limit
	}
	return Unlimited
}

// MergeLimits computes the effective limits for a plan plus a set of
// tenant-specific overrides. The override wins whenever present.
func MergeLimits(plan Plan, overrides map[string]int64) map[string]int64 {
	merged := make(map[string]int64, len(plan.Limits)+len(overrides))
	for metric, limit := range plan.Limits {
		merged[metric] = limit
	}
	for metric, limit := range overrides {
		merged[metric] = limit
	}
	return merged
}
