// Package limits enforces subscription tier allowances. The engine asks it
// whether one more objective or key result may be created; the answer
// carries the tier's usage snapshot so denials can be rendered as-is.
package limits

import (
	"context"
	"fmt"
	"strings"

	"alignhq.org/internal/okr"
)

// Unlimited marks a quota with no cap.
const Unlimited = -1

// Plan describes a subscription tier's allowances.
type Plan struct {
	Name                      string
	MaxObjectives             int
	MaxKeyResultsPerObjective int
}

// Plans is the closed tier table. Billing owns which plan a company is on;
// this package only owns what each plan permits.
var Plans = map[string]Plan{
	"free":       {Name: "free", MaxObjectives: 10, MaxKeyResultsPerObjective: 4},
	"starter":    {Name: "starter", MaxObjectives: 50, MaxKeyResultsPerObjective: 6},
	"business":   {Name: "business", MaxObjectives: 250, MaxKeyResultsPerObjective: 10},
	"enterprise": {Name: "enterprise", MaxObjectives: Unlimited, MaxKeyResultsPerObjective: Unlimited},
}

// PlanResolver maps a company to its subscribed plan name. Implemented by
// the billing collaborator.
type PlanResolver func(ctx context.Context, companyID string) (string, error)

// StaticPlan resolves every company to the same plan. Useful for tests and
// single-tenant deployments.
func StaticPlan(name string) PlanResolver {
	return func(ctx context.Context, companyID string) (string, error) {
		return name, nil
	}
}

// TierChecker implements okr.LimitChecker against the plan table.
type TierChecker struct {
	resolve PlanResolver
}

var _ okr.LimitChecker = (*TierChecker)(nil)

// NewTierChecker builds a checker backed by the given plan resolver.
func NewTierChecker(resolve PlanResolver) *TierChecker {
	return &TierChecker{resolve: resolve}
}

func (c *TierChecker) CheckCreation(ctx context.Context, companyID, actorID, actorRole string, kind okr.CreationKind, used int) (okr.LimitDecision, error) {
	name, err := c.resolve(ctx, companyID)
	if err != nil {
		return okr.LimitDecision{}, err
	}
	plan, ok := Plans[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return okr.LimitDecision{}, fmt.Errorf("limits: unknown plan %q for company %s", name, companyID)
	}

	limit := plan.MaxObjectives
	if kind == okr.CreationKeyResult {
		limit = plan.MaxKeyResultsPerObjective
	}

	decision := okr.LimitDecision{
		Allowed: true,
		Kind:    kind,
		Plan:    plan.Name,
		Used:    used,
		Limit:   limit,
	}
	if limit != Unlimited && used >= limit {
		decision.Allowed = false
		decision.Reason = fmt.Sprintf("plan %s allows %d %ss (%d in use)", plan.Name, limit, kind, used)
	}
	return decision, nil
}
