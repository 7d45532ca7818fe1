package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/storage/inmem"
)

const allowQuery = "data.market.route_access.allow"

// Default Rego policy: every route is open to authenticated users except the ones listed as
// verified_only, which require a verified email.
const defaultRegoPolicy = `package market.route_access

default allow := true

allow := false if {
	input.route in data.verified_only
	not input.user.verified
}
`

// ErrNoDecision is returned when the policy query yields no boolean result.
var ErrNoDecision = errors.New("policy query returned no result")

// OPAEvaluator evaluates route access with an in-process OPA Rego query prepared once at startup.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles the route access policy with the given verified-only route names.
// An empty policy uses the built-in default.
func NewOPAEvaluator(ctx context.Context, verifiedOnly []string, policy string) (*OPAEvaluator, error) {
	if policy == "" {
		policy = defaultRegoPolicy
	}
	compiler, err := ast.CompileModules(map[string]string{"route_access.rego": policy})
	if err != nil {
		return nil, fmt.Errorf("compile route policy: %w", err)
	}
	routes := make([]any, 0, len(verifiedOnly))
	for _, r := range verifiedOnly {
		routes = append(routes, r)
	}
	q, err := rego.New(
		rego.Query(allowQuery),
		rego.Compiler(compiler),
		rego.Store(inmem.NewFromObject(map[string]any{"verified_only": routes})),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare route policy: %w", err)
	}
	return &OPAEvaluator{query: q}, nil
}

// Allow evaluates the policy for req.
func (e *OPAEvaluator) Allow(ctx context.Context, req AccessRequest) (bool, error) {
	input := map[string]any{
		"route": req.Route,
		"user": map[string]any{
			"id":       req.Profile.ID,
			"verified": req.Profile.Verified,
		},
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("eval route policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, ErrNoDecision
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, ErrNoDecision
	}
	return allowed, nil
}

// HealthCheck evaluates the prepared query against a minimal input. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.Allow(ctx, AccessRequest{Route: "healthz"})
	return err
}
