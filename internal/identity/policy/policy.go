// Package policy resolves named authorization policies and evaluates
// permission requirements against a principal's role data.
package policy

import (
	"context"
	"fmt"
	"sync"

	"github.com/alexanders1003/scribble.identity/internal/identity/claims"
	"github.com/alexanders1003/scribble.identity/internal/identity/permission"
	"github.com/alexanders1003/scribble.identity/internal/identity/user"
	apperrors "github.com/alexanders1003/scribble.identity/internal/platform/errors"
)

// ErrPolicyNotFound indicates that no requirement is registered for a
// policy name and the name is outside the dynamic permission namespace.
var ErrPolicyNotFound = apperrors.New(apperrors.CodePolicyNotFound, "no authorization policy is registered for this name")

// Requirement names the permission a policy demands.
type Requirement struct {
	PermissionName string
}

// FallbackResolver resolves policy names outside the permission
// namespace, such as role-only or scheme policies.
type FallbackResolver func(policyName string) (Requirement, bool)

// Registry maps policy names to requirements. Statically known policies
// are seeded at startup; names in the permission namespace are
// synthesized on first use and cached, so adding a fine-grained
// permission does not require redeploying policy configuration.
type Registry struct {
	mu           sync.RWMutex
	requirements map[string]Requirement
	fallback     FallbackResolver
}

// NewRegistry creates a registry seeded with the known permission
// policies.
func NewRegistry(fallback FallbackResolver) *Registry {
	registry := &Registry{
		requirements: make(map[string]Requirement),
		fallback:     fallback,
	}
	for _, known := range permission.All() {
		registry.requirements[known.String()] = Requirement{PermissionName: known.String()}
	}
	return registry
}

// Register adds or replaces a named policy.
func (r *Registry) Register(policyName string, requirement Requirement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requirements[policyName] = requirement
}

// Resolve returns the requirement for a policy name, synthesizing and
// caching dynamic permission policies on first access. Concurrent first
// accesses settle on a single registration.
func (r *Registry) Resolve(policyName string) (Requirement, error) {
	r.mu.RLock()
	requirement, ok := r.requirements[policyName]
	r.mu.RUnlock()
	if ok {
		return requirement, nil
	}

	if permission.HasPrefix(policyName) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if requirement, ok := r.requirements[policyName]; ok {
			return requirement, nil
		}
		requirement := Requirement{PermissionName: policyName}
		r.requirements[policyName] = requirement
		return requirement, nil
	}

	if r.fallback != nil {
		if requirement, ok := r.fallback(policyName); ok {
			return requirement, nil
		}
	}
	return Requirement{}, ErrPolicyNotFound
}

// Decision is the outcome of evaluating a requirement.
type Decision int

const (
	// Indeterminate means the handler could not decide; other handlers
	// in the chain may still succeed or fail the requirement.
	Indeterminate Decision = iota
	// Succeed grants the requirement.
	Succeed
	// Fail denies the requirement.
	Fail
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case Succeed:
		return "succeed"
	case Fail:
		return "fail"
	default:
		return "indeterminate"
	}
}

// Store describes the role reads the evaluator depends on.
type Store interface {
	FindUserByID(ctx context.Context, id string) (*user.User, error)
	GetRolesForUser(ctx context.Context, userID string) ([]string, error)
	GetPermissionClaimsForRole(ctx context.Context, roleName string) ([]claims.Claim, error)
}

// Evaluator evaluates permission requirements against the role-derived
// permission claims of the user behind a principal.
type Evaluator struct {
	store Store
}

// NewEvaluator creates an evaluator backed by the given store.
func NewEvaluator(store Store) *Evaluator {
	return &Evaluator{store: store}
}

// Evaluate checks whether any role held by the principal's user carries
// a trusted permission claim matching the requirement. The result is
// independent of role evaluation order.
func (e *Evaluator) Evaluate(ctx context.Context, principal *claims.Principal, requirement Requirement) (Decision, error) {
	if principal == nil || principal.Subject == "" {
		return Fail, nil
	}

	found, err := e.store.FindUserByID(ctx, principal.Subject)
	if err != nil {
		return Indeterminate, fmt.Errorf("find user by id: %w", err)
	}
	if found == nil {
		// Not an error: the handler abstains so other authorization
		// handlers in the chain may still decide.
		return Indeterminate, nil
	}

	roles, err := e.store.GetRolesForUser(ctx, found.ID)
	if err != nil {
		return Indeterminate, fmt.Errorf("get roles for user: %w", err)
	}

	for _, role := range roles {
		roleClaims, err := e.store.GetPermissionClaimsForRole(ctx, role)
		if err != nil {
			return Indeterminate, fmt.Errorf("get permission claims for role %s: %w", role, err)
		}
		for _, roleClaim := range roleClaims {
			if roleClaim.Type == permission.ClaimType &&
				roleClaim.Value == requirement.PermissionName &&
				roleClaim.Issuer == permission.LocalIssuer {
				return Succeed, nil
			}
		}
	}
	return Fail, nil
}
