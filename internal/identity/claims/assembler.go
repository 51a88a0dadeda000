package claims

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexanders1003/scribble.identity/internal/identity/permission"
	"github.com/alexanders1003/scribble.identity/internal/identity/user"
	apperrors "github.com/alexanders1003/scribble.identity/internal/platform/errors"
)

// IdentityNotFoundError reports that the identity behind a lookup could
// not be resolved. It carries the identity type so callers can surface
// what was missing without leaking the lookup key.
type IdentityNotFoundError struct {
	IdentityType string
}

// Error implements the error interface.
func (e *IdentityNotFoundError) Error() string {
	return fmt.Sprintf("identity of type %q could not be resolved", e.IdentityType)
}

// Is matches domain errors carrying the identity-not-found code.
func (e *IdentityNotFoundError) Is(target error) bool {
	if t, ok := target.(*apperrors.Error); ok {
		return t.Code == apperrors.CodeIdentityNotFound
	}
	_, ok := target.(*IdentityNotFoundError)
	return ok
}

// Store describes the identity reads the assembler depends on.
type Store interface {
	FindUserByID(ctx context.Context, id string) (*user.User, error)
	FindUserByEmail(ctx context.Context, email string) (*user.User, error)
	GetRolesForUser(ctx context.Context, userID string) ([]string, error)
	GetPermissionClaimsForRole(ctx context.Context, roleName string) ([]Claim, error)
}

// Assembler builds the canonical claim set for a principal from a user
// record, its roles, and its permission grants.
type Assembler struct {
	store Store
}

// NewAssembler creates an assembler backed by the given store.
func NewAssembler(store Store) *Assembler {
	return &Assembler{store: store}
}

// PrincipalByID assembles a principal for the user with the given id.
func (a *Assembler) PrincipalByID(ctx context.Context, id string) (*Principal, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.New(apperrors.CodeValidationFailed, "user id is required")
	}
	found, err := a.store.FindUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	if found == nil {
		return nil, &IdentityNotFoundError{IdentityType: "user"}
	}
	return a.build(ctx, found)
}

// PrincipalByEmail assembles a principal for the user with the given email.
func (a *Assembler) PrincipalByEmail(ctx context.Context, email string) (*Principal, error) {
	if strings.TrimSpace(email) == "" {
		return nil, apperrors.New(apperrors.CodeValidationFailed, "email is required")
	}
	found, err := a.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	if found == nil {
		return nil, &IdentityNotFoundError{IdentityType: "user"}
	}
	return a.build(ctx, found)
}

func (a *Assembler) build(ctx context.Context, u *user.User) (*Principal, error) {
	principal := &Principal{Subject: u.ID}

	add := func(claimType, value string) {
		principal.AddClaim(Claim{
			Type:         claimType,
			Value:        value,
			Destinations: defaultDestinations(claimType),
		})
	}

	add(TypeSubject, u.ID)
	if u.UserName != "" {
		add(TypeName, u.UserName)
		add(TypeUsername, u.UserName)
	}
	if u.FirstName != "" {
		add(TypeGivenName, u.FirstName)
	}
	if u.LastName != "" {
		add(TypeFamilyName, u.LastName)
	}
	if u.Email != "" {
		add(TypeEmail, u.Email)
	}

	roles, err := a.store.GetRolesForUser(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("get roles for user: %w", err)
	}

	seen := make(map[string]struct{})
	for _, role := range roles {
		add(TypeRole, role)

		roleClaims, err := a.store.GetPermissionClaimsForRole(ctx, role)
		if err != nil {
			return nil, fmt.Errorf("get permission claims for role %s: %w", role, err)
		}
		for _, roleClaim := range roleClaims {
			if roleClaim.Type != permission.ClaimType || roleClaim.Issuer != permission.LocalIssuer {
				continue
			}
			if _, ok := seen[roleClaim.Value]; ok {
				continue
			}
			seen[roleClaim.Value] = struct{}{}

			// The permission identifier is the claim type; the value is a
			// fixed marker kept for compatibility (see DESIGN.md).
			principal.AddClaim(Claim{
				Type:         roleClaim.Value,
				Value:        PermissionMarkerValue,
				Issuer:       permission.LocalIssuer,
				Destinations: defaultDestinations(roleClaim.Value),
			})
		}
	}

	return principal, nil
}
