// Package permission defines the fine-grained authorization capabilities
// carried by role claims and checked by permission policies.
package permission

import (
	"fmt"
	"strings"

	apperrors "github.com/alexanders1003/scribble.identity/internal/platform/errors"
)

// Prefix is the reserved first segment of every permission name. Policy
// names starting with it are resolved as dynamic permission policies.
const Prefix = "Permissions"

// ClaimType is the claim type used for permission claims attached to roles.
const ClaimType = "permission"

// LocalIssuer is the only issuer trusted for permission claims.
const LocalIssuer = "LOCAL AUTHORITY"

// Permission names an authorization capability as Permissions.<Resource>.<Action>.
type Permission string

// Known user-management permissions, validated at configuration load.
const (
	UsersView   Permission = "Permissions.Users.View"
	UsersCreate Permission = "Permissions.Users.Create"
	UsersEdit   Permission = "Permissions.Users.Edit"
	UsersDelete Permission = "Permissions.Users.Delete"
)

// All enumerates the statically known permissions.
func All() []Permission {
	return []Permission{UsersView, UsersCreate, UsersEdit, UsersDelete}
}

// String returns the permission name.
func (p Permission) String() string {
	return string(p)
}

// Resource returns the middle segment of the permission name.
func (p Permission) Resource() string {
	parts := strings.Split(string(p), ".")
	if len(parts) != 3 {
		return ""
	}
	return parts[1]
}

// Action returns the final segment of the permission name.
func (p Permission) Action() string {
	parts := strings.Split(string(p), ".")
	if len(parts) != 3 {
		return ""
	}
	return parts[2]
}

// Parse validates an operator-provided permission name. Statically known
// names parse to their enumerated value; other well-formed names are the
// escape hatch for genuinely dynamic permissions.
func Parse(name string) (Permission, error) {
	trimmed := strings.TrimSpace(name)
	parts := strings.Split(trimmed, ".")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return "", apperrors.WithMetadata(apperrors.CodePermissionInvalidName,
			fmt.Sprintf("permission %q must have the form %s.<Resource>.<Action>", name, Prefix),
			map[string]string{"permission": name})
	}
	if !strings.EqualFold(parts[0], Prefix) {
		return "", apperrors.WithMetadata(apperrors.CodePermissionInvalidName,
			fmt.Sprintf("permission %q must start with the %s prefix", name, Prefix),
			map[string]string{"permission": name})
	}
	for _, known := range All() {
		if string(known) == trimmed {
			return known, nil
		}
	}
	return Permission(trimmed), nil
}

// HasPrefix reports whether a policy name is in the reserved permission
// namespace. The comparison is case-insensitive.
func HasPrefix(policyName string) bool {
	return len(policyName) >= len(Prefix) && strings.EqualFold(policyName[:len(Prefix)], Prefix)
}
