package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alexanders1003/scribble.identity/internal/identity/claims"
	apperrors "github.com/alexanders1003/scribble.identity/internal/platform/errors"
	"github.com/alexanders1003/scribble.identity/internal/services/identity/storage"
)

// CreateRole persists a role. Role names are unique case-insensitively.
func (s *Store) CreateRole(ctx context.Context, role storage.Role) error {
	actor := storage.ActorFrom(ctx)
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO roles (id, name, created_at, updated_at, created_by, updated_by)
		VALUES (?, ?, ?, ?, ?, ?)`,
		role.ID, role.Name, toMillis(role.CreatedAt), toMillis(role.UpdatedAt), actor, actor,
	)
	if isUniqueViolation(err) {
		return apperrors.Wrap(apperrors.CodeRoleDuplicateName, "role name already exists", err)
	}
	if err != nil {
		return fmt.Errorf("insert role: %w", err)
	}
	return nil
}

// FindRoleByName returns the role with the given name, matched
// case-insensitively, or nil when missing.
func (s *Store) FindRoleByName(ctx context.Context, name string) (*storage.Role, error) {
	var role storage.Role
	var createdAt, updatedAt int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at, created_by, updated_by
		FROM roles WHERE name = ? COLLATE NOCASE`, name,
	).Scan(&role.ID, &role.Name, &createdAt, &updatedAt, &role.CreatedBy, &role.UpdatedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find role: %w", err)
	}
	role.CreatedAt = fromMillis(createdAt)
	role.UpdatedAt = fromMillis(updatedAt)
	return &role, nil
}

// AddRoleClaim attaches a claim to a role. Re-adding the same claim is a
// no-op.
func (s *Store) AddRoleClaim(ctx context.Context, roleID string, claim storage.RoleClaim) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO role_claims (role_id, claim_type, claim_value, issuer)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(role_id, claim_type, claim_value) DO NOTHING`,
		roleID, claim.Type, claim.Value, claim.Issuer,
	)
	if err != nil {
		return fmt.Errorf("add role claim: %w", err)
	}
	return nil
}

// AssignRole grants a role to a user. Re-assigning is a no-op.
func (s *Store) AssignRole(ctx context.Context, userID, roleID string) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)
		ON CONFLICT(user_id, role_id) DO NOTHING`,
		userID, roleID,
	)
	if err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

// GetRolesForUser returns the names of the roles held by a user.
func (s *Store) GetRolesForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT r.name FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = ?
		ORDER BY r.name`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("roles for user: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// GetPermissionClaimsForRole returns the claims attached to a role,
// matched case-insensitively by role name.
func (s *Store) GetPermissionClaimsForRole(ctx context.Context, roleName string) ([]claims.Claim, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT rc.claim_type, rc.claim_value, rc.issuer
		FROM role_claims rc
		JOIN roles r ON r.id = rc.role_id
		WHERE r.name = ? COLLATE NOCASE
		ORDER BY rc.claim_type, rc.claim_value`, roleName,
	)
	if err != nil {
		return nil, fmt.Errorf("claims for role: %w", err)
	}
	defer rows.Close()

	var result []claims.Claim
	for rows.Next() {
		var c claims.Claim
		if err := rows.Scan(&c.Type, &c.Value, &c.Issuer); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
