package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/alexanders1003/scribble.identity/internal/identity/user"
	apperrors "github.com/alexanders1003/scribble.identity/internal/platform/errors"
	"github.com/alexanders1003/scribble.identity/internal/services/identity/storage"
)

const (
	maxFailedAccessCount = 5
	lockoutDuration      = 5 * time.Minute
)

const userColumns = `id, email, user_name, first_name, last_name, email_confirmed, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*user.User, error) {
	var u user.User
	var emailConfirmed int
	var createdAt, updatedAt int64
	err := row.Scan(&u.ID, &u.Email, &u.UserName, &u.FirstName, &u.LastName,
		&emailConfirmed, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.EmailConfirmed = emailConfirmed != 0
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return &u, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateUser persists a new user record with its password hash.
func (s *Store) CreateUser(ctx context.Context, u user.User, passwordHash string) error {
	actor := storage.ActorFrom(ctx)
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO users (id, email, user_name, first_name, last_name, email_confirmed,
			password_hash, created_at, updated_at, created_by, updated_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.UserName, u.FirstName, u.LastName, boolToInt(u.EmailConfirmed),
		passwordHash, toMillis(u.CreatedAt), toMillis(u.UpdatedAt), actor, actor,
	)
	if isUniqueViolation(err) {
		return apperrors.Wrap(apperrors.CodeUserDuplicateEmail, "email or username already registered", err)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindUserByID returns the user with the given id, or nil when missing.
func (s *Store) FindUserByID(ctx context.Context, id string) (*user.User, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// FindUserByEmail returns the user with the given email, or nil when missing.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*user.User, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

// FindUserByName returns the user with the given username, or nil when missing.
func (s *Store) FindUserByName(ctx context.Context, userName string) (*user.User, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_name = ?`, userName)
	return scanUser(row)
}

// UpdateUser updates mutable profile attributes.
func (s *Store) UpdateUser(ctx context.Context, u user.User) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE users SET email = ?, user_name = ?, first_name = ?, last_name = ?,
			email_confirmed = ?, updated_at = ?, updated_by = ?
		WHERE id = ?`,
		u.Email, u.UserName, u.FirstName, u.LastName, boolToInt(u.EmailConfirmed),
		toMillis(u.UpdatedAt), storage.ActorFrom(ctx), u.ID,
	)
	if isUniqueViolation(err) {
		return apperrors.Wrap(apperrors.CodeUserDuplicateEmail, "email or username already registered", err)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireAffected(res)
}

// DeleteUser removes a user and its dependent records.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireAffected(res)
}

// ListUsers returns a page of users ordered by creation time then id.
func (s *Store) ListUsers(ctx context.Context, pageSize int, pageToken string) (storage.UserPage, error) {
	if pageSize <= 0 {
		pageSize = 50
	}

	query := `SELECT ` + userColumns + ` FROM users`
	args := []any{}
	if pageToken != "" {
		query += ` WHERE id > ?`
		args = append(args, pageToken)
	}
	query += ` ORDER BY id LIMIT ?`
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.UserPage{}, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var page storage.UserPage
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return storage.UserPage{}, err
		}
		page.Users = append(page.Users, *u)
	}
	if err := rows.Err(); err != nil {
		return storage.UserPage{}, err
	}

	if len(page.Users) > pageSize {
		page.Users = page.Users[:pageSize]
		page.NextPageToken = page.Users[pageSize-1].ID
	}
	return page, nil
}

// SetPassword replaces the stored password hash for a user.
func (s *Store) SetPassword(ctx context.Context, userID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ?, updated_by = ? WHERE id = ?`,
		string(hash), toMillis(time.Now()), storage.ActorFrom(ctx), userID,
	)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return requireAffected(res)
}

// CheckPassword verifies a password against the stored hash.
func (s *Store) CheckPassword(ctx context.Context, userID, password string) (bool, error) {
	var hash string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT password_hash FROM users WHERE id = ?`, userID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load password hash: %w", err)
	}
	if hash == "" {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, nil
}

// IsLockedOut reports whether the user is currently locked out.
func (s *Store) IsLockedOut(ctx context.Context, userID string, now time.Time) (bool, error) {
	var lockoutEnd sql.NullInt64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT lockout_end FROM users WHERE id = ?`, userID).Scan(&lockoutEnd)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load lockout: %w", err)
	}
	return lockoutEnd.Valid && fromMillis(lockoutEnd.Int64).After(now), nil
}

// IncrementFailedAccessCount records a failed sign-in attempt. Crossing
// the failure threshold starts a lockout window and resets the counter.
func (s *Store) IncrementFailedAccessCount(ctx context.Context, userID string, now time.Time) (bool, error) {
	var count int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT failed_access_count FROM users WHERE id = ?`, userID).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load failed access count: %w", err)
	}

	count++
	if count >= maxFailedAccessCount {
		_, err = s.sqlDB.ExecContext(ctx,
			`UPDATE users SET failed_access_count = 0, lockout_end = ? WHERE id = ?`,
			toMillis(now.Add(lockoutDuration)), userID)
		if err != nil {
			return false, fmt.Errorf("start lockout: %w", err)
		}
		return true, nil
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`UPDATE users SET failed_access_count = ? WHERE id = ?`, count, userID)
	if err != nil {
		return false, fmt.Errorf("record failed access: %w", err)
	}
	return false, nil
}

// ResetFailedAccessCount clears failure tracking after a successful
// sign-in.
func (s *Store) ResetFailedAccessCount(ctx context.Context, userID string) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`UPDATE users SET failed_access_count = 0, lockout_end = NULL WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("reset failed access: %w", err)
	}
	return nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
