package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alexanders1003/scribble.identity/internal/services/identity/storage"
)

// CreateAuthCode stores a single-use authorization code.
func (s *Store) CreateAuthCode(ctx context.Context, code storage.AuthCode) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO auth_codes (code, application_id, user_id, authorization_id,
			redirect_uri, principal_json, expires_at, used)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		code.Code, code.ApplicationID, code.UserID, code.AuthorizationID,
		code.RedirectURI, code.PrincipalJSON, toMillis(code.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("insert auth code: %w", err)
	}
	return nil
}

// GetAuthCode returns the stored authorization code, or nil when missing.
func (s *Store) GetAuthCode(ctx context.Context, code string) (*storage.AuthCode, error) {
	var record storage.AuthCode
	var expiresAt int64
	var used int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT code, application_id, user_id, authorization_id, redirect_uri,
			principal_json, expires_at, used
		FROM auth_codes WHERE code = ?`, code,
	).Scan(&record.Code, &record.ApplicationID, &record.UserID, &record.AuthorizationID,
		&record.RedirectURI, &record.PrincipalJSON, &expiresAt, &used)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get auth code: %w", err)
	}
	record.ExpiresAt = fromMillis(expiresAt)
	record.Used = used != 0
	return &record, nil
}

// ConsumeAuthCode marks an authorization code as used. It returns false
// when the code was already consumed, so concurrent redemptions cannot
// both succeed.
func (s *Store) ConsumeAuthCode(ctx context.Context, code string) (bool, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE auth_codes SET used = 1 WHERE code = ? AND used = 0`, code)
	if err != nil {
		return false, fmt.Errorf("consume auth code: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// CreateRefreshToken stores a refresh token grant.
func (s *Store) CreateRefreshToken(ctx context.Context, token storage.RefreshToken) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO refresh_tokens (token, user_id, application_id, authorization_id,
			principal_json, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		token.Token, token.UserID, token.ApplicationID, token.AuthorizationID,
		token.PrincipalJSON, toMillis(token.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// GetRefreshToken returns the stored refresh token, or nil when missing.
func (s *Store) GetRefreshToken(ctx context.Context, token string) (*storage.RefreshToken, error) {
	var record storage.RefreshToken
	var expiresAt int64
	var revokedAt sql.NullInt64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT token, user_id, application_id, authorization_id, principal_json,
			expires_at, revoked_at
		FROM refresh_tokens WHERE token = ?`, token,
	).Scan(&record.Token, &record.UserID, &record.ApplicationID, &record.AuthorizationID,
		&record.PrincipalJSON, &expiresAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	record.ExpiresAt = fromMillis(expiresAt)
	if revokedAt.Valid {
		revoked := fromMillis(revokedAt.Int64)
		record.RevokedAt = &revoked
	}
	return &record, nil
}

// RevokeRefreshToken marks a refresh token as revoked. It returns false
// when the token was already revoked.
func (s *Store) RevokeRefreshToken(ctx context.Context, token string, now time.Time) (bool, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = ? WHERE token = ? AND revoked_at IS NULL`,
		toMillis(now), token)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// CreateSession stores a browser sign-in session.
func (s *Store) CreateSession(ctx context.Context, session storage.Session) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		session.ID, session.UserID, toMillis(session.CreatedAt), toMillis(session.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession returns the stored session, or nil when missing.
func (s *Store) GetSession(ctx context.Context, id string) (*storage.Session, error) {
	var session storage.Session
	var createdAt, expiresAt int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, expires_at FROM sessions WHERE id = ?`, id,
	).Scan(&session.ID, &session.UserID, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	session.CreatedAt = fromMillis(createdAt)
	session.ExpiresAt = fromMillis(expiresAt)
	return &session, nil
}

// DeleteSession removes a session. Deleting a missing session is a no-op.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CleanupExpired removes expired codes, tokens, and sessions.
func (s *Store) CleanupExpired(ctx context.Context, now time.Time) error {
	cutoff := toMillis(now)
	statements := []string{
		`DELETE FROM auth_codes WHERE expires_at < ? OR used = 1`,
		`DELETE FROM refresh_tokens WHERE expires_at < ? OR revoked_at IS NOT NULL`,
		`DELETE FROM sessions WHERE expires_at < ?`,
	}
	for _, stmt := range statements {
		if _, err := s.sqlDB.ExecContext(ctx, stmt, cutoff); err != nil {
			return fmt.Errorf("cleanup expired records: %w", err)
		}
	}
	return nil
}
