package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "github.com/alexanders1003/scribble.identity/internal/platform/errors"
	"github.com/alexanders1003/scribble.identity/internal/services/identity/storage"
)

// CreateApplication registers an OAuth client.
func (s *Store) CreateApplication(ctx context.Context, app storage.Application) error {
	redirectURIs, err := encodeStrings(app.RedirectURIs)
	if err != nil {
		return err
	}
	scopes, err := encodeStrings(app.Scopes)
	if err != nil {
		return err
	}

	actor := storage.ActorFrom(ctx)
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO applications (id, client_id, client_secret_hash, display_name,
			consent_type, redirect_uris, scopes, created_at, updated_at, created_by, updated_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		app.ID, app.ClientID, app.ClientSecretHash, app.DisplayName,
		app.ConsentType, redirectURIs, scopes,
		toMillis(app.CreatedAt), toMillis(app.UpdatedAt), actor, actor,
	)
	if isUniqueViolation(err) {
		return apperrors.Wrap(apperrors.CodeValidationFailed, "client id already registered", err)
	}
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

// FindApplicationByClientID returns the registered client, or nil when
// missing.
func (s *Store) FindApplicationByClientID(ctx context.Context, clientID string) (*storage.Application, error) {
	var app storage.Application
	var redirectURIs, scopes string
	var createdAt, updatedAt int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, client_id, client_secret_hash, display_name, consent_type,
			redirect_uris, scopes, created_at, updated_at
		FROM applications WHERE client_id = ?`, clientID,
	).Scan(&app.ID, &app.ClientID, &app.ClientSecretHash, &app.DisplayName,
		&app.ConsentType, &redirectURIs, &scopes, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find application: %w", err)
	}

	if app.RedirectURIs, err = decodeStrings(redirectURIs); err != nil {
		return nil, err
	}
	if app.Scopes, err = decodeStrings(scopes); err != nil {
		return nil, err
	}
	app.CreatedAt = fromMillis(createdAt)
	app.UpdatedAt = fromMillis(updatedAt)
	return &app, nil
}

// CreateAuthorization records a user's grant to an application. Multiple
// equivalent grants may coexist; readers treat any match as sufficient.
func (s *Store) CreateAuthorization(ctx context.Context, auth storage.Authorization) error {
	scopes, err := encodeStrings(auth.Scopes)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO authorizations (id, user_id, application_id, status, type, scopes, created_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		auth.ID, auth.UserID, auth.ApplicationID, auth.Status, auth.Type,
		scopes, toMillis(auth.CreatedAt), storage.ActorFrom(ctx),
	)
	if err != nil {
		return fmt.Errorf("insert authorization: %w", err)
	}
	return nil
}

// FindAuthorizations returns the grants matching subject, client, status,
// and type whose scopes cover every requested scope, most recent first.
func (s *Store) FindAuthorizations(ctx context.Context, userID, applicationID, status, authType string, scopes []string) ([]storage.Authorization, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, user_id, application_id, status, type, scopes, created_at
		FROM authorizations
		WHERE user_id = ? AND application_id = ? AND status = ? AND type = ?
		ORDER BY created_at DESC, rowid DESC`, userID, applicationID, status, authType,
	)
	if err != nil {
		return nil, fmt.Errorf("find authorizations: %w", err)
	}
	defer rows.Close()

	var matches []storage.Authorization
	for rows.Next() {
		var auth storage.Authorization
		var rawScopes string
		var createdAt int64
		if err := rows.Scan(&auth.ID, &auth.UserID, &auth.ApplicationID,
			&auth.Status, &auth.Type, &rawScopes, &createdAt); err != nil {
			return nil, err
		}
		if auth.Scopes, err = decodeStrings(rawScopes); err != nil {
			return nil, err
		}
		auth.CreatedAt = fromMillis(createdAt)
		if coversScopes(auth.Scopes, scopes) {
			matches = append(matches, auth)
		}
	}
	return matches, rows.Err()
}

// coversScopes reports whether granted includes every requested scope.
func coversScopes(granted, requested []string) bool {
	if len(requested) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(granted))
	for _, scope := range granted {
		set[scope] = struct{}{}
	}
	for _, scope := range requested {
		if _, ok := set[scope]; !ok {
			return false
		}
	}
	return true
}
