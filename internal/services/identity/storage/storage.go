// Package storage defines the persistence contract for the identity
// service and the records it durably tracks.
package storage

import (
	"context"
	"time"

	"github.com/alexanders1003/scribble.identity/internal/identity/user"
	"github.com/alexanders1003/scribble.identity/internal/platform/errors"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

// AnonymousActor is stamped on records written outside an authenticated
// request.
const AnonymousActor = "Anonymous"

type actorKey struct{}

// WithActor records the acting identity on the context so writes can be
// attributed.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the acting identity from the context, defaulting to
// AnonymousActor.
func ActorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return AnonymousActor
}

// Role names a grouping of permission grants.
type Role struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
	CreatedBy string
	UpdatedBy string
}

// RoleClaim is a typed claim attached to a role.
type RoleClaim struct {
	Type   string
	Value  string
	Issuer string
}

// Application is a registered OAuth client.
type Application struct {
	ID               string
	ClientID         string
	ClientSecretHash string
	DisplayName      string
	ConsentType      string
	RedirectURIs     []string
	Scopes           []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Authorization statuses and types.
const (
	AuthorizationStatusValid   = "valid"
	AuthorizationTypePermanent = "permanent"
)

// Authorization records a user's grant to an application.
type Authorization struct {
	ID            string
	UserID        string
	ApplicationID string
	Status        string
	Type          string
	Scopes        []string
	CreatedAt     time.Time
}

// AuthCode is a single-use authorization code bound to a serialized
// principal snapshot.
type AuthCode struct {
	Code            string
	ApplicationID   string
	UserID          string
	AuthorizationID string
	RedirectURI     string
	PrincipalJSON   string
	ExpiresAt       time.Time
	Used            bool
}

// RefreshToken is a rotatable long-lived grant.
type RefreshToken struct {
	Token           string
	UserID          string
	ApplicationID   string
	AuthorizationID string
	PrincipalJSON   string
	ExpiresAt       time.Time
	RevokedAt       *time.Time
}

// Session is a browser sign-in session.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// UserPage describes a page of user records.
type UserPage struct {
	Users         []user.User
	NextPageToken string
}
