// Package connect hosts the OAuth and OpenID Connect endpoints of the
// identity server together with the interactive sign-in surface.
package connect

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/alexanders1003/scribble.identity/internal/identity/claims"
	"github.com/alexanders1003/scribble.identity/internal/identity/policy"
	"github.com/alexanders1003/scribble.identity/internal/identity/user"
	"github.com/alexanders1003/scribble.identity/internal/services/identity/storage"
)

// Store is the persistence surface the connect endpoints depend on.
type Store interface {
	FindUserByID(ctx context.Context, id string) (*user.User, error)
	FindUserByEmail(ctx context.Context, email string) (*user.User, error)
	FindUserByName(ctx context.Context, userName string) (*user.User, error)
	CreateUser(ctx context.Context, u user.User, passwordHash string) error
	UpdateUser(ctx context.Context, u user.User) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context, pageSize int, pageToken string) (storage.UserPage, error)
	SetPassword(ctx context.Context, userID, password string) error
	CheckPassword(ctx context.Context, userID, password string) (bool, error)
	IsLockedOut(ctx context.Context, userID string, now time.Time) (bool, error)
	IncrementFailedAccessCount(ctx context.Context, userID string, now time.Time) (bool, error)
	ResetFailedAccessCount(ctx context.Context, userID string) error

	GetRolesForUser(ctx context.Context, userID string) ([]string, error)
	GetPermissionClaimsForRole(ctx context.Context, roleName string) ([]claims.Claim, error)

	FindApplicationByClientID(ctx context.Context, clientID string) (*storage.Application, error)
	FindAuthorizations(ctx context.Context, userID, applicationID, status, authType string, scopes []string) ([]storage.Authorization, error)
	CreateAuthorization(ctx context.Context, auth storage.Authorization) error

	CreateAuthCode(ctx context.Context, code storage.AuthCode) error
	GetAuthCode(ctx context.Context, code string) (*storage.AuthCode, error)
	ConsumeAuthCode(ctx context.Context, code string) (bool, error)
	CreateRefreshToken(ctx context.Context, token storage.RefreshToken) error
	GetRefreshToken(ctx context.Context, token string) (*storage.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, token string, now time.Time) (bool, error)

	CreateSession(ctx context.Context, session storage.Session) error
	GetSession(ctx context.Context, id string) (*storage.Session, error)
	DeleteSession(ctx context.Context, id string) error
	CleanupExpired(ctx context.Context, now time.Time) error
}

// Server hosts the identity HTTP endpoints.
type Server struct {
	config    Config
	store     Store
	assembler *claims.Assembler
	registry  *policy.Registry
	evaluator *policy.Evaluator
	signer    *Signer
	clock     func() time.Time
}

// NewServer builds an identity server bound to its config and backing
// store.
func NewServer(config Config, store Store, signer *Signer) *Server {
	return &Server{
		config:    config,
		store:     store,
		assembler: claims.NewAssembler(store),
		registry:  policy.NewRegistry(nil),
		evaluator: policy.NewEvaluator(store),
		signer:    signer,
		clock:     time.Now,
	}
}

// RegisterRoutes registers the identity HTTP endpoints on the provided
// mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("/connect/authorize", s.handleAuthorize)
	mux.HandleFunc("/connect/token", s.handleToken)
	mux.HandleFunc("/connect/signin", s.handleSignIn)
	mux.HandleFunc("/connect/signout", s.handleSignOut)
	mux.HandleFunc("/connect/userinfo", s.handleUserInfo)
	mux.HandleFunc("/.well-known/openid-configuration", s.handleMetadata)
	mux.HandleFunc("/api/users", s.handleUsers)
	mux.HandleFunc("/api/users/", s.handleUserByID)
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

// StartCleanup starts periodic expiry cleanup for transient identity
// artifacts.
func (s *Server) StartCleanup(ctx context.Context, interval time.Duration) {
	if s == nil || s.store == nil || interval <= 0 {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.store.CleanupExpired(ctx, s.clock().UTC()); err != nil {
					log.Printf("cleanup expired records: %v", err)
				}
			}
		}
	}()
}
