package connect

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/alexanders1003/scribble.identity/internal/identity/claims"
	"github.com/alexanders1003/scribble.identity/internal/services/identity/storage"
)

// invalidCredentials is the single response for every password-grant
// failure. Unknown accounts, wrong passwords, lockouts, and disabled
// sign-in are indistinguishable to callers.
const invalidCredentials = "the email/password couple is invalid"

type tokenResponse struct {
	AccessToken   string `json:"access_token"`
	TokenType     string `json:"token_type"`
	ExpiresIn     int64  `json:"expires_in"`
	Scope         string `json:"scope,omitempty"`
	IdentityToken string `json:"id_token,omitempty"`
	RefreshToken  string `json:"refresh_token,omitempty"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "invalid_request", "POST is required")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "client_credentials":
		s.handleClientCredentialsGrant(w, r)
	case "password":
		s.handlePasswordGrant(w, r)
	case "authorization_code":
		s.handleAuthorizationCodeGrant(w, r)
	case "refresh_token":
		s.handleRefreshTokenGrant(w, r)
	default:
		writeJSONError(w, http.StatusBadRequest, "unsupported_grant_type", "the specified grant type is not supported")
	}
}

// clientFromRequest authenticates the calling application. Confidential
// clients must present their secret.
func (s *Server) clientFromRequest(ctx context.Context, r *http.Request, requireSecret bool) (*storage.Application, bool) {
	clientID := r.PostForm.Get("client_id")
	clientSecret := r.PostForm.Get("client_secret")
	if clientID == "" {
		return nil, false
	}
	app, err := s.store.FindApplicationByClientID(ctx, clientID)
	if err != nil || app == nil {
		return nil, false
	}
	if app.ClientSecretHash == "" {
		if requireSecret {
			return nil, false
		}
		return app, true
	}
	if bcrypt.CompareHashAndPassword([]byte(app.ClientSecretHash), []byte(clientSecret)) != nil {
		return nil, false
	}
	return app, true
}

func (s *Server) handleClientCredentialsGrant(w http.ResponseWriter, r *http.Request) {
	app, ok := s.clientFromRequest(r.Context(), r, true)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
		return
	}

	principal := &claims.Principal{Subject: app.ClientID}
	principal.AddClaim(claims.Claim{Type: claims.TypeClientID, Value: app.ClientID})
	if app.DisplayName != "" {
		principal.AddClaim(claims.Claim{Type: claims.TypeName, Value: app.DisplayName})
	}
	principal.SetScopes(intersectScopes(strings.Fields(r.PostForm.Get("scope")), app.Scopes))
	claims.TagTokenDestinations(principal)

	s.issueTokens(w, r, principal, app)
}

func (s *Server) handlePasswordGrant(w http.ResponseWriter, r *http.Request) {
	app, ok := s.clientFromRequest(r.Context(), r, false)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
		return
	}

	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	now := s.clock().UTC()
	ctx := r.Context()

	denied := func() {
		writeJSONError(w, http.StatusBadRequest, "invalid_grant", invalidCredentials)
	}

	found, err := s.store.FindUserByName(ctx, username)
	if err != nil {
		denied()
		return
	}
	if found == nil {
		if found, err = s.store.FindUserByEmail(ctx, username); err != nil || found == nil {
			denied()
			return
		}
	}
	if found.CanSignIn() != nil {
		denied()
		return
	}
	locked, err := s.store.IsLockedOut(ctx, found.ID, now)
	if err != nil || locked {
		denied()
		return
	}
	ok, err = s.store.CheckPassword(ctx, found.ID, password)
	if err != nil {
		denied()
		return
	}
	if !ok {
		_, _ = s.store.IncrementFailedAccessCount(ctx, found.ID, now)
		denied()
		return
	}
	if err := s.store.ResetFailedAccessCount(ctx, found.ID); err != nil {
		denied()
		return
	}

	principal, err := s.assembler.PrincipalByID(ctx, found.ID)
	if err != nil {
		denied()
		return
	}
	principal.SetScopes(intersectScopes(strings.Fields(r.PostForm.Get("scope")), app.Scopes))
	claims.TagTokenDestinations(principal)

	s.issueTokens(w, r, principal, app)
}

func (s *Server) handleAuthorizationCodeGrant(w http.ResponseWriter, r *http.Request) {
	app, ok := s.clientFromRequest(r.Context(), r, false)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
		return
	}

	ctx := r.Context()
	now := s.clock().UTC()

	record, err := s.store.GetAuthCode(ctx, r.PostForm.Get("code"))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "code lookup failed")
		return
	}
	if record == nil || record.Used || record.ApplicationID != app.ID || now.After(record.ExpiresAt) {
		writeJSONError(w, http.StatusBadRequest, "invalid_grant", "the authorization code is invalid or has expired")
		return
	}
	if record.RedirectURI != "" && record.RedirectURI != r.PostForm.Get("redirect_uri") {
		writeJSONError(w, http.StatusBadRequest, "invalid_grant", "redirect_uri does not match the authorization request")
		return
	}

	consumed, err := s.store.ConsumeAuthCode(ctx, record.Code)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "code redemption failed")
		return
	}
	if !consumed {
		writeJSONError(w, http.StatusBadRequest, "invalid_grant", "the authorization code has already been redeemed")
		return
	}

	var principal claims.Principal
	if err := json.Unmarshal([]byte(record.PrincipalJSON), &principal); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "stored principal is unreadable")
		return
	}

	s.issueTokens(w, r, &principal, app)
}

func (s *Server) handleRefreshTokenGrant(w http.ResponseWriter, r *http.Request) {
	app, ok := s.clientFromRequest(r.Context(), r, false)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
		return
	}

	ctx := r.Context()
	now := s.clock().UTC()

	record, err := s.store.GetRefreshToken(ctx, r.PostForm.Get("refresh_token"))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "refresh token lookup failed")
		return
	}
	if record == nil || record.RevokedAt != nil || record.ApplicationID != app.ID || now.After(record.ExpiresAt) {
		writeJSONError(w, http.StatusBadRequest, "invalid_grant", "the refresh token is invalid or has expired")
		return
	}

	// Rotation: the presented token is revoked before a replacement is
	// issued, so a replayed token fails.
	revoked, err := s.store.RevokeRefreshToken(ctx, record.Token, now)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "refresh token rotation failed")
		return
	}
	if !revoked {
		writeJSONError(w, http.StatusBadRequest, "invalid_grant", "the refresh token has already been used")
		return
	}

	var principal claims.Principal
	if err := json.Unmarshal([]byte(record.PrincipalJSON), &principal); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "stored principal is unreadable")
		return
	}

	s.issueTokens(w, r, &principal, app)
}

// issueTokens signs the token set for a finished grant. The identity
// token is only minted for openid requests, and a refresh token only for
// offline_access.
func (s *Server) issueTokens(w http.ResponseWriter, r *http.Request, principal *claims.Principal, app *storage.Application) {
	now := s.clock().UTC()

	accessToken, err := s.signer.AccessToken(principal, app.ClientID, now, s.config.AccessTokenTTL)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "access token signing failed")
		return
	}

	response := tokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.config.AccessTokenTTL / time.Second),
		Scope:       strings.Join(principal.Scopes, " "),
	}

	if principal.HasScope("openid") {
		identityToken, err := s.signer.IdentityToken(principal, app.ClientID, now, s.config.IdentityTokenTTL)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "server_error", "identity token signing failed")
			return
		}
		response.IdentityToken = identityToken
	}

	if principal.HasScope("offline_access") {
		refreshToken, err := generateToken(32)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "server_error", "refresh token generation failed")
			return
		}
		principalJSON, err := json.Marshal(principal)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "server_error", "principal serialization failed")
			return
		}
		record := storage.RefreshToken{
			Token:           refreshToken,
			UserID:          principal.Subject,
			ApplicationID:   app.ID,
			AuthorizationID: principal.AuthorizationID,
			PrincipalJSON:   string(principalJSON),
			ExpiresAt:       now.Add(s.config.RefreshTokenTTL),
		}
		if err := s.store.CreateRefreshToken(r.Context(), record); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "server_error", "refresh token persistence failed")
			return
		}
		response.RefreshToken = refreshToken
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, response)
}
