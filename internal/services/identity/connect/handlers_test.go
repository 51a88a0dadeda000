package connect

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/alexanders1003/scribble.identity/internal/identity/permission"
	"github.com/alexanders1003/scribble.identity/internal/identity/user"
	"github.com/alexanders1003/scribble.identity/internal/services/identity/storage"
	identitysqlite "github.com/alexanders1003/scribble.identity/internal/services/identity/storage/sqlite"
)

const testIssuer = "https://identity.test"

func testServerConfig() Config {
	return Config{
		Issuer:               testIssuer,
		AccessTokenTTL:       time.Hour,
		IdentityTokenTTL:     20 * time.Minute,
		AuthorizationCodeTTL: 5 * time.Minute,
		RefreshTokenTTL:      24 * time.Hour,
		SessionTTL:           time.Hour,
	}
}

// testServer creates a fully wired Server backed by a SQLite store.
func testServer(t *testing.T) (*Server, *identitysqlite.Store) {
	t.Helper()
	store, err := identitysqlite.Open(t.TempDir() + "/identity.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	signer, err := NewSigner(testIssuer, "")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	return NewServer(testServerConfig(), store, signer), store
}

func seedUser(t *testing.T, store *identitysqlite.Store, email, password string) string {
	t.Helper()
	created, err := user.CreateUser(user.CreateUserInput{Email: email, FirstName: "Test", EmailConfirmed: true}, time.Now, nil)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := store.CreateUser(context.Background(), created, ""); err != nil {
		t.Fatalf("store user: %v", err)
	}
	if err := store.SetPassword(context.Background(), created.ID, password); err != nil {
		t.Fatalf("set password: %v", err)
	}
	return created.ID
}

func seedApplication(t *testing.T, store *identitysqlite.Store, clientID, consentType string) storage.Application {
	t.Helper()
	now := time.Now().UTC()
	app := storage.Application{
		ID:           "app-" + clientID,
		ClientID:     clientID,
		DisplayName:  "Test Client",
		ConsentType:  consentType,
		RedirectURIs: []string{"http://localhost:5555/callback"},
		Scopes:       []string{"openid", "profile", "email", "roles", "offline_access"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.CreateApplication(context.Background(), app); err != nil {
		t.Fatalf("create application: %v", err)
	}
	return app
}

func seedAdminRole(t *testing.T, store *identitysqlite.Store, userID string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	role := storage.Role{ID: "role-admin", Name: "Administrator", CreatedAt: now, UpdatedAt: now}
	if err := store.CreateRole(ctx, role); err != nil {
		t.Fatalf("create role: %v", err)
	}
	for _, p := range permission.All() {
		claim := storage.RoleClaim{
			Type:   permission.ClaimType,
			Value:  string(p),
			Issuer: permission.LocalIssuer,
		}
		if err := store.AddRoleClaim(ctx, role.ID, claim); err != nil {
			t.Fatalf("add role claim: %v", err)
		}
	}
	if err := store.AssignRole(ctx, userID, role.ID); err != nil {
		t.Fatalf("assign role: %v", err)
	}
}

// signIn submits the sign-in form and returns the session cookie.
func signIn(t *testing.T, server *Server, email, password string) *http.Cookie {
	t.Helper()
	form := url.Values{"email": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/connect/signin", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	server.handleSignIn(w, req)
	if w.Code != http.StatusFound {
		t.Fatalf("sign in status = %d, body %s", w.Code, w.Body.String())
	}
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == sessionCookieName && cookie.Value != "" {
			return cookie
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}

func postForm(server *Server, handler http.HandlerFunc, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestHandleSignIn(t *testing.T) {
	t.Run("valid credentials start a session", func(t *testing.T) {
		server, store := testServer(t)
		seedUser(t, store, "alice@example.com", "correct horse")
		cookie := signIn(t, server, "alice@example.com", "correct horse")

		session, err := store.GetSession(context.Background(), cookie.Value)
		if err != nil || session == nil {
			t.Fatalf("session not persisted: %v, %v", session, err)
		}
	})

	t.Run("failures are indistinguishable", func(t *testing.T) {
		server, store := testServer(t)
		seedUser(t, store, "alice@example.com", "correct horse")

		wrongPassword := postForm(server, server.handleSignIn, "/connect/signin",
			url.Values{"email": {"alice@example.com"}, "password": {"wrong"}})
		unknownUser := postForm(server, server.handleSignIn, "/connect/signin",
			url.Values{"email": {"nobody@example.com"}, "password": {"wrong"}})

		if wrongPassword.Code != http.StatusUnauthorized || unknownUser.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, %d, want 401", wrongPassword.Code, unknownUser.Code)
		}
		if !strings.Contains(wrongPassword.Body.String(), signInFailure) ||
			!strings.Contains(unknownUser.Body.String(), signInFailure) {
			t.Fatal("expected the uniform sign-in failure message")
		}
	})

	t.Run("unconfirmed accounts cannot sign in", func(t *testing.T) {
		server, store := testServer(t)
		created, err := user.CreateUser(user.CreateUserInput{Email: "eve@example.com"}, time.Now, nil)
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		if err := store.CreateUser(context.Background(), created, ""); err != nil {
			t.Fatalf("store user: %v", err)
		}
		if err := store.SetPassword(context.Background(), created.ID, "correct horse"); err != nil {
			t.Fatalf("set password: %v", err)
		}

		w := postForm(server, server.handleSignIn, "/connect/signin",
			url.Values{"email": {"eve@example.com"}, "password": {"correct horse"}})
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
		if !strings.Contains(w.Body.String(), signInFailure) {
			t.Fatal("expected the uniform sign-in failure message")
		}
	})

	t.Run("repeated failures lock the account", func(t *testing.T) {
		server, store := testServer(t)
		seedUser(t, store, "alice@example.com", "correct horse")

		for i := 0; i < 5; i++ {
			postForm(server, server.handleSignIn, "/connect/signin",
				url.Values{"email": {"alice@example.com"}, "password": {"wrong"}})
		}
		locked := postForm(server, server.handleSignIn, "/connect/signin",
			url.Values{"email": {"alice@example.com"}, "password": {"correct horse"}})
		if locked.Code != http.StatusUnauthorized {
			t.Fatalf("locked account sign-in status = %d, want 401", locked.Code)
		}
	})

	t.Run("external return targets are rejected", func(t *testing.T) {
		server, store := testServer(t)
		seedUser(t, store, "alice@example.com", "correct horse")

		w := postForm(server, server.handleSignIn, "/connect/signin", url.Values{
			"email":     {"alice@example.com"},
			"password":  {"correct horse"},
			"return_to": {"https://evil.example.com/"},
		})
		if w.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", w.Code)
		}
		if location := w.Header().Get("Location"); location != "/" {
			t.Fatalf("location = %q, want /", location)
		}
	})
}

func TestHandleSignOut(t *testing.T) {
	server, store := testServer(t)
	seedUser(t, store, "alice@example.com", "correct horse")
	cookie := signIn(t, server, "alice@example.com", "correct horse")

	req := httptest.NewRequest(http.MethodPost, "/connect/signout", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	server.handleSignOut(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	session, err := store.GetSession(context.Background(), cookie.Value)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session != nil {
		t.Fatal("session should be deleted on sign-out")
	}
}

func authorizeURL(clientID, scope string) string {
	query := url.Values{
		"client_id":     {clientID},
		"redirect_uri":  {"http://localhost:5555/callback"},
		"response_type": {"code"},
		"scope":         {scope},
		"state":         {"xyz"},
	}
	return "/connect/authorize?" + query.Encode()
}

func TestHandleAuthorize(t *testing.T) {
	t.Run("unauthenticated callers are challenged", func(t *testing.T) {
		server, store := testServer(t)
		seedApplication(t, store, "test-client", "implicit")

		req := httptest.NewRequest(http.MethodGet, authorizeURL("test-client", "openid"), nil)
		w := httptest.NewRecorder()
		server.handleAuthorize(w, req)

		if w.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", w.Code)
		}
		if location := w.Header().Get("Location"); !strings.HasPrefix(location, "/connect/signin?return_to=") {
			t.Fatalf("location = %q, want sign-in challenge", location)
		}
	})

	t.Run("unknown client is a server fault", func(t *testing.T) {
		server, _ := testServer(t)
		req := httptest.NewRequest(http.MethodGet, authorizeURL("ghost", "openid"), nil)
		w := httptest.NewRecorder()
		server.handleAuthorize(w, req)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", w.Code)
		}
	})

	t.Run("unregistered redirect uri is rejected", func(t *testing.T) {
		server, store := testServer(t)
		seedApplication(t, store, "test-client", "implicit")

		query := url.Values{
			"client_id":     {"test-client"},
			"redirect_uri":  {"http://evil.example.com/callback"},
			"response_type": {"code"},
		}
		req := httptest.NewRequest(http.MethodGet, "/connect/authorize?"+query.Encode(), nil)
		w := httptest.NewRecorder()
		server.handleAuthorize(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})

	t.Run("implicit consent issues a code", func(t *testing.T) {
		server, store := testServer(t)
		seedApplication(t, store, "test-client", "implicit")
		seedUser(t, store, "alice@example.com", "correct horse")
		cookie := signIn(t, server, "alice@example.com", "correct horse")

		req := httptest.NewRequest(http.MethodGet, authorizeURL("test-client", "openid profile"), nil)
		req.AddCookie(cookie)
		w := httptest.NewRecorder()
		server.handleAuthorize(w, req)

		if w.Code != http.StatusFound {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		location, err := url.Parse(w.Header().Get("Location"))
		if err != nil {
			t.Fatalf("parse location: %v", err)
		}
		if location.Host != "localhost:5555" {
			t.Fatalf("unexpected redirect host %q", location.Host)
		}
		if location.Query().Get("code") == "" {
			t.Fatal("expected an authorization code")
		}
		if location.Query().Get("state") != "xyz" {
			t.Fatalf("state = %q, want xyz", location.Query().Get("state"))
		}
	})

	t.Run("explicit consent without grant is challenged", func(t *testing.T) {
		server, store := testServer(t)
		seedApplication(t, store, "test-client", "explicit")
		seedUser(t, store, "alice@example.com", "correct horse")
		cookie := signIn(t, server, "alice@example.com", "correct horse")

		req := httptest.NewRequest(http.MethodGet, authorizeURL("test-client", "openid"), nil)
		req.AddCookie(cookie)
		w := httptest.NewRecorder()
		server.handleAuthorize(w, req)

		if w.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", w.Code)
		}
		if location := w.Header().Get("Location"); !strings.HasPrefix(location, "/connect/signin") {
			t.Fatalf("location = %q, want sign-in challenge", location)
		}
	})

	t.Run("explicit consent reuses an existing grant", func(t *testing.T) {
		server, store := testServer(t)
		app := seedApplication(t, store, "test-client", "explicit")
		userID := seedUser(t, store, "alice@example.com", "correct horse")
		cookie := signIn(t, server, "alice@example.com", "correct horse")

		grant := storage.Authorization{
			ID:            "auth-1",
			UserID:        userID,
			ApplicationID: app.ID,
			Status:        storage.AuthorizationStatusValid,
			Type:          storage.AuthorizationTypePermanent,
			Scopes:        []string{"openid", "profile"},
			CreatedAt:     time.Now().UTC(),
		}
		if err := store.CreateAuthorization(context.Background(), grant); err != nil {
			t.Fatalf("create authorization: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, authorizeURL("test-client", "openid"), nil)
		req.AddCookie(cookie)
		w := httptest.NewRecorder()
		server.handleAuthorize(w, req)

		if w.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", w.Code)
		}
		location, _ := url.Parse(w.Header().Get("Location"))
		if location.Query().Get("code") == "" {
			t.Fatalf("expected a code, got %q", w.Header().Get("Location"))
		}
	})

	t.Run("external consent without grant is denied", func(t *testing.T) {
		server, store := testServer(t)
		seedApplication(t, store, "test-client", "external")
		seedUser(t, store, "alice@example.com", "correct horse")
		cookie := signIn(t, server, "alice@example.com", "correct horse")

		req := httptest.NewRequest(http.MethodGet, authorizeURL("test-client", "openid"), nil)
		req.AddCookie(cookie)
		w := httptest.NewRecorder()
		server.handleAuthorize(w, req)

		location, _ := url.Parse(w.Header().Get("Location"))
		if location.Query().Get("error") != "consent_required" {
			t.Fatalf("error = %q, want consent_required", location.Query().Get("error"))
		}
		if location.Query().Get("state") != "xyz" {
			t.Fatal("state must be preserved on error redirects")
		}
	})
}

// obtainCode drives the full interactive flow and returns the issued
// authorization code.
func obtainCode(t *testing.T, server *Server, cookie *http.Cookie, scope string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, authorizeURL("test-client", scope), nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	server.handleAuthorize(w, req)
	if w.Code != http.StatusFound {
		t.Fatalf("authorize status = %d, body %s", w.Code, w.Body.String())
	}
	location, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	code := location.Query().Get("code")
	if code == "" {
		t.Fatalf("no code in redirect %q", w.Header().Get("Location"))
	}
	return code
}

func decodeTokenResponse(t *testing.T, w *httptest.ResponseRecorder) tokenResponse {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("token status = %d, body %s", w.Code, w.Body.String())
	}
	var response tokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode token response: %v", err)
	}
	return response
}

func TestHandleTokenAuthorizationCode(t *testing.T) {
	server, store := testServer(t)
	seedApplication(t, store, "test-client", "implicit")
	userID := seedUser(t, store, "alice@example.com", "correct horse")
	cookie := signIn(t, server, "alice@example.com", "correct horse")
	code := obtainCode(t, server, cookie, "openid profile offline_access")

	form := url.Values{
		"grant_type":   {"authorization_code"},
		"client_id":    {"test-client"},
		"code":         {code},
		"redirect_uri": {"http://localhost:5555/callback"},
	}
	response := decodeTokenResponse(t, postForm(server, server.handleToken, "/connect/token", form))

	if response.AccessToken == "" || response.TokenType != "Bearer" {
		t.Fatalf("unexpected token response: %+v", response)
	}
	if response.IdentityToken == "" {
		t.Fatal("openid scope must produce an identity token")
	}
	if response.RefreshToken == "" {
		t.Fatal("offline_access scope must produce a refresh token")
	}

	principal, err := server.signer.Verify(response.AccessToken, time.Now().UTC())
	if err != nil {
		t.Fatalf("verify access token: %v", err)
	}
	if principal.Subject != userID {
		t.Fatalf("subject = %q, want %q", principal.Subject, userID)
	}
	if !principal.HasScope("openid") {
		t.Fatalf("scopes = %v, want openid", principal.Scopes)
	}

	t.Run("code reuse is rejected", func(t *testing.T) {
		w := postForm(server, server.handleToken, "/connect/token", form)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
		if !strings.Contains(w.Body.String(), "invalid_grant") {
			t.Fatalf("body = %s, want invalid_grant", w.Body.String())
		}
	})

	t.Run("refresh token rotates", func(t *testing.T) {
		refreshForm := url.Values{
			"grant_type":    {"refresh_token"},
			"client_id":     {"test-client"},
			"refresh_token": {response.RefreshToken},
		}
		rotated := decodeTokenResponse(t, postForm(server, server.handleToken, "/connect/token", refreshForm))
		if rotated.RefreshToken == "" || rotated.RefreshToken == response.RefreshToken {
			t.Fatalf("expected a rotated refresh token, got %q", rotated.RefreshToken)
		}

		replay := postForm(server, server.handleToken, "/connect/token", refreshForm)
		if replay.Code != http.StatusBadRequest {
			t.Fatalf("replayed refresh status = %d, want 400", replay.Code)
		}
	})
}

func TestHandleTokenPassword(t *testing.T) {
	server, store := testServer(t)
	seedApplication(t, store, "test-client", "implicit")
	seedUser(t, store, "alice@example.com", "correct horse")

	passwordForm := func(username, password, scope string) url.Values {
		return url.Values{
			"grant_type": {"password"},
			"client_id":  {"test-client"},
			"username":   {username},
			"password":   {password},
			"scope":      {scope},
		}
	}

	t.Run("valid credentials issue tokens", func(t *testing.T) {
		response := decodeTokenResponse(t, postForm(server, server.handleToken, "/connect/token",
			passwordForm("alice@example.com", "correct horse", "openid profile")))
		if response.AccessToken == "" || response.IdentityToken == "" {
			t.Fatalf("unexpected response: %+v", response)
		}
		if response.RefreshToken != "" {
			t.Fatal("no refresh token without offline_access")
		}
	})

	t.Run("failures share one response", func(t *testing.T) {
		unknown := postForm(server, server.handleToken, "/connect/token",
			passwordForm("ghost@example.com", "whatever", ""))
		wrong := postForm(server, server.handleToken, "/connect/token",
			passwordForm("alice@example.com", "wrong", ""))

		if unknown.Code != http.StatusBadRequest || wrong.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, %d, want 400", unknown.Code, wrong.Code)
		}
		if unknown.Body.String() != wrong.Body.String() {
			t.Fatalf("failure responses differ: %s vs %s", unknown.Body.String(), wrong.Body.String())
		}
	})

	t.Run("username resolves the account", func(t *testing.T) {
		created, err := user.CreateUser(user.CreateUserInput{
			Email:          "bob@example.com",
			UserName:       "bob",
			EmailConfirmed: true,
		}, time.Now, nil)
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		if err := store.CreateUser(context.Background(), created, ""); err != nil {
			t.Fatalf("store user: %v", err)
		}
		if err := store.SetPassword(context.Background(), created.ID, "correct horse"); err != nil {
			t.Fatalf("set password: %v", err)
		}

		response := decodeTokenResponse(t, postForm(server, server.handleToken, "/connect/token",
			passwordForm("bob", "correct horse", "openid")))
		principal, err := server.signer.Verify(response.AccessToken, time.Now().UTC())
		if err != nil {
			t.Fatalf("verify access token: %v", err)
		}
		if principal.Subject != created.ID {
			t.Fatalf("subject = %q, want %q", principal.Subject, created.ID)
		}
	})

	t.Run("unconfirmed accounts are denied", func(t *testing.T) {
		created, err := user.CreateUser(user.CreateUserInput{Email: "eve@example.com"}, time.Now, nil)
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		if err := store.CreateUser(context.Background(), created, ""); err != nil {
			t.Fatalf("store user: %v", err)
		}
		if err := store.SetPassword(context.Background(), created.ID, "correct horse"); err != nil {
			t.Fatalf("set password: %v", err)
		}

		unconfirmed := postForm(server, server.handleToken, "/connect/token",
			passwordForm("eve@example.com", "correct horse", ""))
		unknown := postForm(server, server.handleToken, "/connect/token",
			passwordForm("ghost@example.com", "whatever", ""))

		if unconfirmed.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", unconfirmed.Code)
		}
		if unconfirmed.Body.String() != unknown.Body.String() {
			t.Fatalf("unconfirmed account leaks: %s vs %s",
				unconfirmed.Body.String(), unknown.Body.String())
		}
	})

	t.Run("failures bump the counter once, success resets it", func(t *testing.T) {
		userID := seedUser(t, store, "carol@example.com", "correct horse")
		failedCount := func() int {
			t.Helper()
			var count int
			err := store.DB().QueryRow(
				`SELECT failed_access_count FROM users WHERE id = ?`, userID).Scan(&count)
			if err != nil {
				t.Fatalf("read failed count: %v", err)
			}
			return count
		}

		for attempt := 1; attempt <= 3; attempt++ {
			postForm(server, server.handleToken, "/connect/token",
				passwordForm("carol@example.com", "wrong", ""))
			if got := failedCount(); got != attempt {
				t.Fatalf("failed count after attempt %d = %d", attempt, got)
			}
		}

		decodeTokenResponse(t, postForm(server, server.handleToken, "/connect/token",
			passwordForm("carol@example.com", "correct horse", "")))
		if got := failedCount(); got != 0 {
			t.Fatalf("failed count after success = %d, want 0", got)
		}
	})

	t.Run("unknown grant type", func(t *testing.T) {
		w := postForm(server, server.handleToken, "/connect/token",
			url.Values{"grant_type": {"device_code"}, "client_id": {"test-client"}})
		if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "unsupported_grant_type") {
			t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
		}
	})

	t.Run("unknown client", func(t *testing.T) {
		form := passwordForm("alice@example.com", "correct horse", "")
		form.Set("client_id", "ghost")
		w := postForm(server, server.handleToken, "/connect/token", form)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
	})
}

func TestHandleTokenClientCredentials(t *testing.T) {
	server, store := testServer(t)
	app := seedApplication(t, store, "test-client", "implicit")

	form := url.Values{
		"grant_type": {"client_credentials"},
		"client_id":  {"test-client"},
	}

	t.Run("public clients cannot use the grant", func(t *testing.T) {
		w := postForm(server, server.handleToken, "/connect/token", form)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
	})

	t.Run("confidential clients receive a token", func(t *testing.T) {
		hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("hash secret: %v", err)
		}
		confidential := app
		confidential.ID = "app-confidential"
		confidential.ClientID = "confidential-client"
		confidential.ClientSecretHash = string(hash)
		if err := store.CreateApplication(context.Background(), confidential); err != nil {
			t.Fatalf("create application: %v", err)
		}

		secretForm := url.Values{
			"grant_type":    {"client_credentials"},
			"client_id":     {"confidential-client"},
			"client_secret": {"s3cret"},
		}
		response := decodeTokenResponse(t, postForm(server, server.handleToken, "/connect/token", secretForm))

		principal, err := server.signer.Verify(response.AccessToken, time.Now().UTC())
		if err != nil {
			t.Fatalf("verify access token: %v", err)
		}
		if principal.Subject != "confidential-client" {
			t.Fatalf("subject = %q, want the client id", principal.Subject)
		}
	})

	t.Run("wrong secret is rejected", func(t *testing.T) {
		secretForm := url.Values{
			"grant_type":    {"client_credentials"},
			"client_id":     {"confidential-client"},
			"client_secret": {"wrong"},
		}
		w := postForm(server, server.handleToken, "/connect/token", secretForm)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
	})
}

func TestHandleUserInfo(t *testing.T) {
	server, store := testServer(t)
	seedApplication(t, store, "test-client", "implicit")
	seedUser(t, store, "alice@example.com", "correct horse")

	form := url.Values{
		"grant_type": {"password"},
		"client_id":  {"test-client"},
		"username":   {"alice@example.com"},
		"password":   {"correct horse"},
		"scope":      {"openid profile"},
	}
	response := decodeTokenResponse(t, postForm(server, server.handleToken, "/connect/token", form))

	t.Run("bearer token returns claims", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/connect/userinfo", nil)
		req.Header.Set("Authorization", "Bearer "+response.AccessToken)
		w := httptest.NewRecorder()
		server.handleUserInfo(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		var info map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
			t.Fatalf("decode userinfo: %v", err)
		}
		if info["sub"] == "" {
			t.Fatal("sub is required")
		}
		if info["name"] == nil {
			t.Fatalf("profile scope should expose name, got %v", info)
		}
	})

	t.Run("missing token is unauthorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/connect/userinfo", nil)
		w := httptest.NewRecorder()
		server.handleUserInfo(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
		if w.Header().Get("WWW-Authenticate") == "" {
			t.Fatal("challenge header is required")
		}
	})
}

func TestHandleMetadata(t *testing.T) {
	server, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/.well-known/openid-configuration", nil)
	w := httptest.NewRecorder()
	server.handleMetadata(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var metadata ProviderMetadata
	if err := json.Unmarshal(w.Body.Bytes(), &metadata); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if metadata.Issuer != testIssuer {
		t.Fatalf("issuer = %q, want %q", metadata.Issuer, testIssuer)
	}
	if metadata.TokenEndpoint != testIssuer+"/connect/token" {
		t.Fatalf("token endpoint = %q", metadata.TokenEndpoint)
	}
	if len(metadata.GrantTypesSupported) != 4 {
		t.Fatalf("grant types = %v", metadata.GrantTypesSupported)
	}
}
