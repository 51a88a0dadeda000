package connect

import (
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/alexanders1003/scribble.identity/internal/identity/authorize"
	"github.com/alexanders1003/scribble.identity/internal/identity/claims"
	"github.com/alexanders1003/scribble.identity/internal/platform/id"
	"github.com/alexanders1003/scribble.identity/internal/services/identity/storage"
)

// authorizeRequest is the parsed form of a /connect/authorize call.
type authorizeRequest struct {
	ClientID     string
	RedirectURI  string
	ResponseType string
	Scopes       []string
	State        string
	Prompt       []string
}

func parseAuthorizeRequest(r *http.Request) authorizeRequest {
	query := r.URL.Query()
	if r.Method == http.MethodPost {
		_ = r.ParseForm()
		query = r.Form
	}
	return authorizeRequest{
		ClientID:     query.Get("client_id"),
		RedirectURI:  query.Get("redirect_uri"),
		ResponseType: query.Get("response_type"),
		Scopes:       strings.Fields(query.Get("scope")),
		State:        query.Get("state"),
		Prompt:       strings.Fields(query.Get("prompt")),
	}
}

func (req authorizeRequest) hasPrompt(value string) bool {
	return slices.Contains(req.Prompt, value)
}

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req := parseAuthorizeRequest(r)
	if req.ClientID == "" {
		s.renderError(w, "invalid_request", "client_id is required", http.StatusBadRequest)
		return
	}

	app, err := s.store.FindApplicationByClientID(r.Context(), req.ClientID)
	if err != nil {
		s.renderError(w, "server_error", "application lookup failed", http.StatusInternalServerError)
		return
	}
	if app == nil {
		// A missing registration is a deployment fault, not a client
		// error the redirect endpoint should learn about.
		s.renderError(w, "server_error", "details concerning the calling client application cannot be found", http.StatusInternalServerError)
		return
	}

	if req.RedirectURI == "" || !redirectURIAllowed(req.RedirectURI, app.RedirectURIs) {
		s.renderError(w, "invalid_request", "redirect_uri is not registered for this client", http.StatusBadRequest)
		return
	}
	if req.ResponseType != "code" {
		s.redirectError(w, r, req.RedirectURI, req.State, "unsupported_response_type", "only the authorization code flow is supported")
		return
	}

	consent, err := authorize.ParseConsentType(app.ConsentType)
	if err != nil {
		consent = authorize.ConsentExplicit
	}

	principal := s.resolvePrincipal(r)
	if principal == nil || !principal.AuthenticatedVia(claims.SchemeSession) {
		s.challenge(w, r)
		return
	}

	granted := intersectScopes(req.Scopes, app.Scopes)

	authorizations, err := s.store.FindAuthorizations(r.Context(),
		principal.Subject, app.ID,
		storage.AuthorizationStatusValid, storage.AuthorizationTypePermanent, granted)
	if err != nil {
		s.renderError(w, "server_error", "authorization lookup failed", http.StatusInternalServerError)
		return
	}

	outcome := authorize.Decide(consent, len(authorizations) > 0,
		req.hasPrompt("consent"), req.hasPrompt("none"))

	switch outcome {
	case authorize.OutcomeAuthorize:
		s.completeAuthorization(w, r, req, app, principal, granted, authorizations)
	case authorize.OutcomeConsentRequired:
		s.redirectError(w, r, req.RedirectURI, req.State, "consent_required", "interactive user consent is required")
	default:
		s.challenge(w, r)
	}
}

// challenge redirects the caller through the interactive sign-in flow
// and back to the original authorization request.
func (s *Server) challenge(w http.ResponseWriter, r *http.Request) {
	returnTo := r.URL.RequestURI()
	http.Redirect(w, r, "/connect/signin?return_to="+url.QueryEscape(returnTo), http.StatusFound)
}

func (s *Server) completeAuthorization(w http.ResponseWriter, r *http.Request, req authorizeRequest, app *storage.Application, principal *claims.Principal, granted []string, existing []storage.Authorization) {
	now := s.clock().UTC()
	principal.SetScopes(granted)

	ctx := storage.WithActor(r.Context(), principal.Subject)

	// Grants arrive most recent first; reuse the latest matching one.
	authorizationID := ""
	if len(existing) > 0 {
		authorizationID = existing[0].ID
	} else {
		newID, err := id.NewID()
		if err != nil {
			s.renderError(w, "server_error", "authorization id generation failed", http.StatusInternalServerError)
			return
		}
		authorization := storage.Authorization{
			ID:            newID,
			UserID:        principal.Subject,
			ApplicationID: app.ID,
			Status:        storage.AuthorizationStatusValid,
			Type:          storage.AuthorizationTypePermanent,
			Scopes:        granted,
			CreatedAt:     now,
		}
		if err := s.store.CreateAuthorization(ctx, authorization); err != nil {
			s.renderError(w, "server_error", "authorization persistence failed", http.StatusInternalServerError)
			return
		}
		authorizationID = newID
	}
	principal.AuthorizationID = authorizationID

	claims.TagTokenDestinations(principal)

	principalJSON, err := json.Marshal(principal)
	if err != nil {
		s.renderError(w, "server_error", "principal serialization failed", http.StatusInternalServerError)
		return
	}

	code, err := generateToken(32)
	if err != nil {
		s.renderError(w, "server_error", "code generation failed", http.StatusInternalServerError)
		return
	}
	record := storage.AuthCode{
		Code:            code,
		ApplicationID:   app.ID,
		UserID:          principal.Subject,
		AuthorizationID: authorizationID,
		RedirectURI:     req.RedirectURI,
		PrincipalJSON:   string(principalJSON),
		ExpiresAt:       now.Add(s.config.AuthorizationCodeTTL),
	}
	if err := s.store.CreateAuthCode(ctx, record); err != nil {
		s.renderError(w, "server_error", "code persistence failed", http.StatusInternalServerError)
		return
	}

	redirectURL, err := url.Parse(req.RedirectURI)
	if err != nil {
		s.renderError(w, "server_error", "invalid redirect uri", http.StatusInternalServerError)
		return
	}
	query := redirectURL.Query()
	query.Set("code", code)
	if req.State != "" {
		query.Set("state", req.State)
	}
	redirectURL.RawQuery = query.Encode()
	http.Redirect(w, r, redirectURL.String(), http.StatusFound)
}
