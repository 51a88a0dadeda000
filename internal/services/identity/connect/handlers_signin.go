package connect

import (
	"net/http"

	"github.com/alexanders1003/scribble.identity/internal/platform/id"
	"github.com/alexanders1003/scribble.identity/internal/services/identity/storage"
)

// signInFailure is shown for every failed sign-in attempt so callers
// cannot discover which accounts exist.
const signInFailure = "Invalid email or password."

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		returnTo := r.URL.Query().Get("return_to")
		if !isLocalRedirect(returnTo) {
			returnTo = ""
		}
		_ = templates.ExecuteTemplate(w, "signin.html", signInView{ReturnTo: returnTo})
	case http.MethodPost:
		s.handleSignInSubmit(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSignInSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, "invalid_request", "malformed form body", http.StatusBadRequest)
		return
	}

	email := r.PostForm.Get("email")
	password := r.PostForm.Get("password")
	returnTo := r.PostForm.Get("return_to")
	if !isLocalRedirect(returnTo) {
		returnTo = "/"
	}

	now := s.clock().UTC()
	ctx := r.Context()

	renderFailure := func() {
		w.WriteHeader(http.StatusUnauthorized)
		_ = templates.ExecuteTemplate(w, "signin.html", signInView{
			ReturnTo: returnTo,
			Email:    email,
			Error:    signInFailure,
		})
	}

	found, err := s.store.FindUserByEmail(ctx, email)
	if err != nil || found == nil {
		renderFailure()
		return
	}
	if found.CanSignIn() != nil {
		renderFailure()
		return
	}
	locked, err := s.store.IsLockedOut(ctx, found.ID, now)
	if err != nil || locked {
		renderFailure()
		return
	}
	ok, err := s.store.CheckPassword(ctx, found.ID, password)
	if err != nil {
		renderFailure()
		return
	}
	if !ok {
		_, _ = s.store.IncrementFailedAccessCount(ctx, found.ID, now)
		renderFailure()
		return
	}
	if err := s.store.ResetFailedAccessCount(ctx, found.ID); err != nil {
		renderFailure()
		return
	}

	sessionID, err := id.NewID()
	if err != nil {
		s.renderError(w, "server_error", "session id generation failed", http.StatusInternalServerError)
		return
	}
	session := storage.Session{
		ID:        sessionID,
		UserID:    found.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.SessionTTL),
	}
	if err := s.store.CreateSession(storage.WithActor(ctx, found.Email), session); err != nil {
		s.renderError(w, "server_error", "session persistence failed", http.StatusInternalServerError)
		return
	}

	setSessionCookie(w, sessionID, int(s.config.SessionTTL.Seconds()))
	http.Redirect(w, r, returnTo, http.StatusFound)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if sessionID := sessionIDFromRequest(r); sessionID != "" {
		_ = s.store.DeleteSession(r.Context(), sessionID)
	}
	clearSessionCookie(w)
	http.Redirect(w, r, "/connect/signin", http.StatusFound)
}
