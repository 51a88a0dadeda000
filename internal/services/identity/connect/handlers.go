package connect

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func generateToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func (s *Server) renderError(w http.ResponseWriter, code, description string, status int) {
	w.WriteHeader(status)
	_ = templates.ExecuteTemplate(w, "error.html", errorView{Error: code, ErrorDescription: description})
}

// redirectError reports an authorization failure to the client's
// redirect endpoint, preserving state.
func (s *Server) redirectError(w http.ResponseWriter, r *http.Request, redirectURI, state, code, description string) {
	redirectURL, err := url.Parse(redirectURI)
	if err != nil {
		s.renderError(w, "server_error", "invalid redirect uri", http.StatusInternalServerError)
		return
	}
	query := redirectURL.Query()
	query.Set("error", code)
	query.Set("error_description", description)
	if state != "" {
		query.Set("state", state)
	}
	redirectURL.RawQuery = query.Encode()
	http.Redirect(w, r, redirectURL.String(), http.StatusFound)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, errorResponse{Error: code, ErrorDescription: description})
}

func redirectURIAllowed(uri string, allowed []string) bool {
	for _, value := range allowed {
		if value == uri {
			return true
		}
	}
	return false
}

// isLocalRedirect accepts only same-origin paths, so sign-in cannot be
// used as an open redirector.
func isLocalRedirect(target string) bool {
	if target == "" || !strings.HasPrefix(target, "/") {
		return false
	}
	return !strings.HasPrefix(target, "//") && !strings.Contains(target, "\\")
}

// intersectScopes returns the requested scopes the client is registered
// for, preserving request order. An empty registration allows all.
func intersectScopes(requested, registered []string) []string {
	if len(registered) == 0 {
		return requested
	}
	allowed := make(map[string]struct{}, len(registered))
	for _, scope := range registered {
		allowed[scope] = struct{}{}
	}
	var granted []string
	for _, scope := range requested {
		if _, ok := allowed[scope]; ok {
			granted = append(granted, scope)
		}
	}
	return granted
}
