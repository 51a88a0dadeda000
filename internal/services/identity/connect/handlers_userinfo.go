package connect

import (
	"net/http"

	"github.com/alexanders1003/scribble.identity/internal/identity/claims"
)

func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	principal := s.resolvePrincipal(r)
	if principal == nil || !principal.AuthenticatedVia(claims.SchemeBearer) {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		writeJSONError(w, http.StatusUnauthorized, "invalid_token", "a valid bearer token is required")
		return
	}

	info := map[string]any{"sub": principal.Subject}
	for _, claim := range principal.Claims {
		if claim.Type == claims.TypeSubject || claim.Type == claims.TypeSecretValue {
			continue
		}
		switch existing := info[claim.Type].(type) {
		case nil:
			info[claim.Type] = claim.Value
		case string:
			info[claim.Type] = []string{existing, claim.Value}
		case []string:
			info[claim.Type] = append(existing, claim.Value)
		}
	}

	writeJSON(w, http.StatusOK, info)
}
