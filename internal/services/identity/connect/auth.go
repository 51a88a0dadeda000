package connect

import (
	"net/http"
	"strings"

	"github.com/alexanders1003/scribble.identity/internal/identity/claims"
)

const sessionCookieName = "scribble_identity_session"

// resolvePrincipal authenticates the request against both supported
// schemes. Bearer tokens are checked first, then the session cookie;
// every scheme that succeeded is recorded on the principal.
func (s *Server) resolvePrincipal(r *http.Request) *claims.Principal {
	now := s.clock().UTC()

	var principal *claims.Principal
	if token := bearerToken(r); token != "" {
		if verified, err := s.signer.Verify(token, now); err == nil {
			principal = verified
			principal.Schemes = append(principal.Schemes, claims.SchemeBearer)
		}
	}

	if sessionID := sessionIDFromRequest(r); sessionID != "" {
		session, err := s.store.GetSession(r.Context(), sessionID)
		if err == nil && session != nil && session.ExpiresAt.After(now) {
			if principal == nil {
				assembled, err := s.assembler.PrincipalByID(r.Context(), session.UserID)
				if err == nil {
					principal = assembled
				}
			}
			if principal != nil && principal.Subject == session.UserID {
				principal.Schemes = append(principal.Schemes, claims.SchemeSession)
			}
		}
	}

	return principal
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func sessionIDFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func setSessionCookie(w http.ResponseWriter, sessionID string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	setSessionCookie(w, "", -1)
}
