package connect

import (
	"net/http"
	"strings"
)

// ProviderMetadata represents the OpenID Connect discovery document.
type ProviderMetadata struct {
	Issuer                           string   `json:"issuer"`
	AuthorizationEndpoint            string   `json:"authorization_endpoint"`
	TokenEndpoint                    string   `json:"token_endpoint"`
	UserInfoEndpoint                 string   `json:"userinfo_endpoint"`
	ResponseTypesSupported           []string `json:"response_types_supported"`
	GrantTypesSupported              []string `json:"grant_types_supported"`
	ScopesSupported                  []string `json:"scopes_supported"`
	SubjectTypesSupported            []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	issuer := strings.TrimRight(s.config.Issuer, "/")
	if issuer == "" {
		issuer = issuerFromRequest(r)
	}

	metadata := ProviderMetadata{
		Issuer:                 issuer,
		AuthorizationEndpoint:  issuer + "/connect/authorize",
		TokenEndpoint:          issuer + "/connect/token",
		UserInfoEndpoint:       issuer + "/connect/userinfo",
		ResponseTypesSupported: []string{"code"},
		GrantTypesSupported: []string{
			"authorization_code", "client_credentials", "password", "refresh_token",
		},
		ScopesSupported: []string{
			"openid", "profile", "email", "roles", "offline_access",
		},
		SubjectTypesSupported:            []string{"public"},
		IDTokenSigningAlgValuesSupported: []string{"EdDSA"},
	}

	writeJSON(w, http.StatusOK, metadata)
}

func issuerFromRequest(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
