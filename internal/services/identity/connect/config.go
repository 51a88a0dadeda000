package connect

import (
	"encoding/json"
	"time"

	platformconfig "github.com/alexanders1003/scribble.identity/internal/platform/config"
)

// Client describes a registered OAuth client application.
type Client struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret,omitempty"`
	DisplayName  string   `json:"display_name,omitempty"`
	ConsentType  string   `json:"consent_type,omitempty"`
	RedirectURIs []string `json:"redirect_uris"`
	Scopes       []string `json:"scopes,omitempty"`
}

// Config describes the identity server configuration.
type Config struct {
	Issuer               string
	SigningKey           string
	Clients              []Client
	AdminEmail           string
	AdminPassword        string
	AccessTokenTTL       time.Duration
	IdentityTokenTTL     time.Duration
	AuthorizationCodeTTL time.Duration
	RefreshTokenTTL      time.Duration
	SessionTTL           time.Duration
}

// connectEnv holds raw env values for identity server configuration.
// Variable names carry the shared service prefix from platformconfig.
type connectEnv struct {
	Issuer               string        `env:"ISSUER"`
	SigningKey           string        `env:"SIGNING_KEY"`
	ClientsJSON          string        `env:"CLIENTS"`
	AdminEmail           string        `env:"ADMIN_EMAIL"`
	AdminPassword        string        `env:"ADMIN_PASSWORD"`
	AccessTokenTTL       time.Duration `env:"ACCESS_TOKEN_TTL"  envDefault:"1h"`
	IdentityTokenTTL     time.Duration `env:"ID_TOKEN_TTL"      envDefault:"20m"`
	AuthorizationCodeTTL time.Duration `env:"CODE_TTL"          envDefault:"5m"`
	RefreshTokenTTL      time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"336h"`
	SessionTTL           time.Duration `env:"SESSION_TTL"       envDefault:"24h"`
}

// LoadConfigFromEnv loads identity server configuration from environment
// variables. Malformed client JSON is dropped rather than failing boot.
func LoadConfigFromEnv() Config {
	var raw connectEnv
	if err := platformconfig.ParseEnv(&raw); err != nil {
		return Config{
			AccessTokenTTL:       time.Hour,
			IdentityTokenTTL:     20 * time.Minute,
			AuthorizationCodeTTL: 5 * time.Minute,
			RefreshTokenTTL:      336 * time.Hour,
			SessionTTL:           24 * time.Hour,
		}
	}

	var clients []Client
	if raw.ClientsJSON != "" {
		if err := json.Unmarshal([]byte(raw.ClientsJSON), &clients); err != nil {
			clients = nil
		}
	}

	return Config{
		Issuer:               raw.Issuer,
		SigningKey:           raw.SigningKey,
		Clients:              clients,
		AdminEmail:           raw.AdminEmail,
		AdminPassword:        raw.AdminPassword,
		AccessTokenTTL:       raw.AccessTokenTTL,
		IdentityTokenTTL:     raw.IdentityTokenTTL,
		AuthorizationCodeTTL: raw.AuthorizationCodeTTL,
		RefreshTokenTTL:      raw.RefreshTokenTTL,
		SessionTTL:           raw.SessionTTL,
	}
}
