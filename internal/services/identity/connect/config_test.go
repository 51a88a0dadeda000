package connect

import (
	"testing"
	"time"
)

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SCRIBBLE_IDENTITY_ISSUER", "https://identity.example.com")
	t.Setenv("SCRIBBLE_IDENTITY_CLIENTS", `[{"client_id":"web","redirect_uris":["https://app.example.com/cb"],"consent_type":"explicit"}]`)
	t.Setenv("SCRIBBLE_IDENTITY_ACCESS_TOKEN_TTL", "30m")

	config := LoadConfigFromEnv()

	if config.Issuer != "https://identity.example.com" {
		t.Fatalf("issuer = %q", config.Issuer)
	}
	if len(config.Clients) != 1 || config.Clients[0].ClientID != "web" {
		t.Fatalf("clients = %+v", config.Clients)
	}
	if config.AccessTokenTTL != 30*time.Minute {
		t.Fatalf("access token ttl = %v", config.AccessTokenTTL)
	}
	if config.AuthorizationCodeTTL != 5*time.Minute {
		t.Fatalf("code ttl default = %v", config.AuthorizationCodeTTL)
	}
}

func TestLoadConfigFromEnvMalformedClients(t *testing.T) {
	t.Setenv("SCRIBBLE_IDENTITY_CLIENTS", "{not json")
	config := LoadConfigFromEnv()
	if config.Clients != nil {
		t.Fatalf("clients = %+v, want nil", config.Clients)
	}
}
