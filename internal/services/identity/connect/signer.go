package connect

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/alexanders1003/scribble.identity/internal/identity/claims"
	"github.com/alexanders1003/scribble.identity/internal/platform/id"
)

// reservedJWTClaims are payload keys managed by the signer itself and
// never treated as identity claims on verification.
var reservedJWTClaims = map[string]struct{}{
	"iss": {}, "sub": {}, "aud": {}, "exp": {}, "iat": {}, "nbf": {},
	"jti": {}, "scope": {}, "client_id": {},
}

// Signer issues and verifies EdDSA-signed tokens for the identity
// server.
type Signer struct {
	issuer  string
	private ed25519.PrivateKey
	public  ed25519.PublicKey
}

// NewSigner builds a signer from a base64-encoded ed25519 private key.
// An empty key generates an ephemeral one, so restarts invalidate
// previously issued tokens.
func NewSigner(issuer, encodedKey string) (*Signer, error) {
	encodedKey = strings.TrimSpace(encodedKey)
	if encodedKey == "" {
		public, private, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
		return &Signer{issuer: issuer, private: private, public: public}, nil
	}

	keyBytes, err := decodeBase64(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("decode signing key: %w", err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("signing key must be %d bytes", ed25519.PrivateKeySize)
	}
	private := ed25519.PrivateKey(keyBytes)
	return &Signer{
		issuer:  issuer,
		private: private,
		public:  private.Public().(ed25519.PublicKey),
	}, nil
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}

// AccessToken signs an access token carrying the principal's
// access-token-destined claims.
func (s *Signer) AccessToken(principal *claims.Principal, clientID string, now time.Time, ttl time.Duration) (string, error) {
	return s.sign(principal, clientID, now, ttl, claims.DestinationAccessToken)
}

// IdentityToken signs an identity token carrying the principal's
// identity-token-destined claims.
func (s *Signer) IdentityToken(principal *claims.Principal, clientID string, now time.Time, ttl time.Duration) (string, error) {
	return s.sign(principal, clientID, now, ttl, claims.DestinationIdentityToken)
}

func (s *Signer) sign(principal *claims.Principal, clientID string, now time.Time, ttl time.Duration, destination claims.Destination) (string, error) {
	if principal == nil || principal.Subject == "" {
		return "", errors.New("principal subject is required")
	}

	jti, err := id.NewID()
	if err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}

	payload := jwt.MapClaims{
		"iss": s.issuer,
		"sub": principal.Subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"jti": jti,
	}
	if clientID != "" {
		payload["aud"] = clientID
		payload["client_id"] = clientID
	}
	if len(principal.Scopes) > 0 {
		payload["scope"] = strings.Join(principal.Scopes, " ")
	}

	for _, claim := range principal.Claims {
		if !claim.HasDestination(destination) {
			continue
		}
		if _, reserved := reservedJWTClaims[claim.Type]; reserved {
			continue
		}
		switch existing := payload[claim.Type].(type) {
		case nil:
			payload[claim.Type] = claim.Value
		case string:
			payload[claim.Type] = []string{existing, claim.Value}
		case []string:
			payload[claim.Type] = append(existing, claim.Value)
		}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, payload)
	signed, err := token.SignedString(s.private)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a signed token and reconstructs the principal it
// carries. Expired or foreign tokens are rejected.
func (s *Signer) Verify(tokenString string, now time.Time) (*claims.Principal, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)

	payload := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(tokenString, payload, func(token *jwt.Token) (any, error) {
		return s.public, nil
	})
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}

	subject, _ := payload.GetSubject()
	if subject == "" {
		return nil, errors.New("token subject is missing")
	}

	principal := &claims.Principal{Subject: subject}
	if scope, ok := payload["scope"].(string); ok {
		principal.SetScopes(strings.Fields(scope))
	}
	for key, raw := range payload {
		if _, reserved := reservedJWTClaims[key]; reserved {
			continue
		}
		switch value := raw.(type) {
		case string:
			principal.AddClaim(claims.Claim{Type: key, Value: value})
		case []any:
			for _, item := range value {
				if text, ok := item.(string); ok {
					principal.AddClaim(claims.Claim{Type: key, Value: text})
				}
			}
		}
	}
	return principal, nil
}
