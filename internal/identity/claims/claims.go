// Package claims models security principals and the typed claims signed
// into issued tokens.
package claims

import "slices"

// Destination names a token type a claim may appear in.
type Destination string

const (
	// DestinationAccessToken allows a claim into issued access tokens.
	DestinationAccessToken Destination = "access_token"
	// DestinationIdentityToken allows a claim into issued identity tokens.
	DestinationIdentityToken Destination = "id_token"
)

// Well-known claim types.
const (
	TypeSubject    = "sub"
	TypeName       = "name"
	TypeUsername   = "username"
	TypeGivenName  = "given_name"
	TypeFamilyName = "family_name"
	TypeEmail      = "email"
	TypeRole       = "role"
	TypeClientID   = "client_id"
	TypeScope      = "scope"

	// TypeSecretValue marks internal-only claims that must never leak
	// into an issued token.
	TypeSecretValue = "secret_value"
)

// PermissionMarkerValue is the value stored on assembled permission
// claims. The permission identifier lives in the claim type; the value is
// a fixed marker kept for compatibility with existing token consumers.
const PermissionMarkerValue = "policyname"

// AuthScheme identifies how a principal was authenticated.
type AuthScheme string

const (
	// SchemeSession marks cookie-session authentication.
	SchemeSession AuthScheme = "session"
	// SchemeBearer marks bearer-token authentication.
	SchemeBearer AuthScheme = "bearer"
)

// Claim is a typed fact about a principal with a destination set
// controlling which issued token types may carry it.
type Claim struct {
	Type         string        `json:"type"`
	Value        string        `json:"value"`
	Issuer       string        `json:"issuer,omitempty"`
	Destinations []Destination `json:"destinations,omitempty"`
}

// HasDestination reports whether the claim may appear in the given token type.
func (c Claim) HasDestination(destination Destination) bool {
	return slices.Contains(c.Destinations, destination)
}

// Principal is an authenticated identity plus its claim set, the unit
// signed into a token.
type Principal struct {
	Subject         string       `json:"subject"`
	Claims          []Claim      `json:"claims"`
	Scopes          []string     `json:"scopes,omitempty"`
	AuthorizationID string       `json:"authorization_id,omitempty"`
	Schemes         []AuthScheme `json:"schemes,omitempty"`
}

// AddClaim appends a claim to the principal.
func (p *Principal) AddClaim(claim Claim) {
	p.Claims = append(p.Claims, claim)
}

// ClaimValue returns the first value for a claim type.
func (p *Principal) ClaimValue(claimType string) (string, bool) {
	for _, claim := range p.Claims {
		if claim.Type == claimType {
			return claim.Value, true
		}
	}
	return "", false
}

// ClaimValues returns every value for a claim type.
func (p *Principal) ClaimValues(claimType string) []string {
	var values []string
	for _, claim := range p.Claims {
		if claim.Type == claimType {
			values = append(values, claim.Value)
		}
	}
	return values
}

// HasScope reports whether the principal was granted a scope.
func (p *Principal) HasScope(scope string) bool {
	return slices.Contains(p.Scopes, scope)
}

// SetScopes replaces the principal's granted scopes.
func (p *Principal) SetScopes(scopes []string) {
	p.Scopes = slices.Clone(scopes)
}

// AuthenticatedVia reports whether the principal carries the scheme.
func (p *Principal) AuthenticatedVia(scheme AuthScheme) bool {
	return slices.Contains(p.Schemes, scheme)
}

// defaultDestinations tags a freshly assembled claim: visible in both
// token types, except internal-only secret values which are visible in
// neither.
func defaultDestinations(claimType string) []Destination {
	if claimType == TypeSecretValue {
		return nil
	}
	return []Destination{DestinationAccessToken, DestinationIdentityToken}
}

// TagTokenDestinations applies the authorize-flow destination rules to
// every claim on the principal: name claims reach both tokens only when
// the profile scope was granted, secret values reach neither, and
// everything else is limited to the access token.
func TagTokenDestinations(p *Principal) {
	for i := range p.Claims {
		switch {
		case p.Claims[i].Type == TypeName && p.HasScope("profile"):
			p.Claims[i].Destinations = []Destination{DestinationAccessToken, DestinationIdentityToken}
		case p.Claims[i].Type == TypeSecretValue:
			p.Claims[i].Destinations = nil
		default:
			p.Claims[i].Destinations = []Destination{DestinationAccessToken}
		}
	}
}
