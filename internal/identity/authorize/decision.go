// Package authorize decides how an authorization request proceeds based
// on the client's consent type, existing grants, and prompt flags.
package authorize

import (
	"fmt"
	"strings"
)

// ConsentType governs whether interactive user consent is required
// before granting a client access.
type ConsentType string

const (
	// ConsentExplicit requires the user to approve the client once; the
	// stored authorization is reused afterwards.
	ConsentExplicit ConsentType = "explicit"
	// ConsentExternal requires an authorization created outside the
	// interactive flow before any grant is issued.
	ConsentExternal ConsentType = "external"
	// ConsentImplicit grants without asking the user.
	ConsentImplicit ConsentType = "implicit"
	// ConsentSystematic re-prompts the user on every authorization.
	ConsentSystematic ConsentType = "systematic"
)

// ParseConsentType validates a stored consent type value.
func ParseConsentType(value string) (ConsentType, error) {
	switch ConsentType(strings.ToLower(strings.TrimSpace(value))) {
	case ConsentExplicit:
		return ConsentExplicit, nil
	case ConsentExternal:
		return ConsentExternal, nil
	case ConsentImplicit:
		return ConsentImplicit, nil
	case ConsentSystematic:
		return ConsentSystematic, nil
	default:
		return "", fmt.Errorf("unknown consent type %q", value)
	}
}

// Outcome is the decision for an authorization request.
type Outcome int

const (
	// OutcomeChallenge sends the caller back through interactive
	// authentication or consent.
	OutcomeChallenge Outcome = iota
	// OutcomeAuthorize issues a grant without further interaction.
	OutcomeAuthorize
	// OutcomeConsentRequired denies with a consent_required error.
	OutcomeConsentRequired
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeAuthorize:
		return "authorize"
	case OutcomeConsentRequired:
		return "consent_required"
	default:
		return "challenge"
	}
}

// cond is a tri-state match condition for decision table rows.
type cond int

const (
	condAny cond = iota
	condTrue
	condFalse
)

func (c cond) matches(value bool) bool {
	switch c {
	case condTrue:
		return value
	case condFalse:
		return !value
	default:
		return true
	}
}

type rule struct {
	consent       ConsentType // empty matches any consent type
	hasAuth       cond
	promptConsent cond
	promptNone    cond
	outcome       Outcome
}

func (r rule) matches(consent ConsentType, hasAuth, promptConsent, promptNone bool) bool {
	if r.consent != "" && r.consent != consent {
		return false
	}
	return r.hasAuth.matches(hasAuth) &&
		r.promptConsent.matches(promptConsent) &&
		r.promptNone.matches(promptNone)
}

// decisionTable is evaluated top to bottom; the first matching row wins.
var decisionTable = []rule{
	{consent: ConsentExternal, hasAuth: condFalse, outcome: OutcomeConsentRequired},
	{consent: ConsentImplicit, outcome: OutcomeAuthorize},
	{consent: ConsentExternal, hasAuth: condTrue, outcome: OutcomeAuthorize},
	{consent: ConsentExplicit, hasAuth: condTrue, promptConsent: condFalse, outcome: OutcomeAuthorize},
	{consent: ConsentExplicit, promptNone: condTrue, outcome: OutcomeConsentRequired},
	{consent: ConsentSystematic, promptNone: condTrue, outcome: OutcomeConsentRequired},
}

// Decide maps (consent type, existing authorization, prompt flags) to an
// authorization outcome. promptConsent is set when the request demands a
// fresh consent prompt; promptNone when it forbids any interaction.
func Decide(consent ConsentType, hasAuthorization, promptConsent, promptNone bool) Outcome {
	for _, row := range decisionTable {
		if row.matches(consent, hasAuthorization, promptConsent, promptNone) {
			return row.outcome
		}
	}
	return OutcomeChallenge
}
