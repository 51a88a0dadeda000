// Package user provides the identity user domain model.
package user

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/alexanders1003/scribble.identity/internal/platform/errors"
	"github.com/alexanders1003/scribble.identity/internal/platform/id"
)

var (
	// ErrEmptyEmail indicates a missing email address.
	ErrEmptyEmail = apperrors.New(apperrors.CodeUserEmptyEmail, "email is required")
	// ErrInvalidEmail indicates an email that does not match the required format.
	ErrInvalidEmail = apperrors.New(apperrors.CodeUserInvalidEmail, "email must contain a local part and a domain")
	// ErrSignInNotAllowed indicates an account that may not sign in yet.
	ErrSignInNotAllowed = apperrors.New(apperrors.CodeSignInNotAllowed, "sign-in is not allowed for this account")

	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// User represents an authenticated identity record.
//
// UserName defaults to the email address, matching how accounts are
// registered; FirstName and LastName are optional profile attributes.
type User struct {
	ID             string
	Email          string
	UserName       string
	FirstName      string
	LastName       string
	EmailConfirmed bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CanSignIn reports whether the account may authenticate. Accounts must
// have a confirmed email address before any credential flow accepts them.
func (u User) CanSignIn() error {
	if !u.EmailConfirmed {
		return ErrSignInNotAllowed
	}
	return nil
}

// CreateUserInput describes the attributes needed to create a user.
type CreateUserInput struct {
	Email          string
	UserName       string
	FirstName      string
	LastName       string
	EmailConfirmed bool
}

// ValidateEmail enforces the canonical email constraints used by sign-in,
// claims assembly, and user management.
func ValidateEmail(s string) error {
	if strings.TrimSpace(s) == "" {
		return ErrEmptyEmail
	}
	if !emailPattern.MatchString(s) {
		return ErrInvalidEmail
	}
	return nil
}

// NormalizeCreateUserInput trims attributes and applies username defaults.
func NormalizeCreateUserInput(input CreateUserInput) (CreateUserInput, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	input.UserName = strings.TrimSpace(input.UserName)
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)

	if err := ValidateEmail(input.Email); err != nil {
		return CreateUserInput{}, err
	}
	if input.UserName == "" {
		input.UserName = input.Email
	}
	return input, nil
}

// CreateUser creates a durable user identity from validated input.
//
// This is the canonical point where untrusted registration data becomes a
// stable identity used by the authorize, token, and user-management paths.
func CreateUser(input CreateUserInput, now func() time.Time, idGenerator func() (string, error)) (User, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateUserInput(input)
	if err != nil {
		return User{}, err
	}

	userID, err := idGenerator()
	if err != nil {
		return User{}, fmt.Errorf("generate user id: %w", err)
	}

	createdAt := now().UTC()
	return User{
		ID:             userID,
		Email:          normalized.Email,
		UserName:       normalized.UserName,
		FirstName:      normalized.FirstName,
		LastName:       normalized.LastName,
		EmailConfirmed: normalized.EmailConfirmed,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}, nil
}
