package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := New(CodeIdentityNotFound, "user missing")
	target := New(CodeIdentityNotFound, "different message")

	if !errors.Is(err, target) {
		t.Fatal("expected errors with the same code to match")
	}
	if errors.Is(err, New(CodeRoleNotFound, "user missing")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk failure")
	err := Wrap(CodeStorage, "query users", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be found in chain")
	}
	if err.Error() != "query users" {
		t.Fatalf("expected internal message, got %q", err.Error())
	}
}

func TestCodeOf(t *testing.T) {
	t.Run("direct", func(t *testing.T) {
		if code := CodeOf(New(CodeConsentRequired, "consent")); code != CodeConsentRequired {
			t.Fatalf("expected CONSENT_REQUIRED, got %s", code)
		}
	})

	t.Run("wrapped", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(CodeInvalidGrant, "bad code"))
		if code := CodeOf(err); code != CodeInvalidGrant {
			t.Fatalf("expected INVALID_GRANT, got %s", code)
		}
	})

	t.Run("foreign error", func(t *testing.T) {
		if code := CodeOf(errors.New("plain")); code != CodeUnknown {
			t.Fatalf("expected UNKNOWN, got %s", code)
		}
	})
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		code Code
		want int
	}{
		{CodeIdentityNotFound, http.StatusNotFound},
		{CodeApplicationNotFound, http.StatusNotFound},
		{CodeUnsupportedGrantType, http.StatusBadRequest},
		{CodeInvalidGrant, http.StatusBadRequest},
		{CodePermissionDenied, http.StatusForbidden},
		{CodeSessionExpired, http.StatusUnauthorized},
		{CodeUserDuplicateEmail, http.StatusConflict},
		{CodeUnknown, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.code, tc.want, got)
		}
	}
}
