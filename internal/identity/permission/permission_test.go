package permission

import (
	"errors"
	"testing"

	apperrors "github.com/alexanders1003/scribble.identity/internal/platform/errors"
)

func TestParse(t *testing.T) {
	t.Run("known permission", func(t *testing.T) {
		parsed, err := Parse("Permissions.Users.View")
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if parsed != UsersView {
			t.Fatalf("expected UsersView, got %q", parsed)
		}
	})

	t.Run("dynamic permission", func(t *testing.T) {
		parsed, err := Parse("Permissions.Orders.Ship")
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if parsed.Resource() != "Orders" || parsed.Action() != "Ship" {
			t.Fatalf("unexpected segments: %q / %q", parsed.Resource(), parsed.Action())
		}
	})

	t.Run("missing segments", func(t *testing.T) {
		_, err := Parse("Permissions.Users")
		if !errors.Is(err, apperrors.New(apperrors.CodePermissionInvalidName, "")) {
			t.Fatalf("expected PERMISSION_INVALID_NAME, got %v", err)
		}
	})

	t.Run("wrong prefix", func(t *testing.T) {
		if _, err := Parse("Policies.Users.View"); err == nil {
			t.Fatal("expected error for wrong prefix")
		}
	})
}

func TestHasPrefix(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"Permissions.Users.View", true},
		{"permissions.users.view", true},
		{"PERMISSIONS.Orders.Ship", true},
		{"RequireAdministratorRole", false},
		{"Perm", false},
	}
	for _, tc := range cases {
		if got := HasPrefix(tc.name); got != tc.want {
			t.Errorf("HasPrefix(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}
