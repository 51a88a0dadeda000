package server

import (
	"context"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/alexanders1003/scribble.identity/internal/identity/permission"
	"github.com/alexanders1003/scribble.identity/internal/identity/user"
	"github.com/alexanders1003/scribble.identity/internal/platform/id"
	"github.com/alexanders1003/scribble.identity/internal/services/identity/connect"
	"github.com/alexanders1003/scribble.identity/internal/services/identity/storage"
	identitysqlite "github.com/alexanders1003/scribble.identity/internal/services/identity/storage/sqlite"
)

// rolePermissions maps the built-in roles to their permission grants.
// Administrators hold every user-management permission; moderators hold
// everything except delete.
var rolePermissions = map[string][]permission.Permission{
	"Administrator": {
		permission.UsersView, permission.UsersCreate,
		permission.UsersEdit, permission.UsersDelete,
	},
	"Moderator": {
		permission.UsersView, permission.UsersCreate, permission.UsersEdit,
	},
	"User": nil,
}

// seed provisions built-in roles, the default client, and the
// bootstrap administrator. Seeding is idempotent and failures are
// logged rather than blocking startup.
func seed(store *identitysqlite.Store, config connect.Config) {
	ctx := context.Background()
	now := time.Now().UTC()

	seedRoles(ctx, store, now)
	seedClients(ctx, store, config, now)
	seedAdmin(ctx, store, config, now)
}

func seedRoles(ctx context.Context, store *identitysqlite.Store, now time.Time) {
	for _, name := range []string{"Administrator", "Moderator", "User"} {
		role, err := store.FindRoleByName(ctx, name)
		if err != nil {
			log.Printf("seed role %s: %v", name, err)
			continue
		}
		if role == nil {
			roleID, err := id.NewID()
			if err != nil {
				log.Printf("seed role %s: %v", name, err)
				continue
			}
			created := storage.Role{ID: roleID, Name: name, CreatedAt: now, UpdatedAt: now}
			if err := store.CreateRole(ctx, created); err != nil {
				log.Printf("seed role %s: %v", name, err)
				continue
			}
			role = &created
		}

		for _, grant := range rolePermissions[name] {
			claim := storage.RoleClaim{
				Type:   permission.ClaimType,
				Value:  string(grant),
				Issuer: permission.LocalIssuer,
			}
			if err := store.AddRoleClaim(ctx, role.ID, claim); err != nil {
				log.Printf("seed role claim %s/%s: %v", name, grant, err)
			}
		}
	}
}

func seedClients(ctx context.Context, store *identitysqlite.Store, config connect.Config, now time.Time) {
	clients := append([]connect.Client{{
		ClientID:     "client-id-code",
		DisplayName:  "Default code client",
		ConsentType:  "implicit",
		RedirectURIs: []string{"https://localhost:5001/signin-oidc"},
		Scopes:       []string{"openid", "profile", "email", "roles", "offline_access"},
	}}, config.Clients...)

	for _, client := range clients {
		if strings.TrimSpace(client.ClientID) == "" {
			continue
		}
		existing, err := store.FindApplicationByClientID(ctx, client.ClientID)
		if err != nil {
			log.Printf("seed client %s: %v", client.ClientID, err)
			continue
		}
		if existing != nil {
			continue
		}

		appID, err := id.NewID()
		if err != nil {
			log.Printf("seed client %s: %v", client.ClientID, err)
			continue
		}
		secretHash := ""
		if client.ClientSecret != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(client.ClientSecret), bcrypt.DefaultCost)
			if err != nil {
				log.Printf("seed client %s: %v", client.ClientID, err)
				continue
			}
			secretHash = string(hash)
		}
		consentType := client.ConsentType
		if consentType == "" {
			consentType = "explicit"
		}

		app := storage.Application{
			ID:               appID,
			ClientID:         client.ClientID,
			ClientSecretHash: secretHash,
			DisplayName:      client.DisplayName,
			ConsentType:      consentType,
			RedirectURIs:     client.RedirectURIs,
			Scopes:           client.Scopes,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := store.CreateApplication(ctx, app); err != nil {
			log.Printf("seed client %s: %v", client.ClientID, err)
		}
	}
}

func seedAdmin(ctx context.Context, store *identitysqlite.Store, config connect.Config, now time.Time) {
	email := strings.TrimSpace(config.AdminEmail)
	password := strings.TrimSpace(config.AdminPassword)
	if email == "" || password == "" {
		return
	}

	existing, err := store.FindUserByEmail(ctx, email)
	if err != nil {
		log.Printf("seed admin: %v", err)
		return
	}
	if existing == nil {
		created, err := user.CreateUser(user.CreateUserInput{
			Email:          email,
			EmailConfirmed: true,
		}, func() time.Time { return now }, id.NewID)
		if err != nil {
			log.Printf("seed admin: %v", err)
			return
		}
		if err := store.CreateUser(ctx, created, ""); err != nil {
			log.Printf("seed admin: %v", err)
			return
		}
		if err := store.SetPassword(ctx, created.ID, password); err != nil {
			log.Printf("seed admin: %v", err)
			return
		}
		existing = &created
	}

	role, err := store.FindRoleByName(ctx, "Administrator")
	if err != nil || role == nil {
		log.Printf("seed admin role assignment: %v", err)
		return
	}
	if err := store.AssignRole(ctx, existing.ID, role.ID); err != nil {
		log.Printf("seed admin role assignment: %v", err)
	}
}
