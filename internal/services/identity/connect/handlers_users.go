package connect

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alexanders1003/scribble.identity/internal/identity/claims"
	"github.com/alexanders1003/scribble.identity/internal/identity/permission"
	"github.com/alexanders1003/scribble.identity/internal/identity/policy"
	"github.com/alexanders1003/scribble.identity/internal/identity/user"
	apperrors "github.com/alexanders1003/scribble.identity/internal/platform/errors"
	"github.com/alexanders1003/scribble.identity/internal/platform/id"
	"github.com/alexanders1003/scribble.identity/internal/services/identity/storage"
)

type userResource struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	UserName       string `json:"user_name"`
	FirstName      string `json:"first_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
	EmailConfirmed bool   `json:"email_confirmed"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

type userPageResource struct {
	Users         []userResource `json:"users"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type createUserRequest struct {
	Email          string `json:"email"`
	UserName       string `json:"user_name"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Password       string `json:"password"`
	EmailConfirmed bool   `json:"email_confirmed"`
}

type updateUserRequest struct {
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	UserName       *string `json:"user_name"`
	EmailConfirmed *bool   `json:"email_confirmed"`
}

func toUserResource(u user.User) userResource {
	return userResource{
		ID:             u.ID,
		Email:          u.Email,
		UserName:       u.UserName,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		EmailConfirmed: u.EmailConfirmed,
		CreatedAt:      u.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      u.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// guard authorizes the request against the named permission. A failed
// evaluation is a 403; an abstention, including an unauthenticated
// caller, is a 401.
func (s *Server) guard(w http.ResponseWriter, r *http.Request, required permission.Permission) (context.Context, bool) {
	principal := s.resolvePrincipal(r)
	if principal == nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "authentication is required")
		return nil, false
	}

	requirement, err := s.registry.Resolve(string(required))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "policy resolution failed")
		return nil, false
	}

	decision, err := s.evaluator.Evaluate(r.Context(), principal, requirement)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "policy evaluation failed")
		return nil, false
	}
	switch decision {
	case policy.Succeed:
	case policy.Fail:
		writeJSONError(w, http.StatusForbidden, "forbidden", "the caller lacks the required permission")
		return nil, false
	default:
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "the caller could not be resolved")
		return nil, false
	}

	actor := principal.Subject
	if email, ok := principal.ClaimValue(claims.TypeEmail); ok {
		actor = email
	}
	return storage.WithActor(r.Context(), actor), true
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ctx, ok := s.guard(w, r, permission.UsersView)
		if !ok {
			return
		}
		s.listUsers(ctx, w, r)
	case http.MethodPost:
		ctx, ok := s.guard(w, r, permission.UsersCreate)
		if !ok {
			return
		}
		s.createUser(ctx, w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleUserByID(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimPrefix(r.URL.Path, "/api/users/")
	if userID == "" || strings.Contains(userID, "/") {
		writeJSONError(w, http.StatusNotFound, "not_found", "unknown resource")
		return
	}

	switch r.Method {
	case http.MethodGet:
		ctx, ok := s.guard(w, r, permission.UsersView)
		if !ok {
			return
		}
		s.getUser(ctx, w, userID)
	case http.MethodPut, http.MethodPatch:
		ctx, ok := s.guard(w, r, permission.UsersEdit)
		if !ok {
			return
		}
		s.updateUser(ctx, w, r, userID)
	case http.MethodDelete:
		ctx, ok := s.guard(w, r, permission.UsersDelete)
		if !ok {
			return
		}
		s.deleteUser(ctx, w, userID)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) listUsers(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	page, err := s.store.ListUsers(ctx, pageSize, r.URL.Query().Get("page_token"))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "user listing failed")
		return
	}

	resource := userPageResource{NextPageToken: page.NextPageToken}
	for _, u := range page.Users {
		resource.Users = append(resource.Users, toUserResource(u))
	}
	writeJSON(w, http.StatusOK, resource)
}

func (s *Server) createUser(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	var request createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	created, err := user.CreateUser(user.CreateUserInput{
		Email:          request.Email,
		UserName:       request.UserName,
		FirstName:      request.FirstName,
		LastName:       request.LastName,
		EmailConfirmed: request.EmailConfirmed,
	}, s.clock, id.NewID)
	if err != nil {
		writeJSONError(w, apperrors.CodeOf(err).HTTPStatus(), "invalid_request", err.Error())
		return
	}

	if err := s.store.CreateUser(ctx, created, ""); err != nil {
		writeJSONError(w, apperrors.CodeOf(err).HTTPStatus(), "conflict", err.Error())
		return
	}
	if request.Password != "" {
		if err := s.store.SetPassword(ctx, created.ID, request.Password); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "server_error", "password persistence failed")
			return
		}
	}

	writeJSON(w, http.StatusCreated, toUserResource(created))
}

func (s *Server) getUser(ctx context.Context, w http.ResponseWriter, userID string) {
	found, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "user lookup failed")
		return
	}
	if found == nil {
		writeJSONError(w, http.StatusNotFound, "not_found", "user not found")
		return
	}
	writeJSON(w, http.StatusOK, toUserResource(*found))
}

func (s *Server) updateUser(ctx context.Context, w http.ResponseWriter, r *http.Request, userID string) {
	var request updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	found, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "user lookup failed")
		return
	}
	if found == nil {
		writeJSONError(w, http.StatusNotFound, "not_found", "user not found")
		return
	}

	if request.FirstName != nil {
		found.FirstName = strings.TrimSpace(*request.FirstName)
	}
	if request.LastName != nil {
		found.LastName = strings.TrimSpace(*request.LastName)
	}
	if request.UserName != nil && strings.TrimSpace(*request.UserName) != "" {
		found.UserName = strings.TrimSpace(*request.UserName)
	}
	if request.EmailConfirmed != nil {
		found.EmailConfirmed = *request.EmailConfirmed
	}
	found.UpdatedAt = s.clock().UTC()

	if err := s.store.UpdateUser(ctx, *found); err != nil {
		writeJSONError(w, apperrors.CodeOf(err).HTTPStatus(), "conflict", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toUserResource(*found))
}

func (s *Server) deleteUser(ctx context.Context, w http.ResponseWriter, userID string) {
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "server_error", "user deletion failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
