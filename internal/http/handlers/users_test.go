package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/geocoder89/foodsafety/internal/accounts"
	"github.com/geocoder89/foodsafety/internal/domain/user"
	"github.com/geocoder89/foodsafety/internal/http/handlers"
)

// Fake implementation of the handlers.UserAdmin interface

type fakeUserAdmin struct {
	listFn   func(ctx context.Context, f user.ListFilter) ([]user.User, int, error)
	getFn    func(ctx context.Context, id string) (user.User, error)
	inviteFn func(ctx context.Context, in accounts.InviteInput) (user.User, error)
	resendFn func(ctx context.Context, userID string) error
	updateFn func(ctx context.Context, id string, p user.Profile) (user.User, error)
	deleteFn func(ctx context.Context, actorID, id string) error
}

func (f *fakeUserAdmin) ListUsers(ctx context.Context, filter user.ListFilter) ([]user.User, int, error) {
	if f.listFn != nil {
		return f.listFn(ctx, filter)
	}
	return nil, 0, nil
}

func (f *fakeUserAdmin) GetUser(ctx context.Context, id string) (user.User, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return user.User{}, nil
}

func (f *fakeUserAdmin) Invite(ctx context.Context, in accounts.InviteInput) (user.User, error) {
	if f.inviteFn != nil {
		return f.inviteFn(ctx, in)
	}
	return user.User{}, nil
}

func (f *fakeUserAdmin) ResendInvitation(ctx context.Context, userID string) error {
	if f.resendFn != nil {
		return f.resendFn(ctx, userID)
	}
	return nil
}

func (f *fakeUserAdmin) UpdateUser(ctx context.Context, id string, p user.Profile) (user.User, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, p)
	}
	return user.User{}, nil
}

func (f *fakeUserAdmin) DeleteUser(ctx context.Context, actorID, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, actorID, id)
	}
	return nil
}

func TestListUsersHandler(t *testing.T) {
	var got user.ListFilter
	svc := &fakeUserAdmin{
		listFn: func(ctx context.Context, f user.ListFilter) ([]user.User, int, error) {
			got = f
			return []user.User{
				{ID: "u-2", Name: "Bob", Email: "bob@x.com", Role: user.RoleUser, Status: user.StatusPending, IsInvited: true},
			}, 7, nil
		},
	}
	h := handlers.NewUsersHandler(svc, nil)
	r := setupRouter(http.MethodGet, "/business/users", h.ListUsers)

	w := doJSON(r, http.MethodGet, "/business/users?query=bob&role=user&skip=5&limit=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Total-Count") != "7" {
		t.Fatalf("expected X-Total-Count 7, got %q", w.Header().Get("X-Total-Count"))
	}
	if got.Query == nil || *got.Query != "bob" || got.Role == nil || *got.Role != user.RoleUser {
		t.Fatalf("filter not parsed: %+v", got)
	}
	if got.Skip != 5 || got.Limit != 2 {
		t.Fatalf("paging not parsed: skip=%d limit=%d", got.Skip, got.Limit)
	}

	var items []handlers.UserListItem
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if len(items) != 1 || items[0].LoggedIn != user.LoggedInInvited {
		t.Fatalf("unexpected items: %+v", items)
	}

	for _, q := range []string{"?role=owner", "?skip=-1", "?limit=0", "?limit=abc"} {
		w = doJSON(r, http.MethodGet, "/business/users"+q, "")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, w.Code)
		}
	}
}

func TestGetUserHandlerSplitsName(t *testing.T) {
	svc := &fakeUserAdmin{
		getFn: func(ctx context.Context, id string) (user.User, error) {
			if id != "u-2" {
				return user.User{}, user.ErrNotFound
			}
			return user.User{ID: id, Name: "Bob Mathew", Email: "bob@x.com", Role: user.RoleUser, Status: user.StatusCompleted}, nil
		},
	}
	h := handlers.NewUsersHandler(svc, nil)
	r := setupRouter(http.MethodGet, "/business/users/:user_id", h.GetUser)

	w := doJSON(r, http.MethodGet, "/business/users/u-2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var detail handlers.UserDetail
	_ = json.Unmarshal(w.Body.Bytes(), &detail)
	if detail.FirstName != "Bob" || detail.LastName != "Mathew" || detail.LoggedIn != user.LoggedInActive {
		t.Fatalf("unexpected detail: %+v", detail)
	}

	w = doJSON(r, http.MethodGet, "/business/users/nope", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestInviteUserHandler(t *testing.T) {
	var got accounts.InviteInput
	svc := &fakeUserAdmin{
		inviteFn: func(ctx context.Context, in accounts.InviteInput) (user.User, error) {
			if in.Email == "taken@x.com" {
				return user.User{}, user.ErrEmailTaken
			}
			got = in
			return user.User{ID: "u-3"}, nil
		},
	}
	h := handlers.NewUsersHandler(svc, nil)
	r := setupAuthedRouter(http.MethodPost, "/business/users", "u-1", h.InviteUser)

	w := doJSON(r, http.MethodPost, "/business/users", `{"firstname":"Bob","lastname":"Mathew","email":"bob@x.com","role":"user"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", w.Code, w.Body.String())
	}
	if got.Name != "Bob Mathew" || got.InviterID != "u-1" || got.Role != user.RoleUser {
		t.Fatalf("unexpected invite input: %+v", got)
	}

	w = doJSON(r, http.MethodPost, "/business/users", `{"firstname":"Bob","email":"taken@x.com","role":"user"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}

	w = doJSON(r, http.MethodPost, "/business/users", `{"firstname":"Bob","email":"bob@x.com","role":"owner"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown role, got %d", w.Code)
	}
}

func TestDeleteUserHandler(t *testing.T) {
	svc := &fakeUserAdmin{
		deleteFn: func(ctx context.Context, actorID, id string) error {
			switch {
			case actorID == id:
				return accounts.ErrSelfDelete
			case id == "missing":
				return user.ErrNotFound
			}
			return nil
		},
	}
	h := handlers.NewUsersHandler(svc, nil)
	r := setupAuthedRouter(http.MethodDelete, "/business/users/:user_id", "u-1", h.DeleteUser)

	tests := []struct {
		id             string
		expectedStatus int
		expectedMsg    string
	}{
		{"u-2", http.StatusOK, "Deleted"},
		{"u-1", http.StatusForbidden, "Invalid operation."},
		{"missing", http.StatusNotFound, "User not found."},
	}

	for _, tt := range tests {
		w := doJSON(r, http.MethodDelete, "/business/users/"+tt.id, "")
		if w.Code != tt.expectedStatus {
			t.Fatalf("%s: expected %d, got %d", tt.id, tt.expectedStatus, w.Code)
		}
		if env := decodeEnvelope(t, w); env.Message != tt.expectedMsg {
			t.Fatalf("%s: unexpected message %q", tt.id, env.Message)
		}
	}
}

func TestListRolesHandler(t *testing.T) {
	h := handlers.NewUsersHandler(&fakeUserAdmin{}, nil)
	r := setupRouter(http.MethodGet, "/business/users/list-role", h.ListRoles)

	w := doJSON(r, http.MethodGet, "/business/users/list-role", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var roles []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &roles); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if len(roles) == 0 {
		t.Fatalf("expected role options")
	}
}
