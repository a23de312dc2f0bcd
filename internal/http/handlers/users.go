package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/geocoder89/foodsafety/internal/accounts"
	"github.com/geocoder89/foodsafety/internal/auth"
	"github.com/geocoder89/foodsafety/internal/config"
	"github.com/geocoder89/foodsafety/internal/domain/user"
	"github.com/geocoder89/foodsafety/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type UserAdmin interface {
	ListUsers(ctx context.Context, f user.ListFilter) ([]user.User, int, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	Invite(ctx context.Context, in accounts.InviteInput) (user.User, error)
	ResendInvitation(ctx context.Context, userID string) error
	UpdateUser(ctx context.Context, id string, p user.Profile) (user.User, error)
	DeleteUser(ctx context.Context, actorID, id string) error
}

type UsersHandler struct {
	svc UserAdmin
	log *slog.Logger
}

func NewUsersHandler(svc UserAdmin, log *slog.Logger) *UsersHandler {
	if log == nil {
		log = slog.Default()
	}
	return &UsersHandler{svc: svc, log: log}
}

// InviteRequest is shared by invite and update.
type InviteRequest struct {
	FirstName string    `json:"firstname" binding:"required,max=100"`
	LastName  string    `json:"lastname" binding:"omitempty,max=100"`
	Email     string    `json:"email" binding:"required,email"`
	Role      user.Role `json:"role" binding:"required,oneof=super_admin admin user"`
}

func (r InviteRequest) fullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

type UserListItem struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Role     user.Role `json:"role"`
	LoggedIn string    `json:"logged_in"`
}

type UserDetail struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstname"`
	LastName  string    `json:"lastname"`
	Email     string    `json:"email"`
	Role      user.Role `json:"role"`
	LoggedIn  string    `json:"logged_in"`
}

func (h *UsersHandler) ListRoles(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, auth.RoleOptions())
}

func (h *UsersHandler) ListUsers(ctx *gin.Context) {
	var f user.ListFilter

	if q := strings.TrimSpace(ctx.Query("query")); q != "" {
		f.Query = &q
	}
	if raw := ctx.Query("role"); raw != "" {
		role := user.Role(raw)
		if !role.IsValid() {
			RespondBadRequest(ctx, "Invalid role", gin.H{"role": raw})
			return
		}
		f.Role = &role
	}

	var ok bool
	if f.Skip, f.Limit, ok = parsePaging(ctx, accounts.DefaultUserListLimit); !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3 * time.Second)
	defer cancel()

	users, total, err := h.svc.ListUsers(cctx, f)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "list users failed", "err", err)
		RespondInternal(ctx, "Could not list users")
		return
	}

	items := make([]UserListItem, 0, len(users))
	for _, u := range users {
		items = append(items, UserListItem{
			ID:       u.ID,
			Name:     u.Name,
			Email:    u.Email,
			Role:     u.Role,
			LoggedIn: u.LoggedInStatus(),
		})
	}

	ctx.Header("X-Total-Count", strconv.Itoa(total))
	ctx.JSON(http.StatusOK, items)
}

func (h *UsersHandler) GetUser(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3 * time.Second)
	defer cancel()

	u, err := h.svc.GetUser(cctx, ctx.Param("user_id"))
	if err != nil {
		h.respondUserError(ctx, err, "Could not fetch user")
		return
	}

	first, last, _ := strings.Cut(u.Name, " ")

	ctx.JSON(http.StatusOK, UserDetail{
		ID:        u.ID,
		FirstName: first,
		LastName:  last,
		Email:     u.Email,
		Role:      u.Role,
		LoggedIn:  u.LoggedInStatus(),
	})
}

func (h *UsersHandler) InviteUser(ctx *gin.Context) {
	var req InviteRequest
	if !BindJSON(ctx, &req) {
		return
	}

	actorID, _ := middlewares.UserIDFromContext(ctx)

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 5 * time.Second)
	defer cancel()

	_, err := h.svc.Invite(cctx, accounts.InviteInput{
		Email:     req.Email,
		Name:      req.fullName(),
		Role:      req.Role,
		InviterID: actorID,
	})
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			RespondConflict(ctx, "email_taken", "Email already invited")
			return
		}
		h.respondUserError(ctx, err, "Could not invite user")
		return
	}

	RespondOK(ctx, http.StatusCreated, "added")
}

func (h *UsersHandler) ResendActivationLink(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 5 * time.Second)
	defer cancel()

	if err := h.svc.ResendInvitation(cctx, ctx.Param("user_id")); err != nil {
		h.respondUserError(ctx, err, "Could not resend activation link")
		return
	}

	RespondOK(ctx, http.StatusOK, "updated")
}

func (h *UsersHandler) UpdateUser(ctx *gin.Context) {
	var req InviteRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3 * time.Second)
	defer cancel()

	_, err := h.svc.UpdateUser(cctx, ctx.Param("user_id"), user.Profile{
		Name:  req.fullName(),
		Email: req.Email,
		Role:  req.Role,
	})
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			RespondConflict(ctx, "email_taken", "Email already in use")
			return
		}
		h.respondUserError(ctx, err, "Could not update user")
		return
	}

	RespondOK(ctx, http.StatusOK, "updated")
}

func (h *UsersHandler) DeleteUser(ctx *gin.Context) {
	actorID, _ := middlewares.UserIDFromContext(ctx)

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3 * time.Second)
	defer cancel()

	if err := h.svc.DeleteUser(cctx, actorID, ctx.Param("user_id")); err != nil {
		if errors.Is(err, accounts.ErrSelfDelete) {
			RespondForbidden(ctx, "Invalid operation.")
			return
		}
		h.respondUserError(ctx, err, "Could not delete user")
		return
	}

	RespondOK(ctx, http.StatusOK, "Deleted")
}

func (h *UsersHandler) respondUserError(ctx *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, user.ErrNotFound):
		RespondNotFound(ctx, "User not found.")
	case errors.Is(err, accounts.ErrInvalidRole):
		RespondBadRequest(ctx, "Invalid role", nil)
	default:
		h.log.ErrorContext(ctx.Request.Context(), fallback, "err", err)
		RespondInternal(ctx, fallback)
	}
}

// parsePaging reads skip/limit; it writes the 400 itself and returns ok=false on bad input.
func parsePaging(ctx *gin.Context, defaultLimit int) (skip, limit int, ok bool) {
	skip, limit = 0, defaultLimit

	if raw := ctx.Query("skip"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			RespondBadRequest(ctx, "Invalid query parameter", gin.H{"skip": "must be a non-negative integer"})
			return 0, 0, false
		}
		skip = v
	}

	if raw := ctx.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			RespondBadRequest(ctx, "Invalid query parameter", gin.H{"limit": "must be a positive integer"})
			return 0, 0, false
		}
		limit = v
	}

	return skip, limit, true
}
