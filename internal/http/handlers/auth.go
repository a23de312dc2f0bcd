package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/foodsafety/internal/accounts"
	"github.com/geocoder89/foodsafety/internal/config"
	"github.com/geocoder89/foodsafety/internal/domain/user"
	"github.com/geocoder89/foodsafety/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type AccountService interface {
	Register(ctx context.Context, in accounts.RegisterInput) (user.User, error)
	Login(ctx context.Context, email, password string) (accounts.Session, error)
	Refresh(ctx context.Context, userID string) (accounts.Session, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, otp, newPassword string) error
	Confirm(ctx context.Context, userID, code string) (user.User, error)
	Activate(ctx context.Context, in accounts.ActivateInput) (accounts.Session, error)
}

type AuthHandler struct {
	svc     AccountService
	banner  string
	log     *slog.Logger
	observe func(flow, result string)
}

func NewAuthHandler(svc AccountService, appName, appDescription string, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{
		svc:     svc,
		banner:  fmt.Sprintf("%s  -  %s", appName, appDescription),
		log:     log,
		observe: func(string, string) {},
	}
}

// WithObserver reports login/token/activate outcomes (ok, denied, error).
func (h *AuthHandler) WithObserver(fn func(flow, result string)) *AuthHandler {
	h.observe = fn
	return h
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type SignUpRequest struct {
	Name     string `json:"name" binding:"required,max=200"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone" binding:"required,max=32"`
	Password string `json:"password" binding:"required,min=4,max=72"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	NewPassword string `json:"new_password" binding:"required,min=4,max=72"`
	OTP         string `json:"otp" binding:"required,len=4,numeric"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=4,max=72"`
}

type SetPasswordRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Code     string `json:"code" binding:"required"`
	Name     string `json:"name" binding:"required,max=200"`
	Password string `json:"password" binding:"required,min=4,max=72"`
}

type LoginResponse struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	Role              string `json:"role"`
	AccessToken       string `json:"access_token"`
	AccessTokenExpiry int64  `json:"access_token_expiry"`
	TokenType         string `json:"token_type,omitempty"`
}

func loginResponse(s accounts.Session) LoginResponse {
	return LoginResponse{
		ID:                s.ID,
		Name:              s.Name,
		Email:             s.Email,
		Role:              s.Role,
		AccessToken:       s.AccessToken,
		AccessTokenExpiry: s.ExpiresAt.UnixMilli(),
	}
}

func (h *AuthHandler) Home(ctx *gin.Context) {
	RespondOK(ctx, http.StatusOK, h.banner)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3 * time.Second)
	defer cancel()

	sess, err := h.svc.Login(cctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			h.observe("login", "denied")
			RespondNotFound(ctx, "User not found.")
		case errors.Is(err, accounts.ErrIncorrectPassword):
			h.observe("login", "denied")
			RespondNotFound(ctx, "Incorrect password")
		default:
			h.observe("login", "error")
			h.log.ErrorContext(ctx.Request.Context(), "login failed", "err", err)
			RespondInternal(ctx, "Could not log in")
		}
		return
	}

	h.observe("login", "ok")
	ctx.JSON(http.StatusOK, loginResponse(sess))
}

// Token is the OAuth2 password-form flow used by API clients.
func (h *AuthHandler) Token(ctx *gin.Context) {
	username := ctx.PostForm("username")
	password := ctx.PostForm("password")

	if username == "" || password == "" {
		ctx.Header("WWW-Authenticate", "Bearer")
		RespondUnAuthorized(ctx, "invalid_credentials", "Incorrect username or password")
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3 * time.Second)
	defer cancel()

	sess, err := h.svc.Login(cctx, username, password)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) || errors.Is(err, accounts.ErrIncorrectPassword) {
			h.observe("token", "denied")
			ctx.Header("WWW-Authenticate", "Bearer")
			RespondUnAuthorized(ctx, "invalid_credentials", "Incorrect username or password")
			return
		}
		h.observe("token", "error")
		h.log.ErrorContext(ctx.Request.Context(), "token login failed", "err", err)
		RespondInternal(ctx, "Could not log in")
		return
	}

	h.observe("token", "ok")

	resp := loginResponse(sess)
	resp.TokenType = "bearer"
	ctx.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) CompleteRegistration(ctx *gin.Context) {
	var req SignUpRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 5 * time.Second)
	defer cancel()

	u, err := h.svc.Register(cctx, accounts.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			RespondBadRequest(ctx, "Email already exists", nil)
			return
		}
		if errors.Is(err, accounts.ErrInvalidPhone) {
			RespondBadRequest(ctx, "Invalid phone number", gin.H{"phone": req.Phone})
			return
		}
		h.log.ErrorContext(ctx.Request.Context(), "registration failed", "err", err)
		RespondInternal(ctx, "Could not create user")
		return
	}

	ctx.JSON(http.StatusCreated, u)
}

func (h *AuthHandler) ForgotPassword(ctx *gin.Context) {
	var req ForgotPasswordRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 5 * time.Second)
	defer cancel()

	if err := h.svc.ForgotPassword(cctx, req.Email); err != nil {
		if errors.Is(err, accounts.ErrResetNotAllowed) {
			RespondBadRequest(ctx, "Operation not valid , account may be deleted or not have signed in already.", nil)
			return
		}
		h.log.ErrorContext(ctx.Request.Context(), "forgot password failed", "err", err)
		RespondInternal(ctx, "Could not start password reset")
		return
	}

	RespondOK(ctx, http.StatusOK, "OTP sent")
}

func (h *AuthHandler) ResetPassword(ctx *gin.Context) {
	var req ResetPasswordRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 5 * time.Second)
	defer cancel()

	err := h.svc.ResetPassword(cctx, req.Email, req.OTP, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			RespondNotFound(ctx, "User not found.")
		case errors.Is(err, user.ErrOTPInvalid):
			RespondNotFound(ctx, "Incorrect OTP")
		case errors.Is(err, user.ErrOTPExpired):
			RespondExpired(ctx, "Request expired")
		default:
			h.log.ErrorContext(ctx.Request.Context(), "reset password failed", "err", err)
			RespondInternal(ctx, "Password change failed")
		}
		return
	}

	RespondOK(ctx, http.StatusOK, "Password changed successfully")
}

func (h *AuthHandler) ChangePassword(ctx *gin.Context) {
	var req ChangePasswordRequest
	if !BindJSON(ctx, &req) {
		return
	}

	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthenticated", "Not authenticated")
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 5 * time.Second)
	defer cancel()

	err := h.svc.ChangePassword(cctx, userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, accounts.ErrSamePassword):
			RespondBadRequest(ctx, "Current password and new passwords cannot be same", nil)
		case errors.Is(err, accounts.ErrIncorrectPassword):
			RespondBadRequest(ctx, "Incorrect password", nil)
		case errors.Is(err, user.ErrNotFound):
			RespondNotFound(ctx, "User not found.")
		default:
			h.log.ErrorContext(ctx.Request.Context(), "change password failed", "err", err)
			RespondInternal(ctx, "Password change failed")
		}
		return
	}

	RespondOK(ctx, http.StatusOK, "Password changed successfully")
}

func (h *AuthHandler) ConfirmEmail(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3 * time.Second)
	defer cancel()

	u, err := h.svc.Confirm(cctx, ctx.Param("user_id"), ctx.Param("code"))
	if err != nil {
		h.respondInvitationError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"id": u.ID, "email": u.Email})
}

func (h *AuthHandler) SetPassword(ctx *gin.Context) {
	var req SetPasswordRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 5 * time.Second)
	defer cancel()

	sess, err := h.svc.Activate(cctx, accounts.ActivateInput{
		UserID:   req.UserID,
		Code:     req.Code,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		h.observe("activate", "denied")
		h.respondInvitationError(ctx, err)
		return
	}

	h.observe("activate", "ok")
	ctx.JSON(http.StatusOK, loginResponse(sess))
}

func (h *AuthHandler) respondInvitationError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, user.ErrNotFound):
		RespondNotFound(ctx, "User not found")
	case errors.Is(err, user.ErrInvitationExpired):
		RespondExpired(ctx, "Request expired")
	default:
		h.log.ErrorContext(ctx.Request.Context(), "invitation lookup failed", "err", err)
		RespondInternal(ctx, "Could not process invitation")
	}
}

// RefreshToken re-issues the access token with the caller's current role.
func (h *AuthHandler) RefreshToken(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthenticated", "Not authenticated")
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3 * time.Second)
	defer cancel()

	sess, err := h.svc.Refresh(cctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondUnAuthorized(ctx, "unauthenticated", "Could not validate credentials")
			return
		}
		h.log.ErrorContext(ctx.Request.Context(), "refresh failed", "err", err)
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	ctx.JSON(http.StatusOK, loginResponse(sess))
}

// LogOut is a no-op: tokens are stateless and expire on their own.
func (h *AuthHandler) LogOut(ctx *gin.Context) {
	RespondOK(ctx, http.StatusOK, "logged out")
}
