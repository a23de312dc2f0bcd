// Package accounts holds the credential, invitation and user-administration flows.
package accounts

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/geocoder89/foodsafety/internal/domain/user"
	"github.com/geocoder89/foodsafety/internal/notifications"
	"github.com/geocoder89/foodsafety/internal/security"
	"github.com/google/uuid"
)

var (
	ErrIncorrectPassword = errors.New("incorrect password")
	ErrSamePassword      = errors.New("current password and new passwords cannot be same")
	ErrResetNotAllowed   = errors.New("operation not valid, account may be deleted or not have signed in already")
	ErrSelfDelete        = errors.New("cannot delete own account")
	ErrInvalidRole       = errors.New("invalid role")
)

type UserStore interface {
	Create(ctx context.Context, u user.User) error
	GetActiveByEmail(ctx context.Context, email string) (user.User, error)
	GetActiveByID(ctx context.Context, id string) (user.User, error)
	GetByActivation(ctx context.Context, id, code string) (user.User, error)
	Activate(ctx context.Context, a user.Activation) error
	RotateInvitation(ctx context.Context, id, code string, expiry, at time.Time) error
	UpdatePassword(ctx context.Context, id, hash string, at time.Time) error
	SetOTP(ctx context.Context, id, otp string, expiry time.Time) error
	ResetPasswordWithOTP(ctx context.Context, id, otp, hash string, at time.Time) error
	List(ctx context.Context, f user.ListFilter) ([]user.User, int, error)
	UpdateProfile(ctx context.Context, id string, p user.Profile, at time.Time) (user.User, error)
	SoftDelete(ctx context.Context, id string, at time.Time) error
}

type TokenIssuer interface {
	IssueAccessToken(userID, email, name, role string) (string, time.Time, error)
}

// Session is what a successful login or activation hands back.
type Session struct {
	ID          string
	Name        string
	Email       string
	Role        string
	AccessToken string
	ExpiresAt   time.Time
}

type Service struct {
	users    UserStore
	hasher   security.PasswordHasher
	tokens   TokenIssuer
	notifier notifications.Notifier
	log      *slog.Logger

	now           func() time.Time
	invitationTTL time.Duration
	otpTTL        time.Duration
	activationURL string
}

type Option func(*Service)

// WithClock injects a custom clock (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithInvitationTTL(d time.Duration) Option {
	return func(s *Service) { s.invitationTTL = d }
}

func WithOTPTTL(d time.Duration) Option {
	return func(s *Service) { s.otpTTL = d }
}

func WithActivationURL(url string) Option {
	return func(s *Service) { s.activationURL = url }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func NewService(users UserStore, hasher security.PasswordHasher, tokens TokenIssuer, notifier notifications.Notifier, opts ...Option) *Service {
	s := &Service{
		users:         users,
		hasher:        hasher,
		tokens:        tokens,
		notifier:      notifier,
		log:           slog.Default(),
		now:           time.Now,
		invitationTTL: 2880 * time.Minute,
		otpTTL:        5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

// Register creates a completed business admin account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (user.User, error) {
	phone, err := normalizePhone(in.Phone)
	if err != nil {
		return user.User{}, err
	}

	if _, err := s.users.GetActiveByEmail(ctx, in.Email); err == nil {
		return user.User{}, user.ErrEmailTaken
	} else if !errors.Is(err, user.ErrNotFound) {
		return user.User{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	u := user.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		Phone:        phone,
		PasswordHash: hash,
		Role:         user.RoleAdmin,
		Status:       user.StatusCompleted,
		SignedUpAt:   now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, u); err != nil {
		return user.User{}, err
	}

	s.log.InfoContext(ctx, "account registered", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// Login checks credentials and issues a session token.
// Pending invitees have no usable password and fail here.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.users.GetActiveByEmail(ctx, email)
	if err != nil {
		return Session{}, err
	}

	if !s.hasher.Verify(password, u.PasswordHash) {
		return Session{}, ErrIncorrectPassword
	}

	return s.issue(u)
}

// Refresh re-issues a token for a live account, picking up its current role.
func (s *Service) Refresh(ctx context.Context, userID string) (Session, error) {
	u, err := s.users.GetActiveByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issue(u)
}

func (s *Service) issue(u user.User) (Session, error) {
	token, exp, err := s.tokens.IssueAccessToken(u.ID, u.Email, u.Name, string(u.Role))
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}

	return Session{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        string(u.Role),
		AccessToken: token,
		ExpiresAt:   exp,
	}, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if current == next {
		return ErrSamePassword
	}

	u, err := s.users.GetActiveByID(ctx, userID)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(current, u.PasswordHash) {
		return ErrIncorrectPassword
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.users.UpdatePassword(ctx, u.ID, hash, s.now().UTC())
}

// ForgotPassword stores a fresh OTP and sends it. Only completed accounts qualify.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.users.GetActiveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrResetNotAllowed
		}
		return err
	}
	if u.Status != user.StatusCompleted {
		return ErrResetNotAllowed
	}

	otp, err := newOTP()
	if err != nil {
		return err
	}

	expiry := s.now().UTC().Add(s.otpTTL)

	if err := s.users.SetOTP(ctx, u.ID, otp, expiry); err != nil {
		return err
	}

	err = s.notifier.SendPasswordResetOTP(ctx, notifications.PasswordResetInput{
		Email:     u.Email,
		Name:      u.Name,
		OTP:       otp,
		ExpiresAt: expiry,
	})
	if err != nil {
		s.log.WarnContext(ctx, "password reset notification failed", "user_id", u.ID, "err", err)
	}

	return nil
}

// ResetPassword consumes the OTP. A used OTP is gone, so a replay is ErrOTPInvalid.
func (s *Service) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	u, err := s.users.GetActiveByEmail(ctx, email)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.users.ResetPasswordWithOTP(ctx, u.ID, otp, hash, s.now().UTC())
}

func newOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()+1000), nil
}

func newActivationCode() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate activation code: %w", err)
	}
	return hex.EncodeToString(b), nil
}
