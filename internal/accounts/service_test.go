package accounts_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/foodsafety/internal/accounts"
	"github.com/geocoder89/foodsafety/internal/auth"
	"github.com/geocoder89/foodsafety/internal/domain/user"
	"github.com/geocoder89/foodsafety/internal/notifications"
	"github.com/geocoder89/foodsafety/internal/repo/memory"
	"github.com/geocoder89/foodsafety/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type captureNotifier struct {
	mu          sync.Mutex
	invitations []notifications.InvitationInput
	resets      []notifications.PasswordResetInput
}

func (c *captureNotifier) SendInvitation(_ context.Context, in notifications.InvitationInput) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invitations = append(c.invitations, in)
	return nil
}

func (c *captureNotifier) SendPasswordResetOTP(_ context.Context, in notifications.PasswordResetInput) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resets = append(c.resets, in)
	return nil
}

type fixture struct {
	svc      *accounts.Service
	repo     *memory.UsersRepo
	tokens   *auth.Manager
	notifier *captureNotifier
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		repo:     memory.NewUsersRepo(),
		tokens:   auth.NewManager("test-secret", time.Hour),
		notifier: &captureNotifier{},
		now:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	f.svc = accounts.NewService(
		f.repo,
		security.NewHasher(bcrypt.MinCost),
		f.tokens,
		f.notifier,
		accounts.WithClock(func() time.Time { return f.now }),
		accounts.WithInvitationTTL(48*time.Hour),
		accounts.WithOTPTTL(5*time.Minute),
		accounts.WithActivationURL("https://app.example.com/activate/"),
	)
	return f
}

func TestRegisterThenLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.Register(ctx, accounts.RegisterInput{
		Name: "Asha", Email: "asha@x.com", Phone: "098470 12345", Password: "s3cret!",
	})
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, u.Role)
	assert.Equal(t, "+919847012345", u.Phone)
	assert.Equal(t, user.StatusCompleted, u.Status)

	sess, err := f.svc.Login(ctx, "asha@x.com", "s3cret!")
	require.NoError(t, err)

	claims, err := f.tokens.Verify(sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "asha@x.com", claims.Subject)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, string(user.RoleAdmin), claims.Role)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, accounts.RegisterInput{Name: "A", Email: "a@x.com", Phone: validPhone, Password: "pw"})
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, accounts.RegisterInput{Name: "B", Email: "a@x.com", Phone: validPhone, Password: "pw"})
	assert.ErrorIs(t, err, user.ErrEmailTaken)
}

// validPhone is a well-formed Indian mobile number.
const validPhone = "+91 9847012345"

func TestRegister_InvalidPhone(t *testing.T) {
	f := newFixture(t)

	for _, phone := range []string{"9999", "not a number", "+91 12345", "", "   "} {
		_, err := f.svc.Register(context.Background(), accounts.RegisterInput{
			Name: "A", Email: "a@x.com", Phone: phone, Password: "pw",
		})
		assert.ErrorIs(t, err, accounts.ErrInvalidPhone, phone)
	}
}

func TestLogin_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.Register(ctx, accounts.RegisterInput{Name: "A", Email: "a@x.com", Phone: validPhone, Password: "right"})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "a@x.com", "wrong")
	assert.ErrorIs(t, err, accounts.ErrIncorrectPassword)

	_, err = f.svc.Login(ctx, "nobody@x.com", "right")
	assert.ErrorIs(t, err, user.ErrNotFound)

	require.NoError(t, f.repo.SoftDelete(ctx, u.ID, f.now))

	_, err = f.svc.Login(ctx, "a@x.com", "right")
	assert.ErrorIs(t, err, user.ErrNotFound, "soft-deleted users cannot log in")
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.Register(ctx, accounts.RegisterInput{Name: "A", Email: "a@x.com", Phone: validPhone, Password: "old"})
	require.NoError(t, err)

	err = f.svc.ChangePassword(ctx, u.ID, "old", "old")
	require.ErrorIs(t, err, accounts.ErrSamePassword)
	assert.Equal(t, "current password and new passwords cannot be same", err.Error())

	err = f.svc.ChangePassword(ctx, u.ID, "nope", "new")
	assert.ErrorIs(t, err, accounts.ErrIncorrectPassword)

	require.NoError(t, f.svc.ChangePassword(ctx, u.ID, "old", "new"))

	_, err = f.svc.Login(ctx, "a@x.com", "old")
	assert.ErrorIs(t, err, accounts.ErrIncorrectPassword)

	_, err = f.svc.Login(ctx, "a@x.com", "new")
	assert.NoError(t, err)
}

func TestPasswordResetWithOTP(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, accounts.RegisterInput{Name: "A", Email: "a@x.com", Phone: validPhone, Password: "old"})
	require.NoError(t, err)

	require.NoError(t, f.svc.ForgotPassword(ctx, "a@x.com"))
	require.Len(t, f.notifier.resets, 1)

	otp := f.notifier.resets[0].OTP
	assert.Len(t, otp, 4)
	assert.Equal(t, f.now.Add(5*time.Minute), f.notifier.resets[0].ExpiresAt)

	err = f.svc.ResetPassword(ctx, "a@x.com", "0000", "fresh")
	assert.ErrorIs(t, err, user.ErrOTPInvalid)

	require.NoError(t, f.svc.ResetPassword(ctx, "a@x.com", otp, "fresh"))

	_, err = f.svc.Login(ctx, "a@x.com", "fresh")
	require.NoError(t, err)

	err = f.svc.ResetPassword(ctx, "a@x.com", otp, "again")
	assert.ErrorIs(t, err, user.ErrOTPInvalid, "otp is single use")
}

func TestPasswordReset_ExpiredOTP(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, accounts.RegisterInput{Name: "A", Email: "a@x.com", Phone: validPhone, Password: "old"})
	require.NoError(t, err)
	require.NoError(t, f.svc.ForgotPassword(ctx, "a@x.com"))

	f.now = f.now.Add(6 * time.Minute)

	err = f.svc.ResetPassword(ctx, "a@x.com", f.notifier.resets[0].OTP, "fresh")
	assert.ErrorIs(t, err, user.ErrOTPExpired)
}

func TestForgotPassword_PendingOrUnknown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Invite(ctx, accounts.InviteInput{Email: "p@x.com", Name: "P", Role: user.RoleUser})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.ForgotPassword(ctx, "p@x.com"), accounts.ErrResetNotAllowed)
	assert.ErrorIs(t, f.svc.ForgotPassword(ctx, "ghost@x.com"), accounts.ErrResetNotAllowed)
	assert.Empty(t, f.notifier.resets)
}

func TestRefresh_PicksUpCurrentRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.Register(ctx, accounts.RegisterInput{Name: "A", Email: "a@x.com", Phone: validPhone, Password: "pw"})
	require.NoError(t, err)

	_, err = f.svc.UpdateUser(ctx, u.ID, user.Profile{Name: "A", Email: "a@x.com", Role: user.RoleUser})
	require.NoError(t, err)

	sess, err := f.svc.Refresh(ctx, u.ID)
	require.NoError(t, err)

	claims, err := f.tokens.Verify(sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, string(user.RoleUser), claims.Role)
	assert.Equal(t, auth.PermissionsFor(string(user.RoleUser)), claims.Permissions)
}
