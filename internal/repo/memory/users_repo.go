package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/foodsafety/internal/domain/user"
)

type UsersRepo struct {
	mu    sync.RWMutex
	items map[string]user.User
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items: make(map[string]user.User),
	}
}

// emailOwner must be called with the lock held.
func (r *UsersRepo) emailOwner(email, exceptID string) bool {
	for _, u := range r.items {
		if !u.IsDeleted && u.Email == email && u.ID != exceptID {
			return true
		}
	}
	return false
}

func (r *UsersRepo) Create(_ context.Context, u user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.emailOwner(u.Email, "") {
		return user.ErrEmailTaken
	}

	r.items[u.ID] = u
	return nil
}

func (r *UsersRepo) GetActiveByEmail(_ context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.items {
		if !u.IsDeleted && u.Email == email {
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (r *UsersRepo) GetActiveByID(_ context.Context, id string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]
	if !ok || u.IsDeleted {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) GetByActivation(_ context.Context, id, code string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]
	if !ok || u.IsDeleted || code == "" || u.ActivationCode != code {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) Activate(_ context.Context, a user.Activation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[a.UserID]
	if !ok || u.IsDeleted || u.ActivationCode != a.Code {
		return user.ErrNotFound
	}
	if !u.InvitationUsable(a.At) {
		return user.ErrInvitationExpired
	}

	u.Status = user.StatusCompleted
	u.Name = a.Name
	u.PasswordHash = a.PasswordHash
	u.UpdatedAt = a.At
	r.items[u.ID] = u
	return nil
}

func (r *UsersRepo) RotateInvitation(_ context.Context, id, code string, expiry, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok || u.IsDeleted || !u.IsInvited || u.Status != user.StatusPending {
		return user.ErrNotFound
	}

	u.ActivationCode = code
	u.InvitationExpiryTime = &expiry
	u.UpdatedAt = at
	r.items[id] = u
	return nil
}

func (r *UsersRepo) UpdatePassword(_ context.Context, id, hash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok || u.IsDeleted {
		return user.ErrNotFound
	}

	u.PasswordHash = hash
	u.UpdatedAt = at
	r.items[id] = u
	return nil
}

func (r *UsersRepo) SetOTP(_ context.Context, id, otp string, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok || u.IsDeleted {
		return user.ErrNotFound
	}

	u.OTP = otp
	u.OTPExpiry = &expiry
	r.items[id] = u
	return nil
}

func (r *UsersRepo) ResetPasswordWithOTP(_ context.Context, id, otp, hash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok || u.IsDeleted {
		return user.ErrNotFound
	}
	if u.OTP == "" || u.OTP != otp {
		return user.ErrOTPInvalid
	}
	if u.OTPExpiry == nil || at.After(*u.OTPExpiry) {
		return user.ErrOTPExpired
	}

	u.PasswordHash = hash
	u.OTP = ""
	u.OTPExpiry = nil
	u.UpdatedAt = at
	r.items[id] = u
	return nil
}

func (r *UsersRepo) List(_ context.Context, f user.ListFilter) ([]user.User, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]user.User, 0, len(r.items))
	for _, u := range r.items {
		if u.IsDeleted {
			continue
		}
		if f.Query != nil {
			q := strings.ToLower(*f.Query)
			if !strings.Contains(strings.ToLower(u.Name), q) && !strings.Contains(strings.ToLower(u.Email), q) {
				continue
			}
		}
		if f.Role != nil && u.Role != *f.Role {
			continue
		}
		matched = append(matched, u)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].SignedUpAt.Equal(matched[j].SignedUpAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].SignedUpAt.After(matched[j].SignedUpAt)
	})

	return page(matched, f.Skip, f.Limit), len(matched), nil
}

func (r *UsersRepo) UpdateProfile(_ context.Context, id string, p user.Profile, at time.Time) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok || u.IsDeleted {
		return user.User{}, user.ErrNotFound
	}
	if r.emailOwner(p.Email, id) {
		return user.User{}, user.ErrEmailTaken
	}

	u.Name = p.Name
	u.Email = p.Email
	u.Role = p.Role
	u.UpdatedAt = at
	r.items[id] = u
	return u, nil
}

func (r *UsersRepo) SoftDelete(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok || u.IsDeleted {
		return user.ErrNotFound
	}

	u.IsDeleted = true
	u.UpdatedAt = at
	r.items[id] = u
	return nil
}

func page[T any](items []T, skip, limit int) []T {
	if skip >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	return items[skip:end]
}
