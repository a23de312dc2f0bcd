package accounts

import (
	"context"

	"github.com/geocoder89/foodsafety/internal/domain/user"
)

const (
	DefaultUserListLimit = 40
	MaxUserListLimit     = 200
)

func (s *Service) ListUsers(ctx context.Context, f user.ListFilter) ([]user.User, int, error) {
	if f.Skip < 0 {
		f.Skip = 0
	}
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultUserListLimit
	case f.Limit > MaxUserListLimit:
		f.Limit = MaxUserListLimit
	}
	return s.users.List(ctx, f)
}

func (s *Service) GetUser(ctx context.Context, id string) (user.User, error) {
	return s.users.GetActiveByID(ctx, id)
}

func (s *Service) UpdateUser(ctx context.Context, id string, p user.Profile) (user.User, error) {
	if !p.Role.IsValid() {
		return user.User{}, ErrInvalidRole
	}
	return s.users.UpdateProfile(ctx, id, p, s.now().UTC())
}

// DeleteUser soft-deletes id. An actor can never delete their own account.
func (s *Service) DeleteUser(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return ErrSelfDelete
	}
	if err := s.users.SoftDelete(ctx, id, s.now().UTC()); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "user deleted", "user_id", id, "deleted_by", actorID)
	return nil
}
