package accounts

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/geocoder89/foodsafety/internal/domain/user"
	"github.com/geocoder89/foodsafety/internal/notifications"
	"github.com/google/uuid"
)

type InviteInput struct {
	Email     string
	Name      string
	Role      user.Role
	InviterID string
}

// Invite creates a pending account with a fresh activation code and notifies the invitee.
func (s *Service) Invite(ctx context.Context, in InviteInput) (user.User, error) {
	if !in.Role.IsValid() {
		return user.User{}, ErrInvalidRole
	}

	if _, err := s.users.GetActiveByEmail(ctx, in.Email); err == nil {
		return user.User{}, user.ErrEmailTaken
	} else if !errors.Is(err, user.ErrNotFound) {
		return user.User{}, err
	}

	code, err := newActivationCode()
	if err != nil {
		return user.User{}, err
	}

	now := s.now().UTC()
	expiry := now.Add(s.invitationTTL)

	u := user.User{
		ID:                   uuid.NewString(),
		Name:                 in.Name,
		Email:                in.Email,
		Role:                 in.Role,
		Status:               user.StatusPending,
		IsInvited:            true,
		InvitedBy:            in.InviterID,
		ActivationCode:       code,
		InvitationExpiryTime: &expiry,
		SignedUpAt:           now,
		UpdatedAt:            now,
	}

	if err := s.users.Create(ctx, u); err != nil {
		return user.User{}, err
	}

	s.log.InfoContext(ctx, "user invited", "user_id", u.ID, "role", u.Role, "invited_by", in.InviterID)
	s.sendInvitation(ctx, u)

	return u, nil
}

// ResendInvitation rotates the code and expiry of a pending invitee and re-sends the link.
func (s *Service) ResendInvitation(ctx context.Context, userID string) error {
	u, err := s.users.GetActiveByID(ctx, userID)
	if err != nil {
		return err
	}
	if !u.IsInvited || u.Status != user.StatusPending {
		return user.ErrNotFound
	}

	code, err := newActivationCode()
	if err != nil {
		return err
	}

	now := s.now().UTC()
	expiry := now.Add(s.invitationTTL)

	if err := s.users.RotateInvitation(ctx, u.ID, code, expiry, now); err != nil {
		return err
	}

	u.ActivationCode = code
	u.InvitationExpiryTime = &expiry
	s.sendInvitation(ctx, u)

	return nil
}

// Confirm checks a (user, code) pair without consuming it.
func (s *Service) Confirm(ctx context.Context, userID, code string) (user.User, error) {
	u, err := s.users.GetByActivation(ctx, userID, code)
	if err != nil {
		return user.User{}, err
	}
	if !u.InvitationUsable(s.now().UTC()) {
		return user.User{}, user.ErrInvitationExpired
	}
	return u, nil
}

type ActivateInput struct {
	UserID   string
	Code     string
	Name     string
	Password string
}

// Activate redeems an invitation exactly once and returns a logged-in session.
func (s *Service) Activate(ctx context.Context, in ActivateInput) (Session, error) {
	u, err := s.Confirm(ctx, in.UserID, in.Code)
	if err != nil {
		return Session{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = u.Name
	}

	now := s.now().UTC()
	err = s.users.Activate(ctx, user.Activation{
		UserID:       u.ID,
		Code:         in.Code,
		Name:         name,
		PasswordHash: hash,
		At:           now,
	})
	if err != nil {
		return Session{}, err
	}

	u.Name = name
	u.Status = user.StatusCompleted
	u.PasswordHash = hash

	s.log.InfoContext(ctx, "invitation activated", "user_id", u.ID)
	return s.issue(u)
}

func (s *Service) sendInvitation(ctx context.Context, u user.User) {
	err := s.notifier.SendInvitation(ctx, notifications.InvitationInput{
		Email:     u.Email,
		Name:      u.Name,
		Role:      string(u.Role),
		Link:      s.activationLink(u.ID, u.ActivationCode),
		ExpiresAt: *u.InvitationExpiryTime,
	})
	if err != nil {
		s.log.WarnContext(ctx, "invitation notification failed", "user_id", u.ID, "err", err)
	}
}

func (s *Service) activationLink(userID, code string) string {
	base := strings.TrimRight(s.activationURL, "/")
	return base + "/" + url.PathEscape(userID) + "/" + url.PathEscape(code)
}
