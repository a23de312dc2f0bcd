package notifications

import (
	"context"
	"time"
)

type InvitationInput struct {
	Email     string
	Name      string
	Role      string
	Link      string
	ExpiresAt time.Time
}

type PasswordResetInput struct {
	Email     string
	Name      string
	OTP       string
	ExpiresAt time.Time
}

type Notifier interface {
	SendInvitation(ctx context.Context, input InvitationInput) error
	SendPasswordResetOTP(ctx context.Context, input PasswordResetInput) error
}
