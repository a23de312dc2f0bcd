package notifications

import (
	"context"
	"log/slog"
)

// LogNotifier stands in for a mail provider. Links and OTPs are only
// written out when reveal is set (local development).
type LogNotifier struct {
	log    *slog.Logger
	reveal bool
}

func NewLogNotifier(log *slog.Logger, reveal bool) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log, reveal: reveal}
}

func (n *LogNotifier) SendInvitation(ctx context.Context, in InvitationInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	attrs := []any{
		"email", in.Email,
		"role", in.Role,
		"expires_at", in.ExpiresAt,
	}
	if n.reveal {
		attrs = append(attrs, "link", in.Link)
	}

	n.log.InfoContext(ctx, "notification.invitation", attrs...)
	return nil
}

func (n *LogNotifier) SendPasswordResetOTP(ctx context.Context, in PasswordResetInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	attrs := []any{
		"email", in.Email,
		"expires_at", in.ExpiresAt,
	}
	if n.reveal {
		attrs = append(attrs, "otp", in.OTP)
	}

	n.log.InfoContext(ctx, "notification.password_reset", attrs...)
	return nil
}
