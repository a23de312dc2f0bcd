package user

import (
	"errors"
	"time"
)

type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleUser       Role = "user"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleUser:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Logged-in labels shown on the admin user listing.
const (
	LoggedInInvited = "Invited"
	LoggedInActive  = "Active"
	LoggedInUnknown = "Unknown"
)

var (
	ErrNotFound          = errors.New("user not found")
	ErrEmailTaken        = errors.New("email already in use")
	ErrInvitationExpired = errors.New("request expired")
	ErrOTPInvalid        = errors.New("incorrect otp")
	ErrOTPExpired        = errors.New("otp expired")
)

type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone,omitempty"`
	PasswordHash string `json:"-"` // never expose hash in JSON
	Role         Role   `json:"role"`
	Status       Status `json:"status"`
	IsDeleted    bool   `json:"-"`

	// invitation
	IsInvited            bool       `json:"-"`
	InvitedBy            string     `json:"-"`
	ActivationCode       string     `json:"-"`
	InvitationExpiryTime *time.Time `json:"-"`

	// password reset
	OTP       string     `json:"-"`
	OTPExpiry *time.Time `json:"-"`

	SignedUpAt time.Time `json:"signedUpAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// LoggedInStatus derives the label the admin listing shows for a user.
func (u User) LoggedInStatus() string {
	switch {
	case u.IsInvited && u.Status == StatusPending:
		return LoggedInInvited
	case u.Status == StatusCompleted:
		return LoggedInActive
	default:
		return LoggedInUnknown
	}
}

// InvitationUsable reports whether the activation code may still be redeemed at now.
// An already completed invitation is treated exactly like an expired one.
func (u User) InvitationUsable(now time.Time) bool {
	if u.Status != StatusPending || u.InvitationExpiryTime == nil {
		return false
	}
	return !now.After(*u.InvitationExpiryTime)
}

// Activation is the field set written when an invitation is redeemed.
type Activation struct {
	UserID       string
	Code         string
	Name         string
	PasswordHash string
	At           time.Time
}

// Profile is the admin-editable field set.
type Profile struct {
	Name  string
	Email string
	Role  Role
}

type ListFilter struct {
	Query *string // name or email substring
	Role  *Role
	Skip  int
	Limit int
}
