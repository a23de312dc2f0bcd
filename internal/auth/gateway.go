package auth

import (
	"context"
	"errors"

	"github.com/geocoder89/foodsafety/internal/domain/user"
)

var (
	ErrUnauthenticated = errors.New("could not validate credentials")
	ErrUnauthorized    = errors.New("not authorized to perform this action")
)

type UserByEmail interface {
	GetActiveByEmail(ctx context.Context, email string) (user.User, error)
}

type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}

// Principal is the authenticated caller. Permissions come from the token, not the live role.
type Principal struct {
	UserID      string
	Email       string
	Name        string
	Role        string
	Permissions []string
}

type Gateway struct {
	tokens TokenVerifier
	users  UserByEmail
}

func NewGateway(tokens TokenVerifier, users UserByEmail) *Gateway {
	return &Gateway{tokens: tokens, users: users}
}

// Authenticate resolves a bearer token to a non-deleted user.
// The error keeps the token failure cause wrapped for logging.
func (g *Gateway) Authenticate(ctx context.Context, token string) (Principal, error) {
	claims, err := g.tokens.Verify(token)
	if err != nil {
		return Principal{}, errors.Join(ErrUnauthenticated, err)
	}

	u, err := g.users.GetActiveByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return Principal{}, ErrUnauthenticated
		}
		return Principal{}, err
	}

	return Principal{
		UserID:      u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Role:        claims.Role,
		Permissions: claims.Permissions,
	}, nil
}

func (g *Gateway) Authorize(p Principal, permission string) error {
	if !HasPermission(p.Permissions, permission) {
		return ErrUnauthorized
	}
	return nil
}
