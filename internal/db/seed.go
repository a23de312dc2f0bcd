package db

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/foodsafety/internal/config"
	"github.com/geocoder89/foodsafety/internal/domain/restaurant"
	"github.com/geocoder89/foodsafety/internal/domain/user"
	"github.com/geocoder89/foodsafety/internal/security"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SuperAdminStore interface {
	GetActiveByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, u user.User) error
}

// EnsureSuperAdmin creates the bootstrap super admin when configured and missing.
func EnsureSuperAdmin(ctx context.Context, users SuperAdminStore, hasher security.PasswordHasher, cfg config.Config) (bool, error) {
	if cfg.SuperAdminEmail == "" || cfg.SuperAdminPassword == "" {
		return false, nil
	}

	_, err := users.GetActiveByEmail(ctx, cfg.SuperAdminEmail)

	if err == nil {
		return false, nil
	}

	if !errors.Is(err, user.ErrNotFound) {
		return false, err
	}

	hash, err := hasher.Hash(cfg.SuperAdminPassword)

	if err != nil {
		return false, err
	}

	now := time.Now().UTC()

	err = users.Create(ctx, user.User{
		ID:           uuid.NewString(),
		Name:         cfg.SuperAdminName,
		Email:        cfg.SuperAdminEmail,
		PasswordHash: hash,
		Role:         user.RoleSuperAdmin,
		Status:       user.StatusCompleted,
		SignedUpAt:   now,
		UpdatedAt:    now,
	})

	// another replica won the race
	if errors.Is(err, user.ErrEmailTaken) {
		return false, nil
	}

	return err == nil, err
}

// SeedLookups fills the reference tables; existing rows are left alone.
func SeedLookups(ctx context.Context, pool *pgxpool.Pool) error {
	batch := &pgx.Batch{}

	for _, d := range restaurant.DefaultDistricts {
		batch.Queue(`INSERT INTO districts (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`, d.ID, d.Name)
	}
	for _, c := range restaurant.DefaultCircles {
		batch.Queue(`INSERT INTO circles (name, district) VALUES ($1, $2) ON CONFLICT (district, name) DO NOTHING`, c.Name, c.District)
	}
	for _, t := range restaurant.DefaultTypes {
		batch.Queue(`INSERT INTO restaurant_types (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`, t.ID, t.Name)
	}

	return pool.SendBatch(ctx, batch).Close()
}
