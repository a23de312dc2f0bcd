package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/foodsafety/internal/domain/user"
	"github.com/geocoder89/foodsafety/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const userColumns = `id, name, email, phone, password_hash, role, status, is_deleted,
	is_invited, invited_by, activation_code, invitation_expiry_time, otp, otp_expiry,
	signed_up_at, updated_at`

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Phone,
		&u.PasswordHash,
		&u.Role,
		&u.Status,
		&u.IsDeleted,
		&u.IsInvited,
		&u.InvitedBy,
		&u.ActivationCode,
		&u.InvitationExpiryTime,
		&u.OTP,
		&u.OTPExpiry,
		&u.SignedUpAt,
		&u.UpdatedAt,
	)
	return u, err
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) error {
	err := r.observe("users.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO users (`+userColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
			u.ID, u.Name, u.Email, u.Phone, u.PasswordHash, u.Role, u.Status, u.IsDeleted,
			u.IsInvited, u.InvitedBy, u.ActivationCode, u.InvitationExpiryTime, u.OTP, u.OTPExpiry,
			u.SignedUpAt, u.UpdatedAt,
		)
		return err
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return user.ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *UsersRepo) getOne(ctx context.Context, op, where string, args ...any) (user.User, error) {
	var u user.User

	err := r.observe(op, func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE `+where, args...))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetActiveByEmail(ctx context.Context, email string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_email", `email = $1 AND NOT is_deleted`, email)
}

func (r *UsersRepo) GetActiveByID(ctx context.Context, id string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_id", `id = $1 AND NOT is_deleted`, id)
}

func (r *UsersRepo) GetByActivation(ctx context.Context, id, code string) (user.User, error) {
	if code == "" {
		return user.User{}, user.ErrNotFound
	}
	return r.getOne(ctx, "users.get_by_activation",
		`id = $1 AND activation_code = $2 AND NOT is_deleted`, id, code)
}

// Activate flips a pending invitation to completed. The WHERE clause is the
// compare-and-swap: of two concurrent redemptions only one matches a row.
func (r *UsersRepo) Activate(ctx context.Context, a user.Activation) error {
	var tag pgconn.CommandTag

	err := r.observe("users.activate", func() error {
		var err error
		tag, err = r.pool.Exec(ctx,
			`UPDATE users
				SET status = $4,
					name = $5,
					password_hash = $6,
					updated_at = $7
			WHERE id = $1
				AND activation_code = $2
				AND status = $3
				AND NOT is_deleted
				AND invitation_expiry_time >= $7`,
			a.UserID, a.Code, user.StatusPending, user.StatusCompleted, a.Name, a.PasswordHash, a.At,
		)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return user.ErrInvitationExpired
	}
	return nil
}

func (r *UsersRepo) RotateInvitation(ctx context.Context, id, code string, expiry, at time.Time) error {
	return r.execOne(ctx, "users.rotate_invitation",
		`UPDATE users
			SET activation_code = $2, invitation_expiry_time = $3, updated_at = $4
		WHERE id = $1 AND is_invited AND status = $5 AND NOT is_deleted`,
		id, code, expiry, at, user.StatusPending,
	)
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, id, hash string, at time.Time) error {
	return r.execOne(ctx, "users.update_password",
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1 AND NOT is_deleted`,
		id, hash, at,
	)
}

func (r *UsersRepo) SetOTP(ctx context.Context, id, otp string, expiry time.Time) error {
	return r.execOne(ctx, "users.set_otp",
		`UPDATE users SET otp = $2, otp_expiry = $3 WHERE id = $1 AND NOT is_deleted`,
		id, otp, expiry,
	)
}

// ResetPasswordWithOTP consumes the OTP and sets the new hash in one statement.
func (r *UsersRepo) ResetPasswordWithOTP(ctx context.Context, id, otp, hash string, at time.Time) error {
	var tag pgconn.CommandTag

	err := r.observe("users.reset_password", func() error {
		var err error
		tag, err = r.pool.Exec(ctx,
			`UPDATE users
				SET password_hash = $3, otp = '', otp_expiry = NULL, updated_at = $4
			WHERE id = $1 AND otp <> '' AND otp = $2 AND otp_expiry >= $4 AND NOT is_deleted`,
			id, otp, hash, at,
		)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// find out which condition failed
	u, err := r.GetActiveByID(ctx, id)
	if err != nil {
		return err
	}
	if u.OTP == "" || u.OTP != otp {
		return user.ErrOTPInvalid
	}
	return user.ErrOTPExpired
}

func (r *UsersRepo) List(ctx context.Context, f user.ListFilter) ([]user.User, int, error) {
	conds := []string{"NOT is_deleted"}
	var args []any
	pos := 1

	if f.Query != nil {
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d)", pos, pos))
		args = append(args, "%"+escapeLike(*f.Query)+"%")
		pos++
	}
	if f.Role != nil {
		conds = append(conds, fmt.Sprintf("role = $%d", pos))
		args = append(args, *f.Role)
		pos++
	}

	query := `SELECT ` + userColumns + `, COUNT(*) OVER() AS total FROM users WHERE ` +
		strings.Join(conds, " AND ") +
		fmt.Sprintf(" ORDER BY signed_up_at DESC, id ASC LIMIT $%d OFFSET $%d", pos, pos+1)
	args = append(args, f.Limit, f.Skip)

	out := make([]user.User, 0, f.Limit)
	total := 0

	err := r.observe("users.list", func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var u user.User
			var t int
			err = rows.Scan(
				&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.Role, &u.Status, &u.IsDeleted,
				&u.IsInvited, &u.InvitedBy, &u.ActivationCode, &u.InvitationExpiryTime, &u.OTP, &u.OTPExpiry,
				&u.SignedUpAt, &u.UpdatedAt, &t,
			)
			if err != nil {
				return err
			}
			total = t
			out = append(out, u)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *UsersRepo) UpdateProfile(ctx context.Context, id string, p user.Profile, at time.Time) (user.User, error) {
	var u user.User

	err := r.observe("users.update_profile", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx,
			`UPDATE users SET name = $2, email = $3, role = $4, updated_at = $5
			WHERE id = $1 AND NOT is_deleted
			RETURNING `+userColumns,
			id, p.Name, p.Email, p.Role, at,
		))
		return err
	})

	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return user.User{}, user.ErrNotFound
		case IsUniqueViolation(err):
			return user.User{}, user.ErrEmailTaken
		default:
			return user.User{}, err
		}
	}
	return u, nil
}

func (r *UsersRepo) SoftDelete(ctx context.Context, id string, at time.Time) error {
	return r.execOne(ctx, "users.soft_delete",
		`UPDATE users SET is_deleted = TRUE, updated_at = $2 WHERE id = $1 AND NOT is_deleted`,
		id, at,
	)
}

// execOne runs an update that must touch exactly one live user.
func (r *UsersRepo) execOne(ctx context.Context, op, sql string, args ...any) error {
	var tag pgconn.CommandTag

	err := r.observe(op, func() error {
		var err error
		tag, err = r.pool.Exec(ctx, sql, args...)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
