package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/foodsafety/internal/domain/restaurant"
	"github.com/geocoder89/foodsafety/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LookupsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewLookupsRepo(pool *pgxpool.Pool, prom *observability.Prom) *LookupsRepo {
	return &LookupsRepo{pool: pool, prom: prom}
}

func (r *LookupsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *LookupsRepo) Districts(ctx context.Context) ([]restaurant.District, error) {
	out := []restaurant.District{}

	err := r.observe("lookups.districts", func() error {
		rows, err := r.pool.Query(ctx, `SELECT id, name FROM districts ORDER BY name LIMIT 200`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var d restaurant.District
			if err := rows.Scan(&d.ID, &d.Name); err != nil {
				return err
			}
			out = append(out, d)
		}
		return rows.Err()
	})

	return out, err
}

// District resolves by id first, then by case-insensitive name.
func (r *LookupsRepo) District(ctx context.Context, ref string) (restaurant.District, error) {
	var d restaurant.District

	err := r.observe("lookups.district", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT id, name FROM districts
			WHERE id = $1 OR lower(name) = lower($1)
			ORDER BY (id = $1) DESC
			LIMIT 1`, ref,
		).Scan(&d.ID, &d.Name)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return restaurant.District{}, restaurant.ErrDistrictNotFound
		}
		return restaurant.District{}, err
	}
	return d, nil
}

func (r *LookupsRepo) Circles(ctx context.Context) ([]restaurant.Circle, error) {
	out := []restaurant.Circle{}

	err := r.observe("lookups.circles", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT name, district FROM circles WHERE NOT is_deleted ORDER BY district, name LIMIT 200`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var c restaurant.Circle
			if err := rows.Scan(&c.Name, &c.District); err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})

	return out, err
}

func (r *LookupsRepo) Types(ctx context.Context) ([]restaurant.TypeOption, error) {
	out := []restaurant.TypeOption{}

	err := r.observe("lookups.types", func() error {
		rows, err := r.pool.Query(ctx, `SELECT id, name FROM restaurant_types ORDER BY name LIMIT 100`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var t restaurant.TypeOption
			if err := rows.Scan(&t.ID, &t.Name); err != nil {
				return err
			}
			out = append(out, t)
		}
		return rows.Err()
	})

	return out, err
}
