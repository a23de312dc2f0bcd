package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/foodsafety/internal/domain/restaurant"
	"github.com/geocoder89/foodsafety/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RestaurantsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewRestaurantsRepo(pool *pgxpool.Pool, prom *observability.Prom) *RestaurantsRepo {
	return &RestaurantsRepo{pool: pool, prom: prom}
}

func (r *RestaurantsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const restaurantColumns = `id, name, description, type, circle, district_id, district,
	latitude, longitude, status, logo, rating,
	created_at, created_by, created_by_name, updated_at, updated_by, updated_by_name, is_deleted`

func scanRestaurant(row pgx.Row, extra ...any) (restaurant.Restaurant, error) {
	var rest restaurant.Restaurant
	var lat, lon float64

	dest := []any{
		&rest.ID,
		&rest.Name,
		&rest.Description,
		&rest.Type,
		&rest.Circle,
		&rest.DistrictID,
		&rest.District,
		&lat,
		&lon,
		&rest.Status,
		&rest.Logo,
		&rest.Rating,
		&rest.CreatedAt,
		&rest.CreatedBy,
		&rest.CreatedByName,
		&rest.UpdatedAt,
		&rest.UpdatedBy,
		&rest.UpdatedByName,
		&rest.IsDeleted,
	}

	err := row.Scan(append(dest, extra...)...)
	if err != nil {
		return restaurant.Restaurant{}, err
	}

	rest.Location = restaurant.NewPoint(lat, lon)
	rest.Images = []restaurant.Image{}
	return rest, nil
}

func (r *RestaurantsRepo) Create(ctx context.Context, rest restaurant.Restaurant) error {
	return r.observe("restaurants.create", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		_, err = tx.Exec(ctx,
			`INSERT INTO restaurants (`+restaurantColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
			rest.ID, rest.Name, rest.Description, rest.Type, rest.Circle, rest.DistrictID, rest.District,
			rest.Location.Latitude(), rest.Location.Longitude(), rest.Status, rest.Logo, rest.Rating,
			rest.CreatedAt, rest.CreatedBy, rest.CreatedByName, rest.UpdatedAt, rest.UpdatedBy, rest.UpdatedByName,
			rest.IsDeleted,
		)
		if err != nil {
			return err
		}

		for i, img := range rest.Images {
			_, err = tx.Exec(ctx,
				`INSERT INTO restaurant_images (id, restaurant_id, position, url, is_deleted, created_at)
				VALUES ($1,$2,$3,$4,$5,$6)`,
				img.ID, rest.ID, i+1, img.URL, img.IsDeleted, rest.CreatedAt,
			)
			if err != nil {
				return err
			}
		}

		return tx.Commit(ctx)
	})
}

func (r *RestaurantsRepo) Get(ctx context.Context, id string) (restaurant.Restaurant, error) {
	var rest restaurant.Restaurant

	err := r.observe("restaurants.get", func() error {
		var err error
		rest, err = scanRestaurant(r.pool.QueryRow(ctx,
			`SELECT `+restaurantColumns+` FROM restaurants WHERE id = $1 AND NOT is_deleted`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return restaurant.Restaurant{}, restaurant.ErrNotFound
		}
		return restaurant.Restaurant{}, err
	}

	images, err := r.imagesFor(ctx, []string{rest.ID})
	if err != nil {
		return restaurant.Restaurant{}, err
	}
	rest.Images = append(rest.Images, images[rest.ID]...)

	return rest, nil
}

// buildListQuery renders the filtered, paginated listing. Soft-deleted rows are always excluded.
func buildListQuery(f restaurant.ListFilter) (string, []any) {
	conds := []string{"NOT is_deleted"}
	var args []any
	pos := 1

	if f.Type != nil {
		conds = append(conds, fmt.Sprintf("type = $%d", pos))
		args = append(args, string(*f.Type))
		pos++
	}
	if f.District != nil {
		conds = append(conds, fmt.Sprintf("district ILIKE $%d", pos))
		args = append(args, "%"+escapeLike(*f.District)+"%")
		pos++
	}
	if f.Circle != nil {
		conds = append(conds, fmt.Sprintf("circle = $%d", pos))
		args = append(args, *f.Circle)
		pos++
	}
	if f.Rating != nil {
		conds = append(conds, fmt.Sprintf("rating = $%d", pos))
		args = append(args, *f.Rating)
		pos++
	}
	if f.Query != nil {
		conds = append(conds, fmt.Sprintf("to_tsvector('english', name) @@ plainto_tsquery('english', $%d)", pos))
		args = append(args, *f.Query)
		pos++
	}

	query := `SELECT ` + restaurantColumns + `, COUNT(*) OVER() AS total FROM restaurants WHERE ` +
		strings.Join(conds, " AND ") +
		fmt.Sprintf(" ORDER BY created_at DESC, id ASC LIMIT $%d OFFSET $%d", pos, pos+1)
	args = append(args, f.Limit, f.Skip)

	return query, args
}

func (r *RestaurantsRepo) List(ctx context.Context, f restaurant.ListFilter) ([]restaurant.Restaurant, int, error) {
	query, args := buildListQuery(f)

	out := make([]restaurant.Restaurant, 0, f.Limit)
	total := 0

	err := r.observe("restaurants.list", func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var t int
			rest, err := scanRestaurant(rows, &t)
			if err != nil {
				return err
			}
			total = t
			out = append(out, rest)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}

	if len(out) == 0 {
		return out, total, nil
	}

	ids := make([]string, len(out))
	for i := range out {
		ids[i] = out[i].ID
	}

	images, err := r.imagesFor(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range out {
		out[i].Images = append(out[i].Images, images[out[i].ID]...)
	}

	return out, total, nil
}

func (r *RestaurantsRepo) imagesFor(ctx context.Context, ids []string) (map[string][]restaurant.Image, error) {
	byRestaurant := make(map[string][]restaurant.Image, len(ids))

	err := r.observe("restaurants.images", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT restaurant_id, id, url, is_deleted
			FROM restaurant_images
			WHERE restaurant_id = ANY($1)
			ORDER BY restaurant_id, position`, ids)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var restaurantID string
			var img restaurant.Image
			if err := rows.Scan(&restaurantID, &img.ID, &img.URL, &img.IsDeleted); err != nil {
				return err
			}
			byRestaurant[restaurantID] = append(byRestaurant[restaurantID], img)
		}
		return rows.Err()
	})

	return byRestaurant, err
}

func (r *RestaurantsRepo) Update(ctx context.Context, id string, fields restaurant.Fields, by restaurant.Author, at time.Time) (restaurant.Restaurant, error) {
	var rest restaurant.Restaurant

	err := r.observe("restaurants.update", func() error {
		var err error
		rest, err = scanRestaurant(r.pool.QueryRow(ctx,
			`UPDATE restaurants
				SET name = $2,
					description = $3,
					type = $4,
					circle = $5,
					district_id = $6,
					district = $7,
					latitude = $8,
					longitude = $9,
					logo = $10,
					rating = $11,
					updated_at = $12,
					updated_by = $13,
					updated_by_name = $14
			WHERE id = $1 AND NOT is_deleted
			RETURNING `+restaurantColumns,
			id, fields.Name, fields.Description, fields.Type, fields.Circle, fields.DistrictID, fields.District,
			fields.Location.Latitude(), fields.Location.Longitude(), fields.Logo, fields.Rating,
			at, by.ID, by.Name,
		))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return restaurant.Restaurant{}, restaurant.ErrNotFound
		}
		return restaurant.Restaurant{}, err
	}

	images, err := r.imagesFor(ctx, []string{rest.ID})
	if err != nil {
		return restaurant.Restaurant{}, err
	}
	rest.Images = append(rest.Images, images[rest.ID]...)

	return rest, nil
}

func (r *RestaurantsRepo) SoftDelete(ctx context.Context, id string, by restaurant.Author, at time.Time) error {
	var tag pgconn.CommandTag

	err := r.observe("restaurants.soft_delete", func() error {
		var err error
		tag, err = r.pool.Exec(ctx,
			`UPDATE restaurants
				SET is_deleted = TRUE, updated_at = $2, updated_by = $3, updated_by_name = $4
			WHERE id = $1 AND NOT is_deleted`,
			id, at, by.ID, by.Name,
		)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return restaurant.ErrNotFound
	}
	return nil
}

// AppendImage adds img after the last existing position.
func (r *RestaurantsRepo) AppendImage(ctx context.Context, restaurantID string, img restaurant.Image) error {
	var tag pgconn.CommandTag

	err := r.observe("restaurants.append_image", func() error {
		var err error
		tag, err = r.pool.Exec(ctx,
			`INSERT INTO restaurant_images (id, restaurant_id, position, url, is_deleted, created_at)
			SELECT $1, r.id,
				COALESCE((SELECT MAX(position) FROM restaurant_images WHERE restaurant_id = r.id), 0) + 1,
				$3, FALSE, NOW()
			FROM restaurants r
			WHERE r.id = $2 AND NOT r.is_deleted`,
			img.ID, restaurantID, img.URL,
		)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return restaurant.ErrNotFound
	}
	return nil
}

func (r *RestaurantsRepo) MarkImageDeleted(ctx context.Context, restaurantID, imageID string) error {
	var exists bool

	err := r.observe("restaurants.exists", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM restaurants WHERE id = $1 AND NOT is_deleted)`,
			restaurantID,
		).Scan(&exists)
	})
	if err != nil {
		return err
	}
	if !exists {
		return restaurant.ErrNotFound
	}

	var tag pgconn.CommandTag

	err = r.observe("restaurants.delete_image", func() error {
		var err error
		tag, err = r.pool.Exec(ctx,
			`UPDATE restaurant_images SET is_deleted = TRUE
			WHERE id = $1 AND restaurant_id = $2 AND NOT is_deleted`,
			imageID, restaurantID,
		)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return restaurant.ErrImageNotFound
	}
	return nil
}
