package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/foodsafety/internal/domain/restaurant"
)

type RestaurantsRepo struct {
	mu    sync.RWMutex
	items map[string]restaurant.Restaurant
}

func NewRestaurantsRepo() *RestaurantsRepo {
	return &RestaurantsRepo{
		items: make(map[string]restaurant.Restaurant),
	}
}

func (r *RestaurantsRepo) Create(_ context.Context, rest restaurant.Restaurant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rest.Images = append([]restaurant.Image(nil), rest.Images...)
	r.items[rest.ID] = rest
	return nil
}

func (r *RestaurantsRepo) Get(_ context.Context, id string) (restaurant.Restaurant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rest, ok := r.items[id]
	if !ok || rest.IsDeleted {
		return restaurant.Restaurant{}, restaurant.ErrNotFound
	}
	return clone(rest), nil
}

func (r *RestaurantsRepo) List(_ context.Context, f restaurant.ListFilter) ([]restaurant.Restaurant, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]restaurant.Restaurant, 0, len(r.items))
	for _, rest := range r.items {
		if f.Matches(rest) {
			matched = append(matched, clone(rest))
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	return page(matched, f.Skip, f.Limit), len(matched), nil
}

func (r *RestaurantsRepo) Update(_ context.Context, id string, fields restaurant.Fields, by restaurant.Author, at time.Time) (restaurant.Restaurant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rest, ok := r.items[id]
	if !ok || rest.IsDeleted {
		return restaurant.Restaurant{}, restaurant.ErrNotFound
	}

	rest.Name = fields.Name
	rest.Description = fields.Description
	rest.Type = fields.Type
	rest.Circle = fields.Circle
	rest.DistrictID = fields.DistrictID
	rest.District = fields.District
	rest.Location = fields.Location
	rest.Logo = fields.Logo
	rest.Rating = fields.Rating
	rest.UpdatedAt = &at
	rest.UpdatedBy = by.ID
	rest.UpdatedByName = by.Name

	r.items[id] = rest
	return clone(rest), nil
}

func (r *RestaurantsRepo) SoftDelete(_ context.Context, id string, by restaurant.Author, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rest, ok := r.items[id]
	if !ok || rest.IsDeleted {
		return restaurant.ErrNotFound
	}

	rest.IsDeleted = true
	rest.UpdatedAt = &at
	rest.UpdatedBy = by.ID
	rest.UpdatedByName = by.Name
	r.items[id] = rest
	return nil
}

func (r *RestaurantsRepo) AppendImage(_ context.Context, restaurantID string, img restaurant.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rest, ok := r.items[restaurantID]
	if !ok || rest.IsDeleted {
		return restaurant.ErrNotFound
	}

	rest.Images = append(rest.Images, img)
	r.items[restaurantID] = rest
	return nil
}

func (r *RestaurantsRepo) MarkImageDeleted(_ context.Context, restaurantID, imageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rest, ok := r.items[restaurantID]
	if !ok || rest.IsDeleted {
		return restaurant.ErrNotFound
	}

	for i := range rest.Images {
		if rest.Images[i].ID == imageID && !rest.Images[i].IsDeleted {
			rest.Images[i].IsDeleted = true
			r.items[restaurantID] = rest
			return nil
		}
	}
	return restaurant.ErrImageNotFound
}

func clone(rest restaurant.Restaurant) restaurant.Restaurant {
	rest.Images = append([]restaurant.Image(nil), rest.Images...)
	rest.Location.Coordinates = append([]float64(nil), rest.Location.Coordinates...)
	return rest
}

// LookupsRepo holds the seeded reference data: districts, circles and restaurant types.
type LookupsRepo struct {
	districts []restaurant.District
	circles   []restaurant.Circle
	types     []restaurant.TypeOption
}

func NewLookupsRepo(districts []restaurant.District, circles []restaurant.Circle, types []restaurant.TypeOption) *LookupsRepo {
	return &LookupsRepo{districts: districts, circles: circles, types: types}
}

func (r *LookupsRepo) Districts(context.Context) ([]restaurant.District, error) {
	return append([]restaurant.District{}, r.districts...), nil
}

// District resolves by id first, then by case-insensitive name.
func (r *LookupsRepo) District(_ context.Context, ref string) (restaurant.District, error) {
	for _, d := range r.districts {
		if d.ID == ref {
			return d, nil
		}
	}
	for _, d := range r.districts {
		if strings.EqualFold(d.Name, ref) {
			return d, nil
		}
	}
	return restaurant.District{}, restaurant.ErrDistrictNotFound
}

func (r *LookupsRepo) Circles(context.Context) ([]restaurant.Circle, error) {
	return append([]restaurant.Circle{}, r.circles...), nil
}

func (r *LookupsRepo) Types(context.Context) ([]restaurant.TypeOption, error) {
	return append([]restaurant.TypeOption{}, r.types...), nil
}
