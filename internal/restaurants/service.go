// Package restaurants implements listing management on top of the restaurant store,
// the district lookups and the media store.
package restaurants

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/foodsafety/internal/domain/restaurant"
	"github.com/geocoder89/foodsafety/internal/media"
	"github.com/google/uuid"
)

type Store interface {
	Create(ctx context.Context, rest restaurant.Restaurant) error
	Get(ctx context.Context, id string) (restaurant.Restaurant, error)
	List(ctx context.Context, f restaurant.ListFilter) ([]restaurant.Restaurant, int, error)
	Update(ctx context.Context, id string, fields restaurant.Fields, by restaurant.Author, at time.Time) (restaurant.Restaurant, error)
	SoftDelete(ctx context.Context, id string, by restaurant.Author, at time.Time) error
	AppendImage(ctx context.Context, restaurantID string, img restaurant.Image) error
	MarkImageDeleted(ctx context.Context, restaurantID, imageID string) error
}

type Lookups interface {
	Districts(ctx context.Context) ([]restaurant.District, error)
	District(ctx context.Context, ref string) (restaurant.District, error)
	Circles(ctx context.Context) ([]restaurant.Circle, error)
	Types(ctx context.Context) ([]restaurant.TypeOption, error)
}

type Service struct {
	store    Store
	lookups  Lookups
	media    media.Store
	maxBytes int64
	now      func() time.Time
	log      *slog.Logger
}

func NewService(store Store, lookups Lookups, mediaStore media.Store, maxBytes int64, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:    store,
		lookups:  lookups,
		media:    mediaStore,
		maxBytes: maxBytes,
		now:      time.Now,
		log:      log,
	}
}

// WithClock is used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

func (s *Service) Create(ctx context.Context, req restaurant.CreateRequest, by restaurant.Author) (restaurant.Restaurant, error) {
	fields, err := s.fields(ctx, req.Name, req.Description, req.Type, req.Circle, req.District,
		req.Latitude, req.Longitude, req.Rating, req.Logo, req.IsNewLogo)
	if err != nil {
		return restaurant.Restaurant{}, err
	}

	rest := restaurant.Restaurant{
		ID:            uuid.NewString(),
		Name:          fields.Name,
		Description:   fields.Description,
		Type:          fields.Type,
		Circle:        fields.Circle,
		DistrictID:    fields.DistrictID,
		District:      fields.District,
		Location:      fields.Location,
		Status:        restaurant.StatusOpen,
		Logo:          fields.Logo,
		Images:        []restaurant.Image{},
		Rating:        fields.Rating,
		CreatedAt:     s.now().UTC(),
		CreatedBy:     by.ID,
		CreatedByName: by.Name,
	}

	if err := s.store.Create(ctx, rest); err != nil {
		return restaurant.Restaurant{}, err
	}

	s.log.InfoContext(ctx, "restaurant created", "restaurant_id", rest.ID, "created_by", by.ID)
	return rest, nil
}

// Update replaces the mutable fields and then appends any new base64 images, so a
// failed field write leaves the image list untouched.
func (s *Service) Update(ctx context.Context, id string, req restaurant.UpdateRequest, by restaurant.Author) (restaurant.Restaurant, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return restaurant.Restaurant{}, err
	}

	fields, err := s.fields(ctx, req.Name, req.Description, req.Type, req.Circle, req.District,
		req.Latitude, req.Longitude, req.Rating, req.Logo, req.IsNewLogo)
	if err != nil {
		return restaurant.Restaurant{}, err
	}

	objs := make([]media.Object, 0, len(req.Images))
	for _, raw := range req.Images {
		obj, err := media.DecodeDataURI(raw, s.maxBytes)
		if err != nil {
			return restaurant.Restaurant{}, err
		}
		objs = append(objs, obj)
	}

	updated, err := s.store.Update(ctx, id, fields, by, s.now().UTC())
	if err != nil || len(objs) == 0 {
		return updated, err
	}

	for _, obj := range objs {
		if _, err := s.addImage(ctx, id, obj); err != nil {
			return restaurant.Restaurant{}, err
		}
	}

	return s.store.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string, by restaurant.Author) error {
	if err := s.store.SoftDelete(ctx, id, by, s.now().UTC()); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "restaurant deleted", "restaurant_id", id, "deleted_by", by.ID)
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (restaurant.Restaurant, error) {
	return s.store.Get(ctx, id)
}

// List clamps paging before handing the filter to the store.
func (s *Service) List(ctx context.Context, f restaurant.ListFilter) ([]restaurant.Restaurant, int, error) {
	if f.Skip < 0 {
		f.Skip = 0
	}
	switch {
	case f.Limit <= 0:
		f.Limit = restaurant.DefaultListLimit
	case f.Limit > restaurant.MaxListLimit:
		f.Limit = restaurant.MaxListLimit
	}
	return s.store.List(ctx, f)
}

// UploadImage validates raw bytes, stores them and appends them to the restaurant.
func (s *Service) UploadImage(ctx context.Context, restaurantID string, data []byte) (restaurant.Image, error) {
	if _, err := s.store.Get(ctx, restaurantID); err != nil {
		return restaurant.Image{}, err
	}

	obj, err := media.Inspect(data, s.maxBytes)
	if err != nil {
		return restaurant.Image{}, err
	}

	return s.addImage(ctx, restaurantID, obj)
}

func (s *Service) DeleteImage(ctx context.Context, restaurantID, imageID string) error {
	return s.store.MarkImageDeleted(ctx, restaurantID, imageID)
}

func (s *Service) Districts(ctx context.Context) ([]restaurant.District, error) {
	return s.lookups.Districts(ctx)
}

func (s *Service) Circles(ctx context.Context) ([]restaurant.Circle, error) {
	return s.lookups.Circles(ctx)
}

func (s *Service) Types(ctx context.Context) ([]restaurant.TypeOption, error) {
	return s.lookups.Types(ctx)
}

func (s *Service) addImage(ctx context.Context, restaurantID string, obj media.Object) (restaurant.Image, error) {
	url, err := media.Save(ctx, s.media, media.PhotoPrefix, obj)
	if err != nil {
		return restaurant.Image{}, fmt.Errorf("store image: %w", err)
	}

	img := restaurant.Image{ID: uuid.NewString(), URL: url}
	if err := s.store.AppendImage(ctx, restaurantID, img); err != nil {
		return restaurant.Image{}, err
	}
	return img, nil
}

func (s *Service) fields(
	ctx context.Context,
	name, description string,
	typ restaurant.Type,
	circle, districtRef string,
	lat, lon float64,
	rating int,
	logo string,
	isNewLogo bool,
) (restaurant.Fields, error) {
	district, err := s.lookups.District(ctx, strings.TrimSpace(districtRef))
	if err != nil {
		return restaurant.Fields{}, err
	}

	if isNewLogo && logo != "" {
		obj, err := media.DecodeDataURI(logo, s.maxBytes)
		if err != nil {
			return restaurant.Fields{}, err
		}
		logo, err = media.Save(ctx, s.media, media.LogoPrefix, obj)
		if err != nil {
			return restaurant.Fields{}, fmt.Errorf("store logo: %w", err)
		}
	}

	return restaurant.Fields{
		Name:        strings.TrimSpace(name),
		Description: description,
		Type:        typ,
		Circle:      circle,
		DistrictID:  district.ID,
		District:    district.Name,
		Location:    restaurant.NewPoint(lat, lon),
		Logo:        logo,
		Rating:      rating,
	}, nil
}
