package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/geocoder89/foodsafety/internal/config"
	"github.com/geocoder89/foodsafety/internal/domain/restaurant"
	"github.com/geocoder89/foodsafety/internal/http/middlewares"
	"github.com/geocoder89/foodsafety/internal/media"
	"github.com/gin-gonic/gin"
)

type RestaurantService interface {
	Create(ctx context.Context, req restaurant.CreateRequest, by restaurant.Author) (restaurant.Restaurant, error)
	Update(ctx context.Context, id string, req restaurant.UpdateRequest, by restaurant.Author) (restaurant.Restaurant, error)
	Delete(ctx context.Context, id string, by restaurant.Author) error
	Get(ctx context.Context, id string) (restaurant.Restaurant, error)
	List(ctx context.Context, f restaurant.ListFilter) ([]restaurant.Restaurant, int, error)
	UploadImage(ctx context.Context, restaurantID string, data []byte) (restaurant.Image, error)
	DeleteImage(ctx context.Context, restaurantID, imageID string) error
	Districts(ctx context.Context) ([]restaurant.District, error)
	Circles(ctx context.Context) ([]restaurant.Circle, error)
	Types(ctx context.Context) ([]restaurant.TypeOption, error)
}

type RestaurantsHandler struct {
	svc       RestaurantService
	maxUpload int64
	log       *slog.Logger
	observe   func(kind string, err error)
}

func NewRestaurantsHandler(svc RestaurantService, maxUpload int64, log *slog.Logger) *RestaurantsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &RestaurantsHandler{
		svc:       svc,
		maxUpload: maxUpload,
		log:       log,
		observe:   func(string, error) {},
	}
}

// WithUploadObserver reports every image upload attempt by kind (file|inline).
func (h *RestaurantsHandler) WithUploadObserver(fn func(kind string, err error)) *RestaurantsHandler {
	h.observe = fn
	return h
}

func authorFrom(ctx *gin.Context) restaurant.Author {
	p, _ := middlewares.PrincipalFromContext(ctx)
	return restaurant.Author{ID: p.UserID, Name: p.Name}
}

func (h *RestaurantsHandler) CreateRestaurant(ctx *gin.Context) {
	var req restaurant.CreateRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 10 * time.Second)
	defer cancel()

	rest, err := h.svc.Create(cctx, req, authorFrom(ctx))
	if req.IsNewLogo {
		h.observe("inline", err)
	}
	if err != nil {
		h.respondWriteError(ctx, err, "Could not create restaurant")
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"id": rest.ID})
}

func (h *RestaurantsHandler) UpdateRestaurant(ctx *gin.Context) {
	var req restaurant.UpdateRequest
	if !BindJSON(ctx, &req) {
		return
	}

	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 15 * time.Second)
	defer cancel()

	_, err := h.svc.Update(cctx, id, req, authorFrom(ctx))
	if req.IsNewLogo || len(req.Images) > 0 {
		h.observe("inline", err)
	}
	if err != nil {
		h.respondWriteError(ctx, err, "Could not update restaurant")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"id": id, "message": "updated"})
}

func (h *RestaurantsHandler) DeleteRestaurant(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3 * time.Second)
	defer cancel()

	if err := h.svc.Delete(cctx, id, authorFrom(ctx)); err != nil {
		h.respondWriteError(ctx, err, "Could not delete restaurant")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"id": id, "status": true, "message": "deleted"})
}

func (h *RestaurantsHandler) UploadImage(ctx *gin.Context) {
	id := ctx.Query("restaurant_id")
	if id == "" {
		RespondBadRequest(ctx, "restaurant_id is required", nil)
		return
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		RespondBadRequest(ctx, "file is required", nil)
		return
	}
	if h.maxUpload > 0 && fh.Size > h.maxUpload {
		RespondError(ctx, http.StatusRequestEntityTooLarge, "payload_too_large", "Image too large", nil)
		return
	}

	f, err := fh.Open()
	if err != nil {
		RespondBadRequest(ctx, "Could not read upload", nil)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		RespondBadRequest(ctx, "Could not read upload", nil)
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 15 * time.Second)
	defer cancel()

	img, err := h.svc.UploadImage(cctx, id, data)
	h.observe("file", err)
	if err != nil {
		h.respondWriteError(ctx, err, "Could not upload image")
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"id": img.ID, "status": true, "message": "uploaded"})
}

func (h *RestaurantsHandler) DeleteImage(ctx *gin.Context) {
	restaurantID := ctx.Query("restaurant_id")
	imageID := ctx.Query("image_id")
	if restaurantID == "" || imageID == "" {
		RespondBadRequest(ctx, "restaurant_id and image_id are required", nil)
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3 * time.Second)
	defer cancel()

	if err := h.svc.DeleteImage(cctx, restaurantID, imageID); err != nil {
		h.respondWriteError(ctx, err, "Could not delete image")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"id": imageID, "status": true, "message": "deleted"})
}

// ListRestaurants serves both surfaces. Only the public one accepts a rating filter.
func (h *RestaurantsHandler) ListRestaurants(public bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		f, ok := parseRestaurantFilter(ctx, public)
		if !ok {
			return
		}

		cctx, cancel := config.WithTimeout(ctx.Request.Context(), 5 * time.Second)
		defer cancel()

		rests, total, err := h.svc.List(cctx, f)
		if err != nil {
			h.log.ErrorContext(ctx.Request.Context(), "list restaurants failed", "err", err)
			RespondInternal(ctx, "Could not list restaurants")
			return
		}

		items := make([]restaurant.ListItem, 0, len(rests))
		for _, r := range rests {
			items = append(items, r.ListItem())
		}

		ctx.Header("X-Total-Count", strconv.Itoa(total))
		RespondJSONWithETag(ctx, http.StatusOK, items)
	}
}

func (h *RestaurantsHandler) GetRestaurant(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3 * time.Second)
	defer cancel()

	rest, err := h.svc.Get(cctx, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, restaurant.ErrNotFound) {
			RespondNotFound(ctx, "Not Found.")
			return
		}
		h.log.ErrorContext(ctx.Request.Context(), "get restaurant failed", "err", err)
		RespondInternal(ctx, "Could not fetch restaurant")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, rest.Detail())
}

func (h *RestaurantsHandler) ListTypes(ctx *gin.Context) {
	h.lookup(ctx, func(c context.Context) (any, error) { return h.svc.Types(c) })
}

func (h *RestaurantsHandler) ListDistricts(ctx *gin.Context) {
	h.lookup(ctx, func(c context.Context) (any, error) { return h.svc.Districts(c) })
}

func (h *RestaurantsHandler) ListCircles(ctx *gin.Context) {
	h.lookup(ctx, func(c context.Context) (any, error) { return h.svc.Circles(c) })
}

func (h *RestaurantsHandler) lookup(ctx *gin.Context, load func(context.Context) (any, error)) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3 * time.Second)
	defer cancel()

	out, err := load(cctx)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "lookup failed", "path", ctx.FullPath(), "err", err)
		RespondInternal(ctx, "Could not load reference data")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, out)
}

func (h *RestaurantsHandler) respondWriteError(ctx *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, restaurant.ErrNotFound), errors.Is(err, restaurant.ErrImageNotFound):
		RespondNotFound(ctx, "Not Found.")
	case errors.Is(err, restaurant.ErrDistrictNotFound):
		RespondBadRequest(ctx, "Unknown district", nil)
	case errors.Is(err, media.ErrEmptyUpload),
		errors.Is(err, media.ErrNotAnImage),
		errors.Is(err, media.ErrBadEncoding):
		RespondBadRequest(ctx, "Invalid image", gin.H{"reason": err.Error()})
	case errors.Is(err, media.ErrTooLarge):
		RespondError(ctx, http.StatusRequestEntityTooLarge, "payload_too_large", "Image too large", nil)
	default:
		h.log.ErrorContext(ctx.Request.Context(), fallback, "err", err)
		RespondInternal(ctx, fallback)
	}
}

func parseRestaurantFilter(ctx *gin.Context, public bool) (restaurant.ListFilter, bool) {
	var f restaurant.ListFilter

	if raw := ctx.Query("restaurant_type"); raw != "" {
		t := restaurant.Type(strings.ToLower(raw))
		if !t.IsValid() {
			RespondBadRequest(ctx, "Invalid query parameter", gin.H{"restaurant_type": "must be one of bakery, juicery, restaurant"})
			return f, false
		}
		f.Type = &t
	}

	if v := strings.TrimSpace(ctx.Query("district")); v != "" {
		f.District = &v
	}
	if v := strings.TrimSpace(ctx.Query("circle")); v != "" {
		f.Circle = &v
	}
	if v := strings.TrimSpace(ctx.Query("query")); v != "" {
		f.Query = &v
	}

	if public {
		if raw := ctx.Query("rating"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				RespondBadRequest(ctx, "Invalid query parameter", gin.H{"rating": "must be an integer"})
				return f, false
			}
			f.Rating = &v
		}
	}

	var ok bool
	if f.Skip, f.Limit, ok = parsePaging(ctx, restaurant.DefaultListLimit); !ok {
		return f, false
	}

	return f, true
}
