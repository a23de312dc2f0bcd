package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/geocoder89/foodsafety/internal/domain/restaurant"
)

type LookupSource interface {
	Districts(ctx context.Context) ([]restaurant.District, error)
	District(ctx context.Context, ref string) (restaurant.District, error)
	Circles(ctx context.Context) ([]restaurant.Circle, error)
	Types(ctx context.Context) ([]restaurant.TypeOption, error)
}

const (
	keyDistricts = "lookups:v1:districts"
	keyCircles   = "lookups:v1:circles"
	keyTypes     = "lookups:v1:types"
)

// Lookups serves the reference lists from cache, filling from the source on miss.
// A broken cache degrades to direct source reads.
type Lookups struct {
	src   LookupSource
	store Store
	ttl   time.Duration
	log   *slog.Logger

	observe func(key string, hit bool)
}

func NewLookups(src LookupSource, store Store, ttl time.Duration, log *slog.Logger) *Lookups {
	if log == nil {
		log = slog.Default()
	}
	return &Lookups{src: src, store: store, ttl: ttl, log: log, observe: func(string, bool) {}}
}

// WithObserver reports every cached read as a hit or miss.
func (l *Lookups) WithObserver(fn func(key string, hit bool)) *Lookups {
	l.observe = fn
	return l
}

func (l *Lookups) Districts(ctx context.Context) ([]restaurant.District, error) {
	return cached(ctx, l, keyDistricts, l.src.Districts)
}

// District is not cached; it runs once per restaurant write.
func (l *Lookups) District(ctx context.Context, ref string) (restaurant.District, error) {
	return l.src.District(ctx, ref)
}

func (l *Lookups) Circles(ctx context.Context) ([]restaurant.Circle, error) {
	return cached(ctx, l, keyCircles, l.src.Circles)
}

func (l *Lookups) Types(ctx context.Context) ([]restaurant.TypeOption, error) {
	return cached(ctx, l, keyTypes, l.src.Types)
}

func (l *Lookups) Invalidate(ctx context.Context) error {
	return l.store.Delete(ctx, keyDistricts, keyCircles, keyTypes)
}

func cached[T any](ctx context.Context, l *Lookups, key string, load func(context.Context) ([]T, error)) ([]T, error) {
	raw, ok, err := l.store.Get(ctx, key)
	if err != nil {
		l.log.WarnContext(ctx, "lookup cache get failed", "key", key, "err", err)
	}

	if ok {
		var out []T
		if err := json.Unmarshal(raw, &out); err == nil {
			l.observe(key, true)
			return out, nil
		}
		l.log.WarnContext(ctx, "lookup cache entry corrupt", "key", key)
	}

	l.observe(key, false)

	out, err := load(ctx)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(out); err == nil {
		if err := l.store.Set(ctx, key, b, l.ttl); err != nil {
			l.log.WarnContext(ctx, "lookup cache set failed", "key", key, "err", err)
		}
	}

	return out, nil
}
