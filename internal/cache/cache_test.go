package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/foodsafety/internal/domain/restaurant"
)

func TestMemory_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemory()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"), time.Minute)

	if v, ok, _ := c.Get(ctx, "k"); !ok || string(v) != "v" {
		t.Fatalf("expected hit, got %q %v", v, ok)
	}

	now = now.Add(2 * time.Minute)

	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatalf("expected expired entry to miss")
	}
}

func TestMemory_Delete(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	_ = c.Set(ctx, "a", []byte("1"), time.Minute)
	_ = c.Set(ctx, "b", []byte("2"), time.Minute)
	_ = c.Delete(ctx, "a", "b")

	if _, ok, _ := c.Get(ctx, "a"); ok {
		t.Fatalf("expected a to be deleted")
	}
	if _, ok, _ := c.Get(ctx, "b"); ok {
		t.Fatalf("expected b to be deleted")
	}
}

type countingSource struct {
	districtCalls int
	failTypes     bool
}

func (s *countingSource) Districts(context.Context) ([]restaurant.District, error) {
	s.districtCalls++
	return []restaurant.District{{ID: "kollam", Name: "Kollam"}}, nil
}

func (s *countingSource) District(_ context.Context, ref string) (restaurant.District, error) {
	return restaurant.District{ID: ref, Name: ref}, nil
}

func (s *countingSource) Circles(context.Context) ([]restaurant.Circle, error) {
	return []restaurant.Circle{}, nil
}

func (s *countingSource) Types(context.Context) ([]restaurant.TypeOption, error) {
	if s.failTypes {
		return nil, errors.New("db down")
	}
	return restaurant.DefaultTypes, nil
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("redis down")
}
func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("redis down")
}
func (brokenStore) Delete(context.Context, ...string) error { return nil }

func TestLookups_CachesDistricts(t *testing.T) {
	src := &countingSource{}
	l := NewLookups(src, NewMemory(), time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := l.Districts(ctx)
		if err != nil {
			t.Fatalf("districts: %v", err)
		}
		if len(got) != 1 || got[0].Name != "Kollam" {
			t.Fatalf("unexpected districts %v", got)
		}
	}

	if src.districtCalls != 1 {
		t.Fatalf("expected 1 source call, got %d", src.districtCalls)
	}

	_ = l.Invalidate(ctx)
	_, _ = l.Districts(ctx)

	if src.districtCalls != 2 {
		t.Fatalf("expected reload after invalidate, got %d calls", src.districtCalls)
	}
}

func TestLookups_BrokenCacheFallsThrough(t *testing.T) {
	src := &countingSource{}
	l := NewLookups(src, brokenStore{}, time.Minute, nil)

	got, err := l.Districts(context.Background())
	if err != nil {
		t.Fatalf("expected fallthrough, got %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("unexpected districts %v", got)
	}
}

func TestLookups_SourceErrorPropagates(t *testing.T) {
	l := NewLookups(&countingSource{failTypes: true}, NewMemory(), time.Minute, nil)

	if _, err := l.Types(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLookups_ObserverSeesHitsAndMisses(t *testing.T) {
	var hits, misses int
	l := NewLookups(&countingSource{}, NewMemory(), time.Minute, nil).
		WithObserver(func(_ string, hit bool) {
			if hit {
				hits++
			} else {
				misses++
			}
		})

	_, _ = l.Districts(context.Background())
	_, _ = l.Districts(context.Background())

	if misses != 1 || hits != 1 {
		t.Fatalf("expected 1 miss and 1 hit, got misses=%d hits=%d", misses, hits)
	}
}
