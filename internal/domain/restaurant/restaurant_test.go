package restaurant_test

import (
	"testing"

	"github.com/geocoder89/foodsafety/internal/domain/restaurant"
)

func TestListFilterMatches_Query(t *testing.T) {
	r := restaurant.Restaurant{Name: "Best Bakery & Cafe, Kollam"}

	tests := []struct {
		query string
		want  bool
	}{
		{query: "bakery", want: true},
		{query: "BEST cafe", want: true},
		{query: "kollam,", want: true},
		{query: "bak", want: false},
		{query: "bakery juice", want: false},
		{query: "cafe-kollam", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q := tt.query
			if got := (restaurant.ListFilter{Query: &q}).Matches(r); got != tt.want {
				t.Fatalf("Matches(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestListFilterMatches_ExcludesDeleted(t *testing.T) {
	q := "bakery"
	r := restaurant.Restaurant{Name: "Bakery", IsDeleted: true}

	if (restaurant.ListFilter{Query: &q}).Matches(r) {
		t.Fatal("deleted restaurant must never match")
	}
}
