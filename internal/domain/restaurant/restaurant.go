package restaurant

import (
	"errors"
	"strings"
	"time"
	"unicode"
)

type Type string

const (
	TypeBakery     Type = "bakery"
	TypeJuicery    Type = "juicery"
	TypeRestaurant Type = "restaurant"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeBakery, TypeJuicery, TypeRestaurant:
		return true
	default:
		return false
	}
}

const StatusOpen = "open"

var (
	ErrNotFound         = errors.New("restaurant not found")
	ErrImageNotFound    = errors.New("image not found")
	ErrDistrictNotFound = errors.New("district not found")
)

type Location struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

func NewPoint(lat, lon float64) Location {
	return Location{Type: "point", Coordinates: []float64{lat, lon}}
}

func (l Location) Latitude() float64 {
	if len(l.Coordinates) < 1 {
		return 0
	}
	return l.Coordinates[0]
}

func (l Location) Longitude() float64 {
	if len(l.Coordinates) < 2 {
		return 0
	}
	return l.Coordinates[1]
}

type Image struct {
	ID        string `json:"id"`
	URL       string `json:"image"`
	IsDeleted bool   `json:"-"`
}

type Restaurant struct {
	ID            string
	Name          string
	Description   string
	Type          Type
	Circle        string
	DistrictID    string
	District      string
	Location      Location
	Status        string
	Logo          string
	Images        []Image
	Rating        int
	CreatedAt     time.Time
	CreatedBy     string
	CreatedByName string
	UpdatedAt     *time.Time
	UpdatedBy     string
	UpdatedByName string
	IsDeleted     bool
}

// Author identifies the operator performing a write.
type Author struct {
	ID   string
	Name string
}

type District struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Circle struct {
	Name     string `json:"name"`
	District string `json:"district"`
}

type TypeOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// with pointers if optional, it will be nil
type ListFilter struct {
	Type     *Type
	District *string // case-insensitive substring
	Circle   *string
	Query    *string // full-text on name
	Rating   *int
	Skip     int
	Limit    int
}

const (
	DefaultListLimit = 40
	MaxListLimit     = 200
)

// Matches evaluates the filter against r. Query terms must each equal a whole word
// of the name, case-insensitively; the SQL store's text search also stems words.
func (f ListFilter) Matches(r Restaurant) bool {
	if r.IsDeleted {
		return false
	}
	if f.Type != nil && r.Type != *f.Type {
		return false
	}
	if f.District != nil && !strings.Contains(strings.ToLower(r.District), strings.ToLower(*f.District)) {
		return false
	}
	if f.Circle != nil && r.Circle != *f.Circle {
		return false
	}
	if f.Rating != nil && r.Rating != *f.Rating {
		return false
	}
	if f.Query != nil {
		words := make(map[string]struct{})
		for _, w := range nameWords(r.Name) {
			words[w] = struct{}{}
		}
		for _, term := range nameWords(*f.Query) {
			if _, ok := words[term]; !ok {
				return false
			}
		}
	}
	return true
}

// nameWords splits s into lower-cased words of letters and digits.
func nameWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

type CreateRequest struct {
	Name        string  `json:"name" binding:"required,min=1,max=200"`
	District    string  `json:"district" binding:"required"`
	Type        Type    `json:"type" binding:"required,oneof=bakery juicery restaurant"`
	Description string  `json:"description" binding:"omitempty,max=4000"`
	Circle      string  `json:"circle" binding:"omitempty,max=200"`
	Latitude    float64 `json:"latitude" binding:"min=-90,max=90"`
	Longitude   float64 `json:"longitude" binding:"min=-180,max=180"`
	Rating      int     `json:"rating" binding:"min=0,max=5"`
	Logo        string  `json:"logo"`
	IsNewLogo   bool    `json:"is_new_logo"`
}

type UpdateRequest struct {
	Name        string   `json:"name" binding:"required,min=1,max=200"`
	District    string   `json:"district" binding:"required"`
	Type        Type     `json:"type" binding:"required,oneof=bakery juicery restaurant"`
	Description string   `json:"description" binding:"omitempty,max=4000"`
	Circle      string   `json:"circle" binding:"omitempty,max=200"`
	Latitude    float64  `json:"latitude" binding:"min=-90,max=90"`
	Longitude   float64  `json:"longitude" binding:"min=-180,max=180"`
	Rating      int      `json:"rating" binding:"min=0,max=5"`
	Logo        string   `json:"logo"`
	IsNewLogo   bool     `json:"is_new_logo"`
	Images      []string `json:"images" binding:"omitempty,max=20"`
}

// Fields is the mutable attribute set persisted on create and update.
type Fields struct {
	Name        string
	Description string
	Type        Type
	Circle      string
	DistrictID  string
	District    string
	Location    Location
	Logo        string
	Rating      int
}

func (r Restaurant) ActiveImages() []Image {
	out := make([]Image, 0, len(r.Images))
	for _, img := range r.Images {
		if !img.IsDeleted {
			out = append(out, img)
		}
	}
	return out
}

type ListItem struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Type      Type    `json:"type"`
	District  string  `json:"district"`
	Circle    string  `json:"circle"`
	Logo      string  `json:"logo"`
	Status    string  `json:"status"`
	Rating    int     `json:"rating"`
	Images    []Image `json:"images"`
	CreatedTS int64   `json:"created_ts"`
	CreatedBy string  `json:"created_by"`
}

type Detail struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	DistrictID    string  `json:"district_id"`
	Logo          string  `json:"logo"`
	District      string  `json:"district"`
	Type          Type    `json:"type"`
	Circle        string  `json:"circle"`
	Status        string  `json:"status"`
	Images        []Image `json:"images"`
	Description   string  `json:"description"`
	Rating        int     `json:"rating"`
	CreatedTS     int64   `json:"created_ts"`
	CreatedBy     string  `json:"created_by"`
	LastUpdatedTS *int64  `json:"last_updated_ts"`
	UpdatedBy     string  `json:"updated_by,omitempty"`
}

func (r Restaurant) ListItem() ListItem {
	return ListItem{
		ID:        r.ID,
		Name:      r.Name,
		Type:      r.Type,
		District:  r.District,
		Circle:    r.Circle,
		Logo:      r.Logo,
		Status:    r.Status,
		Rating:    r.Rating,
		Images:    r.ActiveImages(),
		CreatedTS: r.CreatedAt.UnixMilli(),
		CreatedBy: r.CreatedByName,
	}
}

func (r Restaurant) Detail() Detail {
	d := Detail{
		ID:          r.ID,
		Name:        r.Name,
		Latitude:    r.Location.Latitude(),
		Longitude:   r.Location.Longitude(),
		DistrictID:  r.DistrictID,
		Logo:        r.Logo,
		District:    r.District,
		Type:        r.Type,
		Circle:      r.Circle,
		Status:      r.Status,
		Images:      r.ActiveImages(),
		Description: r.Description,
		Rating:      r.Rating,
		CreatedTS:   r.CreatedAt.UnixMilli(),
		CreatedBy:   r.CreatedByName,
		UpdatedBy:   r.UpdatedByName,
	}
	if r.UpdatedAt != nil {
		ts := r.UpdatedAt.UnixMilli()
		d.LastUpdatedTS = &ts
	}
	return d
}
