package models

import (
	"strings"
	"time"

	"github.com/dharmasatrya/storefront/internal/dates"
)

type TravelerCounts struct {
	Adults int `json:"adultos" validate:"gte=0"`
	Minors int `json:"menores" validate:"gte=0"`
}

func (t *TravelerCounts) IsZero() bool {
	return t == nil || (t.Adults == 0 && t.Minors == 0)
}

// SearchFilters is what the results client sends to the packages API.
// Page and PageSize are always set by the time a request is built.
type SearchFilters struct {
	Origin        string            `json:"origen,omitempty"`
	Destination   string            `json:"destino,omitempty"`
	DepartureDate *time.Time        `json:"fecha_desde,omitempty"`
	ReturnDate    *time.Time        `json:"fecha_hasta,omitempty"`
	Travelers     *TravelerCounts   `json:"viajeros,omitempty" validate:"omitempty"`
	FreeText      string            `json:"nombre,omitempty"`
	Page          int               `json:"page,omitempty" validate:"gte=0"`
	PageSize      int               `json:"per_page,omitempty" validate:"gte=0,lte=100"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// LocalFilters narrow the already fetched list without another request.
type LocalFilters struct {
	Query    string   `json:"q,omitempty" query:"q"`
	Tags     []string `json:"tags,omitempty" query:"tags"`
	PriceMin *float64 `json:"price_min,omitempty" query:"price_min"`
	PriceMax *float64 `json:"price_max,omitempty" query:"price_max"`
	SortBy   string   `json:"sort_by,omitempty" query:"sort_by"`
}

// SearchRequest is the body of a direct search. Every field is optional; dates accept
// the formats of dates.Parse.
type SearchRequest struct {
	Origin      string            `json:"origen" validate:"max=120"`
	Destination string            `json:"destino" validate:"max=120"`
	DateFrom    string            `json:"fecha_desde,omitempty"`
	DateTo      string            `json:"fecha_hasta,omitempty"`
	Adults      *int              `json:"adultos,omitempty" validate:"omitempty,gte=0,lte=20"`
	Minors      *int              `json:"menores,omitempty" validate:"omitempty,gte=0,lte=20"`
	FreeText    string            `json:"nombre,omitempty" validate:"max=120"`
	Page        int               `json:"page,omitempty" validate:"gte=0"`
	PerPage     int               `json:"per_page,omitempty" validate:"gte=0,lte=100"`
	Extra       map[string]string `json:"extra,omitempty"`
}

func (r *SearchRequest) Filters(loc *time.Location) (SearchFilters, error) {
	f := SearchFilters{
		Origin:      strings.TrimSpace(r.Origin),
		Destination: strings.TrimSpace(r.Destination),
		FreeText:    strings.TrimSpace(r.FreeText),
		Page:        r.Page,
		PageSize:    r.PerPage,
		Extra:       r.Extra,
	}

	if strings.TrimSpace(r.DateFrom) != "" {
		t, err := dates.Parse(r.DateFrom, loc)
		if err != nil {
			return SearchFilters{}, ErrInvalidDepartureDate
		}
		f.DepartureDate = &t
	}
	if strings.TrimSpace(r.DateTo) != "" {
		t, err := dates.Parse(r.DateTo, loc)
		if err != nil {
			return SearchFilters{}, ErrInvalidReturnDate
		}
		f.ReturnDate = &t
	}

	if r.Adults != nil || r.Minors != nil {
		f.Travelers = &TravelerCounts{}
		if r.Adults != nil {
			f.Travelers.Adults = *r.Adults
		}
		if r.Minors != nil {
			f.Travelers.Minors = *r.Minors
		}
	}
	return f, nil
}

type ValidationError string

func (e ValidationError) Error() string {
	return string(e)
}

const (
	ErrMissingOrigin        ValidationError = "origin is required"
	ErrMissingDestination   ValidationError = "destination is required"
	ErrInvalidDepartureDate ValidationError = "departure date is not a valid date"
	ErrMissingDepartureDate ValidationError = "departure date is required"
	ErrMissingAdult         ValidationError = "at least one adult is required"
	ErrInvalidReturnDate    ValidationError = "return date is not a valid date"
	ErrInvalidPackageID     ValidationError = "invalid package id"
)
