// Package query turns search filters into the query string of the packages endpoint.
package query

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/dharmasatrya/storefront/internal/dates"
	"github.com/dharmasatrya/storefront/internal/models"
)

const (
	DefaultPageSize = 12

	KeyOrigin      = "origen"
	KeyDestination = "destino"
	KeyDateFrom    = "fecha_desde"
	KeyDateTo      = "fecha_hasta"
	KeyAdults      = "adultos"
	KeyMinors      = "menores"
	KeyFreeText    = "nombre"
	KeyPage        = "page"
	KeyPageSize    = "per_page"
)

var typedKeys = map[string]bool{
	KeyOrigin: true, KeyDestination: true, KeyDateFrom: true, KeyDateTo: true,
	KeyAdults: true, KeyMinors: true, KeyFreeText: true, KeyPage: true, KeyPageSize: true,
}

// WithDefaults returns a copy with page and page size filled in.
func WithDefaults(f models.SearchFilters, pageSize int) models.SearchFilters {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if f.PageSize <= 0 {
		f.PageSize = pageSize
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Extra != nil {
		extra := make(map[string]string, len(f.Extra))
		for k, v := range f.Extra {
			extra[k] = v
		}
		f.Extra = extra
	}
	return f
}

// Build never emits a key whose value is empty.
func Build(f models.SearchFilters) url.Values {
	v := url.Values{}

	set := func(key, value string) {
		value = strings.TrimSpace(value)
		if value != "" {
			v.Set(key, value)
		}
	}

	// Empty, padded and typed keys are dropped.
	for key, value := range f.Extra {
		if key == "" || key != strings.TrimSpace(key) || typedKeys[key] {
			continue
		}
		set(key, value)
	}

	set(KeyOrigin, f.Origin)
	set(KeyDestination, f.Destination)
	if f.DepartureDate != nil && !f.DepartureDate.IsZero() {
		set(KeyDateFrom, dates.ISO(*f.DepartureDate))
	}
	if f.ReturnDate != nil && !f.ReturnDate.IsZero() {
		set(KeyDateTo, dates.ISO(*f.ReturnDate))
	}
	if f.Travelers != nil {
		set(KeyAdults, strconv.Itoa(f.Travelers.Adults))
		set(KeyMinors, strconv.Itoa(f.Travelers.Minors))
	}
	set(KeyFreeText, f.FreeText)
	if f.Page > 0 {
		set(KeyPage, strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 {
		set(KeyPageSize, strconv.Itoa(f.PageSize))
	}

	delete(v, "")
	return v
}

// Encode is Build with keys sorted, so equal filters always encode the same way.
func Encode(f models.SearchFilters) string {
	return Build(f).Encode()
}

func URL(path string, f models.SearchFilters) string {
	encoded := Encode(f)
	if encoded == "" {
		return path
	}
	return path + "?" + encoded
}
