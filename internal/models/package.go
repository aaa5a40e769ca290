package models

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"
)

// Identifier accepts both JSON strings and JSON numbers, the backend is not consistent.
type Identifier string

func (id *Identifier) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = Identifier(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = Identifier(n.String())
	return nil
}

func (id Identifier) String() string {
	return strings.TrimSpace(string(id))
}

type Package struct {
	ID             Identifier `json:"id,omitempty"`
	ExternalID     Identifier `json:"paquete_externo_id,omitempty"`
	Slug           string     `json:"slug,omitempty"`
	Title          string     `json:"titulo"`
	Location       string     `json:"destino,omitempty"`
	Description    string     `json:"descripcion,omitempty"`
	Price          float64    `json:"precio"`
	Currency       string     `json:"moneda,omitempty"`
	Nights         int        `json:"noches,omitempty"`
	Images         []string   `json:"imagenes,omitempty"`
	Tags           []string   `json:"etiquetas,omitempty"`
	Rating         float64    `json:"rating,omitempty"`
	Popular        bool       `json:"destacado,omitempty"`
	BestValueScore float64    `json:"best_value_score,omitempty"`
	PriceLabel     string     `json:"precio_formateado,omitempty"`
}

// Key returns the identifier used for navigation: id, then external id, then slug.
func (p Package) Key() (string, bool) {
	for _, candidate := range []string{p.ID.String(), p.ExternalID.String(), strings.TrimSpace(p.Slug)} {
		if candidate != "" {
			return candidate, true
		}
	}
	return "", false
}

func (p Package) CurrencyOrDefault() string {
	if p.Currency == "" {
		return "USD"
	}
	return strings.ToUpper(p.Currency)
}

type Pagination struct {
	CurrentPage int  `json:"current_page"`
	PerPage     int  `json:"per_page"`
	Total       int  `json:"total"`
	LastPage    int  `json:"last_page"`
	From        *int `json:"from,omitempty"`
	To          *int `json:"to,omitempty"`
}

func (p *Pagination) HasMore() bool {
	return p != nil && p.CurrentPage < p.LastPage
}

// Normalize fills the fallbacks the backend sometimes leaves out.
func (p *Pagination) Normalize(requestedPage int) {
	if p.CurrentPage < 1 {
		p.CurrentPage = requestedPage
	}
	if p.CurrentPage < 1 {
		p.CurrentPage = 1
	}
	if p.LastPage < 1 {
		p.LastPage = 1
	}
	if p.CurrentPage > p.LastPage {
		p.LastPage = p.CurrentPage
	}
}

// Place is a location candidate returned by the lookup endpoint.
type Place struct {
	Code string `json:"codigo"`
	Name string `json:"nombre"`
}

func (p Place) Label() string {
	return p.Name + " (" + p.Code + ")"
}

// DetailRoute is the storefront page that shows a single package.
const DetailRoute = "/paquetes-busqueda"

func DetailPath(id string) string {
	return DetailRoute + "/" + url.PathEscape(id)
}
