package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/dharmasatrya/storefront/internal/contact"
	"github.com/dharmasatrya/storefront/internal/models"
)

type locationsResponse struct {
	Query   string         `json:"query"`
	Places  []models.Place `json:"places"`
	Applied bool           `json:"applied"`
}

// Locations answers a single lookup. Keystroke-driven lookups go through the events
// socket instead, where they are debounced.
func (h *Handler) Locations(c echo.Context) error {
	s := h.session(c)
	q := strings.TrimSpace(c.QueryParam("q"))

	places, applied := s.Lookup.Lookup(c.Request().Context(), q)
	if places == nil {
		places = []models.Place{}
	}
	return c.JSON(http.StatusOK, locationsResponse{Query: q, Places: places, Applied: applied})
}

func (h *Handler) Theme(c echo.Context) error {
	s := h.session(c)
	return c.JSON(http.StatusOK, s.Theme.Theme(c.Request().Context()))
}

func (h *Handler) Contact(c echo.Context) error {
	var req contact.Request
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid_request", "Failed to parse request body: "+err.Error())
	}

	state, err := h.contact.Send(c.Request().Context(), req)
	switch {
	case errors.Is(err, contact.ErrSendFailed):
		return errorJSON(c, http.StatusBadGateway, "upstream_error", err.Error())
	case err != nil:
		return err
	case !state.Valid:
		return c.JSON(http.StatusUnprocessableEntity, state)
	default:
		return c.JSON(http.StatusOK, state)
	}
}
