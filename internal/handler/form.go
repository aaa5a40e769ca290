package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/dharmasatrya/storefront/internal/form"
	"github.com/dharmasatrya/storefront/internal/models"
	"github.com/dharmasatrya/storefront/internal/search"
)

// formUpdate sets only the fields present in the body.
type formUpdate struct {
	Origin        *string                `json:"origin,omitempty"`
	Destination   *string                `json:"destination,omitempty"`
	DepartureDate *string                `json:"departureDate,omitempty"`
	Travelers     *models.TravelerCounts `json:"travelers,omitempty"`
	Place         *placeSelection        `json:"place,omitempty"`
}

type placeSelection struct {
	Field string       `json:"field" validate:"required"`
	Place models.Place `json:"place"`
}

type blurRequest struct {
	Field   string  `json:"field" validate:"required"`
	Display *string `json:"display,omitempty"`
}

type submitRequest struct {
	FreeText string            `json:"nombre,omitempty" validate:"max=120"`
	Extra    map[string]string `json:"extra,omitempty"`
}

type submitResponse struct {
	Form   form.Snapshot       `json:"form"`
	Search *models.SearchState `json:"search,omitempty"`
}

func (h *Handler) GetForm(c echo.Context) error {
	s := h.session(c)
	return c.JSON(http.StatusOK, s.Form.Snapshot())
}

func (h *Handler) UpdateForm(c echo.Context) error {
	s := h.session(c)

	var req formUpdate
	if resp := bind(c, &req); resp != nil {
		return c.JSON(resp.Code, resp)
	}

	if req.Origin != nil {
		s.Form.SetOrigin(*req.Origin)
	}
	if req.Destination != nil {
		s.Form.SetDestination(*req.Destination)
	}
	if req.DepartureDate != nil {
		_ = s.Form.SetDisplay(form.FieldDepartureDate, *req.DepartureDate)
		_ = s.Form.Blur(form.FieldDepartureDate)
	}
	if req.Travelers != nil {
		s.Form.SetTravelerCounts(req.Travelers.Adults, req.Travelers.Minors)
	}
	if req.Place != nil {
		if err := s.Form.SelectPlace(form.Field(req.Place.Field), req.Place.Place); err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_field", err.Error())
		}
	}

	return c.JSON(http.StatusOK, s.Form.Snapshot())
}

func (h *Handler) BlurField(c echo.Context) error {
	s := h.session(c)

	var req blurRequest
	if resp := bind(c, &req); resp != nil {
		return c.JSON(resp.Code, resp)
	}

	field := form.Field(req.Field)
	if req.Display != nil {
		if err := s.Form.SetDisplay(field, *req.Display); err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_field", err.Error())
		}
	}
	if err := s.Form.Blur(field); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid_field", err.Error())
	}

	return c.JSON(http.StatusOK, s.Form.Snapshot())
}

// SubmitForm validates the form and, when it passes, runs the search it describes.
func (h *Handler) SubmitForm(c echo.Context) error {
	s := h.session(c)
	ctx := c.Request().Context()

	var req submitRequest
	if resp := bind(c, &req); resp != nil {
		return c.JSON(resp.Code, resp)
	}

	if !s.Form.Submit(ctx) {
		return c.JSON(http.StatusUnprocessableEntity, submitResponse{Form: s.Form.Snapshot()})
	}

	filters := s.Form.Filters()
	filters.FreeText = strings.TrimSpace(req.FreeText)
	filters.Extra = h.extra(req.Extra)

	_, err := s.Search.Search(ctx, filters)
	state := s.Search.State()
	priced(state.Packages)
	resp := submitResponse{Form: s.Form.Snapshot(), Search: &state}

	switch {
	case err == nil:
		return c.JSON(http.StatusOK, resp)
	case errors.Is(err, search.ErrSuperseded):
		return c.JSON(http.StatusConflict, resp)
	case errors.Is(err, search.ErrSearchFailed):
		return c.JSON(http.StatusBadGateway, resp)
	default:
		return err
	}
}

func (h *Handler) ResetForm(c echo.Context) error {
	s := h.session(c)
	s.Form.Reset()
	return c.JSON(http.StatusOK, s.Form.Snapshot())
}

// extra adds the agency id to caller supplied parameters without overriding it.
func (h *Handler) extra(in map[string]string) map[string]string {
	if h.opts.AgencyID == "" && len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	if h.opts.AgencyID != "" {
		if _, ok := out["id"]; !ok {
			out["id"] = h.opts.AgencyID
		}
	}
	return out
}
