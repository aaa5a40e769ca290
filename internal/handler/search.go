package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dharmasatrya/storefront/internal/filter"
	"github.com/dharmasatrya/storefront/internal/models"
	"github.com/dharmasatrya/storefront/internal/search"
)

type resultsResponse struct {
	models.SearchState
	Filters models.LocalFilters `json:"filters"`
	Visible []models.Package    `json:"visible"`
}

func (h *Handler) Search(c echo.Context) error {
	s := h.session(c)
	ctx := c.Request().Context()

	var req models.SearchRequest
	if resp := bind(c, &req); resp != nil {
		return c.JSON(resp.Code, resp)
	}

	filters, err := req.Filters(h.opts.Location)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "validation_error", err.Error())
	}
	filters.Extra = h.extra(filters.Extra)

	_, err = s.Search.Search(ctx, filters)
	return h.searchResult(c, s.Search.State(), err)
}

func (h *Handler) LoadMore(c echo.Context) error {
	s := h.session(c)

	_, err := s.Search.LoadMore(c.Request().Context())
	return h.searchResult(c, s.Search.State(), err)
}

// Results returns the current list narrowed by the local filters in the query string.
func (h *Handler) Results(c echo.Context) error {
	s := h.session(c)

	var f models.LocalFilters
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &f); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid_request", "Failed to parse query: "+err.Error())
	}
	s.SetLocalFilters(f)

	state := s.Search.State()
	priced(state.Packages)
	return c.JSON(http.StatusOK, resultsResponse{
		SearchState: state,
		Filters:     f,
		Visible:     priced(filter.Apply(s.Search.Packages(), f)),
	})
}

func (h *Handler) ClearSearch(c echo.Context) error {
	s := h.session(c)
	s.Search.Clear(c.Request().Context())
	return c.JSON(http.StatusOK, s.Search.State())
}

func (h *Handler) searchResult(c echo.Context, state models.SearchState, err error) error {
	priced(state.Packages)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, state)
	case errors.Is(err, search.ErrSuperseded):
		return c.JSON(http.StatusConflict, state)
	case errors.Is(err, search.ErrSearchFailed), errors.Is(err, search.ErrLoadMoreFailed):
		return c.JSON(http.StatusBadGateway, state)
	default:
		return err
	}
}
