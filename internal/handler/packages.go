package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dharmasatrya/storefront/internal/detail"
	"github.com/dharmasatrya/storefront/internal/models"
	"github.com/dharmasatrya/storefront/internal/search"
	"github.com/dharmasatrya/storefront/pkg/currency"
)

type selectResponse struct {
	Path string `json:"path"`
}

// SelectPackage makes a package from the list active and tells the tab where to go.
func (h *Handler) SelectPackage(c echo.Context) error {
	s := h.session(c)

	var pkg models.Package
	if resp := bind(c, &pkg); resp != nil {
		return c.JSON(resp.Code, resp)
	}

	path, ok := s.Search.ViewDetail(c.Request().Context(), pkg)
	if !ok {
		return errorJSON(c, http.StatusUnprocessableEntity, "validation_error", models.ErrInvalidPackageID.Error())
	}
	return c.JSON(http.StatusOK, selectResponse{Path: path})
}

func (h *Handler) GetPackage(c echo.Context) error {
	s := h.session(c)
	if location := c.QueryParam("from"); location != "" {
		s.Navigator.SetLocation(location)
	}

	pkg, err := s.Detail.FetchByID(c.Request().Context(), c.Param("id"))
	switch {
	case err == nil:
		pkg.PriceLabel = currency.Format(pkg.Price, pkg.CurrencyOrDefault())
		return c.JSON(http.StatusOK, models.PackageEnvelope{Data: pkg})
	case errors.Is(err, models.ErrInvalidPackageID):
		return errorJSON(c, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, detail.ErrNotFound):
		return errorJSON(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, detail.ErrFetchFailed):
		return errorJSON(c, http.StatusBadGateway, "upstream_error", err.Error())
	case errors.Is(err, search.ErrSuperseded):
		return errorJSON(c, http.StatusConflict, "superseded", err.Error())
	default:
		return err
	}
}
