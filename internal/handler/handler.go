package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dharmasatrya/storefront/internal/contact"
	"github.com/dharmasatrya/storefront/internal/events"
	"github.com/dharmasatrya/storefront/internal/models"
	"github.com/dharmasatrya/storefront/internal/session"
	"github.com/dharmasatrya/storefront/pkg/currency"
)

const (
	HeaderSessionID = "X-Session-ID"
	CookieSession   = "storefront_session"
	QuerySession    = "session"
)

type Options struct {
	// AgencyID is sent with every search as the "id" parameter when set.
	AgencyID      string
	Location      *time.Location
	LookupTimeout time.Duration
}

type Handler struct {
	registry *session.Registry
	hub      *events.Hub
	contact  *contact.Service
	opts     Options
	logger   *zap.Logger
}

func New(registry *session.Registry, hub *events.Hub, contactService *contact.Service, opts Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = 5 * time.Second
	}
	return &Handler{
		registry: registry,
		hub:      hub,
		contact:  contactService,
		opts:     opts,
		logger:   logger.Named("handler"),
	}
}

// Register mounts the storefront routes under g.
func (h *Handler) Register(g *echo.Group) {
	g.GET("/form", h.GetForm)
	g.PUT("/form", h.UpdateForm)
	g.POST("/form/blur", h.BlurField)
	g.POST("/form/submit", h.SubmitForm)
	g.DELETE("/form", h.ResetForm)

	g.GET("/locations", h.Locations)

	g.POST("/search", h.Search)
	g.POST("/search/more", h.LoadMore)
	g.GET("/search", h.Results)
	g.DELETE("/search", h.ClearSearch)

	g.POST("/packages/select", h.SelectPackage)
	g.GET("/packages/:id", h.GetPackage)

	g.GET("/theme", h.Theme)
	g.POST("/contact", h.Contact)
	g.GET("/events", h.Events)
}

// session resolves the caller's session from the header, the cookie or the query
// string, and hands a new id back when it had to create one.
func (h *Handler) session(c echo.Context) *session.Session {
	req := c.Request()

	id := req.Header.Get(HeaderSessionID)
	if id == "" {
		if cookie, err := c.Cookie(CookieSession); err == nil {
			id = cookie.Value
		}
	}
	if id == "" {
		id = c.QueryParam(QuerySession)
	}

	s := h.registry.Acquire(req.Context(), id)
	c.Response().Header().Set(HeaderSessionID, s.ID)
	if s.ID != id {
		c.SetCookie(&http.Cookie{
			Name:     CookieSession,
			Value:    s.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return s
}

// priced fills the display price of every package in place.
func priced(pkgs []models.Package) []models.Package {
	for i := range pkgs {
		pkgs[i].PriceLabel = currency.Format(pkgs[i].Price, pkgs[i].CurrencyOrDefault())
	}
	return pkgs
}

func errorJSON(c echo.Context, status int, code, message string) error {
	return c.JSON(status, models.ErrorResponse{
		Error:   code,
		Message: message,
		Code:    status,
	})
}

// Validator plugs go-playground/validator into echo's c.Validate.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

func (v *Validator) Validate(i any) error {
	return v.validate.Struct(i)
}

// bind decodes and validates req. A non-nil result is the response to send instead.
func bind(c echo.Context, req any) *models.ErrorResponse {
	if err := c.Bind(req); err != nil {
		return &models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to parse request body: " + err.Error(),
			Code:    http.StatusBadRequest,
		}
	}
	if c.Echo().Validator == nil {
		return nil
	}
	if err := c.Validate(req); err != nil {
		resp := &models.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			resp.Fields = make(map[string]string, len(verrs))
			for _, fe := range verrs {
				resp.Fields[fe.Field()] = fe.Tag()
			}
		}
		return resp
	}
	return nil
}

func HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
