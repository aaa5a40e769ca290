package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dharmasatrya/storefront/internal/contact"
	"github.com/dharmasatrya/storefront/internal/events"
	"github.com/dharmasatrya/storefront/internal/form"
	"github.com/dharmasatrya/storefront/internal/models"
	"github.com/dharmasatrya/storefront/internal/session"
	"github.com/dharmasatrya/storefront/internal/storage"
	"github.com/dharmasatrya/storefront/internal/upstream"
)

type fakeBackend struct {
	mu       sync.Mutex
	searches []url.Values
	contacts []models.ContactMessage
}

func (f *fakeBackend) SearchPackages(ctx context.Context, params url.Values) (*models.PackagePage, error) {
	f.mu.Lock()
	f.searches = append(f.searches, params)
	f.mu.Unlock()

	return &models.PackagePage{
		Data: []models.Package{
			{ID: "1", Title: "Bariloche Nieve", Location: "Río Negro", Price: 2500, Nights: 7},
			{ID: "2", Title: "Escapada a Córdoba", Location: "Córdoba", Price: 900, Nights: 3},
		},
		Pagination: &models.Pagination{CurrentPage: 1, LastPage: 1, PerPage: 12, Total: 2},
	}, nil
}

func (f *fakeBackend) GetPackage(ctx context.Context, id string) (*models.Package, error) {
	if id == "1" {
		return &models.Package{ID: "1", Title: "Bariloche Nieve"}, nil
	}
	return nil, &upstream.StatusError{Endpoint: "package", StatusCode: http.StatusNotFound}
}

func (f *fakeBackend) Locations(ctx context.Context, q string) ([]models.Place, error) {
	return []models.Place{{Code: "BRC", Name: "Bariloche"}}, nil
}

func (f *fakeBackend) Agency(ctx context.Context, id string) (*models.AgencyConfig, error) {
	return &models.AgencyConfig{ID: models.Identifier(id), Name: "Viajes del Sur"}, nil
}

func (f *fakeBackend) SubmitContact(ctx context.Context, msg models.ContactMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contacts = append(f.contacts, msg)
	return nil
}

func (f *fakeBackend) lastSearch() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searches[len(f.searches)-1]
}

type testServer struct {
	echo     *echo.Echo
	backend  *fakeBackend
	hub      *events.Hub
	registry *session.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	backend := &fakeBackend{}
	hub := events.NewHub(zap.NewNop())
	registry := session.NewRegistry(session.Deps{
		Backend:        backend,
		Store:          storage.NewMemoryStore(),
		Notifiers:      hub.For,
		AgencyID:       "15",
		LookupDebounce: 5 * time.Millisecond,
		FilterDebounce: 5 * time.Millisecond,
		Logger:         zap.NewNop(),
	}, time.Minute)
	t.Cleanup(registry.Close)

	h := New(registry, hub, contact.NewService(backend, zap.NewNop()), Options{AgencyID: "15"}, zap.NewNop())

	e := echo.New()
	e.Validator = NewValidator()
	h.Register(e.Group("/api/v1"))
	e.GET("/health", HealthHandler)

	return &testServer{echo: e, backend: backend, hub: hub, registry: registry}
}

func (ts *testServer) do(t *testing.T, method, target, sessionID, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if sessionID != "" {
		req.Header.Set(HeaderSessionID, sessionID)
	}

	rec := httptest.NewRecorder()
	ts.echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSession_IssuedWhenMissing(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/form", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	id := rec.Header().Get(HeaderSessionID)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), CookieSession+"="+id)

	again := ts.do(t, http.MethodGet, "/api/v1/form", id, "")
	assert.Equal(t, id, again.Header().Get(HeaderSessionID))
	assert.Empty(t, again.Header().Get("Set-Cookie"))
	assert.Equal(t, 1, ts.registry.Len())
}

func TestSearch(t *testing.T) {
	ts := newTestServer(t)
	id := uuid.NewString()

	rec := ts.do(t, http.MethodPost, "/api/v1/search", id,
		`{"destino":"Bariloche","fecha_desde":"10/03/2025","adultos":2}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	state := decode[models.SearchState](t, rec)
	assert.Equal(t, "success", state.Status)
	assert.Len(t, state.Packages, 2)
	assert.False(t, state.HasMore)

	params := ts.backend.lastSearch()
	assert.Equal(t, "Bariloche", params.Get("destino"))
	assert.Equal(t, "2025-03-10", params.Get("fecha_desde"))
	assert.Equal(t, "2", params.Get("adultos"))
	assert.Equal(t, "15", params.Get("id"))
	assert.Equal(t, "1", params.Get("page"))
	assert.False(t, params.Has("origen"))
}

func TestSearch_Invalid(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/search", uuid.NewString(), `{"per_page":500}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[models.ErrorResponse](t, rec)
	assert.Equal(t, "lte", resp.Fields["per_page"])

	rec = ts.do(t, http.MethodPost, "/api/v1/search", uuid.NewString(), `{"fecha_desde":"someday"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "departure date is not a valid date")
}

func TestLoadMore_AtLastPage(t *testing.T) {
	ts := newTestServer(t)
	id := uuid.NewString()

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/v1/search", id, `{}`).Code)
	rec := ts.do(t, http.MethodPost, "/api/v1/search/more", id, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, ts.backend.searches, 1)
}

func TestResults_LocalFilters(t *testing.T) {
	ts := newTestServer(t)
	id := uuid.NewString()

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/v1/search", id, `{}`).Code)

	rec := ts.do(t, http.MethodGet, "/api/v1/search?q=cordoba&sort_by=price_asc", id, "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[resultsResponse](t, rec)
	assert.Len(t, resp.Packages, 2)
	require.Len(t, resp.Visible, 1)
	assert.Equal(t, "2", resp.Visible[0].ID.String())
	assert.Equal(t, "USD 900", resp.Visible[0].PriceLabel)
	assert.Equal(t, "price_asc", resp.Filters.SortBy)
}

func TestClearSearch(t *testing.T) {
	ts := newTestServer(t)
	id := uuid.NewString()

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/v1/search", id, `{}`).Code)
	rec := ts.do(t, http.MethodDelete, "/api/v1/search", id, "")

	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[models.SearchState](t, rec)
	assert.Equal(t, "idle", state.Status)
	assert.Empty(t, state.Packages)
}

func TestFormFlow(t *testing.T) {
	ts := newTestServer(t)
	id := uuid.NewString()

	rec := ts.do(t, http.MethodPut, "/api/v1/form", id,
		`{"destination":"Bariloche (BRC)","departureDate":"10/03/2025","travelers":{"adultos":0,"menores":1}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/form/submit", id, "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode[submitResponse](t, rec)
	assert.Contains(t, resp.Form.Errors, form.FieldOrigin)
	assert.Contains(t, resp.Form.Errors, form.FieldTravelers)
	assert.NotContains(t, resp.Form.Errors, form.FieldDestination)
	assert.NotContains(t, resp.Form.Errors, form.FieldDepartureDate)
	assert.Nil(t, resp.Search)
	assert.Empty(t, ts.backend.searches)

	rec = ts.do(t, http.MethodPut, "/api/v1/form", id,
		`{"place":{"field":"origin","place":{"codigo":"BUE","nombre":"Buenos Aires"}},"travelers":{"adultos":2,"menores":1}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[form.Snapshot](t, rec)
	assert.Equal(t, "Buenos Aires (BUE)", snap.Display.Origin)
	assert.Equal(t, "2 adultos y 1 menor", snap.Display.Travelers)

	rec = ts.do(t, http.MethodPost, "/api/v1/form/submit", id, `{"nombre":"nieve"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp = decode[submitResponse](t, rec)
	require.NotNil(t, resp.Search)
	assert.Len(t, resp.Search.Packages, 2)

	params := ts.backend.lastSearch()
	assert.Equal(t, "Buenos Aires (BUE)", params.Get("origen"))
	assert.Equal(t, "nieve", params.Get("nombre"))
	assert.Equal(t, "1", params.Get("menores"))

	rec = ts.do(t, http.MethodDelete, "/api/v1/form", id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[form.Snapshot](t, rec).Values.Origin)
}

func TestBlurField(t *testing.T) {
	ts := newTestServer(t)
	id := uuid.NewString()

	rec := ts.do(t, http.MethodPost, "/api/v1/form/blur", id, `{"field":"departureDate","display":"2025-07-04"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "04/07/2025", decode[form.Snapshot](t, rec).Display.DepartureDate)

	rec = ts.do(t, http.MethodPost, "/api/v1/form/blur", id, `{"field":"returnDate"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPackage(t *testing.T) {
	ts := newTestServer(t)
	id := uuid.NewString()

	rec := ts.do(t, http.MethodGet, "/api/v1/packages/1", id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode[models.PackageEnvelope](t, rec)
	assert.Equal(t, "Bariloche Nieve", env.Data.Title)
	assert.Equal(t, "USD 0", env.Data.PriceLabel)

	rec = ts.do(t, http.MethodGet, "/api/v1/packages/abc123", id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "package not found", decode[models.ErrorResponse](t, rec).Message)

	rec = ts.do(t, http.MethodGet, "/api/v1/packages/%20%20", id, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid package id", decode[models.ErrorResponse](t, rec).Message)

	s, ok := ts.registry.Get(id)
	require.True(t, ok)
	assert.Equal(t, "Bariloche Nieve", s.Detail.State().Active.Title)
}

func TestSelectPackage(t *testing.T) {
	ts := newTestServer(t)
	id := uuid.NewString()

	rec := ts.do(t, http.MethodPost, "/api/v1/packages/select", id, `{"slug":"cataratas","titulo":"Cataratas"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/paquetes-busqueda/cataratas", decode[selectResponse](t, rec).Path)

	rec = ts.do(t, http.MethodPost, "/api/v1/packages/select", id, `{"titulo":"Sin id"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestLocations(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/locations?q=bari", uuid.NewString(), "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[locationsResponse](t, rec)
	assert.True(t, resp.Applied)
	assert.Equal(t, "Bariloche (BRC)", resp.Places[0].Label())
}

func TestTheme(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/theme", uuid.NewString(), "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Viajes del Sur")
}

func TestContact(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/contact", "", `{"name":"Ana","email":"no-es-email","message":"Hola"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	state := decode[contact.ValidationState](t, rec)
	assert.Contains(t, state.Errors, "email")

	rec = ts.do(t, http.MethodPost, "/api/v1/contact", "", `{"name":"Ana","email":"ana@example.com","message":"Hola"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, ts.backend.contacts, 1)
	assert.Equal(t, contact.DefaultSubject, ts.backend.contacts[0].Subject)
}

func TestEvents_PushesSessionEvents(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.echo)
	t.Cleanup(srv.Close)
	id := uuid.NewString()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events?session=" + id
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	assert.Equal(t, id, resp.Header.Get(HeaderSessionID))

	require.Eventually(t, func() bool {
		return ts.hub.Subscribers(id) == 1
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/v1/search", id, `{}`).Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var e events.Event
	require.NoError(t, conn.ReadJSON(&e))
	assert.Equal(t, events.PackagesUpdated, e.Type)

	require.NoError(t, conn.WriteJSON(events.Message{Type: MessageLookup, Field: "destination", Query: "bari"}))
	require.NoError(t, conn.ReadJSON(&e))
	assert.Equal(t, events.LocationsUpdated, e.Type)
}
