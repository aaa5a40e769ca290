package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dharmasatrya/storefront/internal/models"
	"github.com/dharmasatrya/storefront/internal/ratelimit"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig(srv.URL)
	cfg.RetryDelays = []time.Duration{time.Millisecond}
	cfg.RateLimiter = ratelimit.NewEndpointLimiterWithDefaults()
	return NewClient(cfg, zap.NewNop())
}

func TestClient_SearchPackages(t *testing.T) {
	var gotQuery url.Values
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathSearch, r.URL.Path)
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{"data":[{"id":7,"titulo":"Bariloche Nieve","precio":1500}],"pagination":{"current_page":1,"last_page":3,"per_page":12,"total":30}}`))
	}))

	page, err := c.SearchPackages(context.Background(), url.Values{"destino": {"Bariloche"}, "page": {"1"}})
	require.NoError(t, err)

	assert.Equal(t, "Bariloche", gotQuery.Get("destino"))
	require.Len(t, page.Data, 1)
	assert.Equal(t, models.Identifier("7"), page.Data[0].ID)
	require.NotNil(t, page.Pagination)
	assert.Equal(t, 3, page.Pagination.LastPage)
}

func TestClient_SearchPackages_EmptyData(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))

	page, err := c.SearchPackages(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, page.Data)
	assert.Empty(t, page.Data)
	assert.Nil(t, page.Pagination)
}

func TestClient_GetPackage_EscapesID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/get_paquete2/a%2Fb%20c", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{"data":{"slug":"a-b-c","titulo":"X"}}`))
	}))

	pkg, err := c.GetPackage(context.Background(), "a/b c")
	require.NoError(t, err)
	assert.Equal(t, "a-b-c", pkg.Slug)
}

func TestClient_GetPackage_NotFound(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "status 404",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
		},
		{
			name: "missing data",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"data":null}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			_, err := c.GetPackage(context.Background(), "abc123")
			assert.True(t, IsNotFound(err), "got %v", err)
		})
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode([]models.Place{{Code: "BRC", Name: "Bariloche"}})
	}))

	places, err := c.Locations(context.Background(), "bar")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, "Bariloche (BRC)", places[0].Label())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))

	_, err := c.SearchPackages(context.Background(), nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_DecodeError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))

	_, err := c.SearchPackages(context.Background(), nil)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestClient_Canceled(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.SearchPackages(ctx, nil)
	assert.True(t, IsCanceled(err), "got %v", err)
}

func TestClient_SubmitContact(t *testing.T) {
	var got models.ContactMessage
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, PathContact, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))

	err := c.SubmitContact(context.Background(), models.ContactMessage{Name: "Ana", Email: "ana@example.com", Message: "Hola"})
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name)
}

func TestClient_Agency(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/agencias/17", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"id":17,"nombre":"Viajes Sur","tema":{"color_primario":"#003366"}}}`))
	}))

	cfg, err := c.Agency(context.Background(), "17")
	require.NoError(t, err)
	assert.Equal(t, "Viajes Sur", cfg.Name)
	assert.Equal(t, "#003366", cfg.Theme.PrimaryColor)
}
