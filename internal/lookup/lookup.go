// Package lookup resolves partial origin/destination text into place codes.
// Failures never reach the caller: a lookup that cannot be answered yields no
// candidates, and the surrounding form keeps working.
package lookup

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dharmasatrya/storefront/internal/cache"
	"github.com/dharmasatrya/storefront/internal/debounce"
	"github.com/dharmasatrya/storefront/internal/metrics"
	"github.com/dharmasatrya/storefront/internal/models"
	"github.com/dharmasatrya/storefront/internal/upstream"
)

const DefaultDebounce = 250 * time.Millisecond

type Backend interface {
	Locations(ctx context.Context, q string) ([]models.Place, error)
}

type Client struct {
	backend   Backend
	cache     cache.Cache
	debouncer *debounce.Debouncer
	logger    *zap.Logger

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	query   string
	results []models.Place
}

func NewClient(backend Backend, c cache.Cache, delay time.Duration, logger *zap.Logger) *Client {
	if c == nil {
		c = cache.NewNoOpCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		backend:   backend,
		cache:     c,
		debouncer: debounce.New(delay),
		logger:    logger.Named("lookup"),
		results:   []models.Place{},
	}
}

// Lookup supersedes any lookup still in flight. The bool reports whether the returned
// places became the client's current results; a superseded call returns nil, false.
func (c *Client) Lookup(ctx context.Context, query string) ([]models.Place, bool) {
	q := strings.TrimSpace(query)

	c.mu.Lock()
	c.gen++
	gen := c.gen
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if q == "" {
		c.query = ""
		c.results = []models.Place{}
		c.mu.Unlock()
		return []models.Place{}, true
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	places := c.fetch(ctx, q)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || ctx.Err() != nil {
		metrics.SearchesDropped.WithLabelValues("lookup").Inc()
		return nil, false
	}
	c.cancel = nil
	c.query = q
	c.results = places
	return clonePlaces(places), true
}

// Suggest debounces keystrokes and hands fn the results of the last one, unless a
// later lookup superseded it.
func (c *Client) Suggest(query string, timeout time.Duration, fn func(query string, places []models.Place)) {
	c.debouncer.Do(func() {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		if places, ok := c.Lookup(ctx, query); ok {
			fn(query, places)
		}
	})
}

// Results returns the latest applied candidates and the query that produced them.
func (c *Client) Results() (string, []models.Place) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query, clonePlaces(c.results)
}

func (c *Client) Close() {
	c.debouncer.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Client) fetch(ctx context.Context, q string) []models.Place {
	var cached []models.Place
	if c.cache.Get(ctx, cache.NamespaceLocations, q, &cached) {
		return cached
	}

	places, err := c.backend.Locations(ctx, q)
	if err != nil {
		if !upstream.IsCanceled(err) {
			c.logger.Debug("location lookup failed", zap.String("query", q), zap.Error(err))
		}
		return []models.Place{}
	}
	if places == nil {
		places = []models.Place{}
	}

	if err := c.cache.Set(ctx, cache.NamespaceLocations, q, places); err != nil {
		c.logger.Debug("failed to cache locations", zap.Error(err))
	}
	return places
}

func clonePlaces(in []models.Place) []models.Place {
	out := make([]models.Place, len(in))
	copy(out, in)
	return out
}
