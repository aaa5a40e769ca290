// Package search runs paginated package searches for one session and owns the
// resulting list.
package search

import (
	"context"
	"errors"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"github.com/dharmasatrya/storefront/internal/events"
	"github.com/dharmasatrya/storefront/internal/metrics"
	"github.com/dharmasatrya/storefront/internal/models"
	"github.com/dharmasatrya/storefront/internal/query"
	"github.com/dharmasatrya/storefront/internal/storage"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusSearching Status = "searching"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
)

var (
	ErrSearchFailed   = errors.New("search failed")
	ErrLoadMoreFailed = errors.New("could not load more")
	// ErrSuperseded is returned to a caller whose request was overtaken by a newer
	// search or a Clear. Nothing was applied.
	ErrSuperseded = errors.New("superseded by a newer search")
)

type Backend interface {
	SearchPackages(ctx context.Context, params url.Values) (*models.PackagePage, error)
}

type Navigator interface {
	Navigate(ctx context.Context, path string)
}

// Slots groups the persisted values the client writes.
type Slots struct {
	Results *storage.Slot[[]models.Package]
	Active  *storage.Slot[models.Package]
}

func NewSlots(store storage.Store) Slots {
	return Slots{
		Results: storage.NewSlot[[]models.Package](store, storage.KeySearchResults),
		Active:  storage.NewSlot[models.Package](store, storage.KeyActivePackage),
	}
}

type Client struct {
	backend   Backend
	slots     Slots
	notifier  events.Notifier
	navigator Navigator
	pageSize  int
	logger    *zap.Logger

	// publish keeps persistence and notifications in the order state changed.
	publish sync.Mutex

	mu          sync.Mutex
	gen         uint64
	cancel      context.CancelFunc
	loadCancel  context.CancelFunc
	searching   bool
	loadingMore bool
	status      Status
	filters     models.SearchFilters
	packages    []models.Package
	pagination  *models.Pagination
	err         error
}

func NewClient(backend Backend, slots Slots, notifier events.Notifier, navigator Navigator, pageSize int, logger *zap.Logger) *Client {
	if notifier == nil {
		notifier = events.Discard
	}
	if pageSize <= 0 {
		pageSize = query.DefaultPageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		backend:   backend,
		slots:     slots,
		notifier:  notifier,
		navigator: navigator,
		pageSize:  pageSize,
		logger:    logger.Named("search"),
		status:    StatusIdle,
		packages:  []models.Package{},
	}
}

// Search cancels whatever search is running and requests a first page (or the page set
// in f). The list is replaced on success and cleared on failure.
func (c *Client) Search(ctx context.Context, f models.SearchFilters) ([]models.Package, error) {
	filters := query.WithDefaults(f, c.pageSize)

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.stopLocked()
	previous, previousErr := c.status, c.err
	c.searching = true
	c.status = StatusSearching
	c.err = nil
	reqCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	page, err := c.backend.SearchPackages(reqCtx, query.Build(filters))

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		metrics.SearchesDropped.WithLabelValues("search").Inc()
		return nil, ErrSuperseded
	}
	c.cancel = nil
	c.searching = false

	if ctx.Err() != nil {
		c.status, c.err = previous, previousErr
		c.mu.Unlock()
		return nil, ctx.Err()
	}

	if err != nil {
		c.logger.Warn("search failed", zap.String("query", query.Encode(filters)), zap.Error(err))
		c.status = StatusFailed
		c.err = ErrSearchFailed
		c.packages = []models.Package{}
		c.pagination = nil
		c.mu.Unlock()
		return nil, ErrSearchFailed
	}

	pagination := paginationOf(page, filters.Page)
	c.status = StatusSuccess
	c.filters = filters
	c.packages = clonePackages(page.Data)
	c.pagination = pagination
	list := clonePackages(c.packages)
	c.publish.Lock()
	c.mu.Unlock()

	c.logger.Debug("search applied",
		zap.Int("page", pagination.CurrentPage),
		zap.Int("last_page", pagination.LastPage),
		zap.Int("count", len(list)),
	)
	c.persistResults(ctx, list)
	c.publish.Unlock()

	return clonePackages(list), nil
}

// LoadMore requests the next page and appends it. It does nothing while another request
// is running or when there is no further page.
func (c *Client) LoadMore(ctx context.Context) ([]models.Package, error) {
	c.mu.Lock()
	if c.pagination == nil || c.searching || c.loadingMore || !c.pagination.HasMore() {
		c.mu.Unlock()
		return nil, nil
	}
	gen := c.gen
	filters := c.filters
	filters.Page = c.pagination.CurrentPage + 1
	c.loadingMore = true
	c.err = nil
	reqCtx, cancel := context.WithCancel(ctx)
	c.loadCancel = cancel
	c.mu.Unlock()
	defer cancel()

	page, err := c.backend.SearchPackages(reqCtx, query.Build(filters))

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		metrics.SearchesDropped.WithLabelValues("load_more").Inc()
		return nil, ErrSuperseded
	}
	c.loadCancel = nil
	c.loadingMore = false

	if ctx.Err() != nil {
		c.mu.Unlock()
		return nil, ctx.Err()
	}

	if err != nil {
		c.logger.Warn("load more failed", zap.Int("page", filters.Page), zap.Error(err))
		c.err = ErrLoadMoreFailed
		c.mu.Unlock()
		return nil, ErrLoadMoreFailed
	}

	c.packages = append(c.packages, page.Data...)
	c.pagination = paginationOf(page, filters.Page)
	c.filters = filters
	list := clonePackages(c.packages)
	c.publish.Lock()
	c.mu.Unlock()

	c.persistResults(ctx, list)
	c.publish.Unlock()

	return list, nil
}

// Clear drops the list and its persisted copy, cancelling any running search.
func (c *Client) Clear(ctx context.Context) {
	c.mu.Lock()
	c.gen++
	c.stopLocked()
	c.status = StatusIdle
	c.filters = models.SearchFilters{}
	c.packages = []models.Package{}
	c.pagination = nil
	c.err = nil
	c.publish.Lock()
	c.mu.Unlock()
	defer c.publish.Unlock()

	if c.slots.Results != nil {
		if err := c.slots.Results.Clear(ctx); err != nil {
			c.logger.Warn("failed to clear persisted results", zap.Error(err))
		}
	}
	c.notifier.Notify(ctx, events.Event{Type: events.PackagesUpdated})
}

// ViewDetail makes pkg the active package and navigates to its page. It reports false
// and does nothing when pkg has no usable identifier.
func (c *Client) ViewDetail(ctx context.Context, pkg models.Package) (string, bool) {
	key, ok := pkg.Key()
	if !ok {
		return "", false
	}

	c.publish.Lock()
	if c.slots.Active != nil {
		if err := c.slots.Active.Persist(ctx, pkg); err != nil {
			c.logger.Warn("failed to persist active package", zap.String("package", key), zap.Error(err))
		}
	}
	c.persistResults(ctx, []models.Package{pkg})
	c.publish.Unlock()

	path := models.DetailPath(key)
	if c.navigator != nil {
		c.navigator.Navigate(ctx, path)
	}
	return path, true
}

// Restore seeds an idle client from the persisted list. It reports whether anything
// was restored.
func (c *Client) Restore(ctx context.Context) bool {
	if c.slots.Results == nil {
		return false
	}
	list, found, err := c.slots.Results.LoadPrevious(ctx)
	if err != nil {
		c.logger.Warn("failed to restore results", zap.Error(err))
		return false
	}
	if !found || len(list) == 0 {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusIdle {
		return false
	}
	c.status = StatusSuccess
	c.packages = list
	return true
}

func (c *Client) State() models.SearchState {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := models.SearchState{
		Status:      string(c.status),
		Packages:    clonePackages(c.packages),
		HasMore:     c.pagination.HasMore(),
		LoadingMore: c.loadingMore,
	}
	if c.pagination != nil {
		p := *c.pagination
		state.Pagination = &p
	}
	if c.err != nil {
		state.Error = c.err.Error()
	}
	return state
}

// Packages returns a copy of the current list.
func (c *Client) Packages() []models.Package {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clonePackages(c.packages)
}

// Close cancels anything in flight and stops later results from applying.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.stopLocked()
}

func (c *Client) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.loadCancel != nil {
		c.loadCancel()
		c.loadCancel = nil
	}
	c.searching = false
	c.loadingMore = false
}

// persistResults must be called with publish held.
func (c *Client) persistResults(ctx context.Context, list []models.Package) {
	if c.slots.Results != nil {
		if err := c.slots.Results.Persist(ctx, list); err != nil {
			c.logger.Warn("failed to persist results", zap.Error(err))
		}
	}
	c.notifier.Notify(ctx, events.Event{Type: events.PackagesUpdated, Payload: len(list)})
}

func paginationOf(page *models.PackagePage, requested int) *models.Pagination {
	var p models.Pagination
	if page.Pagination != nil {
		p = *page.Pagination
	}
	p.Normalize(requested)
	return &p
}

func clonePackages(in []models.Package) []models.Package {
	out := make([]models.Package, len(in))
	copy(out, in)
	return out
}
