// Package detail fetches a single package by identifier and makes it the session's
// active package.
package detail

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/dharmasatrya/storefront/internal/events"
	"github.com/dharmasatrya/storefront/internal/models"
	"github.com/dharmasatrya/storefront/internal/search"
	"github.com/dharmasatrya/storefront/internal/upstream"
)

var (
	ErrNotFound    = errors.New("package not found")
	ErrFetchFailed = errors.New("could not find package")
)

type Backend interface {
	GetPackage(ctx context.Context, id string) (*models.Package, error)
}

// Navigator knows the current location as well as how to leave it.
type Navigator interface {
	Navigate(ctx context.Context, path string)
	Location() string
}

type Client struct {
	backend   Backend
	slots     search.Slots
	notifier  events.Notifier
	navigator Navigator
	logger    *zap.Logger

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	loading bool
	active  *models.Package
	err     error
}

func NewClient(backend Backend, slots search.Slots, notifier events.Notifier, navigator Navigator, logger *zap.Logger) *Client {
	if notifier == nil {
		notifier = events.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		backend:   backend,
		slots:     slots,
		notifier:  notifier,
		navigator: navigator,
		logger:    logger.Named("detail"),
	}
}

// FetchByID loads the package and makes it active. A blank id fails locally with
// models.ErrInvalidPackageID. On any failure the active package stays as it was.
func (c *Client) FetchByID(ctx context.Context, id string) (*models.Package, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		c.mu.Lock()
		c.err = models.ErrInvalidPackageID
		c.mu.Unlock()
		return nil, models.ErrInvalidPackageID
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	if c.cancel != nil {
		c.cancel()
	}
	reqCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.loading = true
	c.err = nil
	c.mu.Unlock()
	defer cancel()

	pkg, err := c.backend.GetPackage(reqCtx, id)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return nil, search.ErrSuperseded
	}
	c.cancel = nil
	c.loading = false

	if ctx.Err() != nil {
		c.mu.Unlock()
		return nil, ctx.Err()
	}

	if err != nil {
		if upstream.IsNotFound(err) {
			c.err = ErrNotFound
		} else {
			c.err = ErrFetchFailed
			c.logger.Warn("package fetch failed", zap.String("package", id), zap.Error(err))
		}
		failure := c.err
		c.mu.Unlock()
		return nil, failure
	}

	active := *pkg
	c.active = &active
	c.mu.Unlock()

	if c.slots.Active != nil {
		if err := c.slots.Active.Persist(ctx, active); err != nil {
			c.logger.Warn("failed to persist active package", zap.String("package", id), zap.Error(err))
		}
	}
	if c.slots.Results != nil {
		if err := c.slots.Results.Persist(ctx, []models.Package{active}); err != nil {
			c.logger.Warn("failed to persist results", zap.Error(err))
		}
	}
	c.notifier.Notify(ctx, events.Event{Type: events.PackagesUpdated, Payload: 1})

	if c.navigator != nil && !strings.Contains(c.navigator.Location(), models.DetailRoute) {
		c.navigator.Navigate(ctx, models.DetailPath(id))
	}

	out := active
	return &out, nil
}

// Restore reads the persisted active package when nothing is active yet.
func (c *Client) Restore(ctx context.Context) bool {
	if c.slots.Active == nil {
		return false
	}
	pkg, found, err := c.slots.Active.LoadPrevious(ctx)
	if err != nil {
		c.logger.Warn("failed to restore active package", zap.Error(err))
		return false
	}
	if !found {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return false
	}
	c.active = &pkg
	return true
}

func (c *Client) State() models.DetailState {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := models.DetailState{Loading: c.loading}
	if c.active != nil {
		active := *c.active
		state.Active = &active
	}
	if c.err != nil {
		state.Error = c.err.Error()
	}
	return state
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.loading = false
}
