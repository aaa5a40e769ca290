// Package session ties the storefront components of one browser tab together and
// keeps them alive between requests.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dharmasatrya/storefront/internal/cache"
	"github.com/dharmasatrya/storefront/internal/debounce"
	"github.com/dharmasatrya/storefront/internal/detail"
	"github.com/dharmasatrya/storefront/internal/events"
	"github.com/dharmasatrya/storefront/internal/filter"
	"github.com/dharmasatrya/storefront/internal/form"
	"github.com/dharmasatrya/storefront/internal/lookup"
	"github.com/dharmasatrya/storefront/internal/models"
	"github.com/dharmasatrya/storefront/internal/search"
	"github.com/dharmasatrya/storefront/internal/storage"
	"github.com/dharmasatrya/storefront/internal/theme"
)

const DefaultFilterDebounce = 250 * time.Millisecond

// Backend is the packages API as every component of a session sees it.
type Backend interface {
	search.Backend
	detail.Backend
	lookup.Backend
	theme.Backend
}

// Deps are shared by every session of a registry.
type Deps struct {
	Backend        Backend
	Store          storage.Store
	Cache          cache.Cache
	Notifiers      func(sessionID string) events.Notifier
	AgencyID       string
	Location       *time.Location
	PageSize       int
	LookupDebounce time.Duration
	FilterDebounce time.Duration
	Logger         *zap.Logger
}

// Navigator records where the tab is and tells it where to go.
type Navigator struct {
	mu       sync.Mutex
	location string
	notifier events.Notifier
}

func NewNavigator(notifier events.Notifier) *Navigator {
	if notifier == nil {
		notifier = events.Discard
	}
	return &Navigator{location: "/", notifier: notifier}
}

func (n *Navigator) Navigate(ctx context.Context, path string) {
	n.mu.Lock()
	n.location = path
	n.mu.Unlock()
	n.notifier.Notify(ctx, events.Event{Type: events.Navigate, Payload: path})
}

func (n *Navigator) Location() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.location
}

// SetLocation is how the tab reports a navigation it did on its own.
func (n *Navigator) SetLocation(path string) {
	if path == "" {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.location = path
}

type Session struct {
	ID        string
	Form      *form.Store
	Search    *search.Client
	Detail    *detail.Client
	Lookup    *lookup.Client
	Theme     *theme.Provider
	Navigator *Navigator

	notifier events.Notifier
	debounce *debounce.Debouncer
	logger   *zap.Logger
	mount    sync.Once

	mu       sync.Mutex
	local    models.LocalFilters
	lastSeen time.Time
}

func New(id string, deps Deps) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("session", id))

	notifier := events.Discard
	if deps.Notifiers != nil {
		notifier = deps.Notifiers(id)
	}
	filterDelay := deps.FilterDebounce
	if filterDelay <= 0 {
		filterDelay = DefaultFilterDebounce
	}
	lookupDelay := deps.LookupDebounce
	if lookupDelay <= 0 {
		lookupDelay = lookup.DefaultDebounce
	}

	store := storage.Namespace(deps.Store, id)
	slots := search.NewSlots(store)
	nav := NewNavigator(notifier)

	return &Session{
		ID:        id,
		Form:      form.NewStore(storage.NewSlot[form.Values](store, storage.KeyPreviousValues), deps.Location, logger),
		Search:    search.NewClient(deps.Backend, slots, notifier, nav, deps.PageSize, logger),
		Detail:    detail.NewClient(deps.Backend, slots, notifier, nav, logger),
		Lookup:    lookup.NewClient(deps.Backend, deps.Cache, lookupDelay, logger),
		Theme:     theme.NewProvider(deps.Backend, deps.Cache, deps.AgencyID, logger),
		Navigator: nav,
		notifier:  notifier,
		debounce:  debounce.New(filterDelay),
		logger:    logger,
		lastSeen:  time.Now(),
	}
}

// Mount restores persisted state. Only the first call does anything.
func (s *Session) Mount(ctx context.Context) {
	s.mount.Do(func() {
		s.Form.Hydrate(ctx)
		s.Search.Restore(ctx)
		s.Detail.Restore(ctx)
		s.logger.Debug("session mounted")
	})
}

// Visible is the current result list after the local filters.
func (s *Session) Visible() []models.Package {
	s.mu.Lock()
	local := s.local
	s.mu.Unlock()
	return filter.Apply(s.Search.Packages(), local)
}

func (s *Session) LocalFilters() models.LocalFilters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local
}

// SetLocalFilters replaces the tag, price and sort filters right away. The free-text
// query is left alone, it goes through SetQuery.
func (s *Session) SetLocalFilters(f models.LocalFilters) {
	s.mu.Lock()
	f.Query = s.local.Query
	s.local = f
	s.mu.Unlock()
}

// SetQuery applies the free-text filter once typing pauses and tells the tab.
func (s *Session) SetQuery(q string) {
	s.debounce.Do(func() {
		s.mu.Lock()
		s.local.Query = q
		s.mu.Unlock()

		s.notifier.Notify(context.Background(), events.Event{
			Type:    events.FilterApplied,
			Payload: len(s.Visible()),
		})
	})
}

// SuggestLocations debounces lookup keystrokes and pushes the candidates to the tab.
func (s *Session) SuggestLocations(field, q string, timeout time.Duration) {
	s.Lookup.Suggest(q, timeout, func(query string, places []models.Place) {
		s.notifier.Notify(context.Background(), events.Event{
			Type: events.LocationsUpdated,
			Payload: map[string]any{
				"field":  field,
				"query":  query,
				"places": places,
			},
		})
	})
}

func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Close cancels everything in flight. Persisted state is kept for the next visit.
func (s *Session) Close() {
	s.debounce.Stop()
	s.Lookup.Close()
	s.Search.Close()
	s.Detail.Close()
}
