// Package theme resolves the white-label presentation values of the storefront.
package theme

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/dharmasatrya/storefront/internal/cache"
	"github.com/dharmasatrya/storefront/internal/models"
)

// DefaultStyle is the last layer of every resolution.
var DefaultStyle = models.Style{
	PrimaryColor:    "#0A4D8C",
	SecondaryColor:  "#F2A900",
	TextColor:       "#1F2937",
	BackgroundColor: "#FFFFFF",
	Font:            "Poppins, sans-serif",
}

// Resolve picks, per attribute, the first non-empty value. Layers go from most to least
// specific: instance override, component default, section theme, agency theme.
// DefaultStyle is always consulted last.
func Resolve(layers ...models.Style) models.Style {
	var out models.Style
	for _, l := range layers {
		out = merge(out, l)
	}
	return merge(out, DefaultStyle)
}

func merge(out, l models.Style) models.Style {
	out.PrimaryColor = first(out.PrimaryColor, l.PrimaryColor)
	out.SecondaryColor = first(out.SecondaryColor, l.SecondaryColor)
	out.TextColor = first(out.TextColor, l.TextColor)
	out.BackgroundColor = first(out.BackgroundColor, l.BackgroundColor)
	out.Font = first(out.Font, l.Font)
	return out
}

func first(current, candidate string) string {
	if current != "" {
		return current
	}
	return candidate
}

type Backend interface {
	Agency(ctx context.Context, id string) (*models.AgencyConfig, error)
}

// Theme is what the storefront renders with.
type Theme struct {
	AgencyID string                  `json:"agency_id"`
	Name     string                  `json:"nombre,omitempty"`
	Logo     string                  `json:"logo,omitempty"`
	Favicon  string                  `json:"favicon,omitempty"`
	Timezone string                  `json:"zona_horaria,omitempty"`
	Style    models.Style            `json:"style"`
	Sections map[string]models.Style `json:"sections,omitempty"`
	Copy     map[string]string       `json:"textos,omitempty"`
	Fallback bool                    `json:"fallback"`
}

// Provider loads the agency configuration once and keeps it. A failed load is not
// remembered, so the next call tries again.
type Provider struct {
	backend  Backend
	cache    cache.Cache
	agencyID string
	logger   *zap.Logger

	mu     sync.Mutex
	config *models.AgencyConfig
}

func NewProvider(backend Backend, c cache.Cache, agencyID string, logger *zap.Logger) *Provider {
	if c == nil {
		c = cache.NewNoOpCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		backend:  backend,
		cache:    c,
		agencyID: agencyID,
		logger:   logger.Named("theme"),
	}
}

// Agency returns the agency configuration and whether it is the real one. The lock is
// not held while fetching; concurrent first calls may each fetch and the first to
// finish is kept.
func (p *Provider) Agency(ctx context.Context) (models.AgencyConfig, bool) {
	if cfg, ok := p.loaded(); ok {
		return cfg, true
	}

	var cfg models.AgencyConfig
	if p.agencyID != "" && p.cache.Get(ctx, cache.NamespaceAgency, p.agencyID, &cfg) {
		return p.keep(&cfg), true
	}

	if p.agencyID == "" || p.backend == nil {
		return models.AgencyConfig{ID: models.Identifier(p.agencyID)}, false
	}

	loaded, err := p.backend.Agency(ctx, p.agencyID)
	if err != nil {
		p.logger.Warn("failed to load agency configuration, using defaults",
			zap.String("agency_id", p.agencyID),
			zap.Error(err),
		)
		return models.AgencyConfig{ID: models.Identifier(p.agencyID)}, false
	}

	if err := p.cache.Set(ctx, cache.NamespaceAgency, p.agencyID, loaded); err != nil {
		p.logger.Debug("failed to cache agency configuration", zap.Error(err))
	}
	return p.keep(loaded), true
}

func (p *Provider) loaded() (models.AgencyConfig, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.config == nil {
		return models.AgencyConfig{}, false
	}
	return *p.config, true
}

func (p *Provider) keep(cfg *models.AgencyConfig) models.AgencyConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.config == nil {
		p.config = cfg
	}
	return *p.config
}

// Style resolves one component of one section.
func (p *Provider) Style(ctx context.Context, section string, override, componentDefault models.Style) models.Style {
	cfg, _ := p.Agency(ctx)
	return Resolve(override, componentDefault, cfg.Sections[section], cfg.Theme)
}

func (p *Provider) Theme(ctx context.Context) Theme {
	cfg, ok := p.Agency(ctx)

	t := Theme{
		AgencyID: cfg.ID.String(),
		Name:     cfg.Name,
		Logo:     cfg.Logo,
		Favicon:  cfg.Favicon,
		Timezone: cfg.Timezone,
		Style:    Resolve(cfg.Theme),
		Copy:     cfg.Copy,
		Fallback: !ok,
	}
	if len(cfg.Sections) > 0 {
		t.Sections = make(map[string]models.Style, len(cfg.Sections))
		for name, s := range cfg.Sections {
			t.Sections[name] = Resolve(s, cfg.Theme)
		}
	}
	return t
}
