package refdata

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/hmcts/sscs-hearings-api/internal/platform/config"
)

const (
	defaultVenueCacheTTL = 30 * time.Minute
	defaultVenueCacheMax = 1000
)

// ErrVenueNotFound is returned when no venue matches the EPIMS id.
var ErrVenueNotFound = errors.New("refdata: venue not found")

// VenueSource resolves venues by EPIMS id.
type VenueSource interface {
	LookupVenue(ctx context.Context, epimsID string) (VenueDetails, error)
}

// Provider answers reference lookups from loaded tables. Venue lookups go
// through a TTL cache in front of the venue source.
type Provider struct {
	source     VenueSource
	durations  map[string]HearingDuration
	categories map[string]SessionCategory
	cache      *ristretto.Cache
	ttl        time.Duration
}

// Option customises the provider.
type Option func(*Provider)

// WithVenueSource replaces the table-backed venue source.
func WithVenueSource(source VenueSource) Option {
	return func(p *Provider) {
		if source != nil {
			p.source = source
		}
	}
}

// NewProvider loads the configured tables and builds the venue cache.
func NewProvider(cfg config.ReferenceDataConfig, opts ...Option) (*Provider, error) {
	tables, err := LoadTables(cfg.File)
	if err != nil {
		return nil, err
	}
	return NewProviderFromTables(tables, cfg, opts...)
}

// NewProviderFromTables builds a provider over already decoded tables.
func NewProviderFromTables(tables *Tables, cfg config.ReferenceDataConfig, opts ...Option) (*Provider, error) {
	if tables == nil {
		return nil, errors.New("refdata: tables are required")
	}
	maxItems := int64(cfg.VenueCacheMax)
	if maxItems <= 0 {
		maxItems = defaultVenueCacheMax
	}
	ttl := cfg.VenueCacheTTL
	if ttl <= 0 {
		ttl = defaultVenueCacheTTL
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	p := &Provider{
		source:     newTableVenues(tables.Venues),
		durations:  make(map[string]HearingDuration, len(tables.HearingDurations)),
		categories: make(map[string]SessionCategory, len(tables.SessionCategories)),
		cache:      cache,
		ttl:        ttl,
	}
	for _, d := range tables.HearingDurations {
		p.durations[durationKey(d.BenefitCode, d.IssueCode)] = d
	}
	for _, c := range tables.SessionCategories {
		p.categories[categoryKey(c.BenefitCode, c.IssueCode, c.SecondDoctor, c.FQPM)] = c
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// Venue resolves epimsID, consulting the cache first.
func (p *Provider) Venue(ctx context.Context, epimsID string) (VenueDetails, error) {
	id := strings.TrimSpace(epimsID)
	if id == "" {
		return VenueDetails{}, ErrVenueNotFound
	}
	if cached, ok := p.cache.Get(id); ok {
		if venue, ok := cached.(VenueDetails); ok {
			return venue, nil
		}
	}
	venue, err := p.source.LookupVenue(ctx, id)
	if err != nil {
		return VenueDetails{}, err
	}
	p.cache.SetWithTTL(id, venue, 1, p.ttl)
	return venue, nil
}

// HearingDuration returns the durations listed for benefit and issue.
func (p *Provider) HearingDuration(benefitCode, issueCode string) (HearingDuration, bool) {
	d, ok := p.durations[durationKey(benefitCode, issueCode)]
	return d, ok
}

// SessionCategory returns the session category for the benefit, issue and panel flags.
func (p *Provider) SessionCategory(benefitCode, issueCode string, secondDoctor, fqpm bool) (SessionCategory, bool) {
	c, ok := p.categories[categoryKey(benefitCode, issueCode, secondDoctor, fqpm)]
	return c, ok
}

// Close releases the venue cache.
func (p *Provider) Close() {
	if p != nil && p.cache != nil {
		p.cache.Close()
	}
}

type tableVenues map[string]VenueDetails

func newTableVenues(rows []VenueDetails) tableVenues {
	venues := make(tableVenues, len(rows))
	for _, row := range rows {
		venues[strings.TrimSpace(row.EpimsID)] = row
	}
	return venues
}

func (t tableVenues) LookupVenue(_ context.Context, epimsID string) (VenueDetails, error) {
	venue, ok := t[epimsID]
	if !ok {
		return VenueDetails{}, ErrVenueNotFound
	}
	return venue, nil
}
