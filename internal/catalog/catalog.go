// Package catalog holds the immutable reference data of the shop: the
// services on offer and the barbers who perform them. Loaded once at
// startup, never mutated.
package catalog

import (
	"fmt"

	"github.com/sharpfade/booking-platform/pkg/civil"
)

// Service is a bookable treatment.
type Service struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	PriceCents      int      `json:"price_cents"`
	DurationMinutes int      `json:"duration_minutes"`
	Tags            []string `json:"tags,omitempty"`
}

// Provider is a barber with a daily working shift.
type Provider struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	ShiftStart    civil.TimeOfDay `json:"shift_start"`
	ShiftEnd      civil.TimeOfDay `json:"shift_end"`
	Bio           string          `json:"bio,omitempty"`
	SpecialtyTags []string        `json:"specialty_tags,omitempty"`
}

// ServiceMatch pairs a service with whether the provider can perform it.
// Incompatible services stay enumerable so callers can hint rather than
// hide them.
type ServiceMatch struct {
	Service    Service `json:"service"`
	Compatible bool    `json:"compatible"`
}

// Catalog is a read-only lookup over services and providers.
type Catalog struct {
	services    []Service
	providers   []Provider
	serviceByID map[string]Service
	providerByID map[string]Provider
	minDuration int
}

// New validates the reference data and builds lookup indexes.
func New(services []Service, providers []Provider) (*Catalog, error) {
	c := &Catalog{
		services:     services,
		providers:    providers,
		serviceByID:  make(map[string]Service, len(services)),
		providerByID: make(map[string]Provider, len(providers)),
	}
	for _, s := range services {
		if s.ID == "" {
			return nil, fmt.Errorf("catalog: service %q has empty id", s.Name)
		}
		if _, dup := c.serviceByID[s.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate service id %q", s.ID)
		}
		if s.DurationMinutes <= 0 {
			return nil, fmt.Errorf("catalog: service %q has non-positive duration", s.ID)
		}
		c.serviceByID[s.ID] = s
		if c.minDuration == 0 || s.DurationMinutes < c.minDuration {
			c.minDuration = s.DurationMinutes
		}
	}
	for _, p := range providers {
		if p.ID == "" {
			return nil, fmt.Errorf("catalog: provider %q has empty id", p.Name)
		}
		if _, dup := c.providerByID[p.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate provider id %q", p.ID)
		}
		if !p.ShiftStart.Before(p.ShiftEnd) {
			return nil, fmt.Errorf("catalog: provider %q shift end %s not after start %s", p.ID, p.ShiftEnd, p.ShiftStart)
		}
		c.providerByID[p.ID] = p
	}
	return c, nil
}

// ServiceByID looks up a service. The second return is false when the id
// is unknown; that is not an error condition.
func (c *Catalog) ServiceByID(id string) (Service, bool) {
	s, ok := c.serviceByID[id]
	return s, ok
}

// ProviderByID looks up a provider.
func (c *Catalog) ProviderByID(id string) (Provider, bool) {
	p, ok := c.providerByID[id]
	return p, ok
}

// Services returns all services in catalog order.
func (c *Catalog) Services() []Service {
	out := make([]Service, len(c.services))
	copy(out, c.services)
	return out
}

// Providers returns all providers in catalog order.
func (c *Catalog) Providers() []Provider {
	out := make([]Provider, len(c.providers))
	copy(out, c.providers)
	return out
}

// ServicesForProvider classifies every service against the provider's
// specialty tags, in catalog order. A service is compatible when its tag
// set intersects the provider's. Returns nil for an unknown provider.
func (c *Catalog) ServicesForProvider(providerID string) []ServiceMatch {
	p, ok := c.providerByID[providerID]
	if !ok {
		return nil
	}
	specialties := make(map[string]struct{}, len(p.SpecialtyTags))
	for _, tag := range p.SpecialtyTags {
		specialties[tag] = struct{}{}
	}
	matches := make([]ServiceMatch, 0, len(c.services))
	for _, s := range c.services {
		compatible := false
		for _, tag := range s.Tags {
			if _, ok := specialties[tag]; ok {
				compatible = true
				break
			}
		}
		matches = append(matches, ServiceMatch{Service: s, Compatible: compatible})
	}
	return matches
}

// MinServiceDuration is the shortest service duration in minutes. Used as
// the stride for day-level availability checks, since no service can fit
// where the shortest cannot.
func (c *Catalog) MinServiceDuration() int {
	return c.minDuration
}
