// Package availability derives bookable time slots from a provider's
// shift, a service's duration, the booking ledger, and the wall clock.
// It owns the booking-window policy: blocked weekday, booking horizon,
// and the same-day lead-time buffer.
package availability

import (
	"fmt"
	"time"

	"github.com/sharpfade/booking-platform/internal/catalog"
	"github.com/sharpfade/booking-platform/pkg/civil"
	"github.com/sharpfade/booking-platform/pkg/logging"
)

// SlotStatus classifies a candidate slot.
type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
	// SlotTooSoon marks a same-day slot starting inside the lead-time
	// buffer. It is never bookable but stays visible.
	SlotTooSoon SlotStatus = "too_soon"
)

// Slot is a candidate appointment interval. Derived on demand, never
// stored.
type Slot struct {
	Start  civil.TimeOfDay `json:"start"`
	End    civil.TimeOfDay `json:"end"`
	Status SlotStatus      `json:"status"`
}

// Rules is the booking-window policy. Policy is fixed by the shop, not
// data-driven per provider.
type Rules struct {
	// BufferMinutes is the minimum lead time before a same-day slot.
	BufferMinutes int
	// HorizonDays bounds how far ahead a booking may be made.
	HorizonDays int
	// BlockedWeekday is the weekly closing day.
	BlockedWeekday time.Weekday
}

// DefaultRules returns the shop policy: one hour of lead time, a 30-day
// horizon, closed Saturdays.
func DefaultRules() Rules {
	return Rules{
		BufferMinutes:  60,
		HorizonDays:    30,
		BlockedWeekday: time.Saturday,
	}
}

// PolicyError reports a structural rejection of a whole date: the day is
// blocked or outside the horizon. Unlike a conflict it cannot be retried
// on the same date.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("availability: %s", e.Reason)
}

// BookingSource is the ledger view the engine needs.
type BookingSource interface {
	Has(providerID string, date civil.Date, start civil.TimeOfDay) bool
}

// Engine computes slots. Stateless apart from its policy and catalog
// reference; every call takes the clock explicitly so results are
// deterministic under test.
type Engine struct {
	rules   Rules
	catalog *catalog.Catalog
	logger  *logging.Logger
}

// NewEngine constructs an engine over the given catalog.
func NewEngine(rules Rules, cat *catalog.Catalog, logger *logging.Logger) *Engine {
	if cat == nil {
		panic("availability: catalog required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{rules: rules, catalog: cat, logger: logger}
}

// Rules returns the engine's policy.
func (e *Engine) Rules() Rules { return e.rules }

// CheckDate validates a date against the booking-window policy without
// generating slots. Returns nil when the date is bookable in principle.
func (e *Engine) CheckDate(date civil.Date, now time.Time) error {
	if date.Weekday() == e.rules.BlockedWeekday {
		return &PolicyError{Reason: fmt.Sprintf("closed on %ss", e.rules.BlockedWeekday)}
	}
	today := civil.DateOf(now)
	if date.Before(today) {
		return &PolicyError{Reason: "date is in the past"}
	}
	if date.After(today.AddDays(e.rules.HorizonDays)) {
		return &PolicyError{Reason: fmt.Sprintf("date is beyond the %d-day booking horizon", e.rules.HorizonDays)}
	}
	return nil
}

// GenerateSlots enumerates the provider's slots for the service on the
// given date, in chronological order. Slots start at the shift start and
// advance at the service duration; a slot is emitted only when it ends on
// or before the shift end, so a duration that does not divide the shift
// leaves a trailing gap. An empty result with a nil error means the day
// simply has no room, which is a valid outcome; a PolicyError means the
// whole date is rejected.
//
// Status precedence is fixed: a ledger match wins over everything, then
// the same-day lead-time buffer, then available.
func (e *Engine) GenerateSlots(provider catalog.Provider, service catalog.Service, date civil.Date, bookings BookingSource, now time.Time) ([]Slot, error) {
	// Dates are pre-filtered by the API surface, but policy is
	// re-validated here so the engine is safe to call directly.
	if err := e.CheckDate(date, now); err != nil {
		return nil, err
	}

	sameDay := date == civil.DateOf(now)
	cutoff := civil.TimeOfDayOf(now).Add(e.rules.BufferMinutes)

	var slots []Slot
	for t := provider.ShiftStart; !t.Add(service.DurationMinutes).After(provider.ShiftEnd); t = t.Add(service.DurationMinutes) {
		status := SlotAvailable
		switch {
		case bookings.Has(provider.ID, date, t):
			status = SlotBooked
		case sameDay && t.Before(cutoff):
			status = SlotTooSoon
		}
		slots = append(slots, Slot{
			Start:  t,
			End:    t.Add(service.DurationMinutes),
			Status: status,
		})
	}

	e.logger.Debug("slots generated",
		"provider_id", provider.ID,
		"service_id", service.ID,
		"date", date.String(),
		"count", len(slots),
	)
	return slots, nil
}

// HasAnyAvailability is the cheap day-level hint used for calendar
// rendering: does the provider have at least one open slot that day? It
// walks the shift at the minimum service duration, a lower bound, since
// no service fits where the shortest cannot, and short-circuits on the
// first unbooked slot.
//
// Known approximation: the hint deliberately ignores the same-day
// lead-time buffer, so a day whose only open slots are inside the buffer
// still hints as available. The detailed slot view is authoritative.
func (e *Engine) HasAnyAvailability(provider catalog.Provider, date civil.Date, bookings BookingSource, now time.Time) bool {
	if e.CheckDate(date, now) != nil {
		return false
	}
	stride := e.catalog.MinServiceDuration()
	if stride <= 0 {
		return false
	}
	for t := provider.ShiftStart; !t.Add(stride).After(provider.ShiftEnd); t = t.Add(stride) {
		if !bookings.Has(provider.ID, date, t) {
			return true
		}
	}
	return false
}
