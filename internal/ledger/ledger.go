// Package ledger is the append-only record of committed bookings. It is
// the one mutable shared resource in the system: slot generation reads
// it, and session commits append to it under the ledger's lock so a
// re-check and a write are atomic.
package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sharpfade/booking-platform/pkg/civil"
	"github.com/sharpfade/booking-platform/pkg/logging"
)

var ledgerTracer = otel.Tracer("booking.internal.ledger")

// ErrSlotTaken is returned by AppendIfFree when the slot is already
// committed. It is transient from the caller's point of view: another
// slot can be picked.
var ErrSlotTaken = errors.New("ledger: slot already booked")

// Booking is a committed reservation. Entries are never mutated or
// deleted; cancellation is out of scope.
type Booking struct {
	ProviderID string          `json:"provider_id"`
	Date       civil.Date      `json:"date"`
	StartTime  civil.TimeOfDay `json:"start_time"`
}

type key struct {
	providerID string
	date       civil.Date
	start      civil.TimeOfDay
}

// Ledger holds committed bookings in memory. Safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	entries []Booking
	index   map[key]struct{}
	logger  *logging.Logger
}

// New creates an empty ledger.
func New(logger *logging.Logger) *Ledger {
	if logger == nil {
		logger = logging.Default()
	}
	return &Ledger{
		index:  make(map[key]struct{}),
		logger: logger,
	}
}

// Append records a booking unconditionally. The ledger itself does not
// enforce uniqueness; conflict prevention belongs to slot generation and
// to commit-time re-checks via AppendIfFree.
func (l *Ledger) Append(b Booking) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.append(b)
}

// AppendIfFree records the booking only if no entry exists for the same
// (provider, date, start) key. The check and the write happen under one
// lock, which is what catches the render-to-commit race.
func (l *Ledger) AppendIfFree(ctx context.Context, b Booking) error {
	_, span := ledgerTracer.Start(ctx, "ledger.append_if_free")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.provider_id", b.ProviderID),
		attribute.String("booking.date", b.Date.String()),
		attribute.String("booking.start", b.StartTime.String()),
	)

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.index[key{b.ProviderID, b.Date, b.StartTime}]; taken {
		span.RecordError(ErrSlotTaken)
		return ErrSlotTaken
	}
	l.append(b)
	l.logger.Info("booking appended",
		"provider_id", b.ProviderID,
		"date", b.Date.String(),
		"start", b.StartTime.String(),
	)
	return nil
}

func (l *Ledger) append(b Booking) {
	l.entries = append(l.entries, b)
	l.index[key{b.ProviderID, b.Date, b.StartTime}] = struct{}{}
}

// Has reports whether a booking exists for the exact key.
func (l *Ledger) Has(providerID string, date civil.Date, start civil.TimeOfDay) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.index[key{providerID, date, start}]
	return ok
}

// ForProviderDate returns the provider's bookings on a date, ordered by
// start time.
func (l *Ledger) ForProviderDate(providerID string, date civil.Date) []Booking {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Booking
	for _, b := range l.entries {
		if b.ProviderID == providerID && b.Date == date {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// Len returns the number of committed bookings.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// SeedEntries returns the simulated pre-existing bookings relative to the
// given day: two for Albert that day and one for Ben the day after. They
// make fresh installs render realistic slot grids.
func SeedEntries(today civil.Date) []Booking {
	return []Booking{
		{ProviderID: "albert", Date: today, StartTime: civil.TimeOfDay(10 * 60)},
		{ProviderID: "albert", Date: today, StartTime: civil.TimeOfDay(10*60 + 45)},
		{ProviderID: "ben", Date: today.AddDays(1), StartTime: civil.TimeOfDay(14*60 + 30)},
	}
}
