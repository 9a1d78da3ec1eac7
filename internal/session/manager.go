package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sharpfade/booking-platform/internal/availability"
	"github.com/sharpfade/booking-platform/internal/catalog"
	"github.com/sharpfade/booking-platform/internal/ledger"
	"github.com/sharpfade/booking-platform/internal/observability/metrics"
	"github.com/sharpfade/booking-platform/pkg/civil"
	"github.com/sharpfade/booking-platform/pkg/logging"
)

var sessionTracer = otel.Tracer("booking.internal.session")

// Record is the confirmation returned by a successful commit.
type Record struct {
	BookingID    string          `json:"booking_id"`
	ServiceID    string          `json:"service_id"`
	ServiceName  string          `json:"service_name"`
	ProviderID   string          `json:"provider_id"`
	ProviderName string          `json:"provider_name"`
	Date         civil.Date      `json:"date"`
	StartTime    civil.TimeOfDay `json:"start_time"`
	EndTime      civil.TimeOfDay `json:"end_time"`
	PriceCents   int             `json:"price_cents"`
	CustomerName string          `json:"customer_name"`
}

// Manager owns all live sessions and applies wizard operations to them.
// Operations are synchronous; the manager's lock serializes session
// mutations while the ledger keeps its own lock for the commit-time
// re-check.
type Manager struct {
	catalog *catalog.Catalog
	ledger  *ledger.Ledger
	engine  *availability.Engine
	store   *StateStore
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager constructs a session manager. store and bookingMetrics may
// be nil, which disables snapshot persistence and metrics respectively.
func NewManager(cat *catalog.Catalog, led *ledger.Ledger, eng *availability.Engine, store *StateStore, bookingMetrics *metrics.BookingMetrics, logger *logging.Logger) *Manager {
	return NewManagerWithClock(cat, led, eng, store, bookingMetrics, logger, time.Now)
}

// NewManagerWithClock allows injecting the clock for tests.
func NewManagerWithClock(cat *catalog.Catalog, led *ledger.Ledger, eng *availability.Engine, store *StateStore, bookingMetrics *metrics.BookingMetrics, logger *logging.Logger, clock func() time.Time) *Manager {
	if cat == nil {
		panic("session: catalog required")
	}
	if led == nil {
		panic("session: ledger required")
	}
	if eng == nil {
		panic("session: availability engine required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		catalog:  cat,
		ledger:   led,
		engine:   eng,
		store:    store,
		metrics:  bookingMetrics,
		logger:   logger,
		now:      clock,
		sessions: make(map[string]*Session),
	}
}

// Create mints a fresh empty session.
func (m *Manager) Create(ctx context.Context) View {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &Session{id: uuid.NewString()}
	m.sessions[s.id] = s
	return s.view()
}

// Get returns the session's current state, restoring it from the
// snapshot store if it is not live in memory.
func (m *Manager) Get(ctx context.Context, sessionID string) (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.lookup(ctx, sessionID)
	if err != nil {
		return View{}, err
	}
	return s.view(), nil
}

// ChooseService sets the session's service. Changing it resets any
// chosen date, slot, and undo history.
func (m *Manager) ChooseService(ctx context.Context, sessionID, serviceID string) (View, error) {
	if _, ok := m.catalog.ServiceByID(serviceID); !ok {
		return View{}, &NotFoundError{Resource: "service", ID: serviceID}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getOrCreate(ctx, sessionID)
	if s.serviceID != serviceID {
		s.serviceID = serviceID
		s.resetDownstreamOfProviderService()
	}
	m.persist(ctx, s)
	return s.view(), nil
}

// ChooseProvider sets the session's provider, with the same downstream
// reset as ChooseService.
func (m *Manager) ChooseProvider(ctx context.Context, sessionID, providerID string) (View, error) {
	if _, ok := m.catalog.ProviderByID(providerID); !ok {
		return View{}, &NotFoundError{Resource: "provider", ID: providerID}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getOrCreate(ctx, sessionID)
	if s.providerID != providerID {
		s.providerID = providerID
		s.resetDownstreamOfProviderService()
	}
	m.persist(ctx, s)
	return s.view(), nil
}

// ChooseDate sets the booking date. The date is validated against the
// booking-window policy up front so the wizard halts at this step rather
// than rendering an unbookable day.
func (m *Manager) ChooseDate(ctx context.Context, sessionID string, date civil.Date) (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getOrCreate(ctx, sessionID)
	if s.serviceID == "" {
		return View{}, &ValidationError{Field: "service"}
	}
	if s.providerID == "" {
		return View{}, &ValidationError{Field: "provider"}
	}
	if err := m.engine.CheckDate(date, m.now()); err != nil {
		return View{}, err
	}
	if s.date != date {
		s.date = date
		s.resetDownstreamOfDate()
	}
	m.persist(ctx, s)
	return s.view(), nil
}

// Slots computes the slot grid for the session's current selections.
func (m *Manager) Slots(ctx context.Context, sessionID string) ([]availability.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.lookup(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	provider, svc, verr := m.resolve(s)
	if verr != nil {
		return nil, verr
	}
	if s.date.IsZero() {
		return nil, &ValidationError{Field: "date"}
	}
	slots, err := m.engine.GenerateSlots(provider, svc, s.date, m.ledger, m.now())
	if err != nil {
		m.metrics.ObserveSlotGeneration("policy_rejected")
		return nil, err
	}
	m.metrics.ObserveSlotGeneration("ok")
	return slots, nil
}

// SelectSlot picks a start time. The ledger is re-checked at this moment
// rather than trusting the last render; on conflict the previous
// selection stays in effect and the caller should re-render. A
// successful selection pushes the previous one onto the undo history.
func (m *Manager) SelectSlot(ctx context.Context, sessionID string, start civil.TimeOfDay) (View, error) {
	ctx, span := sessionTracer.Start(ctx, "session.select_slot")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.session_id", sessionID),
		attribute.String("booking.slot", start.String()),
	)

	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.lookup(ctx, sessionID)
	if err != nil {
		return View{}, err
	}
	provider, svc, verr := m.resolve(s)
	if verr != nil {
		return View{}, verr
	}
	if s.date.IsZero() {
		return View{}, &ValidationError{Field: "date"}
	}

	slots, err := m.engine.GenerateSlots(provider, svc, s.date, m.ledger, m.now())
	if err != nil {
		m.metrics.ObserveSelection("policy_rejected")
		return View{}, err
	}
	var chosen *availability.Slot
	for i := range slots {
		if slots[i].Start == start {
			chosen = &slots[i]
			break
		}
	}
	if chosen == nil {
		m.metrics.ObserveSelection("policy_rejected")
		return View{}, &availability.PolicyError{Reason: start.String() + " is not a slot boundary for this shift and service"}
	}
	switch chosen.Status {
	case availability.SlotBooked:
		m.metrics.ObserveSelection("conflict")
		err := &ConflictError{Slot: start.String()}
		span.RecordError(err)
		return View{}, err
	case availability.SlotTooSoon:
		m.metrics.ObserveSelection("policy_rejected")
		return View{}, &availability.PolicyError{Reason: "slot starts within the lead-time buffer"}
	}

	if s.slot != nil && *s.slot != start {
		s.pushHistory(*s.slot)
	}
	if s.slot == nil || *s.slot != start {
		t := start
		s.slot = &t
	}
	m.persist(ctx, s)
	m.metrics.ObserveSelection("ok")
	return s.view(), nil
}

// Undo pops the slot history: the returned pointer is the slot restored
// as the current selection, or nil when the history was empty and the
// selection is now cleared. Calling it again on an empty history is a
// no-op.
func (m *Manager) Undo(ctx context.Context, sessionID string) (*civil.TimeOfDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.lookup(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	prev, ok := s.popHistory()
	if !ok {
		s.slot = nil
		m.persist(ctx, s)
		return nil, nil
	}
	s.slot = &prev
	m.persist(ctx, s)
	restored := prev
	return &restored, nil
}

// Commit re-validates the selected slot against the ledger one final
// time and appends the booking. On success the session and its snapshot
// are cleared; on any failure the session is left exactly as it was.
func (m *Manager) Commit(ctx context.Context, sessionID, customerName string) (*Record, error) {
	ctx, span := sessionTracer.Start(ctx, "session.commit")
	defer span.End()
	span.SetAttributes(attribute.String("booking.session_id", sessionID))
	started := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.lookup(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	provider, svc, verr := m.resolve(s)
	if verr != nil {
		m.metrics.ObserveCommit("invalid", m.sinceSeconds(started))
		return nil, verr
	}
	if s.date.IsZero() {
		m.metrics.ObserveCommit("invalid", m.sinceSeconds(started))
		return nil, &ValidationError{Field: "date"}
	}
	if s.slot == nil {
		m.metrics.ObserveCommit("invalid", m.sinceSeconds(started))
		return nil, &ValidationError{Field: "slot"}
	}
	customerName = strings.TrimSpace(customerName)
	if customerName == "" {
		m.metrics.ObserveCommit("invalid", m.sinceSeconds(started))
		return nil, &ValidationError{Field: "customer_name"}
	}

	booking := ledger.Booking{
		ProviderID: provider.ID,
		Date:       s.date,
		StartTime:  *s.slot,
	}
	if err := m.ledger.AppendIfFree(ctx, booking); err != nil {
		if errors.Is(err, ledger.ErrSlotTaken) {
			m.metrics.ObserveCommit("conflict", m.sinceSeconds(started))
			conflict := &ConflictError{Slot: s.slot.String()}
			span.RecordError(conflict)
			return nil, conflict
		}
		return nil, err
	}

	record := &Record{
		BookingID:    uuid.NewString(),
		ServiceID:    svc.ID,
		ServiceName:  svc.Name,
		ProviderID:   provider.ID,
		ProviderName: provider.Name,
		Date:         s.date,
		StartTime:    *s.slot,
		EndTime:      s.slot.Add(svc.DurationMinutes),
		PriceCents:   svc.PriceCents,
		CustomerName: customerName,
	}

	delete(m.sessions, s.id)
	if m.store != nil {
		if err := m.store.Clear(ctx, s.id); err != nil {
			m.logger.Warn("failed to clear session snapshot", "session_id", s.id, "error", err)
		}
	}

	m.metrics.ObserveCommit("committed", m.sinceSeconds(started))
	m.logger.Info("booking committed",
		"booking_id", record.BookingID,
		"provider_id", record.ProviderID,
		"service_id", record.ServiceID,
		"date", record.Date.String(),
		"start", record.StartTime.String(),
	)
	return record, nil
}

// lookup finds a live session or restores one from its snapshot. Caller
// holds m.mu.
func (m *Manager) lookup(ctx context.Context, sessionID string) (*Session, error) {
	if s, ok := m.sessions[sessionID]; ok {
		return s, nil
	}
	if s := m.restore(ctx, sessionID); s != nil {
		m.sessions[sessionID] = s
		return s, nil
	}
	return nil, &NotFoundError{Resource: "session", ID: sessionID}
}

// getOrCreate is lookup that falls back to a fresh session under the
// given id, so a wizard can start with a caller-supplied id. Caller
// holds m.mu.
func (m *Manager) getOrCreate(ctx context.Context, sessionID string) *Session {
	if s, err := m.lookup(ctx, sessionID); err == nil {
		return s
	}
	s := &Session{id: sessionID}
	m.sessions[sessionID] = s
	return s
}

// restore rebuilds a session from its persisted snapshot. The undo
// history does not survive a restore. Fields that no longer resolve
// against the catalog are dropped rather than poisoning the session.
func (m *Manager) restore(ctx context.Context, sessionID string) *Session {
	if m.store == nil {
		return nil
	}
	snap, err := m.store.Load(ctx, sessionID)
	if err != nil {
		m.logger.Warn("failed to load session snapshot", "session_id", sessionID, "error", err)
		return nil
	}
	if snap == nil {
		return nil
	}
	s := &Session{id: sessionID}
	if _, ok := m.catalog.ServiceByID(snap.ServiceID); ok {
		s.serviceID = snap.ServiceID
	}
	if _, ok := m.catalog.ProviderByID(snap.ProviderID); ok {
		s.providerID = snap.ProviderID
	}
	if snap.Date != "" {
		if d, err := civil.ParseDate(snap.Date); err == nil {
			s.date = d
		}
	}
	if snap.Time != "" && !s.date.IsZero() {
		if t, err := civil.ParseTimeOfDay(snap.Time); err == nil {
			s.slot = &t
		}
	}
	return s
}

// persist writes the snapshot for a session. Snapshot failures are
// logged, not returned: losing resume-on-reload must not fail the
// booking flow. Caller holds m.mu.
func (m *Manager) persist(ctx context.Context, s *Session) {
	if m.store == nil {
		return
	}
	snap := Snapshot{
		ServiceID:  s.serviceID,
		ProviderID: s.providerID,
	}
	if !s.date.IsZero() {
		snap.Date = s.date.String()
	}
	if s.slot != nil {
		snap.Time = s.slot.String()
	}
	if err := m.store.Save(ctx, s.id, snap); err != nil {
		m.logger.Warn("failed to persist session snapshot", "session_id", s.id, "error", err)
	}
}

// resolve maps the session's ids to catalog entries, reporting the first
// missing precondition.
func (m *Manager) resolve(s *Session) (catalog.Provider, catalog.Service, error) {
	if s.serviceID == "" {
		return catalog.Provider{}, catalog.Service{}, &ValidationError{Field: "service"}
	}
	if s.providerID == "" {
		return catalog.Provider{}, catalog.Service{}, &ValidationError{Field: "provider"}
	}
	svc, ok := m.catalog.ServiceByID(s.serviceID)
	if !ok {
		return catalog.Provider{}, catalog.Service{}, &NotFoundError{Resource: "service", ID: s.serviceID}
	}
	provider, ok := m.catalog.ProviderByID(s.providerID)
	if !ok {
		return catalog.Provider{}, catalog.Service{}, &NotFoundError{Resource: "provider", ID: s.providerID}
	}
	return provider, svc, nil
}

func (m *Manager) sinceSeconds(started time.Time) float64 {
	return m.now().Sub(started).Seconds()
}
