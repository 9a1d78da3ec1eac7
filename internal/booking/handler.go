// Package booking exposes the catalog, the availability engine, and the
// session wizard over HTTP. Handlers hold no business logic: they parse,
// call, and translate domain results into status codes.
package booking

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sharpfade/booking-platform/internal/availability"
	"github.com/sharpfade/booking-platform/internal/catalog"
	"github.com/sharpfade/booking-platform/internal/ledger"
	"github.com/sharpfade/booking-platform/internal/session"
	"github.com/sharpfade/booking-platform/pkg/civil"
	"github.com/sharpfade/booking-platform/pkg/logging"
)

// Handler serves the booking API.
type Handler struct {
	catalog  *catalog.Catalog
	ledger   *ledger.Ledger
	engine   *availability.Engine
	sessions *session.Manager
	logger   *logging.Logger
	now      func() time.Time
}

// NewHandler creates the booking HTTP handler.
func NewHandler(cat *catalog.Catalog, led *ledger.Ledger, eng *availability.Engine, sessions *session.Manager, logger *logging.Logger) *Handler {
	return NewHandlerWithClock(cat, led, eng, sessions, logger, time.Now)
}

// NewHandlerWithClock allows injecting the clock for tests.
func NewHandlerWithClock(cat *catalog.Catalog, led *ledger.Ledger, eng *availability.Engine, sessions *session.Manager, logger *logging.Logger, clock func() time.Time) *Handler {
	if cat == nil {
		panic("booking: catalog required")
	}
	if led == nil {
		panic("booking: ledger required")
	}
	if eng == nil {
		panic("booking: availability engine required")
	}
	if sessions == nil {
		panic("booking: session manager required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		catalog:  cat,
		ledger:   led,
		engine:   eng,
		sessions: sessions,
		logger:   logger,
		now:      clock,
	}
}

// Routes returns the booking API routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/services", h.ListServices)
	r.Get("/providers", h.ListProviders)
	r.Get("/providers/{providerID}/services", h.ProviderServices)
	r.Get("/slots", h.GetSlots)

	r.Post("/sessions", h.CreateSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Put("/service", h.ChooseService)
		r.Put("/provider", h.ChooseProvider)
		r.Put("/date", h.ChooseDate)
		r.Get("/slots", h.SessionSlots)
		r.Post("/slot", h.SelectSlot)
		r.Post("/undo", h.Undo)
		r.Post("/commit", h.Commit)
	})
	return r
}

// ListServices returns the full service catalog.
// GET /services
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"services": h.catalog.Services()})
}

type providerEntry struct {
	catalog.Provider
	// Available is the day-level hint, present only when a date was
	// asked for. It ignores the lead-time buffer; the slot view is
	// authoritative.
	Available *bool `json:"available,omitempty"`
}

// ListProviders returns all providers. With ?date=YYYY-MM-DD each entry
// carries a day-level availability hint for calendar rendering.
// GET /providers?date=2026-09-07
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	var date *civil.Date
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := civil.ParseDate(raw)
		if err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "validation", "date must be YYYY-MM-DD")
			return
		}
		date = &d
	}

	providers := h.catalog.Providers()
	entries := make([]providerEntry, 0, len(providers))
	for _, p := range providers {
		entry := providerEntry{Provider: p}
		if date != nil {
			open := h.engine.HasAnyAvailability(p, *date, h.ledger, h.now())
			entry.Available = &open
		}
		entries = append(entries, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": entries})
}

// ProviderServices classifies every service against one provider's
// specialties, for compatibility hinting in the service picker.
// GET /providers/{providerID}/services
func (h *Handler) ProviderServices(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerID")
	matches := h.catalog.ServicesForProvider(providerID)
	if matches == nil {
		writeErrorMessage(w, http.StatusNotFound, "not_found", "unknown provider "+providerID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": matches})
}

// GetSlots is the sessionless slot query: the library surface of the
// availability engine.
// GET /slots?providerId=albert&serviceId=haircut&date=2026-09-07
func (h *Handler) GetSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	provider, ok := h.catalog.ProviderByID(q.Get("providerId"))
	if !ok {
		writeErrorMessage(w, http.StatusNotFound, "not_found", "unknown provider "+q.Get("providerId"))
		return
	}
	svc, ok := h.catalog.ServiceByID(q.Get("serviceId"))
	if !ok {
		writeErrorMessage(w, http.StatusNotFound, "not_found", "unknown service "+q.Get("serviceId"))
		return
	}
	date, err := civil.ParseDate(q.Get("date"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "validation", "date must be YYYY-MM-DD")
		return
	}

	slots, err := h.engine.GenerateSlots(provider, svc, date, h.ledger, h.now())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

// CreateSession starts an empty wizard session.
// POST /sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	v := h.sessions.Create(r.Context())
	writeJSON(w, http.StatusCreated, v)
}

// GetSession returns the wizard's current state.
// GET /sessions/{sessionID}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	v, err := h.sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// ChooseService sets the wizard's service.
// PUT /sessions/{sessionID}/service
func (h *Handler) ChooseService(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ServiceID string `json:"service_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "validation", "invalid JSON body")
		return
	}
	v, err := h.sessions.ChooseService(r.Context(), chi.URLParam(r, "sessionID"), req.ServiceID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// ChooseProvider sets the wizard's provider.
// PUT /sessions/{sessionID}/provider
func (h *Handler) ChooseProvider(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProviderID string `json:"provider_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "validation", "invalid JSON body")
		return
	}
	v, err := h.sessions.ChooseProvider(r.Context(), chi.URLParam(r, "sessionID"), req.ProviderID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// ChooseDate sets the wizard's booking date.
// PUT /sessions/{sessionID}/date
func (h *Handler) ChooseDate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "validation", "invalid JSON body")
		return
	}
	date, err := civil.ParseDate(req.Date)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "validation", "date must be YYYY-MM-DD")
		return
	}
	v, err := h.sessions.ChooseDate(r.Context(), chi.URLParam(r, "sessionID"), date)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// SessionSlots returns the slot grid for the wizard's selections.
// GET /sessions/{sessionID}/slots
func (h *Handler) SessionSlots(w http.ResponseWriter, r *http.Request) {
	slots, err := h.sessions.Slots(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

// SelectSlot picks a start time, re-checking the ledger for the
// render-to-click race.
// POST /sessions/{sessionID}/slot
func (h *Handler) SelectSlot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Time string `json:"time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "validation", "invalid JSON body")
		return
	}
	start, err := civil.ParseTimeOfDay(req.Time)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "validation", "time must be HH:MM")
		return
	}
	v, err := h.sessions.SelectSlot(r.Context(), chi.URLParam(r, "sessionID"), start)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Undo pops the wizard's slot history.
// POST /sessions/{sessionID}/undo
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	restored, err := h.sessions.Undo(r.Context(), sessionID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	v, err := h.sessions.Get(r.Context(), sessionID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	resp := map[string]any{"restored": nil, "session": v}
	if restored != nil {
		resp["restored"] = restored.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Commit finalizes the booking.
// POST /sessions/{sessionID}/commit
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerName string `json:"customer_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "validation", "invalid JSON body")
		return
	}
	record, err := h.sessions.Commit(r.Context(), chi.URLParam(r, "sessionID"), req.CustomerName)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

// writeDomainError translates the domain error taxonomy into status
// codes: not found 404, conflict 409 (retryable), policy 422
// (structural for that date), validation 400.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var (
		notFound   *session.NotFoundError
		conflict   *session.ConflictError
		validation *session.ValidationError
		policy     *availability.PolicyError
	)
	switch {
	case errors.As(err, &notFound):
		writeErrorMessage(w, http.StatusNotFound, "not_found", notFound.Error())
	case errors.As(err, &conflict):
		writeErrorMessage(w, http.StatusConflict, "conflict", conflict.Error())
	case errors.As(err, &validation):
		writeErrorMessage(w, http.StatusBadRequest, "validation", validation.Error())
	case errors.As(err, &policy):
		writeErrorMessage(w, http.StatusUnprocessableEntity, "policy_violation", policy.Error())
	default:
		h.logger.Error("unhandled booking error", "error", err)
		writeErrorMessage(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeErrorMessage(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, map[string]string{"error": msg, "kind": kind})
}
