package prefs

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sharpfade/booking-platform/pkg/logging"
)

// Handler exposes the theme preference over HTTP.
type Handler struct {
	store  *Store
	logger *logging.Logger
}

// NewHandler creates a preferences HTTP handler.
func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// Routes returns the preference routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{visitorID}/theme", h.GetTheme)
	r.Put("/{visitorID}/theme", h.SetTheme)
	return r
}

// GetTheme returns the visitor's saved theme, defaulting to light.
// GET /preferences/{visitorID}/theme
func (h *Handler) GetTheme(w http.ResponseWriter, r *http.Request) {
	visitorID := chi.URLParam(r, "visitorID")
	theme, err := h.store.LoadTheme(r.Context(), visitorID)
	if err != nil {
		h.logger.Error("failed to load theme", "visitor_id", visitorID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"theme": string(theme)})
}

type setThemeRequest struct {
	Theme Theme `json:"theme"`
}

// SetTheme saves the visitor's theme.
// PUT /preferences/{visitorID}/theme
func (h *Handler) SetTheme(w http.ResponseWriter, r *http.Request) {
	visitorID := chi.URLParam(r, "visitorID")
	var req setThemeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if !req.Theme.Valid() {
		http.Error(w, `{"error": "theme must be light or dark"}`, http.StatusBadRequest)
		return
	}
	if err := h.store.SaveTheme(r.Context(), visitorID, req.Theme); err != nil {
		h.logger.Error("failed to save theme", "visitor_id", visitorID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"theme": string(req.Theme)})
}
