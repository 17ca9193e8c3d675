package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"shortlink/pkg/safety"
	"shortlink/pkg/service"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	links   *service.LinkService
	checker safety.Checker
	baseURL string
}

func NewHandler(links *service.LinkService, checker safety.Checker, baseURL string) *Handler {
	return &Handler{links: links, checker: checker, baseURL: baseURL}
}

type createResponse struct {
	ShortLink string `json:"shortLink"`
	Expiry    string `json:"expiry"`
	Shortcode string `json:"shortcode"`
}

func (h *Handler) CreateShortURL(w http.ResponseWriter, r *http.Request) {
	var req service.CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	link, err := h.links.Create(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createResponse{
		ShortLink: h.baseURL + "/" + link.Code,
		Expiry:    link.ExpiresAt.Format(time.RFC3339),
		Shortcode: link.Code,
	})
}

func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	target, err := h.links.Resolve(r.Context(), code, service.ClickInfo{
		Referrer: r.Referer(),
		Location: originLocation(r),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	stats, err := h.links.Stats(r.Context(), code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) ListShortURLs(w http.ResponseWriter, r *http.Request) {
	links, err := h.links.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

type updateResponse struct {
	Message     string `json:"message"`
	ShortLink   string `json:"shortLink"`
	Expiry      string `json:"expiry"`
	Shortcode   string `json:"shortcode"`
	WasExpired  bool   `json:"wasExpired"`
	IsNowActive bool   `json:"isNowActive"`
}

func (h *Handler) UpdateShortURL(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	var req service.UpdateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.links.Update(r.Context(), code, &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updateResponse{
		Message:     "Short URL updated successfully",
		ShortLink:   h.baseURL + "/" + result.Link.Code,
		Expiry:      result.Link.ExpiresAt.Format(time.RFC3339),
		Shortcode:   result.Link.Code,
		WasExpired:  result.WasExpired,
		IsNowActive: result.IsNowActive,
	})
}

type deleteResponse struct {
	Message    string `json:"message"`
	WasExpired bool   `json:"wasExpired"`
}

func (h *Handler) DeleteShortURL(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	wasExpired, err := h.links.Delete(r.Context(), code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{
		Message:    "Short URL deleted successfully",
		WasExpired: wasExpired,
	})
}

// CheckURL runs the safety pre-check without creating anything.
func (h *Handler) CheckURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	writeJSON(w, http.StatusOK, h.checker.Check(r.Context(), req.URL))
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// SetupRoutes mounts the API. The redirect route lives at the root path
// segment and needs no auth; everything under /shorturls except the
// standalone check is owner-scoped.
func SetupRoutes(r *chi.Mux, handler *Handler, auth func(http.Handler) http.Handler) {
	r.Get("/health", handler.HealthCheck)
	r.Post("/shorturls/check", handler.CheckURL)
	r.Group(func(r chi.Router) {
		if auth != nil {
			r.Use(auth)
		}
		r.Post("/shorturls", handler.CreateShortURL)
		r.Get("/shorturls", handler.ListShortURLs)
		r.Get("/shorturls/{code}", handler.GetStats)
		r.Patch("/shorturls/{code}", handler.UpdateShortURL)
		r.Delete("/shorturls/{code}", handler.DeleteShortURL)
	})
	r.Get("/{code}", handler.Redirect)
}

// originLocation best-effort tags the click origin from edge headers.
func originLocation(r *http.Request) string {
	if country := r.Header.Get("CF-IPCountry"); country != "" {
		return country
	}
	if country := r.Header.Get("X-Country"); country != "" {
		return country
	}
	return "unknown"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrUnsafeURL):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrCodeTaken):
		writeError(w, http.StatusConflict, "Shortcode already in use")
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "Shortcode not found")
	case errors.Is(err, service.ErrExpired):
		writeError(w, http.StatusGone, "Short link expired")
	case errors.Is(err, service.ErrGenerationExhausted):
		writeError(w, http.StatusInternalServerError, "Unable to generate unique shortcode")
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
