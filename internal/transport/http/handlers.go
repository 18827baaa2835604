package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/joshdurbin/linkregistry/internal/domain"
	"github.com/joshdurbin/linkregistry/internal/logging"
	"github.com/joshdurbin/linkregistry/internal/registry"
	"github.com/joshdurbin/linkregistry/internal/stats"
)

// LocationHeader carries the caller's coarse location for click records
const LocationHeader = "X-Client-Location"

// ErrorResponse is the JSON body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Handler holds the HTTP handlers for the link registry
type Handler struct {
	registry  registry.LinkRegistry
	logs      *logging.Buffer
	serverURL string
	logger    *slog.Logger
	now       func() time.Time
}

// NewHandler creates a new HTTP handler. logs may be nil, in which case the
// log viewer endpoints report an empty buffer.
func NewHandler(reg registry.LinkRegistry, logs *logging.Buffer, serverURL string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{
		registry:  reg,
		logs:      logs,
		serverURL: serverURL,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateLink handles POST /api/links
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field == "validityMinutes" {
			h.handleError(w, r, "create", fmt.Errorf("%w: must be a whole number of minutes, got %s", domain.ErrInvalidValidity, typeErr.Value))
			return
		}
		h.logger.WarnContext(r.Context(), "invalid JSON in create request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be a JSON object")
		return
	}

	link, err := h.registry.Create(r.Context(), req)
	if h.handleError(w, r, "create", err) {
		return
	}

	writeJSON(w, http.StatusCreated, h.linkResponse(link))
}

// ListLinks handles GET /api/links
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	links := h.registry.List(r.Context())

	response := make([]domain.CreateLinkResponse, 0, len(links))
	for _, link := range links {
		response = append(response, h.linkResponse(link))
	}
	writeJSON(w, http.StatusOK, response)
}

// GetLink handles GET /api/links/{code}
func (h *Handler) GetLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.registry.Resolve(r.Context(), r.PathValue("code"))
	if h.handleError(w, r, "resolve", err) {
		return
	}

	writeJSON(w, http.StatusOK, h.linkResponse(link))
}

// DeleteLink handles DELETE /api/links/{code}
func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	err := h.registry.Delete(r.Context(), r.PathValue("code"))
	if h.handleError(w, r, "delete", err) {
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ClearLinks handles DELETE /api/links
func (h *Handler) ClearLinks(w http.ResponseWriter, r *http.Request) {
	removed, err := h.registry.Clear(r.Context())
	if h.handleError(w, r, "clear", err) {
		return
	}

	writeJSON(w, http.StatusOK, domain.PurgeResponse{Removed: removed})
}

// PurgeExpired handles POST /api/links/purge
func (h *Handler) PurgeExpired(w http.ResponseWriter, r *http.Request) {
	removed, err := h.registry.PurgeExpired(r.Context())
	if h.handleError(w, r, "purge", err) {
		return
	}

	writeJSON(w, http.StatusOK, domain.PurgeResponse{Removed: removed})
}

// RefreshExpired handles POST /api/links/refresh
func (h *Handler) RefreshExpired(w http.ResponseWriter, r *http.Request) {
	expired, err := h.registry.RefreshExpired(r.Context())
	if h.handleError(w, r, "refresh", err) {
		return
	}

	writeJSON(w, http.StatusOK, domain.RefreshResponse{Expired: expired})
}

// Stats handles GET /api/stats. The optional top, recent and days query
// parameters size the breakdowns.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	top, err1 := intParam(query.Get("top"))
	recent, err2 := intParam(query.Get("recent"))
	days, err3 := intParam(query.Get("days"))
	if err := errors.Join(err1, err2, err3); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}

	links := h.registry.List(r.Context())
	now := h.now()

	writeJSON(w, http.StatusOK, stats.SummarizeSized(links, now, top, recent, days))
}

// Logs handles GET /api/logs?level=warn&limit=50
func (h *Handler) Logs(w http.ResponseWriter, r *http.Request) {
	level, err := logging.ParseLevel(r.URL.Query().Get("level"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}
	if r.URL.Query().Get("level") == "" {
		level = slog.LevelDebug
	}

	limit, err := intParam(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}

	entries := []domain.LogEntry{}
	if h.logs != nil {
		entries = h.logs.Entries(level, limit)
	}
	writeJSON(w, http.StatusOK, entries)
}

// ClearLogs handles DELETE /api/logs
func (h *Handler) ClearLogs(w http.ResponseWriter, r *http.Request) {
	if h.logs != nil {
		h.logs.Clear()
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Redirect handles GET /{code} - records a click and redirects to the original URL.
// The src query parameter names the click source.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	ctx := registry.WithClient(r.Context(), registry.ClientInfo{
		Location:  r.Header.Get(LocationHeader),
		UserAgent: r.UserAgent(),
	})

	originalURL, err := h.registry.Access(ctx, r.PathValue("code"), r.URL.Query().Get("src"))
	if h.handleError(w, r, "access", err) {
		return
	}

	http.Redirect(w, r, originalURL, http.StatusFound)
}

func (h *Handler) linkResponse(link *domain.ShortLink) domain.CreateLinkResponse {
	return domain.CreateLinkResponse{
		ShortLink: link,
		ShortURL:  h.serverURL + "/" + link.ShortCode,
	}
}

// handleError writes the error response for err and reports whether it did.
// Persistence failures are logged only: the registry already applied the
// change in memory, so the request still succeeds.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, op string, err error) bool {
	if err == nil {
		return false
	}

	kind := domain.KindOf(err)
	var status int
	switch {
	case domain.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrDuplicateShortCode):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrExpired):
		status = http.StatusGone
	case errors.Is(err, domain.ErrPersistence):
		h.logger.WarnContext(r.Context(), "change kept in memory but not persisted", "op", op, "error", err)
		return false
	default:
		h.logger.ErrorContext(r.Context(), "request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
		return true
	}

	writeError(w, status, kind, err.Error())
	return true
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("query parameter must be an integer: " + raw)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already sent
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}
