package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/labdesk/labdesk/internal/platform/httpx"
	"github.com/labdesk/labdesk/internal/rbac"
	"github.com/labdesk/labdesk/internal/shared"
)

const (
	dateLayout       = "2006-01-02"
	defaultDateRange = 30 * 24 * time.Hour
	maxDateRange     = 366 * 24 * time.Hour
)

// Handler serves the audit trail.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
	now     func() time.Time
}

// NewHandler builds the audit trail handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac, now: time.Now}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := rbac.ActorFromContext(r.Context())
	result, err := h.service.Timeline(r.Context(), actor, filters)
	if err != nil {
		h.logFailure("load audit timeline", err)
	}
	httpx.Respond(w, http.StatusOK, result, err)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := rbac.ActorFromContext(r.Context())
	rows, err := h.service.Export(r.Context(), actor, filters)
	if err != nil {
		h.logFailure("export audit timeline", err)
		httpx.RespondError(w, err)
		return
	}
	csvBytes, err := WriteCSV(rows)
	if err != nil {
		h.logFailure("encode csv", err)
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-trail.csv"`)
	if _, err := w.Write(csvBytes); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

func (h *Handler) parseFilters(r *http.Request) (TimelineFilters, error) {
	q := r.URL.Query()
	to := h.now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			return TimelineFilters{}, shared.Validation("audit.filters", "to must be YYYY-MM-DD")
		}
		to = parsed.Add(24 * time.Hour)
	}
	from := to.Add(-defaultDateRange)
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			return TimelineFilters{}, shared.Validation("audit.filters", "from must be YYYY-MM-DD")
		}
		from = parsed
	}
	if !from.Before(to) || to.Sub(from) > maxDateRange {
		return TimelineFilters{}, shared.Validation("audit.filters", "date range must be positive and at most one year")
	}

	page, err := positiveInt(q.Get("page"), 1)
	if err != nil {
		return TimelineFilters{}, shared.Validation("audit.filters", "page must be a positive integer")
	}
	pageSize, err := positiveInt(q.Get("page_size"), defaultPageSize)
	if err != nil {
		return TimelineFilters{}, shared.Validation("audit.filters", "page_size must be a positive integer")
	}

	return TimelineFilters{
		Entity:   chi.URLParam(r, "entity"),
		EntityID: chi.URLParam(r, "id"),
		Actor:    q.Get("actor"),
		Action:   q.Get("action"),
		From:     from,
		To:       to,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func positiveInt(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, shared.ErrValidation
	}
	return v, nil
}

func (h *Handler) logFailure(msg string, err error) {
	if shared.KindOf(err) == shared.KindPersistence {
		h.logger.Error(msg, slog.Any("error", err))
		return
	}
	h.logger.Info(msg, slog.Any("error", err))
}
