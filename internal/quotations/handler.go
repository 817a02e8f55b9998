package quotations

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/labdesk/labdesk/internal/platform/httpx"
	"github.com/labdesk/labdesk/internal/rbac"
	"github.com/labdesk/labdesk/internal/shared"
)

// PDFRenderer turns a quotation view into a printable document.
type PDFRenderer interface {
	RenderQuotation(ctx context.Context, view *View) ([]byte, error)
}

type Handler struct {
	logger  *slog.Logger
	service *Service
	pdf     PDFRenderer
	rbac    rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, pdf PDFRenderer, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, pdf: pdf, rbac: rbac}
}

func actor(r *http.Request) rbac.Actor {
	a, _ := rbac.ActorFromContext(r.Context())
	return a
}

func (h *Handler) StartBilling(w http.ResponseWriter, r *http.Request) {
	var req StartBillingRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.StartBilling(r.Context(), actor(r), chi.URLParam(r, "id"), req.input())
	h.respond(w, r, http.StatusCreated, q, err)
}

func (h *Handler) ProjectBilling(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ProjectBilling(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, out, err)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.View(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, view, err)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateDraftRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.UpdateDraft(r.Context(), actor(r), chi.URLParam(r, "id"), req.changes())
	h.respond(w, r, http.StatusOK, q, err)
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.Send(r.Context(), actor(r), chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, q, err)
}

func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.Accept(r.Context(), actor(r), chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, q, err)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	var req RejectRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.Reject(r.Context(), actor(r), chi.URLParam(r, "id"), req.Notes)
	h.respond(w, r, http.StatusOK, q, err)
}

func (h *Handler) Invoice(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.Invoice(r.Context(), actor(r), chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, q, err)
}

func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.MarkPaid(r.Context(), actor(r), chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, q, err)
}

func (h *Handler) Revise(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.CreateRevision(r.Context(), actor(r), chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusCreated, q, err)
}

func (h *Handler) PDF(w http.ResponseWriter, r *http.Request) {
	if h.pdf == nil {
		httpx.RespondError(w, shared.E(shared.KindPersistence, "quotation.pdf", "pdf rendering not configured"))
		return
	}
	view, err := h.service.View(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respond(w, r, http.StatusOK, view, err)
		return
	}
	doc, err := h.pdf.RenderQuotation(r.Context(), view)
	if err != nil {
		h.logger.Error("render quotation pdf", slog.String("quotation_id", view.Quotation.ID), slog.Any("error", err))
		httpx.RespondError(w, shared.Wrap(shared.KindPersistence, "quotation.pdf", err))
		return
	}
	filename := "quotation-" + view.Quotation.ID + "-r" + strconv.Itoa(view.Quotation.RevisionNumber) + ".pdf"
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, data any, err error) {
	if err != nil {
		switch shared.KindOf(err) {
		case shared.KindPersistence:
			h.logger.Error("quotation request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		default:
			h.logger.Info("quotation request rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
		}
	}
	httpx.Respond(w, status, data, err)
}
