package rfi

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/labdesk/labdesk/internal/platform/httpx"
	"github.com/labdesk/labdesk/internal/rbac"
	"github.com/labdesk/labdesk/internal/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MessageResult is returned after appending a message.
type MessageResult struct {
	RFI     *RFI     `json:"rfi"`
	Message *Message `json:"message"`
}

func actor(r *http.Request) rbac.Actor {
	a, _ := rbac.ActorFromContext(r.Context())
	return a
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.Submit(r.Context(), actor(r), req.input())
	h.respond(w, r, http.StatusCreated, out, err)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.View(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, out, err)
}

func (h *Handler) AppendMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	updated, msg, err := h.service.AppendMessage(r.Context(), actor(r), chi.URLParam(r, "id"), req.message())
	h.respond(w, r, http.StatusCreated, MessageResult{RFI: updated, Message: msg}, err)
}

func (h *Handler) MarkOfficial(w http.ResponseWriter, r *http.Request) {
	opts := MarkOfficialOptions{}
	if raw := r.URL.Query().Get("resolve"); raw != "" {
		resolve, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.RespondError(w, shared.Validation("rfi.mark_official", "resolve must be a boolean"))
			return
		}
		opts.Resolve = resolve
	}
	var req MarkOfficialRequest
	if _, err := httpx.DecodeOptional(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	opts.Reason = req.Reason
	out, err := h.service.MarkOfficial(r.Context(), actor(r), chi.URLParam(r, "id"), chi.URLParam(r, "key"), opts)
	h.respond(w, r, http.StatusOK, out, err)
}

func (h *Handler) UnmarkOfficial(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.UnmarkOfficial(r.Context(), actor(r), chi.URLParam(r, "id"), chi.URLParam(r, "key"))
	h.respond(w, r, http.StatusOK, out, err)
}

func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	var req TransitionRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.Transition(r.Context(), actor(r), chi.URLParam(r, "id"), req.Status, req.Reason)
	h.respond(w, r, http.StatusOK, out, err)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, data any, err error) {
	if err != nil && shared.KindOf(err) == shared.KindPersistence {
		h.logger.Error("rfi request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.Respond(w, status, data, err)
}
