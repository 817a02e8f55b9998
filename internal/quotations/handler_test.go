package quotations

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/labdesk/labdesk/internal/rbac"
	"github.com/labdesk/labdesk/internal/shared"
)

type stubPDF struct {
	rendered *View
}

func (s *stubPDF) RenderQuotation(ctx context.Context, view *View) ([]byte, error) {
	s.rendered = view
	return []byte("%PDF-1.7"), nil
}

func newTestRouter(t *testing.T) (http.Handler, *fixture, *stubPDF) {
	t.Helper()
	f := newFixture(t)
	pdf := &stubPDF{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, f.svc, pdf, rbac.Middleware{Logger: logger})
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r, f, pdf
}

func do(t *testing.T, h http.Handler, method, path, body string, actor rbac.Actor) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if actor.ID != "" {
		req.Header.Set(rbac.HeaderActorID, actor.ID)
		req.Header.Set(rbac.HeaderActorRole, string(actor.Role))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResult[T any](t *testing.T, rec *httptest.ResponseRecorder) shared.Result[T] {
	t.Helper()
	var out shared.Result[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

const startBody = `{"currency":"USD","vatPercentage":18,"items":[
	{"description":"Compressive strength","price":100,"quantity":2},
	{"description":"Slump","price":50,"quantity":1}
]}`

func TestHandlerBillingFlow(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/projects/p-1/billing", startBody, staff)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeResult[Quotation](t, rec)
	require.Equal(t, shared.StatusOK, created.Status)
	require.Equal(t, QuotationStatusDraft, created.Data.Status)

	rec = do(t, router, http.MethodGet, "/quotations/q-1", "", client)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeResult[View](t, rec)
	require.Equal(t, 295.0, view.Data.Totals.TotalWithVAT)
	require.Equal(t, 1, view.Data.Stage)

	rec = do(t, router, http.MethodPost, "/quotations/q-1/send", "", staff)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodPost, "/quotations/q-1/pay", "", staff)
	require.Equal(t, http.StatusConflict, rec.Code)
	failed := decodeResult[any](t, rec)
	require.Equal(t, shared.KindInvalidTransition, failed.Error.Kind)

	rec = do(t, router, http.MethodPost, "/quotations/q-1/reject", `{"notes":""}`, client)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/quotations/q-1/reject", `{"notes":"too high"}`, client)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodPost, "/quotations/q-1/revisions", "", staff)
	require.Equal(t, http.StatusCreated, rec.Code)
	revised := decodeResult[Quotation](t, rec)
	require.Equal(t, 1, revised.Data.RevisionNumber)
	require.Len(t, revised.Data.Revisions, 1)

	rec = do(t, router, http.MethodPut, "/quotations/q-1", `{"vatPercentage":10}`, staff)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestHandlerRequiresActor(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := do(t, router, http.MethodGet, "/quotations/q-1", "", rbac.Actor{})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerNotFound(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := do(t, router, http.MethodGet, "/quotations/nope", "", staff)
	require.Equal(t, http.StatusNotFound, rec.Code)
	res := decodeResult[any](t, rec)
	require.Equal(t, shared.KindNotFound, res.Error.Kind)
}

func TestHandlerPDF(t *testing.T) {
	router, _, pdf := newTestRouter(t)
	rec := do(t, router, http.MethodPost, "/projects/p-1/billing", startBody, staff)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, router, http.MethodGet, "/quotations/q-1/pdf", "", client)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "quotation-q-1-r0.pdf")
	require.NotNil(t, pdf.rendered)
	require.Equal(t, 250.0, pdf.rendered.Totals.Subtotal)
}
