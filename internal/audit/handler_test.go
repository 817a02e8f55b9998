package audit

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/labdesk/labdesk/internal/rbac"
)

func newAuditRouter(repo *stubRepo) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, NewService(repo), rbac.Middleware{Logger: logger})
	handler.now = func() time.Time { return time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r
}

func get(h http.Handler, path string, actor rbac.Actor) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set(rbac.HeaderActorID, actor.ID)
	req.Header.Set(rbac.HeaderActorRole, string(actor.Role))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestEntityTimeline(t *testing.T) {
	repo := &stubRepo{rows: rowsFor(2)}
	rr := get(newAuditRouter(repo), "/audit/quotation/q-1?from=2026-03-01&to=2026-03-15", staff)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Status string `json:"status"`
		Data   Result `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(body.Data.Rows))
	}
	q := repo.calls[0]
	if q.Entity != "quotation" || q.EntityID != "q-1" {
		t.Fatalf("unexpected entity filter: %+v", q.TimelineFilters)
	}
	if q.From.Format(dateLayout) != "2026-03-01" || q.To.Format(dateLayout) != "2026-03-16" {
		t.Fatalf("unexpected range: %s..%s", q.From, q.To)
	}
}

func TestTimelineDefaultsRange(t *testing.T) {
	repo := &stubRepo{}
	rr := get(newAuditRouter(repo), "/audit", staff)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	q := repo.calls[0]
	if q.To.Format(dateLayout) != "2026-03-16" || q.To.Sub(q.From) != defaultDateRange {
		t.Fatalf("unexpected default range: %s..%s", q.From, q.To)
	}
}

func TestTimelineFilterValidation(t *testing.T) {
	router := newAuditRouter(&stubRepo{})
	for _, path := range []string{
		"/audit?from=yesterday",
		"/audit?from=2026-03-10&to=2026-03-01",
		"/audit?from=2024-01-01&to=2026-03-01",
		"/audit?page=0",
		"/audit?page_size=abc",
	} {
		if rr := get(router, path, staff); rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, rr.Code)
		}
	}
}

func TestTimelineForbiddenForClients(t *testing.T) {
	rr := get(newAuditRouter(&stubRepo{}), "/audit", rbac.Actor{ID: "contact-1", Role: rbac.RoleClient})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestExportCSV(t *testing.T) {
	rr := get(newAuditRouter(&stubRepo{rows: rowsFor(2)}), "/audit/export.csv?from=2026-03-01", staff)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ctype := rr.Header().Get("Content-Type"); !strings.Contains(ctype, "text/csv") {
		t.Fatalf("unexpected content-type: %s", ctype)
	}
	if lines := strings.Count(rr.Body.String(), "\n"); lines != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", lines)
	}
}
