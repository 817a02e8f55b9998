package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/labdesk/labdesk/internal/shared"
)

func TestRequire(t *testing.T) {
	require.NoError(t, Require(Actor{ID: "u1", Role: RoleStaff}, PermQuotationSend))
	require.NoError(t, Require(Actor{ID: "c1", Role: RoleClient}, PermQuotationDecide))

	err := Require(Actor{ID: "c1", Role: RoleClient}, PermQuotationInvoice)
	require.ErrorIs(t, err, shared.ErrForbidden)

	err = Require(Actor{Role: RoleAdmin}, PermQuotationEdit)
	require.Equal(t, shared.KindForbidden, shared.KindOf(err))
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole(" Staff ")
	require.True(t, ok)
	require.Equal(t, RoleStaff, role)
	_, ok = ParseRole("auditor")
	require.False(t, ok)
}

func TestRequireActorMiddleware(t *testing.T) {
	var seen Actor
	handler := Middleware{}.RequireActor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ActorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req.Header.Set(HeaderActorID, "u7")
	req.Header.Set(HeaderActorRole, "client")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, Actor{ID: "u7", Role: RoleClient}, seen)
}
