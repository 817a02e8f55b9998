package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labdesk/labdesk/internal/platform/httpx"
	"github.com/labdesk/labdesk/internal/shared"
)

// Headers set by the authenticating gateway in front of the API.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor placed by Middleware.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// Middleware resolves the acting party from gateway headers. Handlers pass the
// resolved Actor explicitly into services.
type Middleware struct {
	Logger *slog.Logger
}

// RequireActor rejects requests without a recognised actor.
func (m Middleware) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderActorID))
		role, ok := ParseRole(r.Header.Get(HeaderActorRole))
		if id == "" || !ok {
			if m.Logger != nil {
				m.Logger.Warn("rbac missing actor", slog.String("path", r.URL.Path))
			}
			httpx.RespondError(w, shared.E(shared.KindForbidden, "rbac", "actor headers missing or invalid"))
			return
		}
		ctx := ContextWithActor(r.Context(), Actor{ID: id, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
