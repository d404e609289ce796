package httpx

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-realtime-market/internal/market"
)

// Identity is the caller as asserted by the upstream auth proxy via the
// X-User-Id / X-User-Role headers. Token verification happens upstream.
type Identity struct {
	UserID string
	Role   market.Role
}

type ctxKey int

const identityKey ctxKey = 0

// WithIdentity reads the identity headers into the request context.
func WithIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Identity{
			UserID: r.Header.Get("X-User-Id"),
			Role:   market.Role(r.Header.Get("X-User-Role")),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
	})
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}

// RequireRole gates a route to the given roles: 401 without an identity,
// 403 with the wrong role.
func RequireRole(roles ...market.Role) func(http.Handler) http.Handler {
	allowed := make(map[market.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !allowed[id.Role] {
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
