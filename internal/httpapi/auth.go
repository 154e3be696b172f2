package httpapi

import (
	"context"
	"net/http"

	"github.com/mhdraihanr/loyalinn-pms/internal/auth"
	"github.com/mhdraihanr/loyalinn-pms/internal/store"
)

type ctxKey int

const userIDKey ctxKey = iota

func userID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// authenticate rejects requests without a valid bearer token with 401.
func (a *api) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		id, err := a.verifier.Verify(token)
		if err != nil {
			a.log.Debug("rejected bearer token", "error", err)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, id)))
	})
}

// membership resolves the caller's tenant and checks permission. On failure
// it writes the response and returns false.
func (a *api) membership(w http.ResponseWriter, r *http.Request, permission string) (store.Member, bool) {
	uid := userID(r.Context())
	members, err := a.store.TenantsForUser(r.Context(), uid)
	if err != nil {
		a.log.Error("loading memberships failed", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return store.Member{}, false
	}
	m, err := auth.ActiveMembership(members)
	if err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return store.Member{}, false
	}
	if err := auth.RequirePermission(auth.Role(m.Role), permission); err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return store.Member{}, false
	}
	return m, true
}
