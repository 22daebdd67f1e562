package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"alignhq.org/internal/audit"
	"alignhq.org/internal/auth"
	"alignhq.org/internal/okr"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/token",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

// RequestID assigns every request a random identifier, echoes it in the
// X-Request-ID header, and threads it through the context for logging.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if rid == "" || len(rid) > 64 {
			rid = newRequestID()
		}
		w.Header().Set("X-Request-ID", rid)
		ctx := context.WithValue(r.Context(), requestIDKey, rid)
		ctx = audit.WithRequestID(ctx, rid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext returns the request identifier, if one was assigned.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

func newRequestID() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(buf[:])
}

// withAuth validates the bearer token on every non-public request and
// attaches the resolved identity to the context.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := auth.ParseAndValidate(token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				writeError(w, r, http.StatusUnauthorized, "invalid token")
				return
			}
			writeError(w, r, http.StatusInternalServerError, "authentication error")
			return
		}

		ctx := auth.ContextWithIdentity(r.Context(), auth.Identity{
			UserID:    claims.Subject,
			CompanyID: claims.CompanyID,
			Roles:     claims.Roles,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// actor resolves the caller identity into the engine's actor shape. When the
// identity carries several roles the broadest one wins.
func (a *API) actor(w http.ResponseWriter, r *http.Request) (okr.Actor, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return okr.Actor{}, false
	}
	return okr.Actor{
		ID:        id.UserID,
		Role:      primaryRole(id.Roles),
		CompanyID: id.CompanyID,
	}, true
}

func primaryRole(roles []string) string {
	byRank := map[string]int{
		okr.RoleOwner:  3,
		okr.RoleAdmin:  2,
		okr.RoleLead:   1,
		okr.RoleMember: 0,
	}
	best := okr.RoleMember
	for _, role := range roles {
		if byRank[role] > byRank[best] {
			best = role
		}
	}
	return best
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
