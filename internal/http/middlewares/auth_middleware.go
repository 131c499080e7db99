package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/geocoder89/apextrades/internal/actorctx"
	"github.com/geocoder89/apextrades/internal/auth"
	"github.com/geocoder89/apextrades/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type Authenticator interface {
	Authenticate(rawToken string) (auth.Identity, error)
}

type AuthMiddleware struct {
	authn Authenticator
}

func NewAuthMiddleware(authn Authenticator) *AuthMiddleware {
	return &AuthMiddleware{authn: authn}
}

// RequireAuth answers 401 when no bearer token is sent and 403 when the
// token is present but does not verify.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))

		id, err := m.authn.Authenticate(raw)
		if err != nil {
			if errors.Is(err, user.ErrUnauthenticated) {
				abortError(c, http.StatusUnauthorized, "unauthorized", "Access denied. No token provided.")
				return
			}
			abortError(c, http.StatusForbidden, "forbidden", "Invalid or expired token.")
			return
		}

		// Stash useful bits of identity on the context
		c.Set(CtxUserID, id.UserID)
		c.Set(CtxEmail, id.Email)
		c.Request = c.Request.WithContext(actorctx.WithUserID(c.Request.Context(), id.UserID))

		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Optional helpers so handlers don’t need to know the magic keys.

func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(CtxUserID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func IdentityFromContext(c *gin.Context) (auth.Identity, bool) {
	id, ok := UserIDFromContext(c)
	if !ok {
		return auth.Identity{}, false
	}
	email, _ := c.Get(CtxEmail)
	e, _ := email.(string)
	return auth.Identity{UserID: id, Email: e}, true
}
