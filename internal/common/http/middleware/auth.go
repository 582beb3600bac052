package middleware

import (
	"context"
	"strconv"
	"strings"

	pkgerrors "codearena/pkg/errors"
	"codearena/pkg/utils/contextkey"
	"codearena/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

const (
	principalContextKey = "principal"

	// RoleUser and RoleAdmin are the only roles the platform knows about.
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Principal is the authenticated identity attached to a request.
type Principal struct {
	UserID int64
	Role   string
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool {
	return strings.EqualFold(p.Role, RoleAdmin)
}

// Authenticator validates a raw token and resolves the principal behind it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (Principal, error)
}

// AuthMiddleware enforces JWT validation for protected routes.
// The token is taken from the Authorization header (Bearer scheme),
// falling back to the "token" cookie for browser clients.
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth == nil {
			response.AbortWithErrorCode(c, pkgerrors.ServiceUnavailable, "auth service unavailable")
			return
		}

		token := extractToken(c)
		if token == "" {
			response.AbortWithErrorCode(c, pkgerrors.Unauthorized, "missing credentials")
			return
		}

		principal, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}

		c.Set(principalContextKey, principal)
		ctx := context.WithValue(c.Request.Context(), contextkey.UserID, strconv.FormatInt(principal.UserID, 10))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// OptionalAuthMiddleware resolves the principal when credentials are
// present but lets anonymous requests through. Handlers decide what the
// principal unlocks.
func OptionalAuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if auth == nil || token == "" {
			c.Next()
			return
		}

		principal, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.Next()
			return
		}

		c.Set(principalContextKey, principal)
		ctx := context.WithValue(c.Request.Context(), contextkey.UserID, strconv.FormatInt(principal.UserID, 10))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireAdmin rejects requests whose principal is not an admin.
// It must run after AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			response.AbortWithErrorCode(c, pkgerrors.Unauthorized, "missing credentials")
			return
		}
		if !principal.IsAdmin() {
			response.AbortWithErrorCode(c, pkgerrors.Forbidden, "admin role required")
			return
		}
		c.Next()
	}
}

// GetPrincipal returns the principal set by AuthMiddleware.
func GetPrincipal(c *gin.Context) (Principal, bool) {
	value, exists := c.Get(principalContextKey)
	if !exists {
		return Principal{}, false
	}
	principal, ok := value.(Principal)
	return principal, ok
}

func extractToken(c *gin.Context) string {
	if token := extractBearerToken(c.GetHeader("Authorization")); token != "" {
		return token
	}
	if cookie, err := c.Cookie("token"); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}

func extractBearerToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
