package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/cuongbtq/jobmatch-be/internal/i18n"
	"github.com/gin-gonic/gin"
)

// Role is the marketplace role stored on a user's profile row
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleFactory Role = "factory"
	RoleWorker  Role = "worker"
)

// Paths the gate redirects to in page mode
const (
	LoginPath    = "/login"
	RegisterPath = "/register"
)

const roleKey = "auth.role"

// ErrNoRole is returned by a RoleLookup when the user has no profile row
var ErrNoRole = errors.New("no role for user")

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleFactory, RoleWorker:
		return true
	}
	return false
}

// HomePath is where a signed-in user of the given role lands
func HomePath(r Role) string {
	switch r {
	case RoleAdmin:
		return "/admin"
	case RoleFactory:
		return "/factory/dashboard"
	case RoleWorker:
		return "/worker/dashboard"
	}
	return "/"
}

// RoleLookup fetches the role for a user id
type RoleLookup func(ctx context.Context, userID string) (Role, error)

// Gate builds role-checking middleware. Authorization is also enforced by
// the database; the gate only keeps callers off routes they cannot use.
type Gate struct {
	lookup     RoleLookup
	translator *i18n.Translator
	logger     *slog.Logger
}

// NewGate creates a Gate
func NewGate(lookup RoleLookup, translator *i18n.Translator, logger *slog.Logger) *Gate {
	return &Gate{lookup: lookup, translator: translator, logger: logger}
}

// RequireUser answers 401 when the request has no verified identity
func (g *Gate) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := ClaimsFromContext(c.Request.Context()); !ok {
			g.abortJSON(c, http.StatusUnauthorized, "errors.unauthorized")
			return
		}
		c.Next()
	}
}

// RequireRole is the API form of the gate: 401 without an identity, 403
// when the profile row is missing or its role is not one of roles.
func (g *Gate) RequireRole(roles ...Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c.Request.Context())
		if !ok {
			g.abortJSON(c, http.StatusUnauthorized, "errors.unauthorized")
			return
		}

		role, err := g.lookup(c.Request.Context(), claims.Subject)
		switch {
		case errors.Is(err, ErrNoRole):
			g.abortJSON(c, http.StatusForbidden, "errors.forbidden")
			return
		case err != nil:
			g.logger.Error("Failed to look up role",
				slog.String("user_id", claims.Subject),
				slog.Any("error", err),
			)
			g.abortJSON(c, http.StatusInternalServerError, "errors.generic")
			return
		}

		if !slices.Contains(roles, role) {
			g.abortJSON(c, http.StatusForbidden, "errors.forbidden")
			return
		}

		c.Set(roleKey, role)
		c.Next()
	}
}

// RequirePageRole is the browser form of the gate: redirect to the login
// page without an identity, to registration without a profile, and to the
// user's own home when the role does not match.
func (g *Gate) RequirePageRole(roles ...Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c.Request.Context())
		if !ok {
			redirect(c, LoginPath)
			return
		}

		role, err := g.lookup(c.Request.Context(), claims.Subject)
		switch {
		case errors.Is(err, ErrNoRole):
			redirect(c, RegisterPath)
			return
		case err != nil:
			g.logger.Error("Failed to look up role",
				slog.String("user_id", claims.Subject),
				slog.Any("error", err),
			)
			redirect(c, LoginPath+"?error=auth")
			return
		}

		if !slices.Contains(roles, role) {
			redirect(c, HomePath(role))
			return
		}

		c.Set(roleKey, role)
		c.Next()
	}
}

// RoleFromContext returns the role a gate resolved for this request
func RoleFromContext(c *gin.Context) (Role, bool) {
	v, ok := c.Get(roleKey)
	if !ok {
		return "", false
	}
	role, ok := v.(Role)
	return role, ok
}

func (g *Gate) abortJSON(c *gin.Context, status int, key string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": g.translator.T(i18n.FromRequest(c.Request), key, nil),
	})
}

func redirect(c *gin.Context, path string) {
	c.Redirect(http.StatusFound, path)
	c.Abort()
}
