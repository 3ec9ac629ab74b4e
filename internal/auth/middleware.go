package auth

import (
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"
)

// AccessTokenCookie carries the session token for browser requests
const AccessTokenCookie = "access_token"

// Authenticate resolves the caller's identity from a bearer header or the
// session cookie and stores the claims on the request context. It never
// rejects: routes that need an identity add a Gate check after it.
func Authenticate(verifier TokenVerifier, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, source := tokenFromRequest(c)
		if token == "" || verifier == nil {
			c.Next()
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			logger.Debug("Ignoring invalid access token",
				slog.String("path", c.Request.URL.Path),
				slog.String("source", source),
				slog.Any("error", err),
			)
			c.Next()
			return
		}

		c.Request = c.Request.WithContext(WithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

func tokenFromRequest(c *gin.Context) (token, source string) {
	if header := c.GetHeader("Authorization"); header != "" {
		if token, ok := extractBearerToken(header); ok {
			return token, "header"
		}
		return "", "header"
	}
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie != "" {
		return cookie, "cookie"
	}
	return "", ""
}

func extractBearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
