package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"project-chat/internal/auth"
	"project-chat/internal/models"
)

const (
	IdentityKey = "identity"
	UserIDKey   = "userID"
)

// AuthMiddleware resolves the bearer token into an identity before the
// handler runs. Rejected credentials answer 401; a failing identity
// collaborator answers 503.
func AuthMiddleware(resolver auth.IdentityResolver, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		identity, err := resolver.ResolveIdentity(c.Request.Context(), token)
		if err != nil {
			if auth.IsCredentialError(err) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			logger.Error("identity lookup failed", "error", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "identity service unavailable"})
			return
		}

		c.Set(IdentityKey, identity)
		c.Set(UserIDKey, identity.ID)
		c.Next()
	}
}

// BearerToken extracts the credential from the Authorization header, or from
// the token query parameter which browsers use for websocket handshakes.
func BearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return "", false
		}
		token := strings.TrimSpace(parts[1])
		return token, token != ""
	}
	token := strings.TrimSpace(c.Query("token"))
	return token, token != ""
}

// IdentityFromContext returns the identity stored by AuthMiddleware.
func IdentityFromContext(c *gin.Context) (models.Identity, bool) {
	val, ok := c.Get(IdentityKey)
	if !ok {
		return models.Identity{}, false
	}
	identity, ok := val.(models.Identity)
	return identity, ok
}
