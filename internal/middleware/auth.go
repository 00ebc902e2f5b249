package middleware

import (
	"context"
	"net/http"
	"strings"

	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/Troviny/troviny-backend/internal/metrics"
	"github.com/Troviny/troviny-backend/internal/security"
)

const (
	ContextUserIDKey      = "user_id"
	ContextAccessTokenKey = "access_token"
)

// Blacklist is the revocation-set lookup the gatekeeper consults.
type Blacklist interface {
	IsAccessTokenBlacklisted(ctx context.Context, token string) (bool, error)
}

// Gatekeeper rejects any request presenting a blacklisted access token
// before it reaches a handler. An absent Authorization header passes
// through untouched; whether authentication is required at all is the
// route's own concern.
func Gatekeeper(blacklist Blacklist, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		parts := strings.Split(header, " ")
		if len(parts) < 2 || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "MALFORMED_AUTH_HEADER", "message": "Invalid token format"})
			return
		}
		token := parts[1]

		blacklisted, err := blacklist.IsAccessTokenBlacklisted(c.Request.Context(), token)
		if err != nil {
			logger.Error("blacklist lookup failed", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "message": "internal error"})
			return
		}
		if blacklisted {
			metrics.BlacklistRejections.Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "TOKEN_REVOKED", "message": "Invalid token, please log in again"})
			return
		}

		c.Next()
	}
}

// ExtractBearer returns the token part of a "Bearer <token>" header, or ""
// when the header is missing or not bearer-shaped.
func ExtractBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireAuth validates the bearer access token and stashes the account id
// and the raw token value in the gin context.
func RequireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractBearer(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "missing token"})
			return
		}

		claims, err := security.ParseTokenOfType(token, secret, security.TokenTypeAccess)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "invalid token"})
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "invalid token"})
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Set(ContextAccessTokenKey, token)
		c.Next()
	}
}

// UserIDFromContext returns the account id stashed by RequireAuth.
func UserIDFromContext(c *gin.Context) (int64, bool) {
	val, ok := c.Get(ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := val.(int64)
	return id, ok
}

// AccessTokenFromContext returns the raw access token stashed by RequireAuth.
func AccessTokenFromContext(c *gin.Context) (string, bool) {
	val, ok := c.Get(ContextAccessTokenKey)
	if !ok {
		return "", false
	}
	token, ok := val.(string)
	return token, ok
}
