package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prototrack/prototrack/pkg/auth"
	"github.com/prototrack/prototrack/pkg/model"
	"github.com/prototrack/prototrack/pkg/store/postgres"
)

const principalKey = "principal"

// Auth validates the bearer token and loads the authenticated user,
// role and permissions included, into the request context. Handlers
// downstream can assume Principal never returns nil.
func Auth(tokens *auth.TokenManager, users *postgres.UserRepository, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authorization := c.GetHeader("Authorization")
		if authorization == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}
		parts := strings.SplitN(authorization, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization"})
			return
		}

		claims, err := tokens.Validate(strings.TrimSpace(parts[1]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		user, err := users.GetByID(c.Request.Context(), userID)
		if err != nil {
			// Token outlived the account.
			logger.Debug("token for unknown user", zap.String("user_id", claims.UserID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
			return
		}

		c.Set(principalKey, user)
		c.Next()
	}
}

// Principal returns the authenticated user set by Auth.
func Principal(c *gin.Context) *model.User {
	value, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	user, _ := value.(*model.User)
	return user
}
