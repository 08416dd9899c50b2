package v1

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shenikar/emergency_dispatch_system/internal/config"
	"github.com/sirupsen/logrus"
)

const callerIDKey = "callerID"

// APIKeyAuthMiddleware - middleware для аутентификации по API-ключу
func APIKeyAuthMiddleware(cfg *config.Config, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			// Проверяем также заголовок Authorization: Bearer
			authHeader := c.GetHeader("Authorization")
			if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
				apiKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if apiKey == "" {
			log.Warn("API key missing from request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
			return
		}

		isValid := false
		for _, key := range cfg.APIKeys {
			if key == apiKey {
				isValid = true
				break
			}
		}

		if !isValid {
			log.Warnf("Invalid API key provided: %s", apiKey)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			return
		}

		c.Next()
	}
}

// CallerIdentityMiddleware извлекает идентичность вызывающего из заголовка
// X-User-ID. Ядро идентичность не создает и не меняет - это забота
// внешнего сервиса аутентификации.
func CallerIdentityMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-User-ID")
		if raw == "" {
			log.Warn("Caller identity missing from request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "caller identity required"})
			return
		}

		callerID, err := uuid.Parse(raw)
		if err != nil {
			log.Warnf("Invalid caller identity provided: %s", raw)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid caller identity"})
			return
		}

		c.Set(callerIDKey, callerID)
		c.Next()
	}
}

// CallerID возвращает идентичность вызывающего, установленную middleware
func CallerID(c *gin.Context) uuid.UUID {
	if id, exists := c.Get(callerIDKey); exists {
		if callerID, ok := id.(uuid.UUID); ok {
			return callerID
		}
	}
	return uuid.Nil
}
