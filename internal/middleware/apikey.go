package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Ключи контекста gin, которые выставляет APIKey
const (
	ContextKeyValidated = "api_key_validated"
	ContextKeyName      = "api_key_name"
)

// APIKeyConfig конфигурация для API key аутентификации
type APIKeyConfig struct {
	// ValidKeys карта валидных API ключей к их описаниям
	ValidKeys map[string]string
	// HeaderName имя заголовка для API ключа (по умолчанию: X-API-Key)
	HeaderName string
	// Optional пропускает запросы без ключа, помечая их как неаутентифицированные
	Optional bool
}

// APIKey middleware аутентификации управляющих эндпоинтов
type APIKey struct {
	config APIKeyConfig
}

// NewAPIKey создаёт новый API key middleware
func NewAPIKey(config APIKeyConfig) *APIKey {
	if config.HeaderName == "" {
		config.HeaderName = "X-API-Key"
	}
	return &APIKey{config: config}
}

// Middleware принимает ключ из заголовка или из Authorization: Bearer.
// Ключ в query не принимается: он оседает в логах доступа.
func (ak *APIKey) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(ak.config.HeaderName)
		if apiKey == "" {
			if token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
				apiKey = strings.TrimSpace(token)
			}
		}

		if apiKey == "" {
			if ak.config.Optional {
				c.Set(ContextKeyValidated, false)
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_api_key",
				"message": "Требуется API ключ: заголовок " + ak.config.HeaderName + " или Authorization: Bearer",
			})
			return
		}

		name, ok := ak.lookup(apiKey)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_api_key",
				"message": "Невалидный API ключ",
			})
			return
		}

		c.Set(ContextKeyValidated, true)
		c.Set(ContextKeyName, name)
		c.Next()
	}
}

// lookup сравнивает ключ со всеми валидными за постоянное время
func (ak *APIKey) lookup(apiKey string) (string, bool) {
	var (
		found bool
		name  string
	)
	for validKey, keyName := range ak.config.ValidKeys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(validKey)) == 1 {
			found = true
			name = keyName
		}
	}
	return name, found
}

// RequireAPIKey хелпер для middleware, требующего API ключ
func RequireAPIKey(validKeys map[string]string) gin.HandlerFunc {
	return NewAPIKey(APIKeyConfig{ValidKeys: validKeys}).Middleware()
}

// APIKeyName возвращает имя ключа, под которым прошёл запрос
func APIKeyName(c *gin.Context) (string, bool) {
	return c.GetString(ContextKeyName), c.GetBool(ContextKeyValidated)
}
