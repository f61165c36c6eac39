// Package ratelimit — ограничение частоты попыток отметки: Redis с окном фиксированной длины
// или token bucket в памяти процесса, если Redis не настроен.
package ratelimit

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Limiter interface {
	// Allow учитывает попытку по ключу и сообщает, разрешена ли она.
	Allow(ctx context.Context, key string) (bool, error)
}

// KeyFunc выбирает ключ лимита для запроса, например id пользователя или IP.
type KeyFunc func(c *gin.Context) string

// ByClientIP — ключ по адресу клиента.
func ByClientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return "ip:" + ip
	}
	return "ip:unknown"
}

// Middleware отвечает 429, когда лимит исчерпан. Ошибка хранилища лимитов не блокирует запрос.
func Middleware(l Limiter, key KeyFunc, log *zap.Logger) gin.HandlerFunc {
	if key == nil {
		key = ByClientIP
	}
	return func(c *gin.Context) {
		k := key(c)
		ok, err := l.Allow(c.Request.Context(), k)
		if err != nil {
			log.Warn("rate limiter unavailable", zap.String("key", k), zap.Error(err))
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"message": "слишком много попыток, повторите позже",
			})
			return
		}
		c.Next()
	}
}
