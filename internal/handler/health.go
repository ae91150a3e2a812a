package handler

import (
	"net/http"
	"time"

	"github.com/SergeiKhy/linkregistry/internal/service"
	"github.com/gin-gonic/gin"
)

type HealthResponse struct {
	OK            bool                  `json:"ok"`
	Version       string                `json:"version"`
	UptimeSeconds int64                 `json:"uptimeSeconds"`
	Timestamp     time.Time             `json:"timestamp"`
	ClickQueue    *service.ChannelStats `json:"clickQueue,omitempty"`
}

// HealthCheck отвечает, пока процесс жив; хранилище не опрашивается.
// Заполненность очереди кликов показывает отставание записи счётчиков.
func HealthCheck(version string, startedAt time.Time, clicks service.ClickProcessor) gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now().UTC()
		resp := HealthResponse{
			OK:            true,
			Version:       version,
			UptimeSeconds: int64(now.Sub(startedAt).Seconds()),
			Timestamp:     now,
		}
		if clicks != nil {
			stats := clicks.GetChannelStats()
			resp.ClickQueue = &stats
		}
		c.JSON(http.StatusOK, resp)
	}
}
