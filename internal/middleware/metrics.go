package middleware

import (
	"strconv"
	"time"

	"github.com/SergeiKhy/linkregistry/internal/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics записывает Prometheus метрики HTTP запросов.
// В метку route попадает шаблон маршрута, а не путь, чтобы коды не раздували кардинальность.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
	}
}
