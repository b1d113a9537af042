// README: Access log and request metrics middleware.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"fleetclaim/internal/observability"
)

func Logging(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		observability.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		observability.HTTPRequestDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())

		fields := logrus.Fields{
			"method":      c.Request.Method,
			"route":       route,
			"status":      status,
			"duration_ms": elapsed.Milliseconds(),
			"remote_addr": c.ClientIP(),
		}
		if rid := RequestIDFrom(c); rid != "" {
			fields["request_id"] = rid
		}
		if uid := CallerUID(c); uid != "" {
			fields["operator_id"] = uid
		}
		if len(c.Errors) > 0 {
			fields["error"] = c.Errors.Last().Error()
		}
		entry := log.WithFields(fields)
		switch {
		case status >= 500:
			entry.Error("http_request")
		case status >= 400:
			entry.Warn("http_request")
		default:
			entry.Info("http_request")
		}
	}
}
