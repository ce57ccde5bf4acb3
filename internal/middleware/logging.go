package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const RequestIDHeader = "X-Request-ID"

// RequestLogger tags each request with an ID and logs it once it completes.
func RequestLogger(log *logrus.Logger) gin.HandlerFunc {
	entry := log.WithField("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)

		c.Next()

		fields := logrus.Fields{
			"request_id": id,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		}
		if uid := GetUserID(c); uid != "" {
			fields["user_id"] = uid
		}
		e := entry.WithFields(fields)
		switch {
		case len(c.Errors) > 0:
			e.WithField("errors", c.Errors.String()).Error("request failed")
		case c.Writer.Status() >= 500:
			e.Error("request")
		case c.Writer.Status() >= 400:
			e.Warn("request")
		default:
			e.Info("request")
		}
	}
}
