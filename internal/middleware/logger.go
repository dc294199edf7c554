package middleware

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestID injects an X-Request-ID header into the request and response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// Logger logs one line per request: id, method, path, status, latency and
// response size. Document uploads additionally log the request body size,
// since scan payloads dominate the traffic on the upload route and latency
// means little without them.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		requestID, _ := c.Get("request_id")
		line := fmt.Sprintf("[%s] %s %s %d %s %dB",
			requestID,
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			latency,
			c.Writer.Size(),
		)
		if strings.HasPrefix(c.ContentType(), "multipart/") && c.Request.ContentLength > 0 {
			line += fmt.Sprintf(" upload=%dB", c.Request.ContentLength)
		}
		log.Print(line)
	}
}

// Recovery converts a handler panic into the standard error envelope instead
// of a bare 500.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err interface{}) {
		requestID, _ := c.Get("request_id")
		log.Printf("[%s] panic on %s %s: %v", requestID, c.Request.Method, c.Request.URL.Path, err)
		c.AbortWithStatusJSON(500, gin.H{
			"success": false,
			"error":   gin.H{"code": "INTERNAL_ERROR", "message": "an internal error occurred"},
		})
	})
}
