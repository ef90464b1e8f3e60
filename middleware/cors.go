// api/middleware/cors.go
package middleware

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

// CORSMiddleware handles Cross-Origin Resource Sharing for the capture and
// dashboard endpoints. Tracked pages live on a different origin than this
// collector, so every /api/track POST is a cross-origin request.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Default to the local demo page; override with TRACKED_ORIGIN for
		// deployment. Avoid "*": the dashboard sends credentials.
		c.Writer.Header().Set("Access-Control-Allow-Origin", "http://localhost:3000")
		if os.Getenv("TRACKED_ORIGIN") != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", os.Getenv("TRACKED_ORIGIN"))
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-API-KEY")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		// Preflight requests get an empty 204.
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
