package middleware

import (
	"log"
	"net/http"
	"os"

	"sitepulse/api/utils"

	"github.com/gin-gonic/gin"
)

// AuthRequired protects the dashboard routes (reports, GA config, forwarder
// log). A request passes with either a valid JWT (cookie or bearer header)
// or the static DASHBOARD_API_KEY for scripted access. The capture endpoints
// are deliberately left outside this gate: the tracked page posts
// anonymously.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := os.Getenv("DASHBOARD_API_KEY"); key != "" && c.GetHeader("X-API-KEY") == key {
			c.Next()
			return
		}
		tokenString, err := c.Cookie("jwt_token")
		if err != nil {
			tokenString = c.GetHeader("Authorization")
			if tokenString == "" {
				log.Println("AuthRequired: No JWT token found in cookie or header")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: No token provided"})
				return
			}
			if len(tokenString) > 7 && tokenString[:7] == "Bearer " {
				tokenString = tokenString[7:]
			}
		}
		claims, err := utils.ValidateJWT(tokenString)
		if err != nil {
			log.Printf("AuthRequired: Invalid JWT token: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid or expired token"})
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_email", claims.Email)

		log.Printf("AuthRequired: User authenticated - ID: %d, Email: %s", claims.UserID, claims.Email)
		c.Next()
	}
}
