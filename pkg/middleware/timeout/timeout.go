package timeout

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware bounds every request with a deadline. Handlers observe it through
// c.Request.Context(), which is what the repositories pass to the database driver.
func Middleware(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{
				"error": gin.H{"code": "REQUEST_TIMEOUT", "message": "request timed out", "status": http.StatusGatewayTimeout},
			})
		}
	}
}
