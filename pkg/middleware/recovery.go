package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/petit-taxi/pkg/common"
	"github.com/richxcame/petit-taxi/pkg/logger"
	"go.uber.org/zap"
)

// ActiveRideFunc reports the ride in progress, if any
type ActiveRideFunc func() (int64, bool)

// Recovery middleware recovers from panics. When activeRide is set the log
// entry carries the ride in progress.
func Recovery(activeRide ActiveRideFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				fields := []zap.Field{
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
				}
				if activeRide != nil {
					if id, ok := activeRide(); ok {
						fields = append(fields, zap.Int64("ride_id", id))
					}
				}
				logger.WithContext(c.Request.Context()).Error("Panic recovered", fields...)

				common.ErrorResponse(c, http.StatusInternalServerError, "internal server error")
				c.Abort()
			}
		}()

		c.Next()
	}
}
