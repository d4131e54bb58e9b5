package middleware

import (
	"net/http"

	"github.com/cannedoxygen/Sui-Raid/pkg/errutil"

	"github.com/gin-gonic/gin"
)

// Error renders the last error attached to the gin context using the errutil
// status mapping. Errors without a CoreStatus become 500s.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		err := c.Errors.Last()
		if err == nil {
			return
		}

		if v, ok := err.Err.(errutil.BaseError); ok {
			c.JSON(v.Code.HTTPStatus(), v.JSON())
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    errutil.StatusInternal,
				"message": err.Error(),
			},
		})
	}
}
