package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/richxcame/petit-taxi/pkg/validation"
)

// ValidateJSON binds and validates the JSON body into req. Field failures come
// back as *validation.ValidationError.
func ValidateJSON(c *gin.Context, req interface{}) error {
	return validation.FromBindError(c.ShouldBindJSON(req))
}

// ValidateQuery binds and validates query parameters into req
func ValidateQuery(c *gin.Context, req interface{}) error {
	return validation.FromBindError(c.ShouldBindQuery(req))
}
