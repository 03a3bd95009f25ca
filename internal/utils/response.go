package utils

import (
	"github.com/gin-gonic/gin"

	"payfast-gateway/internal/apperr"
)

func SuccessResponse(message string, data interface{}) gin.H {
	resp := gin.H{
		"success": true,
		"message": message,
	}
	if data != nil {
		resp["data"] = data
	}
	return resp
}

// ErrorResponse renders err with its kind. Internal failures are reduced to a
// generic message.
func ErrorResponse(err error) gin.H {
	return gin.H{
		"success": false,
		"error":   apperr.Public(err),
		"kind":    apperr.Kind(err),
	}
}
