package utils

import "github.com/gin-gonic/gin"

// ErrorResponse is the single-message error body every endpoint returns.
func ErrorResponse(message string) gin.H {
	return gin.H{"error": message}
}
