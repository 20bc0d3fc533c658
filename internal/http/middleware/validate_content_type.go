package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/phambaophuc/smartmine-client/internal/models"
)

// ValidateContentType rejects requests whose body is not of the given
// media type, e.g. "multipart/form-data" or "application/json".
func ValidateContentType(mediaType string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !strings.HasPrefix(ctx.ContentType(), mediaType) {
			ctx.AbortWithStatusJSON(http.StatusUnsupportedMediaType, models.APIResponse{
				Success: false,
				Error:   "Content-Type must be " + mediaType,
			})
			return
		}
		ctx.Next()
	}
}
