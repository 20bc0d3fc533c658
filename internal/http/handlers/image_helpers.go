package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/phambaophuc/smartmine-client/internal/models"
	"github.com/phambaophuc/smartmine-client/internal/services/processor"
	"github.com/phambaophuc/smartmine-client/internal/services/storage"
	"github.com/phambaophuc/smartmine-client/pkg/smartmine"
)

func respondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, models.APIResponse{
		Success: false,
		Error:   message,
	})
}

// statusForError maps client and pipeline failures to gateway responses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, processor.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, smartmine.ErrInvalidService),
		errors.Is(err, smartmine.ErrInvalidImage),
		errors.Is(err, smartmine.ErrNoMatchingFiles):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, smartmine.ErrProcessingFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, smartmine.ErrServerUnreachable):
		return http.StatusServiceUnavailable
	case errors.Is(err, smartmine.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, smartmine.ErrMissingCredentials),
		errors.Is(err, smartmine.ErrLogin),
		errors.Is(err, smartmine.ErrDimensionCheck),
		errors.Is(err, smartmine.ErrRequestToken),
		errors.Is(err, smartmine.ErrUpload),
		errors.Is(err, smartmine.ErrStartProcessing),
		errors.Is(err, smartmine.ErrProgress),
		errors.Is(err, smartmine.ErrDownload):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
