package handlers

import (
	"context"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/phambaophuc/smartmine-client/internal/models"
	"github.com/phambaophuc/smartmine-client/internal/services/processor"
	"github.com/phambaophuc/smartmine-client/pkg/smartmine"
	"github.com/phambaophuc/smartmine-client/pkg/utils"
)

const (
	imageParamKey   = "image"
	serviceParamKey = "service"
	restoreParamKey = "restore"
)

type ImageProcessor interface {
	ProcessUpload(ctx context.Context, service smartmine.ServiceName, filename string, r io.Reader, restore bool) (string, func(), error)
}

type ResultMirror interface {
	MirrorFileAs(ctx context.Context, path, name string) (string, error)
}

type ImageHandler struct {
	processor   ImageProcessor
	storage     ResultMirror
	logger      *zap.Logger
	maxFileSize int64
}

// NewImageHandler builds the upload handler. storage may be nil, in which
// case results are returned in the response body.
func NewImageHandler(
	processor ImageProcessor,
	storage ResultMirror,
	logger *zap.Logger,
	maxFileSize int64,
) *ImageHandler {
	return &ImageHandler{
		processor:   processor,
		storage:     storage,
		logger:      logger,
		maxFileSize: maxFileSize,
	}
}

// === MAIN API ENDPOINTS ===

func (h *ImageHandler) ProcessImage(c *gin.Context) {
	file, header, err := c.Request.FormFile(imageParamKey)
	if err != nil {
		respondError(c, http.StatusBadRequest, "No image file provided")
		return
	}
	defer file.Close()

	service, err := smartmine.ParseServiceName(c.PostForm(serviceParamKey))
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	restore, err := parseRestore(c.PostForm(restoreParamKey))
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := processor.ValidateImage(file, h.maxFileSize); err != nil {
		respondError(c, statusForError(err), "Invalid image: "+err.Error())
		return
	}

	output, release, err := h.processor.ProcessUpload(c.Request.Context(), service, header.Filename, file, restore)
	if err != nil {
		h.logger.Error("Processing failed",
			zap.String("filename", header.Filename),
			zap.String("service", service.String()),
			zap.Error(err))
		respondError(c, statusForError(err), err.Error())
		return
	}
	defer release()

	if h.storage == nil {
		c.FileAttachment(output, header.Filename)
		return
	}

	h.respondWithURL(c, output, header.Filename, service)
}

// === HELPERS ===

func (h *ImageHandler) respondWithURL(c *gin.Context, output, filename string, service smartmine.ServiceName) {
	url, err := h.storage.MirrorFileAs(c.Request.Context(), output, filename)
	if err != nil {
		h.logger.Error("Failed to mirror result", zap.Error(err))
		respondError(c, http.StatusBadGateway, "Failed to store processed image")
		return
	}

	result := models.ProcessedImage{
		ID:          uuid.New().String(),
		Service:     service.String(),
		Filename:    filename,
		URL:         url,
		ProcessedAt: time.Now(),
	}
	if width, height, err := utils.ImageDimensions(output); err == nil {
		result.Width, result.Height = width, height
	}
	if info, err := os.Stat(output); err == nil {
		result.FileSize = info.Size()
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Data:    result,
	})
}

func parseRestore(value string) (bool, error) {
	if value == "" {
		return true, nil
	}
	restore, err := strconv.ParseBool(value)
	if err != nil {
		return false, err
	}
	return restore, nil
}
