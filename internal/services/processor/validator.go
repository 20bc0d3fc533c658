package processor

import (
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"

	"github.com/phambaophuc/smartmine-client/pkg/smartmine"
	"github.com/phambaophuc/smartmine-client/pkg/utils"
)

var ErrFileTooLarge = errors.New("file too large")

// ValidateImage checks the upload size, the sniffed content type and that
// the header decodes as an image. file is rewound before returning.
func ValidateImage(file io.ReadSeeker, maxSize int64) error {
	size, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("failed to read file size: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind file: %w", err)
	}

	if maxSize > 0 && size > maxSize {
		return fmt.Errorf("%w: %d bytes exceeds maximum allowed size %d", ErrFileTooLarge, size, maxSize)
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if contentType := http.DetectContentType(head[:n]); !utils.IsValidImageType(contentType) {
		return fmt.Errorf("%w: unsupported content type %s", smartmine.ErrInvalidImage, contentType)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind file: %w", err)
	}

	if _, _, err := image.DecodeConfig(file); err != nil {
		return fmt.Errorf("%w: %v", smartmine.ErrInvalidImage, err)
	}

	_, err = file.Seek(0, io.SeekStart)
	return err
}
