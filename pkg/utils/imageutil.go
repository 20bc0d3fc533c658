package utils

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

var ErrInvalidImage = errors.New("invalid image")

// ImageDimensions reads the width and height of the image at path without
// decoding its pixels.
func ImageDimensions(path string) (int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s: %v", ErrInvalidImage, path, err)
	}
	return cfg.Width, cfg.Height, nil
}

// ResizeImage scales src to exactly width x height, ignoring the aspect
// ratio, and writes the result to dst.
func ResizeImage(src string, width, height int, dst string) (string, error) {
	if width <= 0 || height <= 0 {
		return "", fmt.Errorf("invalid target size %dx%d", width, height)
	}

	img, err := imaging.Open(src)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidImage, src, err)
	}

	resized := imaging.Resize(img, width, height, imaging.Lanczos)
	if err := saveImage(resized, dst, src); err != nil {
		return "", err
	}
	return dst, nil
}

// ResizeImageToTemp is ResizeImage into a freshly allocated file in dir
// (os.TempDir when empty) that keeps the source file name as suffix.
// The caller owns deleting the returned path.
func ResizeImageToTemp(src string, width, height int, dir string) (string, error) {
	path, release, err := CreateScratchFile(dir, src)
	if err != nil {
		return "", err
	}
	if _, err := ResizeImage(src, width, height, path); err != nil {
		release()
		return "", err
	}
	return path, nil
}

// CreateScratchFile allocates an empty temporary file named after like.
// release removes it and may be called any number of times.
func CreateScratchFile(dir, like string) (string, func(), error) {
	base := strings.ReplaceAll(filepath.Base(like), "*", "_")
	file, err := os.CreateTemp(dir, "smartmine-*-"+base)
	if err != nil {
		return "", func() {}, fmt.Errorf("failed to create temporary file: %w", err)
	}
	name := file.Name()
	if err := file.Close(); err != nil {
		os.Remove(name)
		return "", func() {}, fmt.Errorf("failed to create temporary file: %w", err)
	}

	var once sync.Once
	release := func() {
		once.Do(func() { os.Remove(name) })
	}
	return name, release, nil
}

func saveImage(img image.Image, dst, src string) error {
	format, err := imaging.FormatFromFilename(dst)
	if err != nil {
		if format, err = imaging.FormatFromFilename(src); err != nil {
			format = imaging.PNG
		}
	}

	file, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if err := imaging.Encode(file, img, format, imaging.JPEGQuality(95)); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode image: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}

// IsValidImageType checks if content type is a valid image type
func IsValidImageType(contentType string) bool {
	validTypes := []string{
		"image/jpeg",
		"image/jpg",
		"image/png",
		"image/gif",
		"image/webp",
		"image/bmp",
		"image/tiff",
	}

	ct := strings.ToLower(contentType)
	for _, validType := range validTypes {
		if strings.Contains(ct, validType) {
			return true
		}
	}
	return false
}

func GenerateStorageKey(filename string) string {
	ext := filepath.Ext(filename)
	name := strings.TrimSuffix(filename, ext)
	timestamp := time.Now().Unix()
	uuid := uuid.New().String()[:8]

	return fmt.Sprintf("processed/%s_%d_%s%s", name, timestamp, uuid, ext)
}
