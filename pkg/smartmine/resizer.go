package smartmine

import "github.com/phambaophuc/smartmine-client/pkg/utils"

// ImageResizer measures and resizes local image files.
type ImageResizer interface {
	Dimensions(path string) (Dimensions, error)
	// Resize writes src scaled to exactly size. An empty dst allocates a
	// temporary file in tempDir; the caller owns deleting it.
	Resize(src string, size Dimensions, dst, tempDir string) (string, error)
}

type imagingResizer struct{}

// NewImagingResizer returns the ImageResizer backed by pkg/utils.
func NewImagingResizer() ImageResizer {
	return imagingResizer{}
}

func (imagingResizer) Dimensions(path string) (Dimensions, error) {
	w, h, err := utils.ImageDimensions(path)
	if err != nil {
		return Dimensions{}, err
	}
	return Dimensions{Width: w, Height: h}, nil
}

func (imagingResizer) Resize(src string, size Dimensions, dst, tempDir string) (string, error) {
	if dst == "" {
		return utils.ResizeImageToTemp(src, size.Width, size.Height, tempDir)
	}
	return utils.ResizeImage(src, size.Width, size.Height, dst)
}
