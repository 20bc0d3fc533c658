package smartmine

import (
	"fmt"
	"strings"
)

// ServiceName identifies a remote processing capability.
type ServiceName string

const (
	ServiceImageSuperResolution ServiceName = "image-super-resolution"
	ServiceImageDeblurring      ServiceName = "image-deblurring"
	ServiceImageRestoration     ServiceName = "image-restoration"
	ServiceImageDenoising       ServiceName = "image-denoising"
	ServiceImageEnhancement     ServiceName = "image-enhancement"
)

var allServices = []ServiceName{
	ServiceImageSuperResolution,
	ServiceImageDeblurring,
	ServiceImageRestoration,
	ServiceImageDenoising,
	ServiceImageEnhancement,
}

// Services lists every supported service.
func Services() []ServiceName {
	out := make([]ServiceName, len(allServices))
	copy(out, allServices)
	return out
}

func (s ServiceName) String() string { return string(s) }

func (s ServiceName) Valid() bool {
	for _, known := range allServices {
		if s == known {
			return true
		}
	}
	return false
}

// ParseServiceName accepts the wire name of a service, case-insensitively.
func ParseServiceName(value string) (ServiceName, error) {
	s := ServiceName(strings.ToLower(strings.TrimSpace(value)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidService, value)
	}
	return s, nil
}

// ServiceOption is a named setting sent with a usage selection.
type ServiceOption struct {
	Name  string
	Value string
}

// DefaultOption returns the option the API expects when none is chosen.
func (s ServiceName) DefaultOption() (ServiceOption, bool) {
	switch s {
	case ServiceImageSuperResolution:
		return ServiceOption{Name: "upscaling-factor", Value: "2"}, true
	case ServiceImageDeblurring:
		return ServiceOption{Name: "deblur-iterations", Value: "4"}, true
	case ServiceImageRestoration:
		return ServiceOption{Name: "remove-scratches", Value: "disabled"}, true
	case ServiceImageDenoising:
		return ServiceOption{Name: "denoising-strength", Value: "high"}, true
	default:
		return ServiceOption{}, false
	}
}
