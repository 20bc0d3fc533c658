package smartmine

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// DimensionPolicy decides whether an image must be downsampled before it
// is submitted to a service. The constraint itself lives server side.
type DimensionPolicy struct {
	transport Transport
	logger    *zap.Logger
}

func NewDimensionPolicy(transport Transport, logger *zap.Logger) *DimensionPolicy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DimensionPolicy{transport: transport, logger: logger}
}

// Target returns nil if size is acceptable for service, otherwise the
// smaller size the image has to be resized to.
func (p *DimensionPolicy) Target(ctx context.Context, bearer string, service ServiceName, size Dimensions) (*Dimensions, error) {
	if !size.Valid() {
		return nil, fmt.Errorf("%w: invalid source size %s", ErrDimensionCheck, size)
	}

	target, err := p.transport.CheckDimensions(ctx, bearer, service, size)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, nil
	}
	if !target.Valid() {
		return nil, fmt.Errorf("%w: service %s returned invalid size %s", ErrDimensionCheck, service, *target)
	}
	if target.Width >= size.Width && target.Height >= size.Height {
		p.logger.Debug("Ignoring non-reducing resize target",
			zap.String("service", service.String()),
			zap.Stringer("size", size),
			zap.Stringer("target", *target))
		return nil, nil
	}

	p.logger.Info("Image requires resize",
		zap.String("service", service.String()),
		zap.Stringer("size", size),
		zap.Stringer("target", *target))
	return target, nil
}
