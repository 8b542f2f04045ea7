//go:build !linux

package gpio

// RealDriver is not available on non-Linux platforms.
type RealDriver struct{}

// NewRealDriver returns a driver whose Watch always fails.
func NewRealDriver(chip string) *RealDriver {
	return &RealDriver{}
}

// Watch returns ErrUnsupported on non-Linux platforms.
func (d *RealDriver) Watch(cfg WatchConfig, handler Handler) (Subscription, error) {
	return nil, ErrUnsupported
}
