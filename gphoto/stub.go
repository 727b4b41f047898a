//go:build !gphoto2

package gphoto

// NewLibDriver is only available when built with the gphoto2 tag
func NewLibDriver() (Driver, error) {
	return nil, ErrNotSupported
}

// ScanUSB is only available when built with the gphoto2 tag
func ScanUSB() ([]USBCamera, error) {
	return nil, ErrNotSupported
}
