package gphoto

import "fmt"

// classStillImage is the USB interface class of PTP cameras
const classStillImage = 0x06

// USBCamera is a still image class device found on the USB bus
type USBCamera struct {
	Bus          int
	Address      int
	Vendor       uint16
	Product      uint16
	Manufacturer string
	Name         string
}

// Port returns the libgphoto2 port path of the camera, for example usb:001,004
func (u USBCamera) Port() string {
	return fmt.Sprintf("usb:%03d,%03d", u.Bus, u.Address)
}

func (u USBCamera) String() string {
	return fmt.Sprintf("%04x:%04x %s %s (%s)", u.Vendor, u.Product, u.Manufacturer, u.Name, u.Port())
}
