//go:build gphoto2

package gphoto

import (
	"github.com/google/gousb"
)

// ScanUSB lists the attached USB devices exposing a still image (PTP)
// interface.  It does not claim the devices, so it is safe to call while
// libgphoto2 holds one of them open.
func ScanUSB() ([]USBCamera, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		for _, cfg := range desc.Configs {
			for _, intf := range cfg.Interfaces {
				for _, alt := range intf.AltSettings {
					if alt.Class == gousb.Class(classStillImage) {
						return true
					}
				}
			}
		}
		return false
	})
	// OpenDevices returns the devices it managed to open alongside the
	// error for the ones it could not, so keep going when some were found
	if err != nil && len(devs) == 0 {
		return nil, err
	}
	out := make([]USBCamera, 0, len(devs))
	for _, d := range devs {
		cam := USBCamera{
			Bus:     d.Desc.Bus,
			Address: d.Desc.Address,
			Vendor:  uint16(d.Desc.Vendor),
			Product: uint16(d.Desc.Product),
		}
		cam.Manufacturer, _ = d.Manufacturer()
		cam.Name, _ = d.Product()
		d.Close()
		out = append(out, cam)
	}
	return out, nil
}
