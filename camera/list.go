package camera

import (
	"github.com/cicerolneto/entangle/gphoto"
)

// List returns a disconnected session for every camera the driver detects,
// with capability hints taken from the model's abilities
func List(drv gphoto.Driver) ([]*Session, error) {
	found, err := drv.Detect()
	if err != nil {
		return nil, &DeviceError{Op: "detect", Err: err}
	}
	out := make([]*Session, 0, len(found))
	for _, d := range found {
		a, err := drv.LookupAbilities(d.Model)
		if err != nil {
			lg := logger()
			lg.Warn().Err(err).Str("model", d.Model).Msg("no abilities for detected camera")
			continue
		}
		ops := a.Operations
		out = append(out, New(drv, d.Model, d.Port,
			ops.Has(gphoto.OperationCaptureImage),
			ops.Has(gphoto.OperationCapturePreview),
			ops.Has(gphoto.OperationConfig)))
	}
	return out, nil
}
