package camera

import (
	"errors"

	"github.com/cicerolneto/entangle/control"
	"github.com/cicerolneto/entangle/gphoto"
)

var errRootNotGroup = errors.New("configuration root is not a window or section")

// Controls returns the settings of the camera.  The tree is read from the
// device on first use and kept until Disconnect.  Setting the value of a
// Choice, Range, Text or Toggle in it writes the whole configuration back to
// the camera; failures of that write are logged and the node keeps its new
// value.
func (s *Session) Controls() (*control.Group, error) {
	if s.dev == nil {
		return nil, ErrNotConnected
	}
	if s.controls != nil {
		return s.controls, nil
	}
	log := logger()
	widgets, err := s.dev.Config()
	if err != nil {
		log.Error().Err(err).Msg("reading configuration failed")
		return nil, &DeviceError{Op: "get config", Err: err}
	}
	root, err := control.Build("", widgets)
	if err != nil {
		log.Error().Err(err).Msg("building controls failed")
		return nil, err
	}
	grp, ok := root.(*control.Group)
	if !ok {
		err := &control.BuildError{Path: root.Common().Path, Err: errRootNotGroup}
		log.Error().Err(err).Msg("building controls failed")
		return nil, err
	}
	control.Walk(grp, func(n control.Node) error {
		if w, ok := n.(control.Watchable); ok {
			s.unwatch = append(s.unwatch, w.Watch(s.push))
		}
		return nil
	})
	s.widgets = widgets
	s.controls = grp
	return grp, nil
}

// push writes the value of n into the device widget with the same id, then
// sends the whole widget tree to the camera
func (s *Session) push(n control.Node) {
	b := n.Common()
	log := logger().With().Str("path", b.Path).Int("id", b.ID).Logger()
	log.Debug().Msg("update of control")
	if s.dev == nil || s.widgets == nil {
		log.Warn().Msg("control changed while disconnected")
		return
	}
	w, err := s.widgets.ChildByID(b.ID)
	if err != nil {
		log.Warn().Err(err).Msg("cannot find widget")
		return
	}
	if err := setWidget(w, n); err != nil {
		log.Warn().Err(err).Msg("cannot set widget")
	}
	if err := s.dev.SetConfig(s.widgets); err != nil {
		log.Warn().Err(err).Msg("cannot set config")
	}
}

func setWidget(w gphoto.Widget, n control.Node) error {
	switch v := n.(type) {
	case *control.Choice:
		return w.SetString(v.Value())
	case *control.Text:
		return w.SetString(v.Value())
	case *control.Range:
		return w.SetFloat(v.Value())
	case *control.Toggle:
		i := 0
		if v.Value() {
			i = 1
		}
		return w.SetInt(i)
	}
	return nil
}
