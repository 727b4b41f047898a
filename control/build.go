package control

import (
	"fmt"

	"github.com/cicerolneto/entangle/gphoto"
)

// BuildError is returned when a widget of the device tree can not be read
type BuildError struct {
	// Path is the path of the deepest node reached, or the parent path if
	// the name of the failing widget could not be read
	Path string
	Err  error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("building control %q: %v", e.Path, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Build translates a device widget tree into a control tree rooted at
// prefix + "/" + name.  Windows and sections become Groups.  Any failure to
// read a widget aborts the whole build; no partial tree is returned.
//
// Values are set on the nodes before they are returned, and Build registers
// no watchers, so building never writes to the device.
func Build(prefix string, w gphoto.Widget) (Node, error) {
	typ, err := w.Type()
	if err != nil {
		return nil, &BuildError{Path: prefix, Err: err}
	}
	name, err := w.Name()
	if err != nil {
		return nil, &BuildError{Path: prefix, Err: err}
	}
	base := Base{Path: prefix + "/" + name}
	fail := func(err error) (Node, error) {
		return nil, &BuildError{Path: base.Path, Err: err}
	}
	if base.ID, err = w.ID(); err != nil {
		return fail(err)
	}
	if base.Label, err = w.Label(); err != nil {
		return fail(err)
	}
	if base.Info, err = w.Info(); err != nil {
		return fail(err)
	}
	if base.Info == "" {
		base.Info = base.Label
	}
	if base.ReadOnly, err = w.ReadOnly(); err != nil {
		return fail(err)
	}

	switch typ {
	case gphoto.WidgetWindow, gphoto.WidgetSection:
		g := &Group{Base: base}
		for i := 0; i < w.CountChildren(); i++ {
			child, err := w.Child(i)
			if err != nil {
				return fail(err)
			}
			n, err := Build(base.Path, child)
			if err != nil {
				return nil, err
			}
			g.Add(n)
		}
		return g, nil

	case gphoto.WidgetButton:
		return &Button{Base: base}, nil

	case gphoto.WidgetRadio, gphoto.WidgetMenu:
		c := &Choice{Base: base}
		for i := 0; i < w.CountChoices(); i++ {
			s, err := w.Choice(i)
			if err != nil {
				return fail(err)
			}
			c.Choices = append(c.Choices, s)
		}
		if c.value, err = w.StringValue(); err != nil {
			return fail(err)
		}
		return c, nil

	case gphoto.WidgetDate:
		d := &Date{Base: base}
		if d.value, err = w.IntValue(); err != nil {
			return fail(err)
		}
		return d, nil

	case gphoto.WidgetRange:
		r := &Range{Base: base}
		if r.Min, r.Max, r.Step, err = w.Range(); err != nil {
			return fail(err)
		}
		if r.value, err = w.FloatValue(); err != nil {
			return fail(err)
		}
		return r, nil

	case gphoto.WidgetText:
		t := &Text{Base: base}
		if t.value, err = w.StringValue(); err != nil {
			return fail(err)
		}
		return t, nil

	case gphoto.WidgetToggle:
		t := &Toggle{Base: base}
		v, err := w.IntValue()
		if err != nil {
			return fail(err)
		}
		t.value = v != 0
		return t, nil
	}
	return fail(fmt.Errorf("unknown widget type %d", typ))
}
