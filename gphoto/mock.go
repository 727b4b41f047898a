package gphoto

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"time"
)

// Operation names used as keys of MockDevice.Err and MockDevice.Calls
const (
	OpCapture   = "capture"
	OpPreview   = "preview"
	OpFetch     = "fetch"
	OpDelete    = "delete"
	OpWait      = "wait"
	OpConfig    = "config"
	OpSetConfig = "setconfig"
	OpClose     = "close"
)

// MockWidget is an in-memory configuration widget.  Build trees with
// NewMockWidget and the With* and Add methods.
type MockWidget struct {
	kind     WidgetType
	name     string
	id       int
	label    string
	info     string
	readonly bool

	choices        []string
	min, max, step float32
	str            string
	flt            float32
	integer        int
	children       []*MockWidget
	fail           error
}

// NewMockWidget creates a widget with no value
func NewMockWidget(t WidgetType, id int, name, label string) *MockWidget {
	return &MockWidget{kind: t, id: id, name: name, label: label}
}

// WithInfo sets the description of the widget
func (w *MockWidget) WithInfo(s string) *MockWidget {
	w.info = s
	return w
}

// WithReadOnly marks the widget read only
func (w *MockWidget) WithReadOnly() *MockWidget {
	w.readonly = true
	return w
}

// WithChoices sets the options and current value of a radio or menu widget
func (w *MockWidget) WithChoices(current string, choices ...string) *MockWidget {
	w.choices = choices
	w.str = current
	return w
}

// WithRange sets the limits and current value of a range widget
func (w *MockWidget) WithRange(min, max, step, value float32) *MockWidget {
	w.min, w.max, w.step, w.flt = min, max, step, value
	return w
}

// WithString sets the value of a text widget
func (w *MockWidget) WithString(s string) *MockWidget {
	w.str = s
	return w
}

// WithInt sets the value of a toggle or date widget
func (w *MockWidget) WithInt(i int) *MockWidget {
	w.integer = i
	return w
}

// FailWith makes every accessor of the widget return err
func (w *MockWidget) FailWith(err error) *MockWidget {
	w.fail = err
	return w
}

// Add appends children in order
func (w *MockWidget) Add(children ...*MockWidget) *MockWidget {
	w.children = append(w.children, children...)
	return w
}

func (w *MockWidget) Type() (WidgetType, error) { return w.kind, w.fail }
func (w *MockWidget) Name() (string, error)     { return w.name, w.fail }
func (w *MockWidget) ID() (int, error)          { return w.id, w.fail }
func (w *MockWidget) Label() (string, error)    { return w.label, w.fail }
func (w *MockWidget) Info() (string, error)     { return w.info, w.fail }
func (w *MockWidget) ReadOnly() (bool, error)   { return w.readonly, w.fail }

func (w *MockWidget) CountChildren() int { return len(w.children) }

func (w *MockWidget) Child(i int) (Widget, error) {
	if i < 0 || i >= len(w.children) {
		return nil, ErrBadParameters
	}
	return w.children[i], nil
}

func (w *MockWidget) ChildByID(id int) (Widget, error) {
	if c := w.find(id); c != nil {
		return c, nil
	}
	return nil, ErrBadParameters
}

func (w *MockWidget) find(id int) *MockWidget {
	for _, c := range w.children {
		if c.id == id {
			return c
		}
		if f := c.find(id); f != nil {
			return f
		}
	}
	return nil
}

func (w *MockWidget) CountChoices() int { return len(w.choices) }

func (w *MockWidget) Choice(i int) (string, error) {
	if i < 0 || i >= len(w.choices) {
		return "", ErrBadParameters
	}
	return w.choices[i], w.fail
}

func (w *MockWidget) Range() (float32, float32, float32, error) {
	if w.kind != WidgetRange {
		return 0, 0, 0, ErrWidgetType
	}
	return w.min, w.max, w.step, w.fail
}

func (w *MockWidget) StringValue() (string, error) {
	switch w.kind {
	case WidgetText, WidgetRadio, WidgetMenu:
		return w.str, w.fail
	}
	return "", ErrWidgetType
}

func (w *MockWidget) SetString(s string) error {
	switch w.kind {
	case WidgetText, WidgetRadio, WidgetMenu:
		w.str = s
		return w.fail
	}
	return ErrWidgetType
}

func (w *MockWidget) FloatValue() (float32, error) {
	if w.kind != WidgetRange {
		return 0, ErrWidgetType
	}
	return w.flt, w.fail
}

func (w *MockWidget) SetFloat(f float32) error {
	if w.kind != WidgetRange {
		return ErrWidgetType
	}
	w.flt = f
	return w.fail
}

func (w *MockWidget) IntValue() (int, error) {
	switch w.kind {
	case WidgetToggle, WidgetDate:
		return w.integer, w.fail
	}
	return 0, ErrWidgetType
}

func (w *MockWidget) SetInt(i int) error {
	switch w.kind {
	case WidgetToggle, WidgetDate:
		w.integer = i
		return w.fail
	}
	return ErrWidgetType
}

func (w *MockWidget) clone() *MockWidget {
	c := *w
	c.choices = append([]string(nil), w.choices...)
	c.children = make([]*MockWidget, len(w.children))
	for i, ch := range w.children {
		c.children[i] = ch.clone()
	}
	return &c
}

// copyValues writes the values of src into the widgets of w that share an ID
func (w *MockWidget) copyValues(src *MockWidget) {
	if dst := w.find(src.id); dst != nil && dst.kind == src.kind {
		dst.str, dst.flt, dst.integer = src.str, src.flt, src.integer
	}
	for _, c := range src.children {
		w.copyValues(c)
	}
}

// MockDevice is an in-memory camera.  Files captured are kept in Files and
// events queued in Events are returned by WaitEvent in order, after which it
// reports timeouts.
type MockDevice struct {
	sync.Mutex

	// Root is the camera side configuration.  Config returns a copy of it
	// and SetConfig writes values back into it by widget ID.
	Root *MockWidget

	Files   map[CameraFilePath][]byte
	Events  []Event
	Preview *CameraFile

	SummaryText, ManualText, AboutText string

	// Err injects a failure per operation, keyed by the Op* constants
	Err map[string]error

	// Calls counts invocations per operation
	Calls map[string]int

	// RealTime makes WaitEvent sleep for its timeout when no event is queued
	RealTime bool

	Closed bool

	ctx     *Context
	counter int
}

// NewMockDevice returns a camera with a small settings tree and a gray
// live view frame
func NewMockDevice() *MockDevice {
	return &MockDevice{
		Root:        DefaultMockConfig(),
		Files:       map[CameraFilePath][]byte{},
		Preview:     &CameraFile{Name: "preview.jpg", MIMEType: "image/jpeg", Data: mockJPEG(64, 48)},
		SummaryText: "Model: Mock Camera\nSerial Number: 0000",
		ManualText:  "Mock camera driver",
		AboutText:   "In-memory camera",
		Err:         map[string]error{},
		Calls:       map[string]int{},
	}
}

// DefaultMockConfig builds the settings tree of a NewMockDevice
func DefaultMockConfig() *MockWidget {
	return NewMockWidget(WidgetWindow, 0, "main", "Camera and Driver Configuration").Add(
		NewMockWidget(WidgetSection, 1, "actions", "Camera Actions").Add(
			NewMockWidget(WidgetButton, 2, "autofocusdrive", "Drive Canon DSLR Autofocus"),
			NewMockWidget(WidgetToggle, 3, "viewfinder", "Canon EOS Viewfinder").WithInt(0),
		),
		NewMockWidget(WidgetSection, 4, "settings", "Camera Settings").Add(
			NewMockWidget(WidgetDate, 5, "datetime", "Camera Date and Time").WithInt(1262304000),
			NewMockWidget(WidgetText, 6, "artist", "Artist").WithInfo("Name of the photographer").WithString(""),
			NewMockWidget(WidgetText, 7, "serialnumber", "Serial Number").WithString("0000").WithReadOnly(),
		),
		NewMockWidget(WidgetSection, 8, "imgsettings", "Image Settings").Add(
			NewMockWidget(WidgetRadio, 9, "iso", "ISO Speed").WithChoices("100", "100", "200", "400", "800", "1600"),
			NewMockWidget(WidgetMenu, 10, "whitebalance", "WhiteBalance").WithChoices("Auto", "Auto", "Daylight", "Shadow", "Tungsten"),
		),
		NewMockWidget(WidgetSection, 11, "capturesettings", "Capture Settings").Add(
			NewMockWidget(WidgetRange, 12, "exposurecompensation", "Exposure Compensation").WithRange(-3, 3, 0.5, 0),
		),
	)
}

func mockJPEG(w, h int) []byte {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x + y) * 255 / (w + h))})
		}
	}
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, nil)
	return buf.Bytes()
}

// call counts op and returns its injected error, if any.  Caller holds the lock.
func (m *MockDevice) call(op string) error {
	m.Calls[op]++
	return m.Err[op]
}

// CallCount returns the number of times op was invoked
func (m *MockDevice) CallCount(op string) int {
	m.Lock()
	defer m.Unlock()
	return m.Calls[op]
}

// TotalCalls returns the number of operations invoked on the device
func (m *MockDevice) TotalCalls() int {
	m.Lock()
	defer m.Unlock()
	n := 0
	for _, v := range m.Calls {
		n += v
	}
	return n
}

// Queue appends events to be returned by WaitEvent
func (m *MockDevice) Queue(evs ...Event) {
	m.Lock()
	defer m.Unlock()
	m.Events = append(m.Events, evs...)
}

func (m *MockDevice) Close() error {
	m.Lock()
	defer m.Unlock()
	if err := m.call(OpClose); err != nil {
		return err
	}
	m.Closed = true
	return nil
}

func (m *MockDevice) Capture() (CameraFilePath, error) {
	m.Lock()
	defer m.Unlock()
	if err := m.call(OpCapture); err != nil {
		return CameraFilePath{}, err
	}
	id := m.ctx.start(100, "Capturing image")
	defer m.ctx.stop(id)
	for i := 1; i <= 4; i++ {
		if m.ctx.cancelled() {
			return CameraFilePath{}, ErrCancel
		}
		m.ctx.update(id, float32(i*25))
	}
	m.counter++
	p := CameraFilePath{Folder: "/store_00010001/DCIM/100MOCK", Name: fmt.Sprintf("IMG_%04d.JPG", m.counter)}
	m.Files[p] = mockJPEG(160, 120)
	return p, nil
}

func (m *MockDevice) CapturePreview() (*CameraFile, error) {
	m.Lock()
	defer m.Unlock()
	if err := m.call(OpPreview); err != nil {
		return nil, err
	}
	if m.Preview == nil {
		return nil, ErrNotSupported
	}
	f := *m.Preview
	f.Data = append([]byte(nil), m.Preview.Data...)
	return &f, nil
}

func (m *MockDevice) FetchFile(folder, name string) ([]byte, error) {
	m.Lock()
	defer m.Unlock()
	if err := m.call(OpFetch); err != nil {
		return nil, err
	}
	data, ok := m.Files[CameraFilePath{Folder: folder, Name: name}]
	if !ok {
		return nil, ErrFileNotFound
	}
	id := m.ctx.start(float32(len(data)), "Downloading "+name)
	m.ctx.update(id, float32(len(data)))
	m.ctx.stop(id)
	return append([]byte(nil), data...), nil
}

func (m *MockDevice) DeleteFile(folder, name string) error {
	m.Lock()
	defer m.Unlock()
	if err := m.call(OpDelete); err != nil {
		return err
	}
	p := CameraFilePath{Folder: folder, Name: name}
	if _, ok := m.Files[p]; !ok {
		return ErrFileNotFound
	}
	delete(m.Files, p)
	return nil
}

func (m *MockDevice) WaitEvent(timeout time.Duration) (Event, error) {
	m.Lock()
	if err := m.call(OpWait); err != nil {
		m.Unlock()
		return Event{}, err
	}
	if len(m.Events) > 0 {
		ev := m.Events[0]
		m.Events = m.Events[1:]
		m.Unlock()
		return ev, nil
	}
	rt := m.RealTime
	m.Unlock()
	if rt {
		time.Sleep(timeout)
	}
	return Event{Type: EventTimeout}, nil
}

func (m *MockDevice) Config() (Widget, error) {
	m.Lock()
	defer m.Unlock()
	if err := m.call(OpConfig); err != nil {
		return nil, err
	}
	return m.Root.clone(), nil
}

func (m *MockDevice) SetConfig(root Widget) error {
	m.Lock()
	defer m.Unlock()
	if err := m.call(OpSetConfig); err != nil {
		return err
	}
	mw, ok := root.(*MockWidget)
	if !ok {
		return ErrBadParameters
	}
	m.Root.copyValues(mw)
	return nil
}

func (m *MockDevice) Summary() (string, error) { return m.SummaryText, nil }
func (m *MockDevice) Manual() (string, error)  { return m.ManualText, nil }
func (m *MockDevice) About() (string, error)   { return m.AboutText, nil }

// MockDriver hands out a single MockDevice
type MockDriver struct {
	sync.Mutex

	Ports  []PortInfo
	Models []Abilities

	// Device is returned by Open
	Device *MockDevice

	// OpenErr makes Open fail
	OpenErr error

	// Opened counts successful calls to Open
	Opened int
}

// NewMockDriver returns a driver knowing one model on the "usb:" and "mock:"
// ports with full capture, preview and configuration support
func NewMockDriver() *MockDriver {
	return &MockDriver{
		Ports: []PortInfo{{Name: "Universal Serial Bus", Path: "usb:"}, {Name: "Mock", Path: "mock:"}},
		Models: []Abilities{{
			Model:      "Mock Camera",
			Operations: OperationCaptureImage | OperationCapturePreview | OperationConfig,
		}},
		Device: NewMockDevice(),
	}
}

func (d *MockDriver) LookupPort(path string) (PortInfo, error) {
	d.Lock()
	defer d.Unlock()
	for _, p := range d.Ports {
		if p.Path == path {
			return p, nil
		}
	}
	return PortInfo{}, ErrUnknownPort
}

func (d *MockDriver) LookupAbilities(model string) (Abilities, error) {
	d.Lock()
	defer d.Unlock()
	for _, a := range d.Models {
		if a.Model == model {
			return a, nil
		}
	}
	return Abilities{}, ErrModelNotFound
}

func (d *MockDriver) Open(a Abilities, p PortInfo, ctx *Context) (Device, error) {
	d.Lock()
	defer d.Unlock()
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	if d.Device == nil {
		d.Device = NewMockDevice()
	}
	d.Device.Lock()
	d.Device.ctx = ctx
	d.Device.Closed = false
	d.Device.Unlock()
	d.Opened++
	return d.Device, nil
}

func (d *MockDriver) Detect() ([]Detected, error) {
	d.Lock()
	defer d.Unlock()
	if len(d.Models) == 0 || len(d.Ports) == 0 {
		return nil, nil
	}
	return []Detected{{Model: d.Models[0].Model, Port: d.Ports[0].Path}}, nil
}
