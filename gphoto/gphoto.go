/*Package gphoto describes the device access layer used to talk to a tethered
camera.  It mirrors the shape of libgphoto2: a Driver resolves ports and
camera abilities and opens a Device, and a Device exposes capture, file
transfer, event polling and a configuration tree of Widgets.

Two implementations are provided.  MockDriver is an in-memory camera used by
tests and by the CLI's "mock" port.  When built with the gphoto2 tag, LibDriver
binds libgphoto2 through cgo and ScanUSB enumerates PTP cameras with gousb.

Devices are not safe for concurrent use; callers serialize access.
*/
package gphoto

import "time"

// WidgetType is the kind of a configuration widget, numbered as libgphoto2 does
type WidgetType int

const (
	// WidgetWindow is the root of a configuration tree
	WidgetWindow WidgetType = iota
	// WidgetSection groups related widgets
	WidgetSection
	// WidgetText holds a string
	WidgetText
	// WidgetRange holds a float within min/max/step
	WidgetRange
	// WidgetToggle holds an int interpreted as a boolean
	WidgetToggle
	// WidgetRadio holds one of a list of string choices
	WidgetRadio
	// WidgetMenu holds one of a list of string choices
	WidgetMenu
	// WidgetButton has no value
	WidgetButton
	// WidgetDate holds an int timestamp
	WidgetDate
)

var widgetTypeNames = map[WidgetType]string{
	WidgetWindow:  "window",
	WidgetSection: "section",
	WidgetText:    "text",
	WidgetRange:   "range",
	WidgetToggle:  "toggle",
	WidgetRadio:   "radio",
	WidgetMenu:    "menu",
	WidgetButton:  "button",
	WidgetDate:    "date",
}

func (t WidgetType) String() string {
	if s, ok := widgetTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

// EventType is the kind of an asynchronous camera event
type EventType int

const (
	EventUnknown EventType = iota
	EventTimeout
	EventFileAdded
	EventFolderAdded
	EventCaptureComplete
	EventFileChanged
)

var eventTypeNames = map[EventType]string{
	EventUnknown:         "unknown",
	EventTimeout:         "timeout",
	EventFileAdded:       "file-added",
	EventFolderAdded:     "folder-added",
	EventCaptureComplete: "capture-complete",
	EventFileChanged:     "file-changed",
}

func (t EventType) String() string {
	if s, ok := eventTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

// Operation is a bitmask of what a camera model can do
type Operation int

const (
	OperationCaptureImage   Operation = 1 << 0
	OperationCaptureVideo   Operation = 1 << 1
	OperationCaptureAudio   Operation = 1 << 2
	OperationCapturePreview Operation = 1 << 3
	OperationConfig         Operation = 1 << 4
	OperationTriggerCapture Operation = 1 << 5
)

// Has returns true if all bits of o2 are set in o
func (o Operation) Has(o2 Operation) bool {
	return o&o2 == o2
}

// Abilities describes a camera model
type Abilities struct {
	Model      string
	Operations Operation
}

// PortInfo describes a port a camera may be attached to
type PortInfo struct {
	Name string
	Path string
}

// CameraFilePath locates a file on the camera
type CameraFilePath struct {
	Folder string
	Name   string
}

// CameraFile is a file held in memory, as returned by a preview capture
type CameraFile struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Event is the result of one poll of the device's event queue.
// Path is populated for EventFileAdded and EventFolderAdded.
type Event struct {
	Type EventType
	Path CameraFilePath
}

// Detected is a camera found by autodetection
type Detected struct {
	Model string
	Port  string
}

// Feedback is the answer of a cancel callback
type Feedback int

const (
	// FeedbackOK lets the operation continue
	FeedbackOK Feedback = iota
	// FeedbackCancel aborts the operation in flight
	FeedbackCancel
)

// Context is the callback table a device uses to report progress on long
// operations and to ask whether they should be cancelled.  Any member may be
// nil.
type Context struct {
	ProgressStart  func(target float32, msg string) uint
	ProgressUpdate func(id uint, current float32)
	ProgressStop   func(id uint)
	Cancel         func() Feedback
}

func (c *Context) start(target float32, msg string) uint {
	if c == nil || c.ProgressStart == nil {
		return 0
	}
	return c.ProgressStart(target, msg)
}

func (c *Context) update(id uint, current float32) {
	if c == nil || c.ProgressUpdate == nil {
		return
	}
	c.ProgressUpdate(id, current)
}

func (c *Context) stop(id uint) {
	if c == nil || c.ProgressStop == nil {
		return
	}
	c.ProgressStop(id)
}

func (c *Context) cancelled() bool {
	if c == nil || c.Cancel == nil {
		return false
	}
	return c.Cancel() == FeedbackCancel
}

// Driver resolves ports and models and opens devices
type Driver interface {
	// LookupPort finds the port whose path matches
	LookupPort(path string) (PortInfo, error)

	// LookupAbilities finds the abilities of a camera model
	LookupAbilities(model string) (Abilities, error)

	// Open initializes a camera on a port.  ctx is retained by the device and
	// consulted during long operations.
	Open(a Abilities, p PortInfo, ctx *Context) (Device, error)

	// Detect lists the cameras currently attached
	Detect() ([]Detected, error)
}

// Device is an open camera
type Device interface {
	// Close releases the device.  The device may not be used afterwards.
	Close() error

	// Capture takes a picture and returns where the camera stored it
	Capture() (CameraFilePath, error)

	// CapturePreview grabs a live view frame into memory
	CapturePreview() (*CameraFile, error)

	// FetchFile downloads a file stored on the camera
	FetchFile(folder, name string) ([]byte, error)

	// DeleteFile removes a file stored on the camera
	DeleteFile(folder, name string) error

	// WaitEvent blocks up to timeout for the next event.  A timeout is
	// reported as an EventTimeout, not as an error.
	WaitEvent(timeout time.Duration) (Event, error)

	// Config reads the whole configuration tree
	Config() (Widget, error)

	// SetConfig writes the whole configuration tree back to the camera
	SetConfig(root Widget) error

	Summary() (string, error)
	Manual() (string, error)
	About() (string, error)
}

// Widget is one node of a device configuration tree
type Widget interface {
	Type() (WidgetType, error)
	Name() (string, error)
	ID() (int, error)
	Label() (string, error)
	Info() (string, error)
	ReadOnly() (bool, error)

	CountChildren() int
	Child(i int) (Widget, error)

	// ChildByID searches the subtree below this widget
	ChildByID(id int) (Widget, error)

	CountChoices() int
	Choice(i int) (string, error)

	// Range returns the limits of a range widget
	Range() (min, max, step float32, err error)

	// StringValue is valid for text, radio and menu widgets
	StringValue() (string, error)
	SetString(string) error

	// FloatValue is valid for range widgets
	FloatValue() (float32, error)
	SetFloat(float32) error

	// IntValue is valid for toggle and date widgets
	IntValue() (int, error)
	SetInt(int) error
}
