/*Package camera is a session with one tethered camera.

A Session is created with the model and port of a camera and hints of what
it supports.  Connect opens the device and replaces the hints with what the
driver reports.  Once connected the session captures images and live view
frames, transfers and deletes files, polls the camera for events and exposes
its settings as a control tree.  Changing a value in that tree writes the
whole configuration back to the camera.

Every call blocks for the duration of the device I/O.  A Session does not
serialize concurrent calls; callers that share one across goroutines must.
*/
package camera

import (
	"fmt"
	"sync"
	"time"

	"github.com/cicerolneto/entangle/control"
	"github.com/cicerolneto/entangle/debug"
	"github.com/cicerolneto/entangle/gphoto"
	"github.com/rs/zerolog"
)

// flushTimeout is the poll interval of FlushEvents
const flushTimeout = 10 * time.Millisecond

func logger() zerolog.Logger {
	return debug.For("camera")
}

// Session is a connection to one camera
type Session struct {
	driver gphoto.Driver
	model  string
	port   string

	hasCapture  bool
	hasPreview  bool
	hasSettings bool

	dev      gphoto.Device
	widgets  gphoto.Widget
	controls *control.Group
	unwatch  []func()

	summary string
	manual  string
	about   string

	mu       sync.Mutex
	progress Progress

	events broadcaster
}

// New creates a disconnected session.  The capability flags are hints that
// hold until Connect reads the real ones from the driver.
func New(drv gphoto.Driver, model, port string, hasCapture, hasPreview, hasSettings bool) *Session {
	return &Session{
		driver:      drv,
		model:       model,
		port:        port,
		hasCapture:  hasCapture,
		hasPreview:  hasPreview,
		hasSettings: hasSettings,
	}
}

// Model returns the camera model name
func (s *Session) Model() string { return s.model }

// Port returns the port path, such as usb:001,004
func (s *Session) Port() string { return s.port }

func (s *Session) String() string {
	return fmt.Sprintf("%s on %s", s.model, s.port)
}

// Connected returns true if the device is open
func (s *Session) Connected() bool { return s.dev != nil }

// HasCapture returns true if the camera can capture images
func (s *Session) HasCapture() bool { return s.hasCapture }

// HasPreview returns true if the camera can capture live view frames
func (s *Session) HasPreview() bool { return s.hasPreview }

// HasSettings returns true if the camera exposes a configuration tree
func (s *Session) HasSettings() bool { return s.hasSettings }

// Summary returns the summary text of the camera.  Empty when disconnected.
func (s *Session) Summary() string { return s.summary }

// Manual returns the manual text of the driver.  Empty when disconnected.
func (s *Session) Manual() string { return s.manual }

// Driver returns the about text of the driver.  Empty when disconnected.
func (s *Session) Driver() string { return s.about }

// SetProgress sets the receiver of progress reports.  It may be nil.
func (s *Session) SetProgress(p Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = p
}

// Progress returns the receiver of progress reports
func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Subscribe registers fn to receive every event of the session.  The
// returned function unsubscribes.  fn is called synchronously by the
// goroutine performing the operation.
func (s *Session) Subscribe(fn func(Event)) func() {
	return s.events.subscribe(fn)
}

func (s *Session) emit(t EventType, f *File) {
	s.events.emit(Event{Type: t, File: f})
}

// context builds the callback table handed to the device.  Without a
// progress receiver, operations that poll for cancellation are cancelled.
func (s *Session) context() *gphoto.Context {
	return &gphoto.Context{
		ProgressStart: func(target float32, msg string) uint {
			if p := s.Progress(); p != nil {
				p.Start(target, msg)
			}
			return 0
		},
		ProgressUpdate: func(id uint, current float32) {
			if p := s.Progress(); p != nil {
				p.Update(current)
			}
		},
		ProgressStop: func(id uint) {
			if p := s.Progress(); p != nil {
				p.Stop()
			}
		},
		Cancel: func() gphoto.Feedback {
			p := s.Progress()
			if p == nil || p.Cancelled() {
				return gphoto.FeedbackCancel
			}
			return gphoto.FeedbackOK
		},
	}
}

// Connect opens the device.  It does nothing if already connected.  A failed
// Connect leaves the session disconnected and may be retried.
func (s *Session) Connect() error {
	if s.dev != nil {
		return nil
	}
	log := logger().With().Str("model", s.model).Str("port", s.port).Logger()
	log.Debug().Msg("connecting")

	port, err := s.driver.LookupPort(s.port)
	if err != nil {
		log.Error().Err(err).Msg("port lookup failed")
		return &DeviceError{Op: "lookup port", Err: err}
	}
	abilities, err := s.driver.LookupAbilities(s.model)
	if err != nil {
		log.Error().Err(err).Msg("model lookup failed")
		return &DeviceError{Op: "lookup model", Err: err}
	}
	dev, err := s.driver.Open(abilities, port, s.context())
	if err != nil {
		log.Error().Err(err).Msg("init failed")
		return &DeviceError{Op: "connect", Err: err}
	}
	s.dev = dev

	// the driver knows better than the hints given to New
	ops := abilities.Operations
	s.hasCapture = ops.Has(gphoto.OperationCaptureImage)
	s.hasPreview = ops.Has(gphoto.OperationCapturePreview)
	s.hasSettings = ops.Has(gphoto.OperationConfig)

	if s.summary, err = dev.Summary(); err != nil {
		log.Warn().Err(err).Msg("no summary")
	}
	if s.manual, err = dev.Manual(); err != nil {
		log.Warn().Err(err).Msg("no manual")
	}
	if s.about, err = dev.About(); err != nil {
		log.Warn().Err(err).Msg("no driver info")
	}
	log.Info().Bool("capture", s.hasCapture).Bool("preview", s.hasPreview).
		Bool("settings", s.hasSettings).Msg("connected")
	return nil
}

// Disconnect closes the device.  It does nothing if already disconnected.
// The control tree and text metadata are dropped and the capability flags
// cleared.
func (s *Session) Disconnect() error {
	if s.dev == nil {
		return nil
	}
	log := logger()
	log.Debug().Str("model", s.model).Msg("disconnecting")

	for _, u := range s.unwatch {
		u()
	}
	s.unwatch = nil
	s.controls = nil
	s.widgets = nil

	s.summary, s.manual, s.about = "", "", ""

	err := s.dev.Close()
	s.dev = nil
	s.hasCapture, s.hasPreview, s.hasSettings = false, false, false
	if err != nil {
		log.Warn().Err(err).Msg("close failed")
		return &DeviceError{Op: "disconnect", Err: err}
	}
	return nil
}

// CaptureImage takes a picture.  The returned file holds no data; use
// DownloadFile to transfer it.
func (s *Session) CaptureImage() (*File, error) {
	if s.dev == nil {
		return nil, ErrNotConnected
	}
	log := logger()
	log.Debug().Msg("starting capture")
	p, err := s.dev.Capture()
	if err != nil {
		log.Error().Err(err).Msg("capture failed")
		return nil, &DeviceError{Op: "capture", Err: err}
	}
	f := NewFile(p.Folder, p.Name)
	s.emit(EventFileCaptured, f)
	return f, nil
}

// CapturePreview grabs a live view frame into memory.  The file is in the
// "/" folder and carries its data and, if the driver reports it, MIME type.
func (s *Session) CapturePreview() (*File, error) {
	if s.dev == nil {
		return nil, ErrNotConnected
	}
	log := logger()
	log.Debug().Msg("starting preview")
	cf, err := s.dev.CapturePreview()
	if err != nil {
		log.Error().Err(err).Msg("preview failed")
		return nil, &DeviceError{Op: "preview", Err: err}
	}
	f := NewFile("/", cf.Name)
	f.MIMEType = cf.MIMEType
	f.Data = append([]byte(nil), cf.Data...)
	s.emit(EventFilePreviewed, f)
	return f, nil
}

// DownloadFile transfers the data of f from the camera into f.Data
func (s *Session) DownloadFile(f *File) error {
	if s.dev == nil {
		return ErrNotConnected
	}
	log := logger().With().Str("folder", f.Folder).Str("name", f.Name).Logger()
	log.Debug().Msg("downloading")
	data, err := s.dev.FetchFile(f.Folder, f.Name)
	if err != nil {
		log.Error().Err(err).Msg("download failed")
		return &DeviceError{Op: "download", Err: err}
	}
	f.Data = data
	s.emit(EventFileDownloaded, f)
	return nil
}

// DeleteFile removes f from the camera
func (s *Session) DeleteFile(f *File) error {
	if s.dev == nil {
		return ErrNotConnected
	}
	log := logger().With().Str("folder", f.Folder).Str("name", f.Name).Logger()
	log.Debug().Msg("deleting")
	if err := s.dev.DeleteFile(f.Folder, f.Name); err != nil {
		log.Error().Err(err).Msg("delete failed")
		return &DeviceError{Op: "delete", Err: err}
	}
	s.emit(EventFileDeleted, f)
	return nil
}

// FlushEvents discards queued camera events until a poll times out
func (s *Session) FlushEvents() error {
	if s.dev == nil {
		return ErrNotConnected
	}
	lg := logger()
	lg.Debug().Msg("flushing events")
	for {
		ev, err := s.dev.WaitEvent(flushTimeout)
		if err != nil {
			lg := logger()
			lg.Error().Err(err).Msg("event wait failed")
			return &DeviceError{Op: "wait event", Err: err}
		}
		if ev.Type == gphoto.EventTimeout {
			return nil
		}
	}
}

// WaitEvents polls the camera, each poll waiting up to timeout, until a poll
// times out.  New files are announced to subscribers as EventFileAdded.
// Added folders, completed captures and events the driver itself does not
// recognise are logged.  Any other kind of event ends the wait with a
// *ProtocolError.
func (s *Session) WaitEvents(timeout time.Duration) error {
	if s.dev == nil {
		return ErrNotConnected
	}
	log := logger()
	log.Debug().Dur("timeout", timeout).Msg("waiting for events")
	for {
		ev, err := s.dev.WaitEvent(timeout)
		if err != nil {
			log.Error().Err(err).Msg("event wait failed")
			return &DeviceError{Op: "wait event", Err: err}
		}
		switch ev.Type {
		case gphoto.EventUnknown:
			log.Debug().Msg("unknown event")
		case gphoto.EventTimeout:
			log.Debug().Msg("wait timed out")
			return nil
		case gphoto.EventFileAdded:
			log.Debug().Str("folder", ev.Path.Folder).Str("name", ev.Path.Name).Msg("file added")
			s.emit(EventFileAdded, NewFile(ev.Path.Folder, ev.Path.Name))
		case gphoto.EventFolderAdded:
			log.Debug().Str("folder", ev.Path.Folder).Str("name", ev.Path.Name).Msg("folder added")
		case gphoto.EventCaptureComplete:
			log.Debug().Msg("capture complete")
		default:
			err := &ProtocolError{Event: ev.Type}
			log.Error().Err(err).Msg("event wait aborted")
			return err
		}
	}
}
