// Package camera exposes a tethered camera session over HTTP: connection,
// capture and download, live view, the settings tree, and the images
// downloaded during the life of the server
package camera

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/astrogo/fitsio"
	"github.com/cicerolneto/entangle/camera"
	"github.com/cicerolneto/entangle/control"
	"github.com/cicerolneto/entangle/debug"
	"github.com/cicerolneto/entangle/generichttp"
	"github.com/cicerolneto/entangle/imgrec"
	"github.com/cicerolneto/entangle/pixbuf"
	"github.com/cicerolneto/entangle/server"
	"github.com/go-chi/chi"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

func logger() zerolog.Logger {
	return debug.For("http")
}

// Info describes the camera of the session
type Info struct {
	Model       string `json:"model"`
	Port        string `json:"port"`
	Connected   bool   `json:"connected"`
	HasCapture  bool   `json:"hasCapture"`
	HasPreview  bool   `json:"hasPreview"`
	HasSettings bool   `json:"hasSettings"`
}

// Options configures an HTTPCamera
type Options struct {
	// Recorder saves every capture to disk when enabled, may be nil
	Recorder *imgrec.Recorder

	// Loader decodes downloaded files for the image routes
	Loader *pixbuf.Loader

	// Fs and Dir are where downloaded files are kept, an in memory
	// filesystem if Fs is nil
	Fs  afero.Fs
	Dir string

	// FPS is the frame rate limit of the live view stream
	FPS float64
}

// HTTPCamera wraps a camera session in an HTTP interface.  Device commands
// are serialized; the session itself does not.
type HTTPCamera struct {
	mu       sync.Mutex
	s        *camera.Session
	prog     *camera.LogProgress
	rec      *imgrec.Recorder
	loader   *pixbuf.Loader
	files    *registry
	fps      float64
	upgrader websocket.Upgrader

	RouteTable generichttp.RouteTable
}

// NewHTTPCamera returns a new HTTP wrapper around a session.  The session's
// progress is replaced with one the /progress and /cancel routes drive.
func NewHTTPCamera(s *camera.Session, opts Options) *HTTPCamera {
	if opts.Fs == nil {
		opts.Fs = afero.NewMemMapFs()
	}
	if opts.Dir == "" {
		opts.Dir = "/files"
	}
	if opts.Loader == nil {
		opts.Loader = &pixbuf.Loader{Fs: opts.Fs}
	}
	if opts.FPS <= 0 {
		opts.FPS = 5
	}
	h := &HTTPCamera{
		s:      s,
		prog:   &camera.LogProgress{},
		rec:    opts.Recorder,
		loader: opts.Loader,
		files:  newRegistry(opts.Fs, opts.Dir),
		fps:    opts.FPS,
	}
	s.SetProgress(h.prog)
	rt := generichttp.RouteTable{
		{Method: http.MethodGet, Path: "/camera"}:           h.GetInfo,
		{Method: http.MethodGet, Path: "/connected"}:        generichttp.GetBool(h.connected),
		{Method: http.MethodPost, Path: "/connected"}:       generichttp.SetBool(h.setConnected),
		{Method: http.MethodGet, Path: "/summary"}:          generichttp.GetString(h.text(s.Summary)),
		{Method: http.MethodGet, Path: "/manual"}:           generichttp.GetString(h.text(s.Manual)),
		{Method: http.MethodGet, Path: "/driver"}:           generichttp.GetString(h.text(s.Driver)),
		{Method: http.MethodPost, Path: "/capture"}:         h.Capture,
		{Method: http.MethodGet, Path: "/preview"}:          h.Preview,
		{Method: http.MethodGet, Path: "/preview/stream"}:   h.Stream,
		{Method: http.MethodPost, Path: "/flush"}:           h.Flush,
		{Method: http.MethodPost, Path: "/wait"}:            h.Wait,
		{Method: http.MethodGet, Path: "/progress"}:         generichttp.GetFloat(h.progress),
		{Method: http.MethodPost, Path: "/cancel"}:          h.Cancel,
		{Method: http.MethodGet, Path: "/controls"}:         h.GetControls,
		{Method: http.MethodGet, Path: "/controls/*"}:       h.GetControl,
		{Method: http.MethodPost, Path: "/controls/*"}:      h.SetControl,
		{Method: http.MethodGet, Path: "/files"}:            h.ListFiles,
		{Method: http.MethodGet, Path: "/files/{id}"}:       h.GetFile,
		{Method: http.MethodDelete, Path: "/files/{id}"}:    h.DeleteFile,
		{Method: http.MethodGet, Path: "/files/{id}/image"}: h.GetImage,
		{Method: http.MethodGet, Path: "/events"}:           h.Events,
	}
	h.RouteTable = rt
	if h.rec != nil {
		imgrec.NewHTTPWrapper(h.rec).Inject(h)
	}
	return h
}

// RT satisfies generichttp.HTTPer
func (h *HTTPCamera) RT() generichttp.RouteTable {
	return h.RouteTable
}

// status maps an error from the session to an HTTP status code
func status(err error) int {
	var (
		de *camera.DeviceError
		pe *camera.ProtocolError
		be *control.BuildError
	)
	switch {
	case errors.Is(err, camera.ErrNotConnected):
		return http.StatusConflict
	case errors.Is(err, control.ErrReadOnly):
		return http.StatusForbidden
	case errors.Is(err, control.ErrOutOfRange):
		return http.StatusBadRequest
	case errors.As(err, &de), errors.As(err, &pe), errors.As(err, &be):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *HTTPCamera) info() Info {
	s := h.s
	return Info{
		Model:       s.Model(),
		Port:        s.Port(),
		Connected:   s.Connected(),
		HasCapture:  s.HasCapture(),
		HasPreview:  s.HasPreview(),
		HasSettings: s.HasSettings(),
	}
}

// GetInfo returns the model, port and capabilities of the camera as JSON
func (h *HTTPCamera) GetInfo(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	inf := h.info()
	h.mu.Unlock()
	writeJSON(w, inf)
}

func (h *HTTPCamera) connected() (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.s.Connected(), nil
}

func (h *HTTPCamera) setConnected(b bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if b {
		return h.s.Connect()
	}
	return h.s.Disconnect()
}

func (h *HTTPCamera) text(fn func() string) func() (string, error) {
	return func() (string, error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if !h.s.Connected() {
			return "", camera.ErrNotConnected
		}
		return fn(), nil
	}
}

func (h *HTTPCamera) progress() (float64, error) {
	return float64(h.prog.Percent()), nil
}

// Cancel aborts the transfer in progress, or the next one to start
func (h *HTTPCamera) Cancel(w http.ResponseWriter, r *http.Request) {
	h.prog.Cancel()
	w.WriteHeader(http.StatusOK)
}

// Capture takes a picture, downloads it and keeps it in the file list.
// With delete=true the file is then removed from the camera.  When the
// recorder is enabled the file is also saved to disk.  The response is the
// FileInfo of the new file.
func (h *HTTPCamera) Capture(w http.ResponseWriter, r *http.Request) {
	del := false
	if q := r.URL.Query().Get("delete"); q != "" {
		var err error
		del, err = strconv.ParseBool(q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	f, err := h.s.CaptureImage()
	if err != nil {
		http.Error(w, err.Error(), status(err))
		return
	}
	if err = h.s.DownloadFile(f); err != nil {
		http.Error(w, err.Error(), status(err))
		return
	}
	inf, err := h.keep(f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if del {
		if err = h.s.DeleteFile(f); err != nil {
			lg := logger()
			lg.Warn().Err(err).Str("file", f.Path()).Msg("file kept on camera")
		}
	}
	writeJSON(w, inf)
}

// keep registers a downloaded file and records it if the recorder is on
func (h *HTTPCamera) keep(f *camera.File) (FileInfo, error) {
	inf, err := h.files.add(f)
	if err != nil {
		return FileInfo{}, err
	}
	if h.rec != nil && h.rec.IsEnabled() {
		e, err := h.rec.Record(f)
		if err != nil {
			lg := logger()
			lg.Error().Err(err).Str("file", f.Path()).Msg("recording failed")
		} else {
			h.files.setRecorded(inf.ID, e.Path)
			inf.Recorded = e.Path
		}
	}
	return inf, nil
}

// Preview returns one live view frame
func (h *HTTPCamera) Preview(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	f, err := h.s.CapturePreview()
	h.mu.Unlock()
	if err != nil {
		http.Error(w, err.Error(), status(err))
		return
	}
	mime := f.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	w.Header().Set("Content-Type", mime)
	w.Write(f.Data)
}

// Flush discards the events the camera has queued
func (h *HTTPCamera) Flush(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	err := h.s.FlushEvents()
	h.mu.Unlock()
	if err != nil {
		http.Error(w, err.Error(), status(err))
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Wait processes camera events until none arrives within timeout, a
// duration query parameter defaulting to 500ms.  Files the camera reports
// as added, such as shots taken with the camera's own shutter button, are
// downloaded into the file list.  The response lists them.
func (h *HTTPCamera) Wait(w http.ResponseWriter, r *http.Request) {
	timeout := 500 * time.Millisecond
	if q := r.URL.Query().Get("timeout"); q != "" {
		d, err := time.ParseDuration(q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		timeout = d
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	var added []*camera.File
	unsub := h.s.Subscribe(func(ev camera.Event) {
		if ev.Type == camera.EventFileAdded {
			added = append(added, ev.File)
		}
	})
	err := h.s.WaitEvents(timeout)
	unsub()
	if err != nil {
		http.Error(w, err.Error(), status(err))
		return
	}
	out := make([]FileInfo, 0, len(added))
	for _, f := range added {
		if err := h.s.DownloadFile(f); err != nil {
			http.Error(w, err.Error(), status(err))
			return
		}
		inf, err := h.keep(f)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		out = append(out, inf)
	}
	writeJSON(w, out)
}

func (h *HTTPCamera) controls() (*control.Group, error) {
	return h.s.Controls()
}

// GetControls returns the whole settings tree as JSON
func (h *HTTPCamera) GetControls(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	root, err := h.controls()
	if err != nil {
		http.Error(w, err.Error(), status(err))
		return
	}
	writeJSON(w, control.Describe(root))
}

func (h *HTTPCamera) find(r *http.Request) (control.Node, int, error) {
	root, err := h.controls()
	if err != nil {
		return nil, status(err), err
	}
	p := "/" + chi.URLParam(r, "*")
	n := control.Find(root, p)
	if n == nil {
		return nil, http.StatusNotFound, fmt.Errorf("no control at %s", p)
	}
	return n, http.StatusOK, nil
}

// GetControl returns the control at the path following /controls
func (h *HTTPCamera) GetControl(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, code, err := h.find(r)
	if err != nil {
		http.Error(w, err.Error(), code)
		return
	}
	writeJSON(w, control.Describe(n))
}

// SetControl sets the control at the path following /controls from a
// {"str": value} payload.  The new configuration is written to the camera.
func (h *HTTPCamera) SetControl(w http.ResponseWriter, r *http.Request) {
	str := generichttp.StrT{}
	err := json.NewDecoder(r.Body).Decode(&str)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	n, code, err := h.find(r)
	if err != nil {
		http.Error(w, err.Error(), code)
		return
	}
	if err = control.SetString(n, str.Str); err != nil {
		code := status(err)
		if code == http.StatusInternalServerError {
			code = http.StatusBadRequest
		}
		http.Error(w, err.Error(), code)
		return
	}
	writeJSON(w, control.Describe(n))
}

// ListFiles returns the FileInfo of every file downloaded
func (h *HTTPCamera) ListFiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.files.list())
}

// GetFile returns the bytes of a downloaded file as they came off the camera
func (h *HTTPCamera) GetFile(w http.ResponseWriter, r *http.Request) {
	inf, img, ok := h.files.get(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	hdr := w.Header()
	if inf.MIMEType != "" {
		hdr.Set("Content-Type", inf.MIMEType)
	}
	hdr.Set("X-Checksum-CRC32", strconv.FormatUint(uint64(inf.CRC32), 16))
	hdr.Set("Content-Disposition", "attachment; filename="+inf.Name)
	server.ReplyWithFile(w, r, img.Fs(), img.Filename(), inf.Name)
}

// DeleteFile forgets a downloaded file.  With camera=true it is also removed
// from the camera.
func (h *HTTPCamera) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	inf, _, ok := h.files.get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if on, _ := strconv.ParseBool(r.URL.Query().Get("camera")); on {
		h.mu.Lock()
		err := h.s.DeleteFile(camera.NewFile(inf.Folder, inf.Name))
		h.mu.Unlock()
		if err != nil {
			http.Error(w, err.Error(), status(err))
			return
		}
	}
	if err := h.files.remove(id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetImage decodes a downloaded file and returns it upright.
//
// Query parameters: slot (master, preview or thumbnail, default preview),
// fmt (jpg, png or fits, default jpg) and width, which scales the image down
// to that many pixels wide.
func (h *HTTPCamera) GetImage(w http.ResponseWriter, r *http.Request) {
	inf, img, ok := h.files.get(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	slot := pixbuf.SlotPreview
	if s := q.Get("slot"); s != "" {
		var err error
		if slot, err = pixbuf.ParseSlot(s); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	format := q.Get("fmt")
	if format == "" {
		format = "jpg"
	}
	ctype, ok := contentTypes[format]
	if !ok {
		http.Error(w, fmt.Sprintf("unknown image format %q", format), http.StatusBadRequest)
		return
	}
	width := 0
	if s := q.Get("width"); s != "" {
		var err error
		if width, err = strconv.Atoi(s); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	pb, err := h.loader.OpenImage(img, slot)
	if err != nil {
		lg := logger()
		lg.Error().Err(err).Str("id", inf.ID).Stringer("slot", slot).Msg("decode failed")
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	out := scale(pb.Image, width)
	cards := []fitsio.Card{
		{Name: "CAMERA", Value: h.s.Model(), Comment: "camera model"},
		{Name: "SRCFILE", Value: inf.Name, Comment: "name of the file on the camera"},
		{Name: "SLOT", Value: slot.String(), Comment: "image slot decoded"},
	}
	hdr := w.Header()
	hdr.Set("Content-Type", ctype)
	if mt := img.LastModified(); !mt.IsZero() {
		hdr.Set("Last-Modified", mt.UTC().Format(http.TimeFormat))
	}
	if format == "fits" {
		hdr.Set("Content-Disposition", "attachment; filename=image.fits")
	}
	if err := encode(w, out, format, cards); err != nil {
		lg := logger()
		lg.Error().Err(err).Str("id", inf.ID).Msg("encode failed")
	}
}
