package camera_test

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cicerolneto/entangle/camera"
	"github.com/cicerolneto/entangle/generichttp"
	httpcam "github.com/cicerolneto/entangle/generichttp/camera"
	"github.com/cicerolneto/entangle/gphoto"
	"github.com/cicerolneto/entangle/imgrec"
	"github.com/go-chi/chi"
	"github.com/gorilla/websocket"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rig struct {
	t   *testing.T
	drv *gphoto.MockDriver
	h   *httpcam.HTTPCamera
	mux *chi.Mux
}

func newRig(t *testing.T, opts httpcam.Options) *rig {
	t.Helper()
	drv := gphoto.NewMockDriver()
	s := camera.New(drv, "Mock Camera", "usb:", false, false, false)
	if opts.FPS == 0 {
		opts.FPS = 1000
	}
	h := httpcam.NewHTTPCamera(s, opts)
	mux := chi.NewRouter()
	h.RT().Bind(mux)
	return &rig{t: t, drv: drv, h: h, mux: mux}
}

func (r *rig) do(method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.mux.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func (r *rig) connect() {
	r.t.Helper()
	rec := r.do(http.MethodPost, "/connected", `{"bool": true}`)
	require.Equal(r.t, http.StatusOK, rec.Code, rec.Body.String())
}

func (r *rig) capture(query string) httpcam.FileInfo {
	r.t.Helper()
	rec := r.do(http.MethodPost, "/capture"+query, "")
	require.Equal(r.t, http.StatusOK, rec.Code, rec.Body.String())
	var inf httpcam.FileInfo
	require.NoError(r.t, json.Unmarshal(rec.Body.Bytes(), &inf))
	return inf
}

func (r *rig) cameraFiles() int {
	d := r.drv.Device
	d.Lock()
	defer d.Unlock()
	return len(d.Files)
}

func TestNotConnected(t *testing.T) {
	r := newRig(t, httpcam.Options{})
	assert.JSONEq(t, `{"bool": false}`, r.do(http.MethodGet, "/connected", "").Body.String())
	assert.Equal(t, http.StatusConflict, r.do(http.MethodPost, "/capture", "").Code)
	assert.Equal(t, http.StatusConflict, r.do(http.MethodGet, "/summary", "").Code)
	assert.Equal(t, http.StatusConflict, r.do(http.MethodGet, "/controls", "").Code)
	assert.Equal(t, http.StatusConflict, r.do(http.MethodGet, "/preview", "").Code)
}

func TestConnectAndInfo(t *testing.T) {
	r := newRig(t, httpcam.Options{})
	r.connect()
	assert.JSONEq(t, `{"bool": true}`, r.do(http.MethodGet, "/connected", "").Body.String())

	var inf httpcam.Info
	require.NoError(t, json.Unmarshal(r.do(http.MethodGet, "/camera", "").Body.Bytes(), &inf))
	assert.Equal(t, httpcam.Info{
		Model: "Mock Camera", Port: "usb:", Connected: true,
		HasCapture: true, HasPreview: true, HasSettings: true,
	}, inf)

	assert.JSONEq(t, `{"str": "Mock camera driver"}`, r.do(http.MethodGet, "/manual", "").Body.String())

	assert.Equal(t, http.StatusOK, r.do(http.MethodPost, "/connected", `{"bool": false}`).Code)
	assert.True(t, r.drv.Device.Closed)
	assert.Equal(t, http.StatusBadRequest, r.do(http.MethodPost, "/connected", `yes`).Code)
}

func TestCaptureAndDownload(t *testing.T) {
	r := newRig(t, httpcam.Options{})
	r.connect()

	inf := r.capture("")
	assert.Equal(t, "/store_00010001/DCIM/100MOCK", inf.Folder)
	assert.Equal(t, "IMG_0001.JPG", inf.Name)
	assert.NotEmpty(t, inf.ID)
	assert.Empty(t, inf.Recorded)
	assert.Equal(t, 1, r.cameraFiles())

	rec := r.do(http.MethodGet, "/files/"+inf.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, inf.Size, rec.Body.Len())
	assert.Equal(t, strconv.FormatUint(uint64(inf.CRC32), 16), rec.Header().Get("X-Checksum-CRC32"))
	f := camera.File{Data: rec.Body.Bytes()}
	assert.Equal(t, inf.CRC32, f.Checksum())

	second := r.capture("?delete=true")
	assert.Equal(t, "IMG_0002.JPG", second.Name)
	assert.Equal(t, 1, r.cameraFiles())

	var list []httpcam.FileInfo
	require.NoError(t, json.Unmarshal(r.do(http.MethodGet, "/files", "").Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, inf.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)

	assert.Equal(t, http.StatusBadRequest, r.do(http.MethodPost, "/capture?delete=perhaps", "").Code)
}

func TestDeleteFile(t *testing.T) {
	r := newRig(t, httpcam.Options{})
	r.connect()
	a := r.capture("")
	b := r.capture("")
	require.Equal(t, 2, r.cameraFiles())

	assert.Equal(t, http.StatusOK, r.do(http.MethodDelete, "/files/"+a.ID, "").Code)
	assert.Equal(t, 2, r.cameraFiles())
	assert.Equal(t, http.StatusNotFound, r.do(http.MethodGet, "/files/"+a.ID, "").Code)

	assert.Equal(t, http.StatusOK, r.do(http.MethodDelete, "/files/"+b.ID+"?camera=true", "").Code)
	assert.Equal(t, 1, r.cameraFiles())
	assert.Equal(t, http.StatusNotFound, r.do(http.MethodDelete, "/files/"+b.ID, "").Code)
}

func TestImage(t *testing.T) {
	r := newRig(t, httpcam.Options{})
	r.connect()
	inf := r.capture("")
	base := "/files/" + inf.ID + "/image"

	rec := r.do(http.MethodGet, base+"?slot=master&fmt=png", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 160, 120), img.Bounds())

	rec = r.do(http.MethodGet, base+"?width=40", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	img, _, err = image.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds())

	rec = r.do(http.MethodGet, base+"?slot=thumbnail&fmt=fits", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("SIMPLE")))
	assert.Contains(t, rec.Body.String(), "Mock Camera")

	assert.Equal(t, http.StatusBadRequest, r.do(http.MethodGet, base+"?fmt=bmp", "").Code)
	assert.Equal(t, http.StatusBadRequest, r.do(http.MethodGet, base+"?slot=poster", "").Code)
	assert.Equal(t, http.StatusBadRequest, r.do(http.MethodGet, base+"?width=wide", "").Code)
	assert.Equal(t, http.StatusNotFound, r.do(http.MethodGet, "/files/nope/image", "").Code)
}

func TestImageUndecodable(t *testing.T) {
	r := newRig(t, httpcam.Options{})
	r.connect()
	d := r.drv.Device
	d.Lock()
	d.Files[gphoto.CameraFilePath{Folder: "/DCIM", Name: "notes.txt"}] = []byte("not an image")
	d.Unlock()
	d.Queue(gphoto.Event{Type: gphoto.EventFileAdded, Path: gphoto.CameraFilePath{Folder: "/DCIM", Name: "notes.txt"}})

	var added []httpcam.FileInfo
	require.NoError(t, json.Unmarshal(r.do(http.MethodPost, "/wait?timeout=1ms", "").Body.Bytes(), &added))
	require.Len(t, added, 1)
	assert.Equal(t, http.StatusUnprocessableEntity, r.do(http.MethodGet, "/files/"+added[0].ID+"/image", "").Code)
}

func TestWait(t *testing.T) {
	r := newRig(t, httpcam.Options{})
	r.connect()
	p := gphoto.CameraFilePath{Folder: "/store_00010001/DCIM/100MOCK", Name: "IMG_0100.JPG"}
	d := r.drv.Device
	d.Lock()
	d.Files[p] = []byte("shutter button")
	d.Unlock()
	d.Queue(gphoto.Event{Type: gphoto.EventFileAdded, Path: p})

	rec := r.do(http.MethodPost, "/wait?timeout=1ms", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var added []httpcam.FileInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &added))
	require.Len(t, added, 1)
	assert.Equal(t, "IMG_0100.JPG", added[0].Name)
	assert.EqualValues(t, len("shutter button"), added[0].Size)

	rec = r.do(http.MethodPost, "/wait?timeout=1ms", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, http.StatusBadRequest, r.do(http.MethodPost, "/wait?timeout=soon", "").Code)
}

func TestControls(t *testing.T) {
	r := newRig(t, httpcam.Options{})
	r.connect()

	rec := r.do(http.MethodGet, "/controls", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `/main/capturesettings/exposurecompensation`)

	rec = r.do(http.MethodGet, "/controls/main/settings/artist", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"Name of the photographer"`)

	rec = r.do(http.MethodPost, "/controls/main/settings/artist", `{"str": "Ansel"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"value":"Ansel"`)
	assert.Equal(t, 1, r.drv.Device.CallCount(gphoto.OpSetConfig))

	assert.Equal(t, http.StatusForbidden, r.do(http.MethodPost, "/controls/main/settings/serialnumber", `{"str": "1"}`).Code)
	assert.Equal(t, http.StatusBadRequest, r.do(http.MethodPost, "/controls/main/actions/viewfinder", `{"str": "maybe"}`).Code)
	assert.Equal(t, http.StatusBadRequest, r.do(http.MethodPost, "/controls/main/actions/autofocusdrive", `{"str": "1"}`).Code)
	assert.Equal(t, http.StatusBadRequest, r.do(http.MethodPost, "/controls/main/capturesettings/exposurecompensation", `{"str": "9"}`).Code)
	assert.Equal(t, http.StatusBadRequest, r.do(http.MethodPost, "/controls/main/settings/artist", `{str}`).Code)
	assert.Equal(t, http.StatusNotFound, r.do(http.MethodGet, "/controls/main/nothing", "").Code)
	assert.Equal(t, 1, r.drv.Device.CallCount(gphoto.OpSetConfig))
}

func TestCancel(t *testing.T) {
	r := newRig(t, httpcam.Options{})
	r.connect()
	assert.Equal(t, http.StatusOK, r.do(http.MethodPost, "/cancel", "").Code)
	assert.Equal(t, http.StatusBadGateway, r.do(http.MethodPost, "/capture", "").Code)
	r.capture("")

	var f generichttp.FloatT
	require.NoError(t, json.Unmarshal(r.do(http.MethodGet, "/progress", "").Body.Bytes(), &f))
	assert.Equal(t, 100.0, f.F64)
}

func TestRecorder(t *testing.T) {
	fs := afero.NewMemMapFs()
	rec := &imgrec.Recorder{Fs: fs, Root: "/captures", Prefix: "shot", Enabled: true}
	r := newRig(t, httpcam.Options{Recorder: rec})
	r.connect()

	inf := r.capture("")
	require.NotEmpty(t, inf.Recorded)
	assert.True(t, strings.HasSuffix(inf.Recorded, "/shot000001.jpg"), inf.Recorded)
	b, err := afero.ReadFile(fs, inf.Recorded)
	require.NoError(t, err)
	assert.EqualValues(t, inf.Size, len(b))

	assert.Equal(t, http.StatusOK, r.do(http.MethodPost, "/autowrite/enabled", `{"bool": false}`).Code)
	assert.Empty(t, r.capture("").Recorded)
}

func TestPreview(t *testing.T) {
	r := newRig(t, httpcam.Options{})
	r.connect()
	rec := r.do(http.MethodGet, "/preview", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, r.drv.Device.Preview.Data, rec.Body.Bytes())
}

func TestStream(t *testing.T) {
	r := newRig(t, httpcam.Options{})
	r.connect()
	rec := r.do(http.MethodGet, "/preview/stream?frames=2", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	mt, params, err := mime.ParseMediaType(rec.Header().Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/x-mixed-replace", mt)
	mr := multipart.NewReader(rec.Body, params["boundary"])
	frames := 0
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", part.Header.Get("Content-Type"))
		b, err := io.ReadAll(part)
		require.NoError(t, err)
		assert.Equal(t, r.drv.Device.Preview.Data, b)
		frames++
	}
	assert.Equal(t, 2, frames)
	assert.Equal(t, 2, r.drv.Device.CallCount(gphoto.OpPreview))
}

func TestStreamNotConnected(t *testing.T) {
	r := newRig(t, httpcam.Options{})
	assert.Equal(t, http.StatusConflict, r.do(http.MethodGet, "/preview/stream?frames=1", "").Code)
}

func TestEvents(t *testing.T) {
	r := newRig(t, httpcam.Options{})
	r.connect()
	srv := httptest.NewServer(r.mux)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/events", nil)
	require.NoError(t, err)
	defer conn.Close()

	// the subscription starts after the handshake, so keep capturing until
	// an event comes through
	done := make(chan struct{})
	defer close(done)
	go func() {
		tick := time.NewTicker(20 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				resp, err := http.Post(srv.URL+"/capture", "", nil)
				if err == nil {
					resp.Body.Close()
				}
			}
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev struct {
		Type string `json:"type"`
		File struct {
			Folder string `json:"folder"`
			Name   string `json:"name"`
		} `json:"file"`
	}
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Contains(t, []string{"file-captured", "file-downloaded"}, ev.Type)
	assert.Equal(t, "/store_00010001/DCIM/100MOCK", ev.File.Folder)
	assert.True(t, strings.HasPrefix(ev.File.Name, "IMG_"))
}

func TestEndpoints(t *testing.T) {
	r := newRig(t, httpcam.Options{Recorder: &imgrec.Recorder{Fs: afero.NewMemMapFs()}})
	rec := r.do(http.MethodGet, "/endpoints", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "POST /capture")
	assert.Contains(t, body, "GET /files/{id}/image")
	assert.Contains(t, body, "POST /autowrite/enabled")
}
