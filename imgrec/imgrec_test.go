package imgrec_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cicerolneto/entangle/camera"
	"github.com/cicerolneto/entangle/generichttp"
	"github.com/cicerolneto/entangle/imgrec"
	"github.com/go-chi/chi"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time { return time.Date(2021, 3, 7, 15, 4, 5, 0, time.UTC) }

func downloaded(name string, data string) *camera.File {
	f := camera.NewFile("/store_00010001/DCIM/100CANON", name)
	f.Data = []byte(data)
	return f
}

func TestRecordIncrements(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := &imgrec.Recorder{Fs: fs, Root: "/data", Prefix: "shot", Now: fixedClock}

	e, err := r.Record(downloaded("IMG_0001.JPG", "abc"))
	require.NoError(t, err)
	assert.Equal(t, "/data/2021-03-07/shot000001.jpg", e.Path)
	assert.Equal(t, "/store_00010001/DCIM/100CANON/IMG_0001.JPG", e.Source)
	assert.Equal(t, 3, e.Size)
	assert.Equal(t, downloaded("x", "abc").Checksum(), e.Checksum)

	e, err = r.Record(downloaded("IMG_0002.CR2", "raw"))
	require.NoError(t, err)
	assert.Equal(t, "/data/2021-03-07/shot000002.cr2", e.Path)

	b, err := afero.ReadFile(fs, e.Path)
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))
}

func TestRecordResumesFromFolder(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/2021-03-07/shot000041.jpg", []byte("x"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/data/2021-03-07/other000099.jpg", []byte("x"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/data/2021-03-07/shotnotes.txt", []byte("x"), 0644))

	r := &imgrec.Recorder{Fs: fs, Root: "/data", Prefix: "shot", Now: fixedClock}
	e, err := r.Record(downloaded("IMG_0001.JPG", "abc"))
	require.NoError(t, err)
	assert.Equal(t, "/data/2021-03-07/shot000042.jpg", e.Path)
}

func TestRecordNeedsData(t *testing.T) {
	r := &imgrec.Recorder{Fs: afero.NewMemMapFs(), Root: "/data", Now: fixedClock}
	_, err := r.Record(camera.NewFile("/", "IMG_0001.JPG"))
	assert.Error(t, err)
}

type table generichttp.RouteTable

func (t table) RT() generichttp.RouteTable { return generichttp.RouteTable(t) }

func TestHTTPWrapper(t *testing.T) {
	r := &imgrec.Recorder{Fs: afero.NewMemMapFs(), Now: fixedClock}
	rt := table{}
	imgrec.NewHTTPWrapper(r).Inject(rt)
	mux := chi.NewRouter()
	rt.RT().Bind(mux)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
		return rec
	}

	assert.False(t, r.IsEnabled())
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/autowrite/root", `{"str": "/captures"}`).Code)
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/autowrite/prefix", `{"str": "session-"}`).Code)
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/autowrite/enabled", `{"bool": true}`).Code)
	assert.True(t, r.IsEnabled())

	assert.JSONEq(t, `{"str": "/captures"}`, do(http.MethodGet, "/autowrite/root", "").Body.String())
	assert.JSONEq(t, `{"str": "session-"}`, do(http.MethodGet, "/autowrite/prefix", "").Body.String())
	assert.JSONEq(t, `{"bool": true}`, do(http.MethodGet, "/autowrite/enabled", "").Body.String())

	ok, err := afero.DirExists(r.Fs, "/captures/2021-03-07")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/autowrite/enabled", `maybe`).Code)
}
