package locker_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cicerolneto/entangle/generichttp"
	"github.com/cicerolneto/entangle/server/middleware/locker"
	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
)

type table generichttp.RouteTable

func (t table) RT() generichttp.RouteTable { return generichttp.RouteTable(t) }

func TestLockedRoutes(t *testing.T) {
	rt := table{
		{Method: http.MethodPost, Path: "/capture"}: func(w http.ResponseWriter, r *http.Request) {},
		{Method: http.MethodGet, Path: "/events"}:   func(w http.ResponseWriter, r *http.Request) {},
	}
	l := locker.New()
	locker.Inject(rt, l)

	mux := chi.NewRouter()
	mux.Use(l.Check)
	rt.RT().Bind(mux)

	do := func(method, path, body string) int {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/capture", ""))
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/lock", `{"bool": true}`))
	assert.True(t, l.Locked())
	assert.Equal(t, http.StatusLocked, do(http.MethodPost, "/capture", ""))
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/events", ""))
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/lock", ""))
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/lock", `{"bool": false}`))
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/capture", ""))
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/lock", `nope`))
}
