package camera

import (
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"

	"github.com/cicerolneto/entangle/camera"
	"golang.org/x/time/rate"
)

// Stream sends live view frames as a multipart/x-mixed-replace stream, at
// most fps frames per second, until the client goes away or the camera fails.
// frames=N stops after N frames.
func (h *HTTPCamera) Stream(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("frames"); s != "" {
		var err error
		if limit, err = strconv.Atoi(s); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	ctx := r.Context()
	lim := rate.NewLimiter(rate.Limit(h.fps), 1)
	mw := multipart.NewWriter(w)
	flusher, _ := w.(http.Flusher)
	started := false
	defer func() {
		if started {
			mw.Close()
		}
	}()
	for n := 0; limit == 0 || n < limit; n++ {
		if err := lim.Wait(ctx); err != nil {
			return
		}
		h.mu.Lock()
		f, err := h.s.CapturePreview()
		h.mu.Unlock()
		if err != nil {
			if !started {
				http.Error(w, err.Error(), status(err))
			} else {
				lg := logger()
				lg.Warn().Err(err).Int("frame", n).Msg("live view stopped")
			}
			return
		}
		if !started {
			w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mw.Boundary())
			started = true
		}
		mime := f.MIMEType
		if mime == "" {
			mime = "image/jpeg"
		}
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":   {mime},
			"Content-Length": {strconv.Itoa(len(f.Data))},
		})
		if err != nil {
			return
		}
		if _, err = part.Write(f.Data); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// Events upgrades to a websocket and sends every event of the session as
// JSON until the client closes the connection
func (h *HTTPCamera) Events(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		lg := logger()
		lg.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	events := make(chan camera.Event, 64)
	unsub := h.s.Subscribe(func(ev camera.Event) {
		if ev.File != nil {
			cp := *ev.File
			cp.Data = nil
			ev.File = &cp
		}
		select {
		case events <- ev:
		default:
			lg := logger()
			lg.Warn().Stringer("event", ev.Type).Msg("event dropped, client too slow")
		}
	})
	defer unsub()

	// the read loop only notices the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev := <-events:
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
