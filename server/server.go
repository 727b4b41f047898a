// Package server contains misc server utilities.
package server

import (
	"fmt"
	"net/http"
	"os"

	"github.com/cicerolneto/entangle/debug"
	"github.com/spf13/afero"
)

// ReplyWithFile replies to the client request by serving the file fn of fs
// under the given name.  Range and conditional requests are honored using
// the modification time of the file.
func ReplyWithFile(w http.ResponseWriter, r *http.Request, fs afero.Fs, fn, name string) {
	log := debug.For("server")
	f, err := fs.Open(fn)
	if err != nil {
		code := http.StatusInternalServerError
		if os.IsNotExist(err) {
			code = http.StatusNotFound
		}
		log.Warn().Err(err).Str("file", fn).Msg("unable to open source file")
		http.Error(w, fmt.Sprintf("source file missing %s", name), code)
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		fstr := fmt.Sprintf("error retrieving source file stats %s", err)
		log.Error().Err(err).Str("file", fn).Msg("stat failed")
		http.Error(w, fstr, http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, r, name, stat.ModTime(), f)
}
