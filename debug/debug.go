/*Package debug holds the process wide structured logger.

Init is called once by the binary; packages obtain a child logger tagged
with their component name through For.  Until Init is called, output is
written to stderr at warn level.
*/
package debug

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu     sync.RWMutex
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(zerolog.WarnLevel).
		With().Timestamp().Logger()
)

// ParseLevel converts a level name (trace, debug, info, warn, error, off)
// to a zerolog level.  Unknown names map to warn.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "off", "none", "disabled":
		return zerolog.Disabled
	case "":
		return zerolog.WarnLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.WarnLevel
	}
	return lvl
}

// Init sets the level of the process logger.  If w is nil, human readable
// output is written to stderr.
func Init(level zerolog.Level, w io.Writer) {
	if w == nil {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	mu.Lock()
	defer mu.Unlock()
	logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Logger returns the process logger
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// For returns a logger carrying a component field
func For(component string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger.With().Str("component", component).Logger()
}
