package debug_test

import (
	"bytes"
	"testing"

	"github.com/cicerolneto/entangle/debug"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"INFO":  zerolog.InfoLevel,
		"off":   zerolog.Disabled,
		"":      zerolog.WarnLevel,
		"bogus": zerolog.WarnLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, debug.ParseLevel(in), in)
	}
}

func TestForTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	debug.Init(zerolog.DebugLevel, &buf)
	defer debug.Init(zerolog.WarnLevel, nil)

	log := debug.For("camera")
	log.Debug().Msg("connected")
	assert.Contains(t, buf.String(), `"component":"camera"`)
	assert.Contains(t, buf.String(), `"message":"connected"`)
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	debug.Init(zerolog.ErrorLevel, &buf)
	defer debug.Init(zerolog.WarnLevel, nil)

	log := debug.For("pixbuf")
	log.Info().Msg("quiet")
	assert.Empty(t, buf.String())
}
