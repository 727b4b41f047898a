package camera

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
)

// RetryConfig shapes the exponential backoff of ConnectRetry
type RetryConfig struct {
	InitialInterval time.Duration `koanf:"InitialInterval" yaml:"InitialInterval"`
	MaxInterval     time.Duration `koanf:"MaxInterval" yaml:"MaxInterval"`
	MaxElapsed      time.Duration `koanf:"MaxElapsed" yaml:"MaxElapsed"`
}

// DefaultRetry waits 250 ms, doubling up to 2 s between attempts, for at
// most 10 s
var DefaultRetry = RetryConfig{
	InitialInterval: 250 * time.Millisecond,
	MaxInterval:     2 * time.Second,
	MaxElapsed:      10 * time.Second,
}

// ConnectRetry calls s.Connect until it succeeds, ctx is done, or
// cfg.MaxElapsed passes.  notify, if not nil, is called after each failed
// attempt with the error and the wait before the next one.
func ConnectRetry(ctx context.Context, s *Session, cfg RetryConfig, notify func(error, time.Duration)) error {
	// cameras that are still spinning up after being plugged in answer
	// the first few inits with I/O errors
	b := &backoff.ExponentialBackOff{
		InitialInterval:     cfg.InitialInterval,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         cfg.MaxInterval,
		MaxElapsedTime:      cfg.MaxElapsed,
		Clock:               backoff.SystemClock,
	}
	op := func() error {
		return s.Connect()
	}
	if notify == nil {
		notify = func(err error, d time.Duration) {
			lg := logger()
			lg.Info().Err(err).Dur("next", d).Msg("connect failed, retrying")
		}
	}
	return backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
}
