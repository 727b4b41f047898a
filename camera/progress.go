package camera

import "sync"

// Progress receives progress reports of long device operations, such as a
// file transfer, and is polled to cancel them
type Progress interface {
	// Start begins an operation which completes when Update reaches target
	Start(target float32, msg string)

	Update(current float32)

	Stop()

	// Cancelled returns true to abort the operation in flight.  The aborted
	// operation fails with a *DeviceError wrapping gphoto.ErrCancel.
	Cancelled() bool
}

// LogProgress reports progress to the log.  Cancel aborts the next operation
// that polls for cancellation.
type LogProgress struct {
	mu      sync.Mutex
	msg     string
	target  float32
	cancel  bool
	percent float32
}

func (p *LogProgress) Start(target float32, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msg, p.target, p.percent = msg, target, 0
	lg := logger()
	lg.Info().Str("op", msg).Msg("started")
}

func (p *LogProgress) Update(current float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.target > 0 {
		p.percent = 100 * current / p.target
	}
	lg := logger()
	lg.Debug().Str("op", p.msg).Float32("percent", p.percent).Msg("progress")
}

func (p *LogProgress) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	lg := logger()
	lg.Info().Str("op", p.msg).Msg("done")
	p.msg = ""
}

// Percent returns the completion of the current operation
func (p *LogProgress) Percent() float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.percent
}

// Cancel requests cancellation
func (p *LogProgress) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancel = true
}

// Cancelled reports a pending cancellation request once
func (p *LogProgress) Cancelled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.cancel
	p.cancel = false
	return c
}
