package main

import (
	"context"
	"fmt"
	"time"

	"github.com/theckman/yacspin"
)

// spinner shows the progress of camera operations on the terminal.  An
// interrupt cancels the operation in flight.
type spinner struct {
	ctx    context.Context
	s      *yacspin.Spinner
	msg    string
	target float32
}

func newSpinner(ctx context.Context) (*spinner, error) {
	s, err := yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " ",
		SuffixAutoColon:   true,
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	})
	if err != nil {
		return nil, err
	}
	return &spinner{ctx: ctx, s: s}, nil
}

func (sp *spinner) Start(target float32, msg string) {
	sp.msg, sp.target = msg, target
	sp.s.Message(msg)
	if sp.s.Status() != yacspin.SpinnerRunning {
		sp.s.Start()
	}
}

func (sp *spinner) Update(current float32) {
	if sp.target > 0 {
		sp.s.Message(fmt.Sprintf("%s %3.0f%%", sp.msg, 100*current/sp.target))
	}
}

func (sp *spinner) Stop() {
	sp.s.Message(sp.msg)
}

func (sp *spinner) Cancelled() bool {
	return sp.ctx.Err() != nil
}

func (sp *spinner) done(msg string) {
	sp.s.StopMessage(msg)
	if sp.s.Status() == yacspin.SpinnerRunning {
		sp.s.Stop()
	}
}

func (sp *spinner) fail(err error) {
	sp.s.StopFailMessage(err.Error())
	if sp.s.Status() == yacspin.SpinnerRunning {
		sp.s.StopFail()
	}
}
