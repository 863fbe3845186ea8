package core

import (
	"os/exec"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Pipeline carries the collaborators shared by every step of a run.
// The zero value runs real tools and discards events and logs.
type Pipeline struct {
	Cmd   Commander
	Emit  Emitter
	Log   *zap.Logger
	Clock clock.Clock
	// LookPath finds optional tools (ios-deploy, xcpretty, xcbeautify).
	LookPath func(string) (string, error)

	// LogFormat selects build output handling: auto, raw, xcpretty or xcbeautify.
	LogFormat string
	Verbose   bool
}

func (p *Pipeline) cmd() Commander {
	if p.Cmd == nil {
		return ExecCommander{}
	}
	return p.Cmd
}

func (p *Pipeline) log() *zap.Logger {
	if p.Log == nil {
		return zap.NewNop()
	}
	return p.Log
}

func (p *Pipeline) clock() clock.Clock {
	if p.Clock == nil {
		return clock.New()
	}
	return p.Clock
}

func (p *Pipeline) lookPath(name string) (string, error) {
	if p.LookPath == nil {
		return exec.LookPath(name)
	}
	return p.LookPath(name)
}
