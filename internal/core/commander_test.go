package core

import (
	"context"
	"strings"
	"sync"
)

type fakeCall struct {
	stdout   string
	stderr   string
	exitCode int
	// err is returned as-is, as if the process never started.
	err error
}

// fakeCommander answers commands by the longest registered prefix of
// "path arg1 arg2...". Unregistered commands succeed silently.
type fakeCommander struct {
	mu        sync.Mutex
	responses map[string]fakeCall
	calls     []CmdSpec
}

func (f *fakeCommander) on(prefix string, c fakeCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.responses == nil {
		f.responses = map[string]fakeCall{}
	}
	f.responses[prefix] = c
}

func (f *fakeCommander) Run(ctx context.Context, spec CmdSpec) (CmdResult, error) {
	line := commandLine(spec)
	f.mu.Lock()
	f.calls = append(f.calls, spec)
	var (
		best  string
		found fakeCall
	)
	for prefix, c := range f.responses {
		if strings.HasPrefix(line, prefix) && len(prefix) > len(best) {
			best, found = prefix, c
		}
	}
	f.mu.Unlock()

	if found.err != nil {
		return CmdResult{ExitCode: -1}, found.err
	}
	emitLines(found.stdout, spec.StdoutLine)
	emitLines(found.stderr, spec.StderrLine)
	if found.exitCode != 0 {
		return CmdResult{ExitCode: found.exitCode}, &ExitStatusError{Path: spec.Path, Code: found.exitCode}
	}
	return CmdResult{}, nil
}

func (f *fakeCommander) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, commandLine(c))
	}
	return out
}

func (f *fakeCommander) ran(prefix string) bool {
	for _, c := range f.commands() {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

func (f *fakeCommander) spec(prefix string) (CmdSpec, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if strings.HasPrefix(commandLine(c), prefix) {
			return c, true
		}
	}
	return CmdSpec{}, false
}

func commandLine(spec CmdSpec) string {
	return strings.TrimSpace(spec.Path + " " + strings.Join(spec.Args, " "))
}

func emitLines(text string, fn func(string)) {
	if text == "" || fn == nil {
		return
	}
	for _, l := range strings.Split(strings.TrimSuffix(text, "\n"), "\n") {
		fn(l)
	}
}

// recordingEmitter keeps every event for assertions.
type recordingEmitter struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingEmitter) Emit(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingEmitter) ofType(typ string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recordingEmitter) messages(typ string) []string {
	var out []string
	for _, ev := range r.ofType(typ) {
		out = append(out, ev.Msg)
	}
	return out
}

// states returns the deploy states announced by status events, in order.
func (r *recordingEmitter) states() []DeployState {
	var out []DeployState
	for _, ev := range r.ofType("status") {
		if m, ok := ev.Data.(map[string]any); ok {
			if s, ok := m["state"].(string); ok {
				out = append(out, DeployState(s))
			}
		}
	}
	return out
}
