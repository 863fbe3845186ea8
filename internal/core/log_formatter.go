package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

type LogFormat string

const (
	LogFormatAuto       LogFormat = "auto"
	LogFormatRaw        LogFormat = "raw"
	LogFormatXcpretty   LogFormat = "xcpretty"
	LogFormatXcbeautify LogFormat = "xcbeautify"
)

// formatterProc is an xcpretty or xcbeautify child fed through stdin.
type formatterProc struct {
	name     string
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	outDone  chan struct{}
	errDone  chan struct{}
	mu       sync.Mutex
	closed   bool
	writeErr error
}

func startFormatter(ctx context.Context, lookPath func(string) (string, error), name string, onLine, onErr func(string)) (*formatterProc, error) {
	path, err := lookPath(name)
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, path)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	f := &formatterProc{
		name:    name,
		cmd:     cmd,
		stdin:   stdin,
		outDone: make(chan struct{}),
		errDone: make(chan struct{}),
	}
	go streamLines(stdout, onLine, f.outDone)
	go streamLines(stderr, onErr, f.errDone)
	return f, nil
}

func (f *formatterProc) WriteLine(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	if _, err := io.WriteString(f.stdin, line+"\n"); err != nil && f.writeErr == nil {
		f.writeErr = err
	}
}

func (f *formatterProc) Failed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writeErr != nil
}

func (f *formatterProc) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	_ = f.stdin.Close()
	<-f.outDone
	<-f.errDone
	err := f.cmd.Wait()
	if f.writeErr != nil {
		return f.writeErr
	}
	return err
}

// buildLogSink routes xcodebuild stdout. Verbose and raw modes print every
// line. Otherwise lines go through a formatter when one is installed; without
// one only error lines are printed and the rest stay in the event stream as
// log_raw.
type buildLogSink struct {
	cmd       string
	emit      Emitter
	verbose   bool
	formatter *formatterProc

	mu            sync.Mutex
	tail          []bufferedLine
	tailSize      int
	prettyLines   int
	switchedToRaw bool
}

type bufferedLine struct {
	text    string
	emitted bool
}

func newBuildLogSink(ctx context.Context, p *Pipeline, cmd string) *buildLogSink {
	format, verbose, emit := p.LogFormat, p.Verbose, p.Emit
	sink := &buildLogSink{cmd: cmd, emit: emit, verbose: verbose, tailSize: 200}
	if verbose || isNDJSONEmitter(emit) {
		sink.verbose = true
		return sink
	}

	start := func(name LogFormat) *formatterProc {
		f, err := startFormatter(ctx, p.lookPath, string(name), sink.handlePrettyLine, func(line string) {
			if strings.TrimSpace(line) != "" {
				emitMaybe(emit, Warn(cmd, fmt.Sprintf("%s: %s", name, line)))
			}
		})
		if err != nil {
			return nil
		}
		return f
	}

	switch want := normalizeLogFormat(format); want {
	case LogFormatRaw:
		sink.verbose = true
	case LogFormatAuto:
		if f := start(LogFormatXcpretty); f != nil {
			sink.formatter = f
		} else if f := start(LogFormatXcbeautify); f != nil {
			sink.formatter = f
		}
	case LogFormatXcpretty, LogFormatXcbeautify:
		if f := start(want); f != nil {
			sink.formatter = f
		} else {
			emitMaybe(emit, Warn(cmd, fmt.Sprintf("%s not found in PATH; showing errors only", want)))
		}
	default:
		emitMaybe(emit, Warn(cmd, fmt.Sprintf("unknown log format %q; showing raw output", format)))
		sink.verbose = true
	}
	return sink
}

func (s *buildLogSink) HandleLine(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}

	var (
		printRaw    bool
		useFormat   bool
		emitWarning string
	)

	s.mu.Lock()
	s.appendTail(line)
	if s.formatter != nil && s.formatter.Failed() && !s.switchedToRaw {
		s.switchedToRaw = true
		emitWarning = "log formatter stopped; falling back to raw output"
	}
	switch {
	case s.verbose || s.switchedToRaw:
		printRaw = true
	case isXcodebuildErrorLine(line):
		printRaw = true
		useFormat = s.formatter != nil
	default:
		useFormat = s.formatter != nil
	}
	if printRaw {
		s.tail[len(s.tail)-1].emitted = true
	}
	s.mu.Unlock()

	if emitWarning != "" {
		emitMaybe(s.emit, Warn(s.cmd, emitWarning))
	}
	if printRaw {
		emitMaybe(s.emit, Log(s.cmd, line))
	} else {
		emitMaybe(s.emit, LogRaw(s.cmd, line))
	}
	if useFormat {
		s.formatter.WriteLine(line)
	}
}

// Finalize closes the formatter. When the build failed or the formatter
// printed nothing, the unprinted tail of the raw log is flushed.
func (s *buildLogSink) Finalize(runErr error, exitCode int) {
	var closeErr error
	if s.formatter != nil {
		closeErr = s.formatter.Close()
	}
	if closeErr != nil && !errors.Is(closeErr, context.Canceled) {
		emitMaybe(s.emit, Warn(s.cmd, fmt.Sprintf("log formatter error: %v", closeErr)))
	}

	s.mu.Lock()
	failed := runErr != nil || exitCode != 0
	silentFormatter := s.formatter != nil && s.prettyLines == 0
	flush := !s.verbose && !s.switchedToRaw && (failed || silentFormatter || closeErr != nil)
	pending := s.unemitted()
	s.mu.Unlock()

	if !flush || len(pending) == 0 {
		return
	}
	switch {
	case failed:
		emitMaybe(s.emit, Warn(s.cmd, "xcodebuild failed; showing the last raw log lines"))
	case closeErr != nil:
		emitMaybe(s.emit, Warn(s.cmd, "log formatter failed; showing raw logs"))
	default:
		emitMaybe(s.emit, Warn(s.cmd, "log formatter produced no output; showing raw logs"))
	}
	for _, line := range pending {
		emitMaybe(s.emit, Log(s.cmd, line))
	}
}

func (s *buildLogSink) handlePrettyLine(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	s.mu.Lock()
	s.prettyLines++
	s.mu.Unlock()
	emitMaybe(s.emit, LogPretty(s.cmd, line))
}

func (s *buildLogSink) appendTail(line string) {
	s.tail = append(s.tail, bufferedLine{text: line})
	if len(s.tail) > s.tailSize {
		s.tail = s.tail[len(s.tail)-s.tailSize:]
	}
}

func (s *buildLogSink) unemitted() []string {
	out := make([]string, 0, len(s.tail))
	for _, l := range s.tail {
		if !l.emitted {
			out = append(out, l.text)
		}
	}
	return out
}

func normalizeLogFormat(v string) LogFormat {
	switch f := LogFormat(strings.ToLower(strings.TrimSpace(v))); f {
	case "":
		return LogFormatAuto
	case LogFormatAuto, LogFormatRaw, LogFormatXcpretty, LogFormatXcbeautify:
		return f
	default:
		return LogFormat(v)
	}
}

func isNDJSONEmitter(emit Emitter) bool {
	_, ok := emit.(*NDJSONEmitter)
	return ok
}

var xcodebuildErrorMarkers = []string{
	"error:",
	"ld: error",
	"linker command failed",
	"command swiftcompile failed",
	"command compilec failed",
	"codesign error",
	"provisioning profile",
	"no such module",
	"failed with exit code",
	"** build failed **",
}

func isXcodebuildErrorLine(line string) bool {
	lower := strings.ToLower(line)
	for _, m := range xcodebuildErrorMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
