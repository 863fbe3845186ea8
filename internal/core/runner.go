package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

type CmdSpec struct {
	Path string
	Args []string
	Dir  string
	Env  map[string]string

	StdoutLine func(string)
	StderrLine func(string)
}

type CmdResult struct {
	ExitCode int
	PID      int
	Duration time.Duration
}

// ExitStatusError reports a process that ran to completion with a non-zero status.
type ExitStatusError struct {
	Path string
	Code int
	Err  error
}

func (e *ExitStatusError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Path, e.Code)
}

func (e *ExitStatusError) Unwrap() error { return e.Err }

// Commander runs external tools. ExecCommander is the real implementation.
type Commander interface {
	Run(ctx context.Context, spec CmdSpec) (CmdResult, error)
}

type ExecCommander struct{}

func (ExecCommander) Run(ctx context.Context, spec CmdSpec) (CmdResult, error) {
	return RunStreaming(ctx, spec)
}

func RunStreaming(ctx context.Context, spec CmdSpec) (CmdResult, error) {
	start := time.Now()

	cmd := exec.Command(spec.Path, spec.Args...)
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}
	cmd.Env = mergeEnv(os.Environ(), spec.Env)

	// Ensure we can signal the whole process group on cancel (macOS/Linux).
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return CmdResult{}, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return CmdResult{}, err
	}

	if err := cmd.Start(); err != nil {
		return CmdResult{ExitCode: -1}, err
	}
	pid := cmd.Process.Pid

	stdoutDone := make(chan struct{})
	stderrDone := make(chan struct{})
	go streamLines(stdout, spec.StdoutLine, stdoutDone)
	go streamLines(stderr, spec.StderrLine, stderrDone)

	waitDone := make(chan error, 1)
	go func() {
		// Wait closes the pipes, so drain both streams first.
		<-stdoutDone
		<-stderrDone
		waitDone <- cmd.Wait()
	}()

	select {
	case err := <-waitDone:
		return finalizeResult(spec.Path, err, pid, time.Since(start))
	case <-ctx.Done():
		_ = syscall.Kill(-pid, syscall.SIGINT)
	}

	for _, sig := range []syscall.Signal{syscall.SIGTERM, syscall.SIGKILL} {
		select {
		case err := <-waitDone:
			return CmdResult{ExitCode: exitCodeFromErr(err), PID: pid, Duration: time.Since(start)}, ctx.Err()
		case <-time.After(3 * time.Second):
			_ = syscall.Kill(-pid, sig)
		}
	}
	err = <-waitDone
	return CmdResult{ExitCode: exitCodeFromErr(err), PID: pid, Duration: time.Since(start)}, ctx.Err()
}

// RunCapture runs spec and returns the complete stdout and stderr text.
func RunCapture(ctx context.Context, c Commander, spec CmdSpec) (string, string, CmdResult, error) {
	var out, errOut strings.Builder
	onOut, onErr := spec.StdoutLine, spec.StderrLine
	spec.StdoutLine = func(s string) {
		out.WriteString(s)
		out.WriteString("\n")
		if onOut != nil {
			onOut(s)
		}
	}
	spec.StderrLine = func(s string) {
		errOut.WriteString(s)
		errOut.WriteString("\n")
		if onErr != nil {
			onErr(s)
		}
	}
	res, err := c.Run(ctx, spec)
	return out.String(), errOut.String(), res, err
}

func streamLines(r io.Reader, onLine func(string), done chan<- struct{}) {
	defer close(done)
	scanner := bufio.NewScanner(r)
	// Increase buffer for very long lines (xcodebuild can be chatty).
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)
	for scanner.Scan() {
		if onLine != nil {
			onLine(strings.TrimRight(scanner.Text(), "\r"))
		}
	}
	// Keep draining so the child never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

func finalizeResult(path string, waitErr error, pid int, dur time.Duration) (CmdResult, error) {
	code := exitCodeFromErr(waitErr)
	res := CmdResult{ExitCode: code, PID: pid, Duration: dur}
	if waitErr == nil {
		return res, nil
	}
	var ee *exec.ExitError
	if errors.As(waitErr, &ee) {
		return res, &ExitStatusError{Path: path, Code: code, Err: waitErr}
	}
	return res, waitErr
}

func exitCodeFromErr(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		// On Unix this is syscall.WaitStatus.
		if ws, ok := ee.Sys().(syscall.WaitStatus); ok {
			return ws.ExitStatus()
		}
	}
	return 1
}

// IsExitStatus reports whether err is a non-zero exit of a process that started.
func IsExitStatus(err error) bool {
	var se *ExitStatusError
	return errors.As(err, &se)
}

func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	m := map[string]string{}
	order := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if _, seen := m[k]; !seen {
			order = append(order, k)
		}
		m[k] = v
	}
	for k, v := range extra {
		if _, seen := m[k]; !seen {
			order = append(order, k)
		}
		m[k] = v
	}
	out := make([]string, 0, len(order))
	for _, k := range order {
		out = append(out, k+"="+m[k])
	}
	return out
}

func formatCmd(path string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, path)
	for _, a := range args {
		if strings.ContainsAny(a, " \t\"") {
			a = strings.ReplaceAll(a, "\"", "\\\"")
			parts = append(parts, "\""+a+"\"")
		} else {
			parts = append(parts, a)
		}
	}
	return strings.Join(parts, " ")
}
