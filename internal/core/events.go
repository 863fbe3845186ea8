package core

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const EventSchemaVersion = 2

type ErrorObject struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

type Event struct {
	V     int          `json:"version"`
	TS    string       `json:"timestamp"`
	RunID string       `json:"runId,omitempty"`
	Cmd   string       `json:"command"`
	Type  string       `json:"type"`
	Level string       `json:"level,omitempty"`
	Code  string       `json:"code,omitempty"`
	Msg   string       `json:"message,omitempty"`
	Data  any          `json:"data,omitempty"`
	Err   *ErrorObject `json:"error,omitempty"`
}

func NowTS() string { return time.Now().UTC().Format(time.RFC3339Nano) }

type Emitter interface {
	Emit(ev Event)
}

type NDJSONEmitter struct {
	mu      sync.Mutex
	w       io.Writer
	version int
	runID   string
}

func NewNDJSONEmitter(w io.Writer, version int, runID string) *NDJSONEmitter {
	if version <= 0 {
		version = EventSchemaVersion
	}
	return &NDJSONEmitter{w: w, version: version, runID: runID}
}

func (e *NDJSONEmitter) Emit(ev Event) {
	if ev.V == 0 {
		ev.V = e.version
	}
	if ev.TS == "" {
		ev.TS = NowTS()
	}
	if ev.RunID == "" {
		ev.RunID = e.runID
	}
	b, err := json.Marshal(ev)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		// Last resort: emit a minimal JSON line.
		fmt.Fprintf(e.w, "{\"version\":%d,\"timestamp\":\"%s\",\"command\":\"%s\",\"type\":\"error\",\"message\":\"failed to encode event: %v\"}\n", e.version, NowTS(), ev.Cmd, err)
		return
	}
	e.w.Write(b)
	e.w.Write([]byte("\n"))
}

var (
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	hintStyle  = lipgloss.NewStyle().Faint(true)
)

type TextEmitter struct {
	mu     sync.Mutex
	w      io.Writer
	styled bool
}

// NewTextEmitter writes human output. styled enables colors; callers pass
// false when the writer is not a terminal.
func NewTextEmitter(w io.Writer, styled bool) *TextEmitter {
	return &TextEmitter{w: w, styled: styled}
}

func (e *TextEmitter) paint(s lipgloss.Style, text string) string {
	if !e.styled {
		return text
	}
	return s.Render(text)
}

func (e *TextEmitter) Emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ev.Err != nil {
		fmt.Fprintf(e.w, "%s %s\n", e.paint(errorStyle, "error["+ev.Err.Code+"]:"), ev.Err.Message)
		if ev.Err.Detail != "" {
			fmt.Fprintf(e.w, "  %s\n", ev.Err.Detail)
		}
		if ev.Err.Suggestion != "" {
			fmt.Fprintf(e.w, "  %s\n", e.paint(hintStyle, "hint: "+ev.Err.Suggestion))
		}
		return
	}
	if ev.Msg == "" || ev.Type == "log_raw" {
		return
	}
	switch ev.Type {
	case "log":
		fmt.Fprintln(e.w, ev.Msg)
	case "warning":
		fmt.Fprintf(e.w, "%s %s\n", e.paint(warnStyle, "warn"), ev.Msg)
	case "success":
		fmt.Fprintf(e.w, "%s %s\n", e.paint(okStyle, "success"), ev.Msg)
	default:
		fmt.Fprintf(e.w, "%s %s\n", e.paint(infoStyle, "info"), ev.Msg)
	}
}

func Status(cmd, msg string, data any) Event {
	return Event{V: EventSchemaVersion, TS: NowTS(), Cmd: cmd, Type: "status", Level: "info", Msg: msg, Data: data}
}

func Log(cmd, msg string) Event {
	return Event{V: EventSchemaVersion, TS: NowTS(), Cmd: cmd, Type: "log", Level: "info", Msg: msg}
}

func LogPretty(cmd, msg string) Event {
	return Event{V: EventSchemaVersion, TS: NowTS(), Cmd: cmd, Type: "log", Level: "info", Msg: msg, Data: map[string]any{"pretty": true}}
}

func LogRaw(cmd, msg string) Event {
	return Event{V: EventSchemaVersion, TS: NowTS(), Cmd: cmd, Type: "log_raw", Level: "info", Msg: msg}
}

func Warn(cmd, msg string) Event {
	return Event{V: EventSchemaVersion, TS: NowTS(), Cmd: cmd, Type: "warning", Level: "warn", Msg: msg}
}

func Success(cmd, msg string) Event {
	return Event{V: EventSchemaVersion, TS: NowTS(), Cmd: cmd, Type: "success", Level: "info", Msg: msg}
}

func Err(cmd string, eo ErrorObject) Event {
	return Event{V: EventSchemaVersion, TS: NowTS(), Cmd: cmd, Type: "error", Level: "error", Err: &eo, Msg: eo.Message}
}

func Result(cmd string, ok bool, data any) Event {
	status := "success"
	if !ok {
		status = "failure"
	}
	return Event{V: EventSchemaVersion, TS: NowTS(), Cmd: cmd, Type: "result", Level: "info", Data: map[string]any{"status": status, "data": data}}
}

func emitMaybe(e Emitter, ev Event) {
	if e != nil {
		e.Emit(ev)
	}
}
