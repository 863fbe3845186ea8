package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/xcbolt/iosrun/internal/core"
)

type GlobalFlags struct {
	JSON    bool
	Config  string
	Verbose bool
}

const (
	ExitGeneric   = 1
	ExitConfig    = 2
	ExitInventory = 3
	ExitTarget    = 4
	ExitBuild     = 5
)

type AppContext struct {
	RunID   string
	Emitter core.Emitter
	Logger  *zap.Logger
	Flags   GlobalFlags
}

func NewAppContext(flags GlobalFlags, out io.Writer) AppContext {
	runID := uuid.NewString()
	emit := core.Emitter(core.NewTextEmitter(out, isTerminal(out)))
	if flags.JSON {
		emit = core.NewNDJSONEmitter(out, core.EventSchemaVersion, runID)
	}
	return AppContext{
		RunID:   runID,
		Emitter: emit,
		Logger:  newLogger(flags.Verbose).With(zap.String("run_id", runID)),
		Flags:   flags,
	}
}

func (ac AppContext) Pipeline(cfg core.Config) *core.Pipeline {
	return &core.Pipeline{
		Cmd:       core.ExecCommander{},
		Emit:      ac.Emitter,
		Log:       ac.Logger,
		Clock:     clock.New(),
		LogFormat: cfg.LogFormat,
		Verbose:   cfg.Verbose,
	}
}

// fail reports err as an error event and returns the ExitError for it.
func (ac AppContext) fail(cmd string, err error) error {
	code, eo := classifyError(err)
	ac.Emitter.Emit(core.Err(cmd, eo))
	return ExitError{Code: code, Err: err, Reported: true}
}

func classifyError(err error) (int, core.ErrorObject) {
	var (
		cfgErr    *core.ConfigurationError
		invErr    *core.InventoryParseError
		targetErr *core.TargetNotFoundError
		buildErr  *core.BuildToolError
	)
	switch {
	case errors.As(err, &cfgErr):
		return ExitConfig, core.ErrorObject{
			Code:       "config_error",
			Message:    cfgErr.Error(),
			Suggestion: cfgErr.Suggestion,
		}
	case errors.As(err, &invErr):
		eo := core.ErrorObject{Code: "inventory_error", Message: invErr.Error()}
		if invErr.Err != nil {
			eo.Detail = invErr.Err.Error()
		}
		return ExitInventory, eo
	case errors.As(err, &targetErr):
		eo := core.ErrorObject{Code: "target_not_found", Message: targetErr.Error()}
		switch {
		case targetErr.Selector.Kind == core.SelectSimulator:
			eo.Suggestion = `Run "iosrun devices" to list the simulators Xcode knows about.`
		case targetErr.NoDevices():
			eo.Suggestion = "Connect a device over USB and unlock it, or drop --device to use a simulator."
		}
		return ExitTarget, eo
	case errors.As(err, &buildErr):
		return ExitBuild, core.ErrorObject{
			Code:       "build_failed",
			Message:    buildErr.Error(),
			Detail:     lastLines(buildErr.Stderr, 20),
			Suggestion: "Open " + buildErr.ProjectName + " in Xcode to inspect the full build log.",
		}
	default:
		return ExitGeneric, core.ErrorObject{Code: "error", Message: err.Error()}
	}
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func PrintFatal(err error) {
	var ee ExitError
	if errors.As(err, &ee) {
		if !ee.Reported {
			fmt.Fprintln(os.Stderr, ee.Error())
		}
		os.Exit(ee.Code)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(ExitGeneric)
}

type ExitError struct {
	Code int
	Err  error
	// Reported is set once the error went out as an event.
	Reported bool
}

func (e ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "command failed"
}

func (e ExitError) Unwrap() error { return e.Err }
