package cli

import "go.uber.org/zap"

// newLogger returns a debug-level JSON logger on stderr when verbose, and a
// no-op logger otherwise.
func newLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	cfg.Encoding = "json"
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
