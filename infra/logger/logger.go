package logger

import corelogger "github.com/kilianp07/essim/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger = corelogger.NopLogger

// Config selects the minimum level and the output format ("json" or
// "console").
type Config struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// New returns a Logger for the given component using the configuration set
// by Configure. The APP_ENV variable still forces the console format in dev.
func New(component string) Logger {
	return NewZerologLogger(component)
}
