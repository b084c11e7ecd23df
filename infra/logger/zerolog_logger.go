package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	cfgMu   sync.RWMutex
	current           = Config{Level: "info", Format: "json"}
	output  io.Writer = os.Stdout
)

// Configure applies cfg to loggers created afterwards and sets the global
// zerolog level.
func Configure(cfg Config) error {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return fmt.Errorf("log level: %w", err)
		}
		level = l
	}
	switch strings.ToLower(cfg.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("log format %q: want json or console", cfg.Format)
	}
	zerolog.SetGlobalLevel(level)
	cfgMu.Lock()
	current = cfg
	cfgMu.Unlock()
	return nil
}

// SetOutput redirects loggers created afterwards to w.
func SetOutput(w io.Writer) {
	cfgMu.Lock()
	output = w
	cfgMu.Unlock()
}

// ZerologLogger implements Logger using rs/zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger creates a ZerologLogger tagged with component. The
// console format is used when configured or when APP_ENV is dev.
func NewZerologLogger(component string) Logger {
	cfgMu.RLock()
	cfg, w := current, output
	cfgMu.RUnlock()
	if strings.EqualFold(cfg.Format, "console") || strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	z := zerolog.New(w).With().Timestamp().Str("component", component).Logger()
	return &ZerologLogger{log: z}
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	ev := l.log.Debug()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}
