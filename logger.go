package main

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	logMu  sync.RWMutex
	logger = newLogger(os.Stderr, zerolog.InfoLevel)
)

func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// SetDebugMode enables or disables debug logging
func SetDebugMode(enabled bool) {
	level := zerolog.InfoLevel
	if enabled {
		level = zerolog.DebugLevel
	}
	logMu.Lock()
	defer logMu.Unlock()
	logger = logger.Level(level)
}

// SetLogOutput redirects log output, keeping the current level
func SetLogOutput(w io.Writer) {
	logMu.Lock()
	defer logMu.Unlock()
	logger = newLogger(w, logger.GetLevel())
}

func logEvent(e *zerolog.Event, component, message string, fields map[string]any) {
	if component != "" {
		e = e.Str("component", component)
	}
	if len(fields) > 0 {
		e = e.Fields(fields)
	}
	e.Msg(message)
}

func currentLogger() zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}

func logDebug(component, message string, fields map[string]any) {
	l := currentLogger()
	logEvent(l.Debug(), component, message, fields)
}

func logInfo(component, message string, fields map[string]any) {
	l := currentLogger()
	logEvent(l.Info(), component, message, fields)
}

func logWarn(component, message string, fields map[string]any) {
	l := currentLogger()
	logEvent(l.Warn(), component, message, fields)
}

func logError(component, message string, fields map[string]any) {
	l := currentLogger()
	logEvent(l.Error(), component, message, fields)
}
