package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// Logs is the read side of an observed logger, used by tests to assert on
// the entries an experiment or publisher wrote.
type Logs interface {
	Len() int
	All() []observer.LoggedEntry
	TakeAll() []observer.LoggedEntry
	FilterMessage(msg string) *observer.ObservedLogs
}

var _ Logs = (*observer.ObservedLogs)(nil)

// NewObserverLogger creates a new logger that logs to an observer and returns the logger and the observer.
// An unparsable level falls back to debug so that nothing is dropped.
func NewObserverLogger(level string) (Logger, Logs) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		lvl = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	core, logs := observer.New(lvl)
	return &ZapLogger{Logger: zap.New(core)}, logs
}
